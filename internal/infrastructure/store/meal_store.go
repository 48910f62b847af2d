// Package store 在沒有遠端餐點服務時，以 SQLite 保存餐點。
package store

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meal-pipeline/internal/core/meal"
	"meal-pipeline/internal/infrastructure/config"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrMealNotFound 找不到餐點
var ErrMealNotFound = errors.New("meal not found")

// StringArray 以 JSON 文字保存的字串陣列
type StringArray []string

// Value implements the driver.Valuer interface
func (a StringArray) Value() (driver.Value, error) {
	if len(a) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface
func (a *StringArray) Scan(value interface{}) error {
	if value == nil {
		*a = StringArray{}
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return fmt.Errorf("unsupported type for StringArray: %T", value)
	}
	return json.Unmarshal(bytes, a)
}

// MealRecord 已保存的餐點
type MealRecord struct {
	ID          string                `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	UserID      string                `gorm:"size:64;index;not null" json:"user_id"`
	Name        string                `gorm:"size:255;not null" json:"name"`
	MealType    string                `gorm:"size:20;not null" json:"meal_type"`
	Ingredients []meal.MealIngredient `gorm:"serializer:json" json:"ingredients"`
	HasTotals   bool                  `json:"-"`
	Calories    int                   `json:"calories"`
	Protein     float64               `json:"protein"`
	Carbs       float64               `json:"carbs"`
	Fat         float64               `json:"fat"`
	Tags        StringArray           `gorm:"type:text;not null;default:'[]'" json:"tags"`
	Notes       string                `gorm:"type:text" json:"notes,omitempty"`
	ServingSize float64               `gorm:"not null;default:1" json:"serving_size"`
}

// Nutrition 沒有營養資料時回傳 nil
func (r MealRecord) Nutrition() *meal.NutritionTotals {
	if !r.HasTotals {
		return nil
	}
	return &meal.NutritionTotals{Calories: r.Calories, Protein: r.Protein, Carbs: r.Carbs, Fat: r.Fat}
}

var _ meal.MealPersistenceService = (*MealStore)(nil)

// MealStore 實作 meal.MealPersistenceService
type MealStore struct {
	db *gorm.DB
}

// Open 依設定開啟資料庫並建立資料表
func Open(cfg config.StoreConfig) (*MealStore, error) {
	if cfg.Driver != "" && cfg.Driver != "sqlite" {
		return nil, fmt.Errorf("unsupported meal store driver %q", cfg.Driver)
	}

	db, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open meal store: %w", err)
	}
	return New(db)
}

// New 使用既有連線並建立資料表
func New(db *gorm.DB) (*MealStore, error) {
	if err := db.AutoMigrate(&MealRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate meal store: %w", err)
	}
	return &MealStore{db: db}, nil
}

// CreateMeal 保存餐點並指派 id
func (s *MealStore) CreateMeal(ctx context.Context, userID string, payload meal.MealPayload) (*meal.CreatedMeal, error) {
	record := MealRecord{
		ID:          uuid.New().String(),
		UserID:      userID,
		Name:        payload.Name,
		MealType:    string(payload.MealType),
		Ingredients: payload.Ingredients,
		Tags:        StringArray(payload.Tags),
		Notes:       payload.Notes,
		ServingSize: payload.ServingSize,
	}
	if n := payload.Nutrition; n != nil {
		record.HasTotals = true
		record.Calories = n.Calories
		record.Protein = n.Protein
		record.Carbs = n.Carbs
		record.Fat = n.Fat
	}

	if err := s.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to save meal: %w", err)
	}
	return &meal.CreatedMeal{ID: record.ID}, nil
}

// GetMeal 依 id 讀取餐點
func (s *MealStore) GetMeal(ctx context.Context, id string) (*MealRecord, error) {
	var record MealRecord
	err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMealNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load meal: %w", err)
	}
	return &record, nil
}

// ListMeals 列出使用者的餐點，新的在前
func (s *MealStore) ListMeals(ctx context.Context, userID string) ([]MealRecord, error) {
	var records []MealRecord
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list meals: %w", err)
	}
	return records, nil
}

// Ping 檢查資料庫連線
func (s *MealStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 關閉資料庫連線
func (s *MealStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
