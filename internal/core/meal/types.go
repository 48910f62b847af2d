package meal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"meal-pipeline/internal/pkg/common"
)

// MealType 餐點類別
type MealType string

const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
)

// ParseMealType 解析餐點類別，不在列舉內時回傳驗證錯誤
func ParseMealType(s string) (MealType, error) {
	switch t := MealType(strings.ToLower(strings.TrimSpace(s))); t {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		return t, nil
	}
	return "", common.NewValidationError("meal type must be one of breakfast, lunch, dinner, snack")
}

// InputText 使用者輸入的文字欄位，JSON 也接受數字（400 視為 "400"）
type InputText string

// UnmarshalJSON 接受字串、數字或 null
func (t *InputText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = InputText(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*t = InputText(n.String())
	return nil
}

// String 原始文字
func (t InputText) String() string {
	return string(t)
}

// ManualNutrition 使用者手動輸入的營養值（原始字串）
type ManualNutrition struct {
	Calories InputText `json:"calories"`
	Protein  InputText `json:"protein"`
	Carbs    InputText `json:"carbs"`
	Fat      InputText `json:"fat"`
}

// Supplied 任一欄位非空即視為使用者有提供
func (m ManualNutrition) Supplied() bool {
	return strings.TrimSpace(m.Calories.String()) != "" ||
		strings.TrimSpace(m.Protein.String()) != "" ||
		strings.TrimSpace(m.Carbs.String()) != "" ||
		strings.TrimSpace(m.Fat.String()) != ""
}

// Totals 將手動值轉成營養總計，缺少或無法解析的欄位為 0，負值視為 0
func (m ManualNutrition) Totals() NutritionTotals {
	calories, _ := common.ParseLeadingInt(m.Calories.String())
	return NutritionTotals{
		Calories: max(calories, 0),
		Protein:  max(common.FloatOr(m.Protein.String(), 0), 0),
		Carbs:    max(common.FloatOr(m.Carbs.String(), 0), 0),
		Fat:      max(common.FloatOr(m.Fat.String(), 0), 0),
	}
}

// NutritionTotals 一餐的營養總計
type NutritionTotals struct {
	Calories int     `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

// MealIngredient 儲存到餐點紀錄的食材
type MealIngredient struct {
	Name     string   `json:"name"`
	Amount   float64  `json:"amount"`
	Unit     string   `json:"unit"`
	Calories *float64 `json:"calories,omitempty"`
	Protein  *float64 `json:"protein,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
	Brand    string   `json:"brand,omitempty"`
}

// MealPayload 送往餐點儲存服務的資料
type MealPayload struct {
	Name        string           `json:"name"`
	MealType    MealType         `json:"meal_type"`
	Ingredients []MealIngredient `json:"ingredients"`
	Nutrition   *NutritionTotals `json:"nutrition,omitempty"`
	Tags        []string         `json:"tags"`
	Notes       string           `json:"notes,omitempty"`
	ServingSize float64          `json:"serving_size"`
}

// CreatedMeal 儲存成功後由服務指派的識別
type CreatedMeal struct {
	ID string `json:"id"`
}

// ShoppingListLineItem 購物清單項目
type ShoppingListLineItem struct {
	Name        string   `json:"name"`
	Quantity    float64  `json:"quantity"`
	Unit        string   `json:"unit"`
	BrandFilter []string `json:"brand_filter,omitempty"`
}

// ShoppingListResult 購物清單建立結果；沒有連結時 ProductsLinkURL 為空
type ShoppingListResult struct {
	ProductsLinkURL string `json:"products_link_url,omitempty"`
}

// CalendarEntry 行事曆排程
type CalendarEntry struct {
	MealID        string   `json:"meal_id"`
	ScheduledDate string   `json:"scheduled_date"`
	MealSlot      MealType `json:"meal_slot"`
	Servings      int      `json:"servings"`
}

// MealPersistenceService 餐點儲存服務
type MealPersistenceService interface {
	CreateMeal(ctx context.Context, userID string, payload MealPayload) (*CreatedMeal, error)
}

// ShoppingListExternalService 外部購物清單服務
type ShoppingListExternalService interface {
	CreateShoppingList(ctx context.Context, items []ShoppingListLineItem, title string) (*ShoppingListResult, error)
}

// CalendarService 餐點行事曆服務
type CalendarService interface {
	ScheduleMeal(ctx context.Context, userID string, entry CalendarEntry) error
}
