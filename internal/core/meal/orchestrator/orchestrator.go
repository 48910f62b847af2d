// Package orchestrator 依序執行「組出營養資料 → 儲存餐點 → 建立購物清單」。
//
// 外部服務的錯誤不會回傳給呼叫端，而是記錄在 Err()；
// 呼叫端依回傳的 ok 判斷成功與否，再讀取 Err() 取得原因。
package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"meal-pipeline/internal/core/meal"
	"meal-pipeline/internal/core/meal/ledger"
	"meal-pipeline/internal/core/meal/nutrition"
	"meal-pipeline/internal/core/meal/shopping"
	"meal-pipeline/internal/pkg/common"

	"go.uber.org/zap"
)

const (
	serviceMeal     = "meal"
	serviceShopping = "shopping"
	serviceCalendar = "calendar"
)

var (
	errNameRequired        = common.NewValidationError("name required")
	errMissingMealID       = errors.New("meal service returned no meal id")
	errShoppingUnavailable = errors.New("shopping list integration is not configured")
	errCalendarUnavailable = errors.New("meal calendar is not configured")
)

// SaveRequest 儲存餐點的輸入（保留使用者輸入的原始字串）
type SaveRequest struct {
	Name        string               `json:"name"`
	MealType    string               `json:"meal_type"`
	ServingSize meal.InputText       `json:"serving_size"`
	Nutrition   meal.ManualNutrition `json:"nutrition"`
	Tags        []string             `json:"tags"`
	Notes       string               `json:"notes"`
}

// SaveAndShopResult 儲存並建立購物清單的結果，兩個步驟各自成功或失敗
type SaveAndShopResult struct {
	MealSaved           bool   `json:"meal_saved"`
	ShoppingLinkCreated bool   `json:"shopping_link_created"`
	MealID              string `json:"meal_id,omitempty"`
	Link                string `json:"link,omitempty"`
}

// Complete 兩個步驟都成功
func (r SaveAndShopResult) Complete() bool {
	return r.MealSaved && r.ShoppingLinkCreated
}

// Orchestrator 單一編輯工作階段的餐點儲存流程
type Orchestrator struct {
	userID   string
	ledger   *ledger.Ledger
	meals    meal.MealPersistenceService
	shopping meal.ShoppingListExternalService
	calendar meal.CalendarService

	mu     sync.Mutex
	err    error
	saving bool
}

// New 創建流程；shopping 與 calendar 可為 nil（呼叫時記錄為錯誤）
func New(
	userID string,
	l *ledger.Ledger,
	meals meal.MealPersistenceService,
	shoppingSvc meal.ShoppingListExternalService,
	calendar meal.CalendarService,
) *Orchestrator {
	return &Orchestrator{
		userID:   userID,
		ledger:   l,
		meals:    meals,
		shopping: shoppingSvc,
		calendar: calendar,
	}
}

// Err 最近一次操作的錯誤，成功時為 nil
func (o *Orchestrator) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// Saving 是否有請求進行中
func (o *Orchestrator) Saving() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.saving
}

// BuildPayload 由食材清單與輸入組出餐點資料，不呼叫任何外部服務
func BuildPayload(entries []ledger.Entry, req SaveRequest) (meal.MealPayload, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return meal.MealPayload{}, errNameRequired
	}
	mealType, err := meal.ParseMealType(req.MealType)
	if err != nil {
		return meal.MealPayload{}, err
	}

	ingredients := make([]meal.MealIngredient, 0, len(entries))
	for _, e := range entries {
		if !e.Eligible() {
			continue
		}
		ingredients = append(ingredients, meal.MealIngredient{
			Name:     e.Name,
			Amount:   common.FloatOr(e.Amount, 0),
			Unit:     e.Unit,
			Calories: nonZero(e.CaloriesPerUnit),
			Protein:  nonZero(e.ProteinPerUnit),
			Carbs:    nonZero(e.CarbsPerUnit),
			Fat:      nonZero(e.FatPerUnit),
			Brand:    e.Brand,
		})
	}

	tags := req.Tags
	if tags == nil {
		tags = []string{}
	}

	return meal.MealPayload{
		Name:        name,
		MealType:    mealType,
		Ingredients: ingredients,
		Nutrition:   resolveNutrition(entries, req.Nutrition),
		Tags:        tags,
		Notes:       strings.TrimSpace(req.Notes),
		ServingSize: servingSize(req.ServingSize.String()),
	}, nil
}

// resolveNutrition 手動輸入任一欄位即整組採用手動值；
// 否則只有在食材帶營養資料時才使用計算結果
func resolveNutrition(entries []ledger.Entry, manual meal.ManualNutrition) *meal.NutritionTotals {
	if manual.Supplied() {
		totals := manual.Totals()
		return &totals
	}
	if nutrition.HasNutritionData(entries) {
		totals := nutrition.Aggregate(entries)
		return &totals
	}
	return nil
}

// SaveMeal 儲存餐點，成功時回傳服務指派的 id
func (o *Orchestrator) SaveMeal(ctx context.Context, req SaveRequest) (string, bool) {
	payload, err := BuildPayload(o.ledger.Entries(), req)
	if err != nil {
		o.setErr(err)
		return "", false
	}

	o.begin()
	defer o.end()

	start := time.Now()
	created, err := o.meals.CreateMeal(ctx, o.userID, payload)
	if err == nil && (created == nil || strings.TrimSpace(created.ID) == "") {
		err = errMissingMealID
	}
	common.LogCollaboratorCall(serviceMeal, "create_meal", time.Since(start), err)
	if err != nil {
		o.setErr(common.NewCollaboratorError(serviceMeal, err))
		return "", false
	}

	common.LogInfo("餐點已儲存",
		zap.String("meal_id", created.ID),
		zap.String("name", payload.Name),
		zap.Int("食材數", len(payload.Ingredients)),
	)
	return created.ID, true
}

// CreateShoppingListFromLedger 以目前的食材建立外部購物清單，回傳商品連結
func (o *Orchestrator) CreateShoppingListFromLedger(ctx context.Context, mealName string) (string, bool) {
	o.setErr(nil)

	list, err := shopping.Build(o.ledger.Entries(), shopping.Title(mealName))
	if err != nil {
		o.setErr(err)
		return "", false
	}
	if o.shopping == nil {
		o.setErr(common.NewCollaboratorError(serviceShopping, errShoppingUnavailable))
		return "", false
	}

	o.begin()
	defer o.end()

	start := time.Now()
	result, err := o.shopping.CreateShoppingList(ctx, list.Items, list.Title)
	common.LogCollaboratorCall(serviceShopping, "create_shopping_list", time.Since(start), err)
	if err != nil {
		o.setErr(common.NewCollaboratorError(serviceShopping, err))
		return "", false
	}

	// 回應成功但沒有連結不算錯誤
	if result == nil || result.ProductsLinkURL == "" {
		common.LogWarn("購物清單未產生連結", zap.Int("項目數", len(list.Items)))
		return "", false
	}
	return result.ProductsLinkURL, true
}

// SaveAndShop 先儲存餐點，成功後才建立購物清單。
// 購物清單失敗不會撤銷已儲存的餐點；兩步都成功才清空食材清單。
func (o *Orchestrator) SaveAndShop(ctx context.Context, req SaveRequest) SaveAndShopResult {
	var result SaveAndShopResult

	mealID, ok := o.SaveMeal(ctx, req)
	if !ok {
		return result
	}
	result.MealSaved = true
	result.MealID = mealID

	link, ok := o.CreateShoppingListFromLedger(ctx, req.Name)
	if !ok {
		common.LogWarn("餐點已儲存但購物清單建立失敗", zap.String("meal_id", mealID))
		return result
	}
	result.ShoppingLinkCreated = true
	result.Link = link

	o.ledger.Reset()
	return result
}

// ScheduleToCalendar 將已儲存的餐點排入行事曆
func (o *Orchestrator) ScheduleToCalendar(ctx context.Context, mealID, date, mealType string, servings int) bool {
	o.setErr(nil)

	if strings.TrimSpace(mealID) == "" {
		o.setErr(common.NewValidationError("meal id required"))
		return false
	}
	if strings.TrimSpace(date) == "" {
		o.setErr(common.NewValidationError("date required"))
		return false
	}
	slot, err := meal.ParseMealType(mealType)
	if err != nil {
		o.setErr(err)
		return false
	}
	if servings <= 0 {
		servings = 1
	}
	if o.calendar == nil {
		o.setErr(common.NewCollaboratorError(serviceCalendar, errCalendarUnavailable))
		return false
	}

	start := time.Now()
	err = o.calendar.ScheduleMeal(ctx, o.userID, meal.CalendarEntry{
		MealID:        mealID,
		ScheduledDate: strings.TrimSpace(date),
		MealSlot:      slot,
		Servings:      servings,
	})
	common.LogCollaboratorCall(serviceCalendar, "schedule_meal", time.Since(start), err)
	if err != nil {
		o.setErr(common.NewCollaboratorError(serviceCalendar, err))
		return false
	}
	return true
}

// ClearError 清除錯誤狀態
func (o *Orchestrator) ClearError() {
	o.setErr(nil)
}

func (o *Orchestrator) begin() {
	o.mu.Lock()
	o.saving = true
	o.err = nil
	o.mu.Unlock()
}

func (o *Orchestrator) end() {
	o.mu.Lock()
	o.saving = false
	o.mu.Unlock()
}

func (o *Orchestrator) setErr(err error) {
	o.mu.Lock()
	o.err = err
	o.mu.Unlock()
}

func nonZero(v *float64) *float64 {
	if v == nil || *v == 0 {
		return nil
	}
	out := *v
	return &out
}

func servingSize(s string) float64 {
	if v, ok := common.ParseLeadingFloat(s); ok && v != 0 {
		return v
	}
	return 1
}
