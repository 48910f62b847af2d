package meal

import (
	"net/http"

	"meal-pipeline/internal/api/handlers"
	"meal-pipeline/internal/core/meal/orchestrator"

	"github.com/gin-gonic/gin"
)

// SaveMealResponse 儲存餐點回應
type SaveMealResponse struct {
	MealID string `json:"meal_id"`
}

// ShoppingListRequest 建立購物清單請求
type ShoppingListRequest struct {
	MealName string `json:"meal_name"`
}

// ShoppingListResponse 購物清單回應；服務成功但沒有連結時 created 為 false
type ShoppingListResponse struct {
	Created bool   `json:"created"`
	Link    string `json:"link,omitempty"`
}

// SaveAndShopResponse 儲存並購物的回應，error 記錄購物清單步驟的失敗原因
type SaveAndShopResponse struct {
	orchestrator.SaveAndShopResult
	Error string `json:"error,omitempty"`
}

// MealStatusResponse 儲存流程狀態；error 為最近一次失敗的原因
type MealStatusResponse struct {
	Saving bool   `json:"saving"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

// ScheduleRequest 排入行事曆請求
type ScheduleRequest struct {
	MealID   string `json:"meal_id"`
	Date     string `json:"date"`
	MealType string `json:"meal_type"`
	Servings int    `json:"servings"`
}

// HandleSaveMeal 處理 POST /sessions/:id/meal
func (h *Handler) HandleSaveMeal(c *gin.Context) {
	var req orchestrator.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondBadRequest(c, err)
		return
	}

	o := handlers.CurrentSession(c).Orchestrator
	mealID, ok := o.SaveMeal(c.Request.Context(), req)
	if !ok {
		handlers.RespondError(c, o.Err())
		return
	}
	c.JSON(http.StatusCreated, SaveMealResponse{MealID: mealID})
}

// HandleSaveAndShop 處理 POST /sessions/:id/meal/shop
func (h *Handler) HandleSaveAndShop(c *gin.Context) {
	var req orchestrator.SaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondBadRequest(c, err)
		return
	}

	o := handlers.CurrentSession(c).Orchestrator
	result := o.SaveAndShop(c.Request.Context(), req)
	if !result.MealSaved {
		handlers.RespondError(c, o.Err())
		return
	}

	resp := SaveAndShopResponse{SaveAndShopResult: result}
	if err := o.Err(); err != nil {
		resp.Error = err.Error()
	}
	c.JSON(http.StatusCreated, resp)
}

// HandleCreateShoppingList 處理 POST /sessions/:id/shopping-list
func (h *Handler) HandleCreateShoppingList(c *gin.Context) {
	var req ShoppingListRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondBadRequest(c, err)
		return
	}

	o := handlers.CurrentSession(c).Orchestrator
	link, ok := o.CreateShoppingListFromLedger(c.Request.Context(), req.MealName)
	if !ok {
		if err := o.Err(); err != nil {
			handlers.RespondError(c, err)
			return
		}
	}
	c.JSON(http.StatusOK, ShoppingListResponse{Created: ok, Link: link})
}

// HandleSchedule 處理 POST /sessions/:id/calendar
func (h *Handler) HandleSchedule(c *gin.Context) {
	var req ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondBadRequest(c, err)
		return
	}

	o := handlers.CurrentSession(c).Orchestrator
	if !o.ScheduleToCalendar(c.Request.Context(), req.MealID, req.Date, req.MealType, req.Servings) {
		handlers.RespondError(c, o.Err())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"scheduled": true})
}

// HandleMealStatus 處理 GET /sessions/:id/meal/status。
// 不經過工作階段鎖，儲存進行中也能查詢。
func (h *Handler) HandleMealStatus(c *gin.Context) {
	s, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		handlers.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, mealStatus(s.Orchestrator))
}

// HandleClearMealError 處理 DELETE /sessions/:id/meal/error，使用者關閉錯誤訊息後重試
func (h *Handler) HandleClearMealError(c *gin.Context) {
	o := handlers.CurrentSession(c).Orchestrator
	o.ClearError()
	c.JSON(http.StatusOK, mealStatus(o))
}

func mealStatus(o *orchestrator.Orchestrator) MealStatusResponse {
	resp := MealStatusResponse{Saving: o.Saving()}
	if err := o.Err(); err != nil {
		resp.Error = err.Error()
		_, resp.Code = handlers.StatusFor(err)
	}
	return resp
}
