package meal

import (
	"net/http"
	"strings"

	"meal-pipeline/internal/api/handlers"
	"meal-pipeline/internal/core/meal"
	"meal-pipeline/internal/core/meal/ledger"
	"meal-pipeline/internal/core/meal/nutrition"
	"meal-pipeline/internal/core/search"
	"meal-pipeline/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// IngredientsResponse 食材清單與即時營養總計
type IngredientsResponse struct {
	Entries      []ledger.Entry       `json:"entries"`
	Totals       meal.NutritionTotals `json:"totals"`
	HasNutrition bool                 `json:"has_nutrition"`
}

// AddIngredientRequest 手動加入食材
type AddIngredientRequest struct {
	Name   string         `json:"name"`
	Amount meal.InputText `json:"amount"`
	Unit   string         `json:"unit"`
}

// AddProductRequest 由商品加入食材；product_id 指搜尋框目前顯示的商品
type AddProductRequest struct {
	ProductID string          `json:"product_id,omitempty"`
	Barcode   string          `json:"barcode,omitempty"`
	Product   *search.Product `json:"product,omitempty"`
	Amount    meal.InputText  `json:"amount,omitempty"`
	Unit      string          `json:"unit,omitempty"`
}

// UpdateIngredientRequest 修改單一欄位
type UpdateIngredientRequest struct {
	Field string `json:"field" binding:"required"`
	Value string `json:"value"`
}

// ReplaceIngredientsRequest 整批取代
type ReplaceIngredientsRequest struct {
	Entries []ledger.Entry `json:"entries"`
}

func ingredientsResponse(l *ledger.Ledger) IngredientsResponse {
	entries := l.Entries()
	return IngredientsResponse{
		Entries:      entries,
		Totals:       nutrition.Aggregate(entries),
		HasNutrition: nutrition.HasNutritionData(entries),
	}
}

// HandleListIngredients 處理 GET /sessions/:id/ingredients
func (h *Handler) HandleListIngredients(c *gin.Context) {
	s := handlers.CurrentSession(c)
	c.JSON(http.StatusOK, ingredientsResponse(s.Ledger))
}

// HandleAddIngredient 處理 POST /sessions/:id/ingredients
func (h *Handler) HandleAddIngredient(c *gin.Context) {
	var req AddIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondBadRequest(c, err)
		return
	}

	s := handlers.CurrentSession(c)
	entry := s.Ledger.AddManual(req.Name, req.Amount.String(), req.Unit)
	c.JSON(http.StatusCreated, gin.H{
		"entry":       entry,
		"ingredients": ingredientsResponse(s.Ledger),
	})
}

// HandleAddProduct 處理 POST /sessions/:id/ingredients/product
func (h *Handler) HandleAddProduct(c *gin.Context) {
	var req AddProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondBadRequest(c, err)
		return
	}

	s := handlers.CurrentSession(c)

	var product search.Product
	switch {
	case req.Product != nil:
		product = *req.Product
	case strings.TrimSpace(req.ProductID) != "":
		p, ok := s.Search.SelectProduct(strings.TrimSpace(req.ProductID))
		if !ok {
			handlers.RespondError(c, common.NewError(common.ErrCodeNotFound, "product is not in the current results", http.StatusNotFound, nil))
			return
		}
		product = p
	case strings.TrimSpace(req.Barcode) != "":
		if h.products == nil {
			handlers.RespondError(c, common.ErrServiceUnavailable)
			return
		}
		p, err := h.products.ProductByBarcode(c.Request.Context(), strings.TrimSpace(req.Barcode))
		if err != nil {
			handlers.RespondError(c, common.NewCollaboratorError("product_search", err))
			return
		}
		if p == nil {
			handlers.RespondError(c, common.NewError(common.ErrCodeNotFound, "no product for barcode", http.StatusNotFound, nil))
			return
		}
		product = *p
	default:
		handlers.RespondError(c, common.NewValidationError("product, product_id or barcode required"))
		return
	}

	if strings.TrimSpace(product.Name) == "" {
		handlers.RespondError(c, common.NewValidationError("product name required"))
		return
	}

	entry := s.Ledger.AddFromProduct(product, req.Amount.String(), req.Unit)
	common.LogDebug("由商品加入食材",
		zap.String("session_id", s.ID),
		zap.String("product_id", product.ID),
		zap.Bool("has_nutrition", entry.HasNutrition()),
	)
	c.JSON(http.StatusCreated, gin.H{
		"entry":       entry,
		"ingredients": ingredientsResponse(s.Ledger),
	})
}

// HandleUpdateIngredient 處理 PATCH /sessions/:id/ingredients/:ingredientId
func (h *Handler) HandleUpdateIngredient(c *gin.Context) {
	var req UpdateIngredientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondBadRequest(c, err)
		return
	}
	field, err := ledger.ParseField(req.Field)
	if err != nil {
		handlers.RespondError(c, err)
		return
	}

	s := handlers.CurrentSession(c)
	if !s.Ledger.Update(c.Param("ingredientId"), field, req.Value) {
		handlers.RespondError(c, common.NewError(common.ErrCodeNotFound, "ingredient not found", http.StatusNotFound, nil))
		return
	}
	c.JSON(http.StatusOK, ingredientsResponse(s.Ledger))
}

// HandleRemoveIngredient 處理 DELETE /sessions/:id/ingredients/:ingredientId
func (h *Handler) HandleRemoveIngredient(c *gin.Context) {
	s := handlers.CurrentSession(c)
	if !s.Ledger.Remove(c.Param("ingredientId")) {
		handlers.RespondError(c, common.NewError(common.ErrCodeNotFound, "ingredient not found", http.StatusNotFound, nil))
		return
	}
	c.JSON(http.StatusOK, ingredientsResponse(s.Ledger))
}

// HandleReplaceIngredients 處理 PUT /sessions/:id/ingredients
func (h *Handler) HandleReplaceIngredients(c *gin.Context) {
	var req ReplaceIngredientsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondBadRequest(c, err)
		return
	}

	s := handlers.CurrentSession(c)
	s.Ledger.ReplaceAll(req.Entries)
	c.JSON(http.StatusOK, ingredientsResponse(s.Ledger))
}
