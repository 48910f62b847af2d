// Package search 提供工作階段搜尋框的 HTTP 介面。
//
// 輸入經過防抖後才會查詢建議，因此 PUT query 只回傳當下狀態，
// 呼叫端再以 GET 取得解析後的建議。
package search

import (
	"context"
	"net/http"
	"strings"

	"meal-pipeline/internal/api/handlers"
	"meal-pipeline/internal/core/search"
	"meal-pipeline/internal/pkg/common"

	"github.com/gin-gonic/gin"
)

// Source 選取的來源
const (
	SourceSuggestion = "suggestion"
	SourceTrending   = "trending"
)

// BrandLister 取得某類型的品牌清單
type BrandLister interface {
	Brands(ctx context.Context, productType search.ProductType, category string) (*search.BrandsResponse, error)
}

// QueryRequest 更新輸入
type QueryRequest struct {
	Query string `json:"query"`
}

// SelectRequest 選取建議或熱門搜尋
type SelectRequest struct {
	Text   string `json:"text" binding:"required"`
	Source string `json:"source,omitempty"`
}

// HandleSnapshot 處理 GET /sessions/:id/search
func HandleSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, handlers.CurrentSession(c).Search.Snapshot())
}

// HandleTrending 處理 GET /sessions/:id/search/trending
func HandleTrending(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"trending": handlers.CurrentSession(c).Search.Trending()})
}

// HandleSetQuery 處理 PUT /sessions/:id/search/query
func HandleSetQuery(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondBadRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, handlers.CurrentSession(c).Search.SetQuery(req.Query))
}

// HandleSelect 處理 POST /sessions/:id/search/select
func HandleSelect(c *gin.Context) {
	var req SelectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondBadRequest(c, err)
		return
	}

	engine := handlers.CurrentSession(c).Search
	switch strings.ToLower(strings.TrimSpace(req.Source)) {
	case "", SourceSuggestion:
		c.JSON(http.StatusOK, engine.SelectSuggestion(req.Text))
	case SourceTrending:
		c.JSON(http.StatusOK, engine.SelectTrending(req.Text))
	default:
		handlers.RespondError(c, common.NewValidationError("source must be suggestion or trending"))
	}
}

// HandleSubmit 處理 POST /sessions/:id/search/submit
func HandleSubmit(c *gin.Context) {
	c.JSON(http.StatusOK, handlers.CurrentSession(c).Search.Submit())
}

// HandleClear 處理 DELETE /sessions/:id/search
func HandleClear(c *gin.Context) {
	c.JSON(http.StatusOK, handlers.CurrentSession(c).Search.Clear())
}

// HandleBrands 處理 GET /sessions/:id/search/brands，依工作階段的商品類型列出品牌
func HandleBrands(lister BrandLister) gin.HandlerFunc {
	return func(c *gin.Context) {
		if lister == nil {
			handlers.RespondError(c, common.ErrServiceUnavailable)
			return
		}

		productType := handlers.CurrentSession(c).Search.Snapshot().ProductType
		resp, err := lister.Brands(c.Request.Context(), productType, strings.TrimSpace(c.Query("category")))
		if err != nil {
			handlers.RespondError(c, common.NewCollaboratorError("product_search", err))
			return
		}

		brands := resp.Brands
		if brands == nil {
			brands = []string{}
		}
		c.JSON(http.StatusOK, gin.H{
			"type":     productType,
			"category": resp.Category,
			"brands":   brands,
		})
	}
}
