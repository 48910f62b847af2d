package meal

import (
	"context"
	"net/http"

	"meal-pipeline/internal/api/handlers"
	"meal-pipeline/internal/core/search"
	"meal-pipeline/internal/core/session"
	"meal-pipeline/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ProductLookup 以條碼查詢單一商品
type ProductLookup interface {
	ProductByBarcode(ctx context.Context, barcode string) (*search.Product, error)
}

// Handler 餐點編輯工作階段的處理器
type Handler struct {
	sessions *session.Manager
	products ProductLookup
}

// NewHandler 創建處理器；products 可為 nil（不支援條碼加入）
func NewHandler(sessions *session.Manager, products ProductLookup) *Handler {
	return &Handler{
		sessions: sessions,
		products: products,
	}
}

// CreateSessionRequest 建立工作階段請求
type CreateSessionRequest struct {
	UserID             string `json:"user_id" binding:"required"`
	ProductType        string `json:"product_type,omitempty"`
	ShowProductResults bool   `json:"show_product_results,omitempty"`
}

// CreateSessionResponse 建立工作階段回應
type CreateSessionResponse struct {
	SessionID   string             `json:"session_id"`
	ProductType search.ProductType `json:"product_type"`
}

// HandleCreateSession 處理 POST /sessions
func (h *Handler) HandleCreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		handlers.RespondBadRequest(c, err)
		return
	}

	s, err := h.sessions.Create(session.CreateOptions{
		UserID:             req.UserID,
		ProductType:        search.ParseProductType(req.ProductType),
		ShowProductResults: req.ShowProductResults,
	})
	if err != nil {
		handlers.RespondError(c, err)
		return
	}

	common.LogInfo("開始新的餐點編輯",
		zap.String("session_id", s.ID),
		zap.String("request_id", requestid.Get(c)),
	)
	c.JSON(http.StatusCreated, CreateSessionResponse{
		SessionID:   s.ID,
		ProductType: s.Search.Snapshot().ProductType,
	})
}

// HandleCloseSession 處理 DELETE /sessions/:id
func (h *Handler) HandleCloseSession(c *gin.Context) {
	if !h.sessions.Close(c.Param("id")) {
		handlers.RespondError(c, common.ErrSessionNotFound)
		return
	}
	c.Status(http.StatusNoContent)
}
