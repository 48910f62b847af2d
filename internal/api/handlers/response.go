// Package handlers 放置 HTTP 處理器共用的工具：錯誤映射與工作階段載入。
package handlers

import (
	"errors"
	"net/http"

	"meal-pipeline/internal/core/session"
	"meal-pipeline/internal/pkg/common"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const sessionKey = "session"

// StatusFor 錯誤對應的 HTTP 狀態碼與錯誤代碼
func StatusFor(err error) (int, string) {
	var ce *common.CustomError
	switch {
	case common.IsValidationError(err):
		return http.StatusUnprocessableEntity, common.ErrCodeValidation
	case common.IsCollaboratorError(err):
		return http.StatusBadGateway, common.ErrCodeCollaborator
	case errors.As(err, &ce):
		return ce.Status, ce.Code
	}
	return http.StatusInternalServerError, common.ErrCodeInternalError
}

// RespondError 回傳錯誤並中止後續處理
func RespondError(c *gin.Context, err error) {
	if err == nil {
		err = common.ErrInternalError
	}
	status, code := StatusFor(err)

	message := err.Error()
	var ce *common.CustomError
	if errors.As(err, &ce) {
		message = ce.Message
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, common.ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// RespondBadRequest 請求格式錯誤
func RespondBadRequest(c *gin.Context, err error) {
	common.LogWarn("請求格式無效",
		zap.Error(err),
		zap.String("request_id", requestid.Get(c)),
	)
	_ = c.Error(err)
	c.AbortWithStatusJSON(common.ErrInvalidRequest.Status, common.ErrInvalidRequest.Response(err.Error()))
}

// LoadSession 取得路徑中的工作階段並在請求期間鎖住它
func LoadSession(sessions *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := sessions.Get(c.Param("id"))
		if err != nil {
			RespondError(c, err)
			return
		}

		s.Lock()
		defer s.Unlock()

		c.Set(sessionKey, s)
		c.Next()
	}
}

// CurrentSession 取得 LoadSession 放入的工作階段
func CurrentSession(c *gin.Context) *session.Session {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	s, _ := v.(*session.Session)
	return s
}
