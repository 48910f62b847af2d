// Package clients 以 resty 實作外部服務（商品搜尋、餐點、購物清單、行事曆）。
package clients

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"meal-pipeline/internal/infrastructure/config"
	"meal-pipeline/internal/pkg/common"

	"github.com/go-resty/resty/v2"
)

const defaultTimeout = 10 * time.Second

// newClient 依服務設定建立 resty client
func newClient(cfg config.ServiceConfig) *resty.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	if cfg.APIKey != "" {
		client.SetHeader("Authorization", fmt.Sprintf("Bearer %s", cfg.APIKey))
	}
	if cfg.RetryCount > 0 {
		client.SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(200 * time.Millisecond).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() >= http.StatusInternalServerError
			})
	}
	return client
}

// apiError 由非 2xx 回應產生錯誤；回應含 error/message 欄位時優先使用
func apiError(service string, resp *resty.Response) error {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := common.ParseJSONBytes(resp.Body(), &body); err == nil {
		if body.Error != "" {
			return errors.New(body.Error)
		}
		if body.Message != "" {
			return errors.New(body.Message)
		}
	}
	return fmt.Errorf("%s returned status %d", service, resp.StatusCode())
}
