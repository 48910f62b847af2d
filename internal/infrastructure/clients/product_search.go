package clients

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"meal-pipeline/internal/core/search"
	"meal-pipeline/internal/infrastructure/config"
	"meal-pipeline/internal/pkg/common"

	"github.com/go-resty/resty/v2"
)

const serviceProductSearch = "product search"

// ProductSearchClient 商品搜尋服務
type ProductSearchClient struct {
	client *resty.Client
}

// NewProductSearchClient 創建商品搜尋 client
func NewProductSearchClient(cfg config.ServiceConfig) *ProductSearchClient {
	return &ProductSearchClient{client: newClient(cfg)}
}

// Trending 熱門搜尋
func (c *ProductSearchClient) Trending(ctx context.Context, productType search.ProductType, limit int) (*search.TrendingResponse, error) {
	req := c.client.R().SetContext(ctx).SetQueryParam("limit", strconv.Itoa(limit))
	if productType != search.TypeAll {
		req.SetQueryParam("type", string(productType))
	}

	var result search.TrendingResponse
	if err := c.get(req, "/trending", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Suggest 自動完成建議；查詢少於兩個字元時不發出請求
func (c *ProductSearchClient) Suggest(ctx context.Context, query string, productType search.ProductType, limit int) (*search.SuggestResponse, error) {
	if len([]rune(query)) < 2 {
		return &search.SuggestResponse{
			Success:     true,
			Query:       query,
			Suggestions: []string{},
			Brands:      []string{},
			Products:    []search.Product{},
		}, nil
	}

	req := c.client.R().SetContext(ctx).
		SetQueryParam("q", query).
		SetQueryParam("limit", strconv.Itoa(limit))
	if productType != search.TypeAll {
		req.SetQueryParam("type", string(productType))
	}

	var result search.SuggestResponse
	if err := c.get(req, "/suggest", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Search 完整商品搜尋
func (c *ProductSearchClient) Search(ctx context.Context, query string, opts search.SearchOptions) (*search.SearchResponse, error) {
	req := c.client.R().SetContext(ctx).SetQueryParam("q", query)
	if opts.Type != "" && opts.Type != search.TypeAll {
		req.SetQueryParam("type", string(opts.Type))
	}
	if opts.Limit > 0 {
		req.SetQueryParam("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		req.SetQueryParam("offset", strconv.Itoa(opts.Offset))
	}

	var result search.SearchResponse
	if err := c.get(req, "/search", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Brands 取得某類型的熱門品牌
func (c *ProductSearchClient) Brands(ctx context.Context, productType search.ProductType, category string) (*search.BrandsResponse, error) {
	req := c.client.R().SetContext(ctx).SetQueryParam("type", string(productType))
	if category != "" {
		req.SetQueryParam("category", category)
	}

	var result search.BrandsResponse
	if err := c.get(req, "/brands", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ProductByBarcode 以條碼查詢商品，只接受 id 完全相符的結果
func (c *ProductSearchClient) ProductByBarcode(ctx context.Context, barcode string) (*search.Product, error) {
	results, err := c.Search(ctx, barcode, search.SearchOptions{Type: search.TypeFood, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(results.Food) > 0 && results.Food[0].ID == barcode {
		product := results.Food[0]
		return &product, nil
	}
	return nil, nil
}

// Health 檢查搜尋服務是否健康
func (c *ProductSearchClient) Health(ctx context.Context) bool {
	var result struct {
		Success bool   `json:"success"`
		Status  string `json:"status"`
	}
	if err := c.get(c.client.R().SetContext(ctx), "/health", &result); err != nil {
		return false
	}
	return result.Success && result.Status == "healthy"
}

func (c *ProductSearchClient) get(req *resty.Request, path string, out interface{}) error {
	resp, err := req.Get(path)
	if err != nil {
		return fmt.Errorf("failed to send request to %s: %w", serviceProductSearch, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return apiError(serviceProductSearch, resp)
	}
	if err := common.ParseJSONBytes(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", serviceProductSearch, err)
	}
	return nil
}
