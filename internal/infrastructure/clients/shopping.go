package clients

import (
	"context"
	"fmt"

	"meal-pipeline/internal/core/meal"
	"meal-pipeline/internal/infrastructure/config"
	"meal-pipeline/internal/pkg/common"

	"github.com/go-resty/resty/v2"
)

const serviceShopping = "shopping list"

// ShoppingClient 外部購物清單整合
type ShoppingClient struct {
	client *resty.Client
}

// NewShoppingClient 創建購物清單 client
func NewShoppingClient(cfg config.ServiceConfig) *ShoppingClient {
	return &ShoppingClient{client: newClient(cfg)}
}

type lineItemFilters struct {
	BrandFilters []string `json:"brand_filters"`
}

type lineItem struct {
	Name     string           `json:"name"`
	Quantity float64          `json:"quantity"`
	Unit     string           `json:"unit"`
	Filters  *lineItemFilters `json:"filters,omitempty"`
}

type shoppingListRequest struct {
	Title     string     `json:"title"`
	LineItems []lineItem `json:"line_items"`
}

type shoppingListResponse struct {
	Success bool `json:"success"`
	Data    *struct {
		ProductsLinkURL string `json:"productsLinkUrl"`
	} `json:"data"`
	Error string `json:"error"`
}

// CreateShoppingList 建立購物清單；回應沒有連結時回傳空的結果而非錯誤
func (c *ShoppingClient) CreateShoppingList(ctx context.Context, items []meal.ShoppingListLineItem, title string) (*meal.ShoppingListResult, error) {
	body := shoppingListRequest{
		Title:     title,
		LineItems: make([]lineItem, 0, len(items)),
	}
	for _, item := range items {
		li := lineItem{Name: item.Name, Quantity: item.Quantity, Unit: item.Unit}
		if len(item.BrandFilter) > 0 {
			li.Filters = &lineItemFilters{BrandFilters: item.BrandFilter}
		}
		body.LineItems = append(body.LineItems, li)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/api/instacart/shopping-list")
	if err != nil {
		return nil, fmt.Errorf("failed to send request to shopping list service: %w", err)
	}
	if !resp.IsSuccess() {
		return nil, apiError(serviceShopping, resp)
	}

	var result shoppingListResponse
	if err := common.ParseJSONBytes(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse shopping list response: %w", err)
	}

	out := &meal.ShoppingListResult{}
	if result.Data != nil {
		out.ProductsLinkURL = result.Data.ProductsLinkURL
	}
	return out, nil
}
