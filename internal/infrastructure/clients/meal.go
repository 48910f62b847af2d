package clients

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"meal-pipeline/internal/core/meal"
	"meal-pipeline/internal/infrastructure/config"
	"meal-pipeline/internal/pkg/common"

	"github.com/go-resty/resty/v2"
)

const serviceMeal = "meal"

// MealClient 遠端餐點服務
type MealClient struct {
	client *resty.Client
}

// NewMealClient 創建餐點服務 client
func NewMealClient(cfg config.ServiceConfig) *MealClient {
	return &MealClient{client: newClient(cfg)}
}

// createMealRequest 除了巢狀 nutrition 之外，服務另外需要平面的營養欄位
type createMealRequest struct {
	UserID string `json:"user_id"`
	meal.MealPayload
	Calories *int     `json:"calories,omitempty"`
	ProteinG *float64 `json:"protein_g,omitempty"`
	CarbsG   *float64 `json:"carbs_g,omitempty"`
	FatG     *float64 `json:"fat_g,omitempty"`
}

type createMealResponse struct {
	Success bool   `json:"success"`
	MealID  string `json:"meal_id"`
	ID      string `json:"id"`
	Meal    *struct {
		ID string `json:"id"`
	} `json:"meal"`
	Error string `json:"error"`
}

// id 依序取 meal_id、meal.id、id 中第一個非空值
func (r createMealResponse) id() string {
	candidates := []string{r.MealID}
	if r.Meal != nil {
		candidates = append(candidates, r.Meal.ID)
	}
	candidates = append(candidates, r.ID)
	for _, c := range candidates {
		if strings.TrimSpace(c) != "" {
			return c
		}
	}
	return ""
}

// CreateMeal 建立餐點
func (c *MealClient) CreateMeal(ctx context.Context, userID string, payload meal.MealPayload) (*meal.CreatedMeal, error) {
	body := createMealRequest{UserID: userID, MealPayload: payload}
	if n := payload.Nutrition; n != nil {
		body.Calories = &n.Calories
		body.ProteinG = &n.Protein
		body.CarbsG = &n.Carbs
		body.FatG = &n.Fat
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(body).
		Post("/api/meals/create")
	if err != nil {
		return nil, fmt.Errorf("failed to send request to meal service: %w", err)
	}

	var result createMealResponse
	parseErr := common.ParseJSONBytes(resp.Body(), &result)

	if !resp.IsSuccess() || parseErr != nil || !result.Success {
		if result.Error != "" {
			return nil, errors.New(result.Error)
		}
		if !resp.IsSuccess() {
			return nil, apiError(serviceMeal, resp)
		}
		return nil, errors.New("failed to create meal")
	}

	return &meal.CreatedMeal{ID: result.id()}, nil
}
