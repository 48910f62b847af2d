package clients

import (
	"context"
	"fmt"
	"net/url"

	"meal-pipeline/internal/core/meal"
	"meal-pipeline/internal/infrastructure/config"

	"github.com/go-resty/resty/v2"
)

const serviceCalendar = "meal calendar"

// CalendarClient 餐點行事曆服務
type CalendarClient struct {
	client *resty.Client
}

// NewCalendarClient 創建行事曆 client
func NewCalendarClient(cfg config.ServiceConfig) *CalendarClient {
	return &CalendarClient{client: newClient(cfg)}
}

type scheduleRequest struct {
	MealID        string `json:"mealId"`
	ScheduledDate string `json:"scheduledDate"`
	MealSlot      string `json:"mealSlot"`
	Servings      int    `json:"servings"`
}

// ScheduleMeal 將餐點排入使用者的行事曆
func (c *CalendarClient) ScheduleMeal(ctx context.Context, userID string, entry meal.CalendarEntry) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(scheduleRequest{
			MealID:        entry.MealID,
			ScheduledDate: entry.ScheduledDate,
			MealSlot:      string(entry.MealSlot),
			Servings:      entry.Servings,
		}).
		Post(fmt.Sprintf("/api/meals/calendar/%s/schedule", url.PathEscape(userID)))
	if err != nil {
		return fmt.Errorf("failed to send request to meal calendar: %w", err)
	}
	if !resp.IsSuccess() {
		return apiError(serviceCalendar, resp)
	}
	return nil
}
