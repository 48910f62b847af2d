package shopping

import (
	"strings"

	"meal-pipeline/internal/core/meal"
	"meal-pipeline/internal/core/meal/ledger"
	"meal-pipeline/internal/pkg/common"
)

// ErrNothingToBuild 沒有任何可加入購物清單的食材
var ErrNothingToBuild = common.NewValidationError("add ingredients to create a shopping list")

// List 待送出的購物清單
type List struct {
	Title string                      `json:"title"`
	Items []meal.ShoppingListLineItem `json:"items"`
}

// Title 依餐點名稱產生清單標題
func Title(mealName string) string {
	return "Shopping for: " + strings.TrimSpace(mealName)
}

// Build 將食材轉成購物清單項目。
// 名稱空白的項目略過；數量無法解析或不為正數時為 1；有品牌時才加上品牌篩選。
// 同名項目不合併。
func Build(entries []ledger.Entry, title string) (*List, error) {
	items := make([]meal.ShoppingListLineItem, 0, len(entries))
	for _, e := range entries {
		if !e.Eligible() {
			continue
		}

		item := meal.ShoppingListLineItem{
			Name:     e.Name,
			Quantity: quantity(e.Amount),
			Unit:     e.Unit,
		}
		if brand := strings.TrimSpace(e.Brand); brand != "" {
			item.BrandFilter = []string{brand}
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		return nil, ErrNothingToBuild
	}
	return &List{Title: title, Items: items}, nil
}

func quantity(amount string) float64 {
	if v, ok := common.ParseLeadingFloat(amount); ok && v > 0 {
		return v
	}
	return 1
}
