package search

import (
	"context"
	"sort"
	"strings"
)

// ProductType 商品類型篩選
type ProductType string

const (
	TypeFood    ProductType = "food"
	TypeBeauty  ProductType = "beauty"
	TypePetFood ProductType = "petfood"
	TypeAll     ProductType = "all"
)

// ParseProductType 解析商品類型，無法辨識時回傳 food
func ParseProductType(s string) ProductType {
	switch ProductType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeBeauty:
		return TypeBeauty
	case TypePetFood:
		return TypePetFood
	case TypeAll:
		return TypeAll
	default:
		return TypeFood
	}
}

// NutritionValues 營養數值（每份或每 100g）
type NutritionValues struct {
	Calories *float64 `json:"calories,omitempty"`
	Protein  *float64 `json:"protein,omitempty"`
	Carbs    *float64 `json:"carbs,omitempty"`
	Fat      *float64 `json:"fat,omitempty"`
	Fiber    *float64 `json:"fiber,omitempty"`
	Sugar    *float64 `json:"sugar,omitempty"`
	Sodium   *float64 `json:"sodium,omitempty"`
}

// HasAny 是否至少有一個熱量或三大營養素欄位
func (n NutritionValues) HasAny() bool {
	return n.Calories != nil || n.Protein != nil || n.Carbs != nil || n.Fat != nil
}

// ProductNutrition 巢狀營養資訊
type ProductNutrition struct {
	PerServing  *NutritionValues `json:"per_serving,omitempty"`
	Per100g     *NutritionValues `json:"per_100g,omitempty"`
	ServingSize string           `json:"serving_size,omitempty"`
}

// Product 搜尋到的商品
type Product struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Brand           string            `json:"brand,omitempty"`
	Type            string            `json:"type,omitempty"`
	Score           float64           `json:"score,omitempty"`
	Categories      string            `json:"categories,omitempty"`
	ImageURL        string            `json:"image_url,omitempty"`
	Calories        *float64          `json:"calories,omitempty"`
	Protein         *float64          `json:"protein,omitempty"`
	Carbs           *float64          `json:"carbs,omitempty"`
	Fat             *float64          `json:"fat,omitempty"`
	Nutrition       *ProductNutrition `json:"nutrition,omitempty"`
	ServingSize     string            `json:"servingSize,omitempty"`
	ServingSizeAlt  string            `json:"serving_size,omitempty"`
	NutriscoreGrade string            `json:"nutriscoreGrade,omitempty"`
}

// PerUnit 回傳每單位營養值：優先使用平面欄位，其次使用 per_serving
func (p Product) PerUnit() NutritionValues {
	flat := NutritionValues{Calories: p.Calories, Protein: p.Protein, Carbs: p.Carbs, Fat: p.Fat}
	if flat.HasAny() {
		return flat
	}
	if p.Nutrition != nil && p.Nutrition.PerServing != nil && p.Nutrition.PerServing.HasAny() {
		return *p.Nutrition.PerServing
	}
	return NutritionValues{}
}

// Serving 回傳商品份量描述
func (p Product) Serving() string {
	switch {
	case p.ServingSize != "":
		return p.ServingSize
	case p.ServingSizeAlt != "":
		return p.ServingSizeAlt
	case p.Nutrition != nil:
		return p.Nutrition.ServingSize
	}
	return ""
}

// TrendingResponse 熱門搜尋
type TrendingResponse struct {
	Success  bool     `json:"success"`
	Type     string   `json:"type"`
	Trending []string `json:"trending"`
}

// SuggestResponse 自動完成建議
type SuggestResponse struct {
	Success     bool      `json:"success"`
	Query       string    `json:"query"`
	Suggestions []string  `json:"suggestions"`
	Brands      []string  `json:"brands"`
	Products    []Product `json:"products"`
	Categories  []string  `json:"categories,omitempty"`
	FromCache   bool      `json:"fromCache,omitempty"`
}

// BrandsResponse 品牌清單
type BrandsResponse struct {
	Success  bool     `json:"success"`
	Type     string   `json:"type"`
	Category string   `json:"category,omitempty"`
	Brands   []string `json:"brands"`
	Count    int      `json:"count"`
}

// SearchOptions 完整搜尋參數
type SearchOptions struct {
	Type   ProductType
	Limit  int
	Offset int
}

// SearchResponse 依類型分組的搜尋結果
type SearchResponse struct {
	Success   bool      `json:"success"`
	Query     string    `json:"query"`
	Food      []Product `json:"food"`
	Beauty    []Product `json:"beauty"`
	PetFood   []Product `json:"petfood"`
	Total     int       `json:"total"`
	FromCache bool      `json:"fromCache,omitempty"`
}

// Group 取出對應類型的商品；all 視為 food
func (r *SearchResponse) Group(t ProductType) []Product {
	if r == nil {
		return nil
	}
	switch t {
	case TypeBeauty:
		return r.Beauty
	case TypePetFood:
		return r.PetFood
	default:
		return r.Food
	}
}

// ExtractBrands 取出 food 結果中的品牌，排序且不重複
func ExtractBrands(r *SearchResponse) []string {
	if r == nil {
		return nil
	}
	seen := make(map[string]struct{})
	brands := make([]string, 0)
	for _, p := range r.Food {
		if p.Brand == "" {
			continue
		}
		if _, ok := seen[p.Brand]; ok {
			continue
		}
		seen[p.Brand] = struct{}{}
		brands = append(brands, p.Brand)
	}
	sort.Strings(brands)
	return brands
}

// ProductSearchService 商品搜尋服務
type ProductSearchService interface {
	Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error)
	Suggest(ctx context.Context, query string, productType ProductType, limit int) (*SuggestResponse, error)
	Trending(ctx context.Context, productType ProductType, limit int) (*TrendingResponse, error)
}

// FallbackTrending 熱門搜尋服務不可用時顯示的固定清單
var FallbackTrending = []string{
	"Organic snacks",
	"Protein bars",
	"Greek yogurt",
	"Chicken breast",
	"Almond milk",
	"Oatmeal",
	"Avocado",
	"Sparkling water",
	"Whole wheat bread",
	"Peanut butter",
}

// FallbackTrendingTerms 回傳固定清單的副本，最多 limit 筆
func FallbackTrendingTerms(limit int) []string {
	terms := FallbackTrending
	if limit > 0 && limit < len(terms) {
		terms = terms[:limit]
	}
	out := make([]string, len(terms))
	copy(out, terms)
	return out
}
