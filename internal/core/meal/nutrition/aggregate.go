package nutrition

import (
	"math"

	"meal-pipeline/internal/core/meal"
	"meal-pipeline/internal/core/meal/ledger"
	"meal-pipeline/internal/pkg/common"

	"github.com/shopspring/decimal"
)

// Amount 食材的份量倍數；空白或無法解析時為 1
func Amount(e ledger.Entry) float64 {
	return common.FloatOr(e.Amount, 1)
}

// Aggregate 計算整餐營養總計。
// 以十進位精確加總，只在最後四捨五入：熱量取整數，其餘取一位小數。
func Aggregate(entries []ledger.Entry) meal.NutritionTotals {
	var calories, protein, carbs, fat decimal.Decimal

	for _, e := range entries {
		if !e.Eligible() {
			continue
		}
		amount := decimal.NewFromFloat(Amount(e))
		calories = calories.Add(scaled(e.CaloriesPerUnit, amount))
		protein = protein.Add(scaled(e.ProteinPerUnit, amount))
		carbs = carbs.Add(scaled(e.CarbsPerUnit, amount))
		fat = fat.Add(scaled(e.FatPerUnit, amount))
	}

	return meal.NutritionTotals{
		Calories: wholeCalories(calories),
		Protein:  nonNegative(protein).Round(1).InexactFloat64(),
		Carbs:    nonNegative(carbs).Round(1).InexactFloat64(),
		Fat:      nonNegative(fat).Round(1).InexactFloat64(),
	}
}

// HasNutritionData 至少一個項目有熱量值時為 true
func HasNutritionData(entries []ledger.Entry) bool {
	for _, e := range entries {
		if e.Eligible() && e.CaloriesPerUnit != nil {
			return true
		}
	}
	return false
}

func scaled(perUnit *float64, amount decimal.Decimal) decimal.Decimal {
	if perUnit == nil {
		return decimal.Zero
	}
	return decimal.NewFromFloat(*perUnit).Mul(amount)
}

// 超過 int 範圍的熱量以最大值表示
var maxCalories = decimal.NewFromInt(math.MaxInt)

func wholeCalories(d decimal.Decimal) int {
	d = nonNegative(d).Round(0)
	if d.GreaterThan(maxCalories) {
		return math.MaxInt
	}
	return int(d.IntPart())
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
