package ledger

import (
	"fmt"
	"testing"

	"meal-pipeline/internal/core/search"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sequentialIDs() Option {
	n := 0
	return WithIDGenerator(func() string {
		n++
		return fmt.Sprintf("ing-%d", n)
	})
}

func floatPtr(v float64) *float64 { return &v }

func TestAddAssignsFreshIDs(t *testing.T) {
	l := New(sequentialIDs())

	a := l.AddManual("Rice", "1", "cup")
	b := l.Add(Entry{Name: "Beans"})
	c := l.Add(Entry{ID: "custom", Name: "Salt"})

	assert.Equal(t, "ing-1", a.ID)
	assert.Equal(t, "ing-2", b.ID)
	assert.Equal(t, "custom", c.ID)
	assert.Equal(t, 3, l.Len())
}

func TestDefaultIDsAreUnique(t *testing.T) {
	l := New()
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		e := l.AddManual("x", "1", "g")
		require.False(t, seen[e.ID])
		seen[e.ID] = true
	}
}

func TestSnapshotsAreNotMutated(t *testing.T) {
	l := New(sequentialIDs())
	e := l.AddManual("Rice", "1", "cup")

	before := l.Entries()
	require.True(t, l.Update(e.ID, FieldAmount, "3"))
	l.AddManual("Beans", "2", "cup")

	assert.Equal(t, "1", before[0].Amount)
	assert.Len(t, before, 1)

	after := l.Entries()
	assert.Equal(t, "3", after[0].Amount)
	assert.Len(t, after, 2)
}

func TestUpdateFields(t *testing.T) {
	l := New(sequentialIDs())
	e := l.AddManual("Rice", "1", "cup")

	assert.True(t, l.Update(e.ID, FieldName, "Brown rice"))
	assert.True(t, l.Update(e.ID, FieldUnit, "g"))
	assert.True(t, l.Update(e.ID, FieldBrand, "Uncle Ben's"))

	got, ok := l.Get(e.ID)
	require.True(t, ok)
	assert.Equal(t, "Brown rice", got.Name)
	assert.Equal(t, "g", got.Unit)
	assert.Equal(t, "Uncle Ben's", got.Brand)
}

func TestUnknownIDIsNoOp(t *testing.T) {
	l := New(sequentialIDs())
	l.AddManual("Rice", "1", "cup")
	before := l.Entries()

	assert.False(t, l.Update("missing", FieldName, "x"))
	assert.False(t, l.Remove("missing"))
	assert.Equal(t, before, l.Entries())
}

func TestRemoveKeepsOrder(t *testing.T) {
	l := New(sequentialIDs())
	l.AddManual("a", "1", "")
	b := l.AddManual("b", "1", "")
	l.AddManual("c", "1", "")

	require.True(t, l.Remove(b.ID))

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Name)
	assert.Equal(t, "c", entries[1].Name)
}

func TestReplaceAllAndReset(t *testing.T) {
	l := New(sequentialIDs())
	l.AddManual("old", "1", "")

	input := []Entry{{Name: "x"}, {ID: "keep", Name: "y"}}
	l.ReplaceAll(input)

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, "keep", entries[1].ID)
	assert.Empty(t, input[0].ID, "caller slice must not be modified")

	l.Reset()
	assert.Equal(t, 0, l.Len())
	assert.NotNil(t, l.Entries())
}

func TestAddFromProduct(t *testing.T) {
	l := New(sequentialIDs())

	p := search.Product{
		ID:          "p1",
		Name:        "Chicken breast",
		Brand:       "Perdue",
		ServingSize: "4 oz",
		Calories:    floatPtr(165),
		Protein:     floatPtr(31),
	}

	e := l.AddFromProduct(p, "", "")
	assert.Equal(t, "1", e.Amount)
	assert.Equal(t, "4 oz", e.Unit)
	assert.Equal(t, "Perdue", e.Brand)
	assert.Equal(t, "p1", e.ProductID)
	require.NotNil(t, e.CaloriesPerUnit)
	assert.Equal(t, 165.0, *e.CaloriesPerUnit)
	require.NotNil(t, e.CarbsPerUnit)
	assert.Equal(t, 0.0, *e.CarbsPerUnit)
	require.NotNil(t, e.FatPerUnit)
}

func TestAddFromProductNestedNutritionAndUnitFallback(t *testing.T) {
	l := New(sequentialIDs())

	p := search.Product{
		ID:   "p2",
		Name: "Oats",
		Nutrition: &search.ProductNutrition{
			PerServing: &search.NutritionValues{Calories: floatPtr(150), Carbs: floatPtr(27)},
		},
	}

	e := l.AddFromProduct(p, "2", "")
	assert.Equal(t, "2", e.Amount)
	assert.Equal(t, "serving", e.Unit)
	require.NotNil(t, e.CaloriesPerUnit)
	assert.Equal(t, 150.0, *e.CaloriesPerUnit)
	assert.Equal(t, 27.0, *e.CarbsPerUnit)
}

func TestAddFromProductWithoutNutrition(t *testing.T) {
	l := New(sequentialIDs())

	e := l.AddFromProduct(search.Product{ID: "p3", Name: "Napkins"}, "1", "pack")
	assert.False(t, e.HasNutrition())
	assert.Equal(t, "pack", e.Unit)
}

func TestParseField(t *testing.T) {
	f, err := ParseField(" Amount ")
	require.NoError(t, err)
	assert.Equal(t, FieldAmount, f)

	_, err = ParseField("calories_per_unit")
	assert.Error(t, err)
}
