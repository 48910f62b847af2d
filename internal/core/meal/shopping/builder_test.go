package shopping

import (
	"testing"

	"meal-pipeline/internal/core/meal"
	"meal-pipeline/internal/core/meal/ledger"
	"meal-pipeline/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildEmptyLedger(t *testing.T) {
	list, err := Build(nil, Title("Salad"))
	assert.Nil(t, list)
	assert.ErrorIs(t, err, ErrNothingToBuild)
	assert.True(t, common.IsValidationError(err))
}

func TestBuildOnlyBlankNames(t *testing.T) {
	_, err := Build([]ledger.Entry{{Name: " "}, {Name: ""}}, Title("Salad"))
	assert.ErrorIs(t, err, ErrNothingToBuild)
}

func TestBuildLineItems(t *testing.T) {
	entries := []ledger.Entry{
		{ID: "1", Name: "Spinach", Amount: "2", Unit: "bunch", Brand: "Earthbound"},
		{ID: "2", Name: "  ", Amount: "5"},
		{ID: "3", Name: "Feta", Amount: "a little", Unit: "oz"},
		{ID: "4", Name: "Spinach", Amount: "0", Unit: "bunch"},
	}

	list, err := Build(entries, Title(" Greek salad "))
	require.NoError(t, err)

	assert.Equal(t, "Shopping for: Greek salad", list.Title)
	assert.Equal(t, []meal.ShoppingListLineItem{
		{Name: "Spinach", Quantity: 2, Unit: "bunch", BrandFilter: []string{"Earthbound"}},
		{Name: "Feta", Quantity: 1, Unit: "oz"},
		{Name: "Spinach", Quantity: 1, Unit: "bunch"},
	}, list.Items)
}
