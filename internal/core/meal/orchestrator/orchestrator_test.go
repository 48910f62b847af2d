package orchestrator

import (
	"context"
	"errors"
	"testing"

	"meal-pipeline/internal/core/meal"
	"meal-pipeline/internal/core/meal/ledger"
	"meal-pipeline/internal/core/meal/shopping"
	"meal-pipeline/internal/pkg/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockMealService struct {
	mock.Mock
}

func (m *MockMealService) CreateMeal(ctx context.Context, userID string, payload meal.MealPayload) (*meal.CreatedMeal, error) {
	args := m.Called(ctx, userID, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*meal.CreatedMeal), args.Error(1)
}

type MockShoppingService struct {
	mock.Mock
}

func (m *MockShoppingService) CreateShoppingList(ctx context.Context, items []meal.ShoppingListLineItem, title string) (*meal.ShoppingListResult, error) {
	args := m.Called(ctx, items, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*meal.ShoppingListResult), args.Error(1)
}

type MockCalendarService struct {
	mock.Mock
}

func (m *MockCalendarService) ScheduleMeal(ctx context.Context, userID string, entry meal.CalendarEntry) error {
	args := m.Called(ctx, userID, entry)
	return args.Error(0)
}

func f(v float64) *float64 { return &v }

type fixture struct {
	ledger   *ledger.Ledger
	meals    *MockMealService
	shopping *MockShoppingService
	calendar *MockCalendarService
	orch     *Orchestrator
}

func newFixture() *fixture {
	fx := &fixture{
		ledger:   ledger.New(),
		meals:    new(MockMealService),
		shopping: new(MockShoppingService),
		calendar: new(MockCalendarService),
	}
	fx.orch = New("user-1", fx.ledger, fx.meals, fx.shopping, fx.calendar)
	return fx
}

func TestSaveMealRequiresName(t *testing.T) {
	fx := newFixture()
	fx.ledger.AddManual("Rice", "1", "cup")

	id, ok := fx.orch.SaveMeal(context.Background(), SaveRequest{Name: "   ", MealType: "lunch"})

	assert.False(t, ok)
	assert.Empty(t, id)
	assert.True(t, common.IsValidationError(fx.orch.Err()))
	assert.EqualError(t, fx.orch.Err(), "name required")
	fx.meals.AssertNotCalled(t, "CreateMeal", mock.Anything, mock.Anything, mock.Anything)
}

func TestSaveMealRejectsUnknownMealType(t *testing.T) {
	fx := newFixture()

	_, ok := fx.orch.SaveMeal(context.Background(), SaveRequest{Name: "Salad", MealType: "brunch"})

	assert.False(t, ok)
	assert.True(t, common.IsValidationError(fx.orch.Err()))
	fx.meals.AssertNotCalled(t, "CreateMeal", mock.Anything, mock.Anything, mock.Anything)
}

func TestManualNutritionOverridesComputed(t *testing.T) {
	fx := newFixture()
	fx.ledger.Add(ledger.Entry{Name: "Chicken", Amount: "2", CaloriesPerUnit: f(165), ProteinPerUnit: f(31)})

	fx.meals.On("CreateMeal", mock.Anything, "user-1", mock.MatchedBy(func(p meal.MealPayload) bool {
		return p.Nutrition != nil &&
			*p.Nutrition == meal.NutritionTotals{Calories: 400, Protein: 0, Carbs: 0, Fat: 0}
	})).Return(&meal.CreatedMeal{ID: "meal-1"}, nil)

	id, ok := fx.orch.SaveMeal(context.Background(), SaveRequest{
		Name:      "Salad",
		MealType:  "lunch",
		Nutrition: meal.ManualNutrition{Calories: "400"},
	})

	require.True(t, ok)
	assert.Equal(t, "meal-1", id)
	assert.NoError(t, fx.orch.Err())
	fx.meals.AssertExpectations(t)
}

func TestComputedNutritionUsedWithoutManualValues(t *testing.T) {
	fx := newFixture()
	fx.ledger.Add(ledger.Entry{Name: "Chicken", Amount: "2", CaloriesPerUnit: f(165), ProteinPerUnit: f(31)})

	var sent meal.MealPayload
	fx.meals.On("CreateMeal", mock.Anything, "user-1", mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(meal.MealPayload) }).
		Return(&meal.CreatedMeal{ID: "meal-2"}, nil)

	_, ok := fx.orch.SaveMeal(context.Background(), SaveRequest{Name: "Chicken dinner", MealType: "dinner"})
	require.True(t, ok)

	require.NotNil(t, sent.Nutrition)
	assert.Equal(t, meal.NutritionTotals{Calories: 330, Protein: 62}, *sent.Nutrition)
}

func TestNutritionOmittedWithoutData(t *testing.T) {
	fx := newFixture()
	fx.ledger.AddManual("Lettuce", "1", "head")

	var sent meal.MealPayload
	fx.meals.On("CreateMeal", mock.Anything, "user-1", mock.Anything).
		Run(func(args mock.Arguments) { sent = args.Get(2).(meal.MealPayload) }).
		Return(&meal.CreatedMeal{ID: "meal-3"}, nil)

	_, ok := fx.orch.SaveMeal(context.Background(), SaveRequest{Name: "Lettuce", MealType: "snack"})
	require.True(t, ok)
	assert.Nil(t, sent.Nutrition)
}

func TestBuildPayloadIngredients(t *testing.T) {
	entries := []ledger.Entry{
		{Name: "Rice", Amount: "abc", Unit: "cup"},
		{Name: " ", Amount: "3"},
		{Name: "Tofu", Amount: "2.5 blocks", Unit: "block", CaloriesPerUnit: f(180), CarbsPerUnit: f(0), Brand: "Nasoya"},
	}

	payload, err := BuildPayload(entries, SaveRequest{
		Name:        "  Bowl ",
		MealType:    "Dinner",
		ServingSize: "",
		Notes:       "   ",
	})
	require.NoError(t, err)

	assert.Equal(t, "Bowl", payload.Name)
	assert.Equal(t, meal.MealTypeDinner, payload.MealType)
	assert.Equal(t, 1.0, payload.ServingSize)
	assert.Empty(t, payload.Notes)
	assert.Equal(t, []string{}, payload.Tags)

	require.Len(t, payload.Ingredients, 2)
	assert.Equal(t, meal.MealIngredient{Name: "Rice", Amount: 0, Unit: "cup"}, payload.Ingredients[0])
	tofu := payload.Ingredients[1]
	assert.Equal(t, 2.5, tofu.Amount)
	require.NotNil(t, tofu.Calories)
	assert.Equal(t, 180.0, *tofu.Calories)
	assert.Nil(t, tofu.Carbs)
	assert.Equal(t, "Nasoya", tofu.Brand)
}

func TestSaveMealCollaboratorFailureIsRecorded(t *testing.T) {
	fx := newFixture()
	fx.ledger.AddManual("Rice", "1", "cup")
	fx.meals.On("CreateMeal", mock.Anything, "user-1", mock.Anything).Return(nil, errors.New("service down"))

	id, ok := fx.orch.SaveMeal(context.Background(), SaveRequest{Name: "Rice", MealType: "lunch"})

	assert.False(t, ok)
	assert.Empty(t, id)
	assert.True(t, common.IsCollaboratorError(fx.orch.Err()))
	assert.EqualError(t, fx.orch.Err(), "service down")
	assert.False(t, fx.orch.Saving())
	assert.Equal(t, 1, fx.ledger.Len(), "ledger must be preserved for retry")
}

func TestSaveMealWithoutAssignedID(t *testing.T) {
	fx := newFixture()
	fx.meals.On("CreateMeal", mock.Anything, "user-1", mock.Anything).Return(&meal.CreatedMeal{}, nil)

	_, ok := fx.orch.SaveMeal(context.Background(), SaveRequest{Name: "Rice", MealType: "lunch"})

	assert.False(t, ok)
	assert.True(t, common.IsCollaboratorError(fx.orch.Err()))
}

func TestShoppingListNothingToBuild(t *testing.T) {
	fx := newFixture()

	link, ok := fx.orch.CreateShoppingListFromLedger(context.Background(), "Salad")

	assert.False(t, ok)
	assert.Empty(t, link)
	assert.ErrorIs(t, fx.orch.Err(), shopping.ErrNothingToBuild)
	fx.shopping.AssertNotCalled(t, "CreateShoppingList", mock.Anything, mock.Anything, mock.Anything)
}

func TestShoppingListWithoutLinkIsNotAnError(t *testing.T) {
	fx := newFixture()
	fx.ledger.AddManual("Rice", "1", "cup")
	fx.shopping.On("CreateShoppingList", mock.Anything, mock.Anything, "Shopping for: Rice").
		Return(&meal.ShoppingListResult{}, nil)

	link, ok := fx.orch.CreateShoppingListFromLedger(context.Background(), "Rice")

	assert.False(t, ok)
	assert.Empty(t, link)
	assert.NoError(t, fx.orch.Err())
}

func TestSaveAndShopSuccessResetsLedger(t *testing.T) {
	fx := newFixture()
	fx.ledger.Add(ledger.Entry{Name: "Spinach", Amount: "2", Unit: "bunch", Brand: "Earthbound"})

	fx.meals.On("CreateMeal", mock.Anything, "user-1", mock.Anything).Return(&meal.CreatedMeal{ID: "meal-9"}, nil).Once()
	fx.shopping.On("CreateShoppingList", mock.Anything, []meal.ShoppingListLineItem{
		{Name: "Spinach", Quantity: 2, Unit: "bunch", BrandFilter: []string{"Earthbound"}},
	}, "Shopping for: Green salad").Return(&meal.ShoppingListResult{ProductsLinkURL: "https://shop.example/list/1"}, nil).Once()

	result := fx.orch.SaveAndShop(context.Background(), SaveRequest{Name: "Green salad", MealType: "lunch"})

	assert.Equal(t, SaveAndShopResult{
		MealSaved:           true,
		ShoppingLinkCreated: true,
		MealID:              "meal-9",
		Link:                "https://shop.example/list/1",
	}, result)
	assert.True(t, result.Complete())
	assert.Equal(t, 0, fx.ledger.Len())
	fx.meals.AssertExpectations(t)
	fx.shopping.AssertExpectations(t)
}

func TestSaveAndShopPartialFailureKeepsMeal(t *testing.T) {
	fx := newFixture()
	fx.ledger.AddManual("Spinach", "2", "bunch")

	fx.meals.On("CreateMeal", mock.Anything, "user-1", mock.Anything).Return(&meal.CreatedMeal{ID: "meal-10"}, nil).Once()
	fx.shopping.On("CreateShoppingList", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("integration down")).Once()

	result := fx.orch.SaveAndShop(context.Background(), SaveRequest{Name: "Green salad", MealType: "lunch"})

	assert.True(t, result.MealSaved)
	assert.Equal(t, "meal-10", result.MealID)
	assert.False(t, result.ShoppingLinkCreated)
	assert.False(t, result.Complete())
	assert.True(t, common.IsCollaboratorError(fx.orch.Err()))
	assert.Equal(t, 1, fx.ledger.Len())
	fx.meals.AssertNumberOfCalls(t, "CreateMeal", 1)
}

func TestSaveAndShopSkipsShoppingWhenSaveFails(t *testing.T) {
	fx := newFixture()
	fx.ledger.AddManual("Spinach", "2", "bunch")
	fx.meals.On("CreateMeal", mock.Anything, "user-1", mock.Anything).Return(nil, errors.New("boom"))

	result := fx.orch.SaveAndShop(context.Background(), SaveRequest{Name: "Green salad", MealType: "lunch"})

	assert.Equal(t, SaveAndShopResult{}, result)
	fx.shopping.AssertNotCalled(t, "CreateShoppingList", mock.Anything, mock.Anything, mock.Anything)
}

func TestShoppingNotConfigured(t *testing.T) {
	l := ledger.New()
	l.AddManual("Rice", "1", "cup")
	orch := New("user-1", l, new(MockMealService), nil, nil)

	_, ok := orch.CreateShoppingListFromLedger(context.Background(), "Rice")
	assert.False(t, ok)
	assert.True(t, common.IsCollaboratorError(orch.Err()))
}

func TestScheduleToCalendar(t *testing.T) {
	fx := newFixture()
	fx.calendar.On("ScheduleMeal", mock.Anything, "user-1", meal.CalendarEntry{
		MealID:        "meal-1",
		ScheduledDate: "2026-10-20",
		MealSlot:      meal.MealTypeDinner,
		Servings:      1,
	}).Return(nil).Once()

	ok := fx.orch.ScheduleToCalendar(context.Background(), "meal-1", "2026-10-20", "dinner", 0)

	assert.True(t, ok)
	assert.NoError(t, fx.orch.Err())
	fx.calendar.AssertExpectations(t)
}

func TestScheduleToCalendarFailures(t *testing.T) {
	fx := newFixture()

	assert.False(t, fx.orch.ScheduleToCalendar(context.Background(), "", "2026-10-20", "dinner", 1))
	assert.True(t, common.IsValidationError(fx.orch.Err()))

	fx.calendar.On("ScheduleMeal", mock.Anything, "user-1", mock.Anything).Return(errors.New("calendar down")).Once()
	assert.False(t, fx.orch.ScheduleToCalendar(context.Background(), "meal-1", "2026-10-20", "lunch", 2))
	assert.True(t, common.IsCollaboratorError(fx.orch.Err()))
}
