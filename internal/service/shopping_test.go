package service

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookshare-app/cookshare-back/internal/db"
)

func TestShoppingListSumsAcrossCartRecipes(t *testing.T) {
	conn := newTestDB(t)
	recipes := NewRecipes(conn, newTestLogger(t))
	memberships := NewMemberships(conn, newTestLogger(t))
	shopping := NewShoppingList(conn, newTestLogger(t))

	author := seedUser(t, conn, "chef@example.com", "chef")
	buyer := seedUser(t, conn, "buyer@example.com", "buyer")
	tag := seedTag(t, conn, "dinner", "dinner")
	flour := seedIngredient(t, conn, "flour", "g")
	egg := seedIngredient(t, conn, "egg", "pcs")
	milk := seedIngredient(t, conn, "milk", "L")

	first := seedRecipe(t, conn, recipes, author, "pancakes", []uint64{tag.ID}, []IngredientAmount{
		{ID: flour.ID, Amount: 200},
		{ID: egg.ID, Amount: 2},
	})
	second := seedRecipe(t, conn, recipes, author, "dough", []uint64{tag.ID}, []IngredientAmount{
		{ID: flour.ID, Amount: 100},
		{ID: milk.ID, Amount: 1},
	})

	_, err := memberships.Add(buyer, first.ID, db.MarkCart)
	require.NoError(t, err)
	_, err = memberships.Add(buyer, second.ID, db.MarkCart)
	require.NoError(t, err)

	items, err := shopping.Items(buyer.ID)
	require.NoError(t, err)

	assert.Equal(t, []ShoppingItem{
		{Name: "egg", MeasurementUnit: "pcs", Total: 2},
		{Name: "flour", MeasurementUnit: "g", Total: 300},
		{Name: "milk", MeasurementUnit: "L", Total: 1},
	}, items)
}

func TestShoppingListIgnoresFavoritesAndOtherUsers(t *testing.T) {
	conn := newTestDB(t)
	recipes := NewRecipes(conn, newTestLogger(t))
	memberships := NewMemberships(conn, newTestLogger(t))
	shopping := NewShoppingList(conn, newTestLogger(t))

	author := seedUser(t, conn, "chef@example.com", "chef")
	buyer := seedUser(t, conn, "buyer@example.com", "buyer")
	other := seedUser(t, conn, "other@example.com", "other")
	tag := seedTag(t, conn, "dinner", "dinner")
	flour := seedIngredient(t, conn, "flour", "g")

	created := seedRecipe(t, conn, recipes, author, "pie", []uint64{tag.ID}, []IngredientAmount{
		{ID: flour.ID, Amount: 400},
	})

	_, err := memberships.Add(buyer, created.ID, db.MarkFavorite)
	require.NoError(t, err)
	_, err = memberships.Add(other, created.ID, db.MarkCart)
	require.NoError(t, err)

	items, err := shopping.Items(buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestShoppingListEmptyCart(t *testing.T) {
	conn := newTestDB(t)
	shopping := NewShoppingList(conn, newTestLogger(t))

	buyer := seedUser(t, conn, "buyer@example.com", "buyer")

	items, err := shopping.Items(buyer.ID)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestShoppingListReflectsRecipeUpdates(t *testing.T) {
	conn := newTestDB(t)
	recipes := NewRecipes(conn, newTestLogger(t))
	memberships := NewMemberships(conn, newTestLogger(t))
	shopping := NewShoppingList(conn, newTestLogger(t))

	author := seedUser(t, conn, "chef@example.com", "chef")
	tag := seedTag(t, conn, "dinner", "dinner")
	flour := seedIngredient(t, conn, "flour", "g")
	milk := seedIngredient(t, conn, "milk", "L")

	created := seedRecipe(t, conn, recipes, author, "dough", []uint64{tag.ID}, []IngredientAmount{
		{ID: flour.ID, Amount: 100},
	})
	_, err := memberships.Add(author, created.ID, db.MarkCart)
	require.NoError(t, err)

	_, err = recipes.Update(created.ID, author, &RecipePayload{
		Name:        created.Name,
		Image:       created.Image,
		Text:        created.Text,
		CookingTime: created.CookingTime,
		TagIDs:      []uint64{tag.ID},
		Ingredients: []IngredientAmount{{ID: milk.ID, Amount: 2}},
	})
	require.NoError(t, err)

	items, err := shopping.Items(author.ID)
	require.NoError(t, err)
	assert.Equal(t, []ShoppingItem{
		{Name: "milk", MeasurementUnit: "L", Total: 2},
	}, items)
}

func TestWriteCSV(t *testing.T) {
	buf := bytes.Buffer{}
	err := WriteCSV(&buf, []ShoppingItem{
		{Name: "egg", MeasurementUnit: "pcs", Total: 2},
		{Name: "flour", MeasurementUnit: "g", Total: 300},
	})
	require.NoError(t, err)

	assert.Equal(t, "egg,pcs,2\nflour,g,300\n", buf.String())
}
