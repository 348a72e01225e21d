package transport

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cookshare-app/cookshare-back/internal/db"
	"github.com/cookshare-app/cookshare-back/internal/service"
)

func TestCensorBody(t *testing.T) {
	b := `{
		"email": "email@email.com",
		"password": "123456789123"
	}`

	got := censorBody([]byte(b))
	assert.JSONEq(t, `{
		"email": "email@email.com",
		"password": "$censored"
	}`, string(got))
}

func TestCensorBodyLeavesOtherBodiesAlone(t *testing.T) {
	b := `{"name": "pancakes", "cooking_time": 20}`
	assert.Equal(t, b, string(censorBody([]byte(b))))

	notJSON := `plain text`
	assert.Equal(t, notJSON, string(censorBody([]byte(notJSON))))
}

func TestIsPublicRoute(t *testing.T) {
	assert.True(t, isPublicRoute(http.MethodPost, "/auth/register"))
	assert.True(t, isPublicRoute(http.MethodGet, "/recipes/:id"))
	assert.True(t, isPublicRoute(http.MethodGet, "/tags"))

	assert.False(t, isPublicRoute(http.MethodPost, "/recipes"))
	assert.False(t, isPublicRoute(http.MethodGet, "/recipes/download_shopping_cart"))
	assert.False(t, isPublicRoute(http.MethodPost, "/recipes/:id/favorite"))
	assert.False(t, isPublicRoute(http.MethodGet, "/users/subscriptions"))
}

func TestToRecipeResp(t *testing.T) {
	aggregate := service.RecipeAggregate{
		ID: 7,
		Tags: []db.Tag{
			{GormForkedModel: db.GormForkedModel{ID: 1}, Name: "breakfast", Color: "#FF0000", Slug: "breakfast"},
		},
		Author: service.AuthorProfile{
			ID:         2,
			Email:      "chef@example.com",
			Username:   "chef",
			Subscribed: true,
		},
		Ingredients: []service.IngredientLine{
			{ID: 3, Name: "flour", MeasurementUnit: "g", Amount: 200},
		},
		Favorited:   true,
		Name:        "pancakes",
		Image:       "recipes/images/pancakes.png",
		Text:        "mix and fry",
		CookingTime: 20,
	}

	got := toRecipeResp(&aggregate)

	assert.Equal(t, RecipeResp{
		ID: 7,
		Tags: []TagResp{
			{ID: 1, Name: "breakfast", Color: "#FF0000", Slug: "breakfast"},
		},
		Author: AuthorResp{
			Email:        "chef@example.com",
			ID:           2,
			Username:     "chef",
			IsSubscribed: true,
		},
		Ingredients: []IngredientLineResp{
			{ID: 3, Name: "flour", MeasurementUnit: "g", Amount: 200},
		},
		IsFavorited:      true,
		IsInShoppingCart: false,
		Name:             "pancakes",
		Image:            "recipes/images/pancakes.png",
		Text:             "mix and fry",
		CookingTime:      20,
	}, got)
}
