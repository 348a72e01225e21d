package service

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cookshare-app/cookshare-back/internal/db"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Migrate(conn))
	return conn
}

func newTestLogger(t *testing.T) *zap.SugaredLogger {
	t.Helper()
	return zap.NewNop().Sugar()
}

func seedUser(t *testing.T, conn *gorm.DB, email, username string) *db.User {
	t.Helper()
	user := db.User{
		Email:    email,
		Username: username,
		Password: "hash",
		Token:    username + "-token",
	}
	require.NoError(t, conn.Create(&user).Error)
	return &user
}

func seedTag(t *testing.T, conn *gorm.DB, name, slug string) *db.Tag {
	t.Helper()
	tag := db.Tag{
		Name:  name,
		Color: "#FF0000",
		Slug:  slug,
	}
	require.NoError(t, conn.Create(&tag).Error)
	return &tag
}

func seedIngredient(t *testing.T, conn *gorm.DB, name, unit string) *db.Ingredient {
	t.Helper()
	ingredient := db.Ingredient{
		Name:            name,
		MeasurementUnit: unit,
	}
	require.NoError(t, conn.Create(&ingredient).Error)
	return &ingredient
}

func seedRecipe(t *testing.T, conn *gorm.DB, recipes *Recipes, author *db.User, name string, tagIDs []uint64, lines []IngredientAmount) *RecipeAggregate {
	t.Helper()
	aggregate, err := recipes.Create(author, &RecipePayload{
		Name:        name,
		Image:       "recipes/images/" + name + ".png",
		Text:        "some cooking steps",
		CookingTime: 30,
		TagIDs:      tagIDs,
		Ingredients: lines,
	})
	require.NoError(t, err)
	return aggregate
}
