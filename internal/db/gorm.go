package db

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cookshare-app/cookshare-back/internal/config"
)

// MarkKind names the relation a membership mark belongs to. Favorite and
// shopping cart marks share one table and one uniqueness rule.
type MarkKind string

const (
	MarkFavorite MarkKind = "favorite"
	MarkCart     MarkKind = "cart"
)

type (
	GormForkedModel struct {
		ID        uint64 `gorm:"primarykey"`
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	User struct {
		GormForkedModel
		Email     string `gorm:"unique;not null"`
		Username  string `gorm:"unique;not null"`
		FirstName string
		LastName  string
		Password  string   `gorm:"not null"`
		Token     string   `gorm:"not null"`
		Recipes   []Recipe `gorm:"foreignKey:AuthorID"`
	}

	// Tag and Ingredient are catalog reference data. The core only ever
	// reads them; rows are provisioned out of band.
	Tag struct {
		GormForkedModel
		Name  string `gorm:"unique;not null"`
		Color string `gorm:"not null"`
		Slug  string `gorm:"unique;not null"`
	}

	Ingredient struct {
		GormForkedModel
		Name            string `gorm:"not null;uniqueIndex:uidx_name_unit"`
		MeasurementUnit string `gorm:"not null;uniqueIndex:uidx_name_unit"`
	}

	Recipe struct {
		GormForkedModel
		AuthorID    uint64 `gorm:"not null"`
		Author      User
		Name        string `gorm:"not null"`
		Image       string
		Text        string
		CookingTime uint32             `gorm:"not null"`
		Tags        []Tag              `gorm:"many2many:recipe_tags;constraint:OnDelete:CASCADE"`
		Ingredients []RecipeIngredient `gorm:"constraint:OnDelete:CASCADE"`
	}

	// RecipeIngredient is one quantified ingredient line of a recipe. A
	// recipe may reference a given ingredient at most once.
	RecipeIngredient struct {
		GormForkedModel
		RecipeID     uint64 `gorm:"not null;uniqueIndex:uidx_recipe_ingredient"`
		IngredientID uint64 `gorm:"not null;uniqueIndex:uidx_recipe_ingredient"`
		Ingredient   Ingredient
		Amount       uint32 `gorm:"not null"`
	}

	// Mark records that a user placed a recipe into a named relation
	// (favorites or cart). The composite unique index is the concurrency
	// arbiter for toggle races.
	Mark struct {
		GormForkedModel
		UserID   uint64   `gorm:"not null;uniqueIndex:uidx_user_recipe_kind"`
		RecipeID uint64   `gorm:"not null;uniqueIndex:uidx_user_recipe_kind"`
		Kind     MarkKind `gorm:"not null;uniqueIndex:uidx_user_recipe_kind"`
	}

	Follow struct {
		GormForkedModel
		UserID   uint64 `gorm:"not null;uniqueIndex:uidx_user_author"`
		AuthorID uint64 `gorm:"not null;uniqueIndex:uidx_user_author"`
	}
)

func NewGormClient(cfg *config.Config) (*gorm.DB, error) {
	newLogger := logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Info,
		Colorful:                  true,
		IgnoreRecordNotFoundError: false,
	})

	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort, cfg.DBSSLMode)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: newLogger,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect database")
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

func Migrate(db *gorm.DB) error {
	models := []interface{}{
		&User{},
		&Tag{},
		&Ingredient{},
		&Recipe{},
		&RecipeIngredient{},
		&Mark{},
		&Follow{},
	}
	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			return errors.Wrapf(err, "migrate %T", m)
		}
	}
	return nil
}
