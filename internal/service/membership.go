package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cookshare-app/cookshare-back/internal/db"
)

// Memberships is the add/remove state machine behind both the favorites
// list and the shopping cart. The relation kind is a parameter; the logic
// is the same for both.
type Memberships struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewMemberships(db *gorm.DB, l *zap.SugaredLogger) *Memberships {
	return &Memberships{
		db:     db,
		logger: l,
	}
}

// Add marks the recipe for the user. The unique index on
// (user, recipe, kind) arbitrates concurrent adds: the insert that hits an
// existing row affects nothing and reports ErrAlreadyMarked.
func (s *Memberships) Add(user *db.User, recipeID uint64, kind db.MarkKind) (*RecipeSummary, error) {
	recipe, err := s.getRecipe(recipeID)
	if err != nil {
		return nil, err
	}

	mark := db.Mark{
		UserID:   user.ID,
		RecipeID: recipeID,
		Kind:     kind,
	}
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&mark)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "insert mark")
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyMarked
	}

	return summary(recipe), nil
}

// Remove deletes the mark; removing an absent mark is an error, not a
// no-op.
func (s *Memberships) Remove(user *db.User, recipeID uint64, kind db.MarkKind) error {
	if _, err := s.getRecipe(recipeID); err != nil {
		return err
	}

	res := s.db.
		Where("user_id = ? AND recipe_id = ? AND kind = ?", user.ID, recipeID, kind).
		Delete(&db.Mark{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete mark")
	}
	if res.RowsAffected == 0 {
		return ErrMarkNotFound
	}
	return nil
}

// Exists reports whether the mark is present.
func (s *Memberships) Exists(user *db.User, recipeID uint64, kind db.MarkKind) (bool, error) {
	return markExists(s.db, user.ID, recipeID, kind)
}

func (s *Memberships) getRecipe(id uint64) (*db.Recipe, error) {
	recipe := db.Recipe{}
	res := s.db.First(&recipe, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, errors.Wrap(res.Error, "get recipe")
	}
	return &recipe, nil
}
