package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cookshare-app/cookshare-back/internal/db"
)

type (
	// FollowedAuthor is the read-time projection returned by the follow
	// listing: the author's public profile plus their recipe count and a
	// bounded preview of their recipes.
	FollowedAuthor struct {
		AuthorProfile
		Recipes     []RecipeSummary
		RecipeCount int64
	}

	Follows struct {
		db     *gorm.DB
		logger *zap.SugaredLogger
	}
)

func NewFollows(db *gorm.DB, l *zap.SugaredLogger) *Follows {
	return &Follows{
		db:     db,
		logger: l,
	}
}

// Follow subscribes user to author. Following yourself is forbidden, and
// the unique (user, author) index arbitrates concurrent subscribes.
func (s *Follows) Follow(user *db.User, authorID uint64) (*FollowedAuthor, error) {
	if user.ID == authorID {
		return nil, ErrSelfFollow
	}

	author, err := s.getUser(authorID)
	if err != nil {
		return nil, err
	}

	follow := db.Follow{
		UserID:   user.ID,
		AuthorID: authorID,
	}
	res := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&follow)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "insert follow")
	}
	if res.RowsAffected == 0 {
		return nil, ErrAlreadyFollowing
	}

	return s.projectAuthor(author, defaultRecipePreview)
}

func (s *Follows) Unfollow(user *db.User, authorID uint64) error {
	if _, err := s.getUser(authorID); err != nil {
		return err
	}

	res := s.db.
		Where("user_id = ? AND author_id = ?", user.ID, authorID).
		Delete(&db.Follow{})
	if res.Error != nil {
		return errors.Wrap(res.Error, "delete follow")
	}
	if res.RowsAffected == 0 {
		return ErrNotFollowing
	}
	return nil
}

// defaultRecipePreview bounds the per-author recipe preview in listings.
const defaultRecipePreview = 3

// Following lists every author the user follows, newest subscription
// first. recipeLimit caps the preview list; zero means the default.
func (s *Follows) Following(user *db.User, recipeLimit int) ([]FollowedAuthor, error) {
	if recipeLimit <= 0 {
		recipeLimit = defaultRecipePreview
	}

	follows := make([]db.Follow, 0)
	res := s.db.Where("user_id = ?", user.ID).Order("id DESC").Find(&follows)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "list follows")
	}

	out := make([]FollowedAuthor, 0, len(follows))
	for _, f := range follows {
		author, err := s.getUser(f.AuthorID)
		if err != nil {
			return nil, err
		}
		projected, err := s.projectAuthor(author, recipeLimit)
		if err != nil {
			return nil, err
		}
		out = append(out, *projected)
	}
	return out, nil
}

func (s *Follows) projectAuthor(author *db.User, recipeLimit int) (*FollowedAuthor, error) {
	var count int64
	res := s.db.Model(&db.Recipe{}).Where("author_id = ?", author.ID).Count(&count)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "count recipes")
	}

	recipes := make([]db.Recipe, 0, recipeLimit)
	res = s.db.
		Where("author_id = ?", author.ID).
		Order("created_at DESC").
		Limit(recipeLimit).
		Find(&recipes)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "list recipes")
	}

	projected := FollowedAuthor{
		AuthorProfile: AuthorProfile{
			ID:         author.ID,
			Email:      author.Email,
			Username:   author.Username,
			FirstName:  author.FirstName,
			LastName:   author.LastName,
			Subscribed: true,
		},
		Recipes:     make([]RecipeSummary, len(recipes)),
		RecipeCount: count,
	}
	for i := range recipes {
		projected.Recipes[i] = *summary(&recipes[i])
	}
	return &projected, nil
}

func (s *Follows) getUser(id uint64) (*db.User, error) {
	user := db.User{}
	res := s.db.First(&user, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(res.Error, "get user")
	}
	return &user, nil
}
