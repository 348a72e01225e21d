package service

import (
	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cookshare-app/cookshare-back/internal/db"
)

type (
	// AuthorProfile is the public slice of a user as shown next to a
	// recipe, including whether the viewer follows them.
	AuthorProfile struct {
		ID         uint64
		Email      string
		Username   string
		FirstName  string
		LastName   string
		Subscribed bool
	}

	IngredientLine struct {
		ID              uint64
		Name            string
		MeasurementUnit string
		Amount          uint32
	}

	// RecipeAggregate is the full read shape of a recipe: scalars plus
	// resolved tags, resolved ingredient lines and the viewer-relative
	// flags. Anonymous viewers always see both flags false.
	RecipeAggregate struct {
		ID          uint64
		Tags        []db.Tag
		Author      AuthorProfile
		Ingredients []IngredientLine
		Favorited   bool
		InCart      bool
		Name        string
		Image       string
		Text        string
		CookingTime uint32
	}

	// RecipeSummary is the short confirmation shape returned by the
	// membership toggles and the follow listing.
	RecipeSummary struct {
		ID          uint64
		Name        string
		Image       string
		CookingTime uint32
	}

	RecipeFilter struct {
		TagSlugs  []string
		AuthorID  uint64
		Favorited bool
		InCart    bool
	}

	Recipes struct {
		db     *gorm.DB
		logger *zap.SugaredLogger
	}
)

func NewRecipes(db *gorm.DB, l *zap.SugaredLogger) *Recipes {
	return &Recipes{
		db:     db,
		logger: l,
	}
}

// Create validates the payload and, inside one transaction, persists the
// recipe row, its tag links and its ingredient lines. Nothing is written
// when validation fails.
func (s *Recipes) Create(author *db.User, p *RecipePayload) (*RecipeAggregate, error) {
	if err := validateRecipe(s.db, p); err != nil {
		return nil, err
	}

	model := db.Recipe{
		AuthorID:    author.ID,
		Name:        p.Name,
		Image:       p.Image,
		Text:        p.Text,
		CookingTime: p.CookingTime,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(&model).Error; err != nil {
			return errors.Wrap(err, "create recipe")
		}
		if err := replaceTags(tx, &model, p.TagIDs); err != nil {
			return err
		}
		return replaceIngredientLines(tx, model.ID, p.Ingredients)
	})
	if err != nil {
		return nil, err
	}

	return s.Get(model.ID, author)
}

// Update replaces the recipe's whole tag set and ingredient-line set and
// its scalar fields in one transaction. Partial nested updates are not a
// thing: the caller resends the complete desired state.
func (s *Recipes) Update(recipeID uint64, user *db.User, p *RecipePayload) (*RecipeAggregate, error) {
	model := db.Recipe{}
	res := s.db.First(&model, recipeID)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, errors.Wrap(res.Error, "get recipe")
	}
	if model.AuthorID != user.ID {
		return nil, ErrNotOwner
	}

	if err := validateRecipe(s.db, p); err != nil {
		return nil, err
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := replaceTags(tx, &model, p.TagIDs); err != nil {
			return err
		}
		if err := replaceIngredientLines(tx, model.ID, p.Ingredients); err != nil {
			return err
		}
		updates := map[string]interface{}{
			"name":         p.Name,
			"image":        p.Image,
			"text":         p.Text,
			"cooking_time": p.CookingTime,
		}
		return errors.Wrap(tx.Model(&model).Updates(updates).Error, "update recipe")
	})
	if err != nil {
		return nil, err
	}

	return s.Get(model.ID, user)
}

// Get returns the full aggregate. viewer may be nil for anonymous reads.
func (s *Recipes) Get(id uint64, viewer *db.User) (*RecipeAggregate, error) {
	model := db.Recipe{}
	res := s.db.
		Preload("Tags").
		Preload("Ingredients.Ingredient").
		Preload("Author").
		First(&model, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRecipeNotFound
		}
		return nil, errors.Wrap(res.Error, "get recipe")
	}

	return s.project(&model, viewer)
}

// List returns aggregates newest first, optionally narrowed by tag slug,
// author, favorite membership or cart membership of the viewer.
func (s *Recipes) List(viewer *db.User, f RecipeFilter) ([]RecipeAggregate, error) {
	q := squirrel.
		Select("DISTINCT r.id", "r.created_at").From("recipes r").
		OrderBy("r.created_at DESC", "r.id DESC")

	w := squirrel.Eq{}
	if len(f.TagSlugs) != 0 {
		q = q.
			LeftJoin("recipe_tags rt ON r.id = rt.recipe_id").
			LeftJoin("tags t ON t.id = rt.tag_id")
		w["t.slug"] = f.TagSlugs
	}
	if f.AuthorID != 0 {
		w["r.author_id"] = f.AuthorID
	}
	if f.Favorited && viewer != nil {
		q = q.LeftJoin("marks mf ON r.id = mf.recipe_id AND mf.kind = 'favorite'")
		w["mf.user_id"] = viewer.ID
	}
	if f.InCart && viewer != nil {
		q = q.LeftJoin("marks mc ON r.id = mc.recipe_id AND mc.kind = 'cart'")
		w["mc.user_id"] = viewer.ID
	}
	if len(w) != 0 {
		q = q.Where(w)
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	rows := make([]struct{ ID uint64 }, 0)
	res := s.db.Raw(sql, args...).Scan(&rows)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan recipe ids")
	}

	out := make([]RecipeAggregate, 0, len(rows))
	for _, row := range rows {
		agg, err := s.Get(row.ID, viewer)
		if err != nil {
			return nil, err
		}
		out = append(out, *agg)
	}
	return out, nil
}

// Delete removes an owned recipe; tag links, ingredient lines and marks
// go with it.
func (s *Recipes) Delete(id uint64, user *db.User) error {
	model := db.Recipe{}
	res := s.db.First(&model, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return ErrRecipeNotFound
		}
		return errors.Wrap(res.Error, "get recipe")
	}
	if model.AuthorID != user.ID {
		return ErrNotOwner
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model).Association("Tags").Clear(); err != nil {
			return errors.Wrap(err, "clear tags")
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&db.RecipeIngredient{}).Error; err != nil {
			return errors.Wrap(err, "delete ingredient lines")
		}
		if err := tx.Where("recipe_id = ?", id).Delete(&db.Mark{}).Error; err != nil {
			return errors.Wrap(err, "delete marks")
		}
		return errors.Wrap(tx.Delete(&db.Recipe{}, id).Error, "delete recipe")
	})
}

func (s *Recipes) project(model *db.Recipe, viewer *db.User) (*RecipeAggregate, error) {
	agg := RecipeAggregate{
		ID:          model.ID,
		Tags:        model.Tags,
		Name:        model.Name,
		Image:       model.Image,
		Text:        model.Text,
		CookingTime: model.CookingTime,
		Author: AuthorProfile{
			ID:        model.Author.ID,
			Email:     model.Author.Email,
			Username:  model.Author.Username,
			FirstName: model.Author.FirstName,
			LastName:  model.Author.LastName,
		},
		Ingredients: make([]IngredientLine, len(model.Ingredients)),
	}

	for i := range model.Ingredients {
		line := model.Ingredients[i]
		agg.Ingredients[i] = IngredientLine{
			ID:              line.IngredientID,
			Name:            line.Ingredient.Name,
			MeasurementUnit: line.Ingredient.MeasurementUnit,
			Amount:          line.Amount,
		}
	}

	if viewer == nil {
		return &agg, nil
	}

	var err error
	agg.Favorited, err = markExists(s.db, viewer.ID, model.ID, db.MarkFavorite)
	if err != nil {
		return nil, err
	}
	agg.InCart, err = markExists(s.db, viewer.ID, model.ID, db.MarkCart)
	if err != nil {
		return nil, err
	}
	agg.Author.Subscribed, err = followExists(s.db, viewer.ID, model.AuthorID)
	if err != nil {
		return nil, err
	}

	return &agg, nil
}

// replaceTags swaps the recipe's tag links for exactly the given set.
func replaceTags(tx *gorm.DB, model *db.Recipe, tagIDs []uint64) error {
	newTags := make([]db.Tag, len(tagIDs))
	for i := range tagIDs {
		newTags[i] = db.Tag{
			GormForkedModel: db.GormForkedModel{
				ID: tagIDs[i],
			},
		}
	}
	if err := tx.Model(model).Association("Tags").Replace(newTags); err != nil {
		return errors.Wrap(err, "replace tags")
	}
	return nil
}

// replaceIngredientLines clears the recipe's lines and bulk-inserts the
// new ones.
func replaceIngredientLines(tx *gorm.DB, recipeID uint64, lines []IngredientAmount) error {
	if err := tx.Where("recipe_id = ?", recipeID).Delete(&db.RecipeIngredient{}).Error; err != nil {
		return errors.Wrap(err, "clear ingredient lines")
	}

	rows := make([]db.RecipeIngredient, len(lines))
	for i := range lines {
		rows[i] = db.RecipeIngredient{
			RecipeID:     recipeID,
			IngredientID: lines[i].ID,
			Amount:       lines[i].Amount,
		}
	}
	if err := tx.Create(&rows).Error; err != nil {
		return errors.Wrap(err, "insert ingredient lines")
	}
	return nil
}

func markExists(conn *gorm.DB, userID, recipeID uint64, kind db.MarkKind) (bool, error) {
	var count int64
	res := conn.Model(&db.Mark{}).
		Where("user_id = ? AND recipe_id = ? AND kind = ?", userID, recipeID, kind).
		Count(&count)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "count marks")
	}
	return count > 0, nil
}

func followExists(conn *gorm.DB, userID, authorID uint64) (bool, error) {
	var count int64
	res := conn.Model(&db.Follow{}).
		Where("user_id = ? AND author_id = ?", userID, authorID).
		Count(&count)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "count follows")
	}
	return count > 0, nil
}

func summary(model *db.Recipe) *RecipeSummary {
	return &RecipeSummary{
		ID:          model.ID,
		Name:        model.Name,
		Image:       model.Image,
		CookingTime: model.CookingTime,
	}
}
