package service

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/cookshare-app/cookshare-back/internal/db"
)

type (
	IngredientAmount struct {
		ID     uint64
		Amount uint32
	}

	RecipePayload struct {
		Name        string
		Image       string
		Text        string
		CookingTime uint32
		TagIDs      []uint64
		Ingredients []IngredientAmount
	}
)

// validateRecipe checks the whole payload against the catalog and the
// recipe invariants. It walks every rule and returns a *ValidationError
// listing all violations; it never stops at the first one and never
// touches anything but the tag and ingredient catalog tables.
func validateRecipe(conn *gorm.DB, p *RecipePayload) error {
	violations := make([]Violation, 0)

	if len(p.TagIDs) == 0 {
		violations = append(violations, Violation{Kind: ViolationEmptyTags})
	}
	if len(p.Ingredients) == 0 {
		violations = append(violations, Violation{Kind: ViolationEmptyIngredients})
	}

	seenTags := make(map[uint64]bool, len(p.TagIDs))
	uniqueTags := make([]uint64, 0, len(p.TagIDs))
	for _, id := range p.TagIDs {
		if seenTags[id] {
			violations = append(violations, Violation{Kind: ViolationDuplicateTag, Subject: id})
			continue
		}
		seenTags[id] = true
		uniqueTags = append(uniqueTags, id)
	}

	seenIngredients := make(map[uint64]bool, len(p.Ingredients))
	uniqueIngredients := make([]uint64, 0, len(p.Ingredients))
	for _, line := range p.Ingredients {
		if seenIngredients[line.ID] {
			violations = append(violations, Violation{Kind: ViolationDuplicateIngredient, Subject: line.ID})
		} else {
			seenIngredients[line.ID] = true
			uniqueIngredients = append(uniqueIngredients, line.ID)
		}

		if line.Amount < 1 {
			violations = append(violations, Violation{Kind: ViolationInvalidAmount, Subject: line.ID})
		}
	}

	unknownTags, err := missingIDs(conn, &db.Tag{}, uniqueTags)
	if err != nil {
		return errors.Wrap(err, "look up tags")
	}
	for _, id := range unknownTags {
		violations = append(violations, Violation{Kind: ViolationUnknownTag, Subject: id})
	}

	unknownIngredients, err := missingIDs(conn, &db.Ingredient{}, uniqueIngredients)
	if err != nil {
		return errors.Wrap(err, "look up ingredients")
	}
	for _, id := range unknownIngredients {
		violations = append(violations, Violation{Kind: ViolationUnknownIngredient, Subject: id})
	}

	if p.CookingTime < 1 {
		violations = append(violations, Violation{Kind: ViolationInvalidCookingTime})
	}

	if len(violations) != 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

// missingIDs returns, in the order given, the ids for which no row of the
// given model exists.
func missingIDs(conn *gorm.DB, model interface{}, ids []uint64) ([]uint64, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	existing := make([]uint64, 0, len(ids))
	res := conn.Model(model).Where("id IN ?", ids).Pluck("id", &existing)
	if res.Error != nil {
		return nil, res.Error
	}

	found := make(map[uint64]bool, len(existing))
	for _, id := range existing {
		found[id] = true
	}

	missing := make([]uint64, 0)
	for _, id := range ids {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return missing, nil
}
