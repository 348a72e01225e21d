package service

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrLoginUserNotFound         = errors.New("user not found")
	ErrLoginPasswordDoesNotMatch = errors.New("password does not match")

	ErrRecipeNotFound     = errors.New("recipe not found")
	ErrTagNotFound        = errors.New("tag not found")
	ErrIngredientNotFound = errors.New("ingredient not found")
	ErrUserNotFound       = errors.New("user not found")

	ErrNotOwner = errors.New("recipe belongs to another user")

	ErrAlreadyMarked = errors.New("recipe is already in the list")
	ErrMarkNotFound  = errors.New("recipe is not in the list")

	ErrSelfFollow       = errors.New("cannot follow yourself")
	ErrAlreadyFollowing = errors.New("already following this author")
	ErrNotFollowing     = errors.New("not following this author")
)

type ViolationKind string

const (
	ViolationUnknownTag          ViolationKind = "unknown_tag"
	ViolationUnknownIngredient   ViolationKind = "unknown_ingredient"
	ViolationEmptyTags           ViolationKind = "empty_tags"
	ViolationDuplicateTag        ViolationKind = "duplicate_tag"
	ViolationEmptyIngredients    ViolationKind = "empty_ingredients"
	ViolationDuplicateIngredient ViolationKind = "duplicate_ingredient"
	ViolationInvalidAmount       ViolationKind = "invalid_amount"
	ViolationInvalidCookingTime  ViolationKind = "invalid_cooking_time"
)

// Violation names one broken recipe invariant. Subject is the offending
// tag or ingredient id where the kind refers to one, zero otherwise.
type Violation struct {
	Kind    ViolationKind `json:"kind"`
	Subject uint64        `json:"subject,omitempty"`
}

func (v Violation) String() string {
	if v.Subject == 0 {
		return string(v.Kind)
	}
	return fmt.Sprintf("%s(%d)", v.Kind, v.Subject)
}

// ValidationError carries every violation found in a recipe payload, not
// just the first one.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = v.String()
	}
	return "recipe validation failed: " + strings.Join(parts, ", ")
}
