package service

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cookshare-app/cookshare-back/internal/db"
)

// Catalog exposes the tag and ingredient reference data. It never writes;
// the catalog is provisioned outside this service.
type Catalog struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

func NewCatalog(db *gorm.DB, l *zap.SugaredLogger) *Catalog {
	return &Catalog{
		db:     db,
		logger: l,
	}
}

func (s *Catalog) TagGet(id uint64) (*db.Tag, error) {
	tag := db.Tag{}
	res := s.db.First(&tag, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTagNotFound
		}
		return nil, errors.Wrap(res.Error, "get tag")
	}
	return &tag, nil
}

func (s *Catalog) TagList() ([]db.Tag, error) {
	tags := make([]db.Tag, 0)
	res := s.db.Order("id").Find(&tags)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "list tags")
	}
	return tags, nil
}

func (s *Catalog) IngredientGet(id uint64) (*db.Ingredient, error) {
	ingredient := db.Ingredient{}
	res := s.db.First(&ingredient, id)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, ErrIngredientNotFound
		}
		return nil, errors.Wrap(res.Error, "get ingredient")
	}
	return &ingredient, nil
}

// IngredientList matches by name prefix when one is given.
func (s *Catalog) IngredientList(name string) ([]db.Ingredient, error) {
	q := s.db.Order("name")
	if name != "" {
		q = q.Where("name LIKE ?", name+"%")
	}

	ingredients := make([]db.Ingredient, 0)
	res := q.Find(&ingredients)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "list ingredients")
	}
	return ingredients, nil
}
