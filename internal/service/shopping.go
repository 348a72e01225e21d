package service

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cookshare-app/cookshare-back/internal/db"
)

type (
	// ShoppingItem is one aggregated row of the shopping list: every
	// occurrence of the ingredient across the user's cart recipes summed
	// into a single total, per measurement unit.
	ShoppingItem struct {
		Name            string
		MeasurementUnit string
		Total           uint64
	}

	ShoppingList struct {
		db     *gorm.DB
		logger *zap.SugaredLogger
	}
)

func NewShoppingList(db *gorm.DB, l *zap.SugaredLogger) *ShoppingList {
	return &ShoppingList{
		db:     db,
		logger: l,
	}
}

// Items reads the user's cart at call time and returns the per-ingredient
// totals sorted by ingredient name. An empty cart yields an empty slice.
func (s *ShoppingList) Items(userID uint64) ([]ShoppingItem, error) {
	sql, args, err := squirrel.
		Select("i.name", "i.measurement_unit", "SUM(ri.amount) AS total").
		From("marks m").
		Join("recipe_ingredients ri ON ri.recipe_id = m.recipe_id").
		Join("ingredients i ON i.id = ri.ingredient_id").
		Where(squirrel.Eq{
			"m.user_id": userID,
			"m.kind":    db.MarkCart,
		}).
		GroupBy("i.name", "i.measurement_unit").
		OrderBy("i.name").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "build sql")
	}

	items := make([]ShoppingItem, 0)
	res := s.db.Raw(sql, args...).Scan(&items)
	if res.Error != nil {
		return nil, errors.Wrap(res.Error, "scan")
	}

	return items, nil
}

// WriteCSV renders the list as the flat download format. Column order is
// name, unit, total; consumers parse it positionally.
func WriteCSV(w io.Writer, items []ShoppingItem) error {
	writer := csv.NewWriter(w)
	for _, item := range items {
		record := []string{
			item.Name,
			item.MeasurementUnit,
			strconv.FormatUint(item.Total, 10),
		}
		if err := writer.Write(record); err != nil {
			return errors.Wrap(err, "write csv record")
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "flush csv")
}
