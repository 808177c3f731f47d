package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/schoolbus/core"
	"github.com/trezcool/schoolbus/core/notification"
)

const (
	orderingParam = "ordering"

	defaultLimit = 50
	maxLimit     = 500
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=field,-other`; a leading "-" means descending.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field != "" {
			ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
		}
	}
}

// bindNotificationFilter reads kind, trip_id, limit and ordering from the query string.
func bindNotificationFilter(ctx echo.Context) (notification.QueryFilter, error) {
	var filter notification.QueryFilter
	err := echo.QueryParamsBinder(ctx).
		String("kind", &filter.Kind).
		String("trip_id", &filter.TripID).
		Int("limit", &filter.Limit).
		BindError()
	if err != nil {
		return filter, core.NewFieldValidationError("limit", "must be an integer")
	}
	if filter.Limit < 0 {
		return filter, core.NewFieldValidationError("limit", "must be positive")
	}
	if filter.Limit == 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)
	filter.Ordering = ordering.Orderings
	return filter, nil
}
