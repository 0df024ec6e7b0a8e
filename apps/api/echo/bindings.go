package echoapi

import (
	"github.com/labstack/echo/v4"

	"github.com/trezcool/campusgrid/core"
)

const orderingParam = "ordering"

// Ordering binds the "?ordering=field1,-field2" query parameter of listings.
type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	ord.Orderings = core.ParseOrdering(ctx.QueryParam(orderingParam))
}
