package echoapi

import (
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/digitalmadrasa/madrasa/core"
	"github.com/digitalmadrasa/madrasa/core/certificate"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

var templateLess = map[string]func(a, b certificate.Template) bool{
	"name":       func(a, b certificate.Template) bool { return strings.ToLower(a.Name) < strings.ToLower(b.Name) },
	"created_at": func(a, b certificate.Template) bool { return a.CreatedAt.Before(b.CreatedAt) },
	"updated_at": func(a, b certificate.Template) bool { return a.UpdatedAt.Before(b.UpdatedAt) },
}

// Sort orders templates by the bound orderings; unknown fields are ignored.
func (ord *Ordering) Sort(tmpls []certificate.Template) {
	sort.SliceStable(tmpls, func(i, j int) bool {
		for _, o := range ord.Orderings {
			less, ok := templateLess[o.Field]
			if !ok {
				continue
			}
			a, b := tmpls[i], tmpls[j]
			if !o.Ascending {
				a, b = b, a
			}
			if less(a, b) {
				return true
			}
			if less(b, a) {
				return false
			}
		}
		return false
	})
}
