package sites

import (
	"strings"

	"hotprices/internal/models"
	"hotprices/pkg/utils"
)

// Woolies reads the JSON product records of the Woolworths category API.
type Woolies struct{}

// NewWoolies creates the Woolworths adapter.
func NewWoolies() *Woolies {
	return &Woolies{}
}

// Name implements Adapter.
func (w *Woolies) Name() string {
	return "woolies"
}

// Canonical implements Adapter.
func (w *Woolies) Canonical(raw models.RawRecord, day string) Result {
	id, ok := raw.String("Stockcode")
	if !ok || id == "" {
		return Failf("missing Stockcode")
	}

	name, _ := raw.String("DisplayName")
	if name == "" {
		name, _ = raw.String("Name")
	}

	name = utils.NormalizeWhitespace(name)
	if name == "" {
		return Failf("stockcode %s has no name", id)
	}

	// Unavailable products are listed with a null price.
	if raw.IsNull("Price") {
		return Skip("no price")
	}

	price, ok := raw.Float("Price")
	if !ok {
		return Failf("stockcode %s has unreadable price", id)
	}

	item := models.NewCanonicalItem(id, name, price, day)

	if desc, ok := raw.String("Description"); ok {
		item.Description = htmlText(desc)
	}

	item.IsWeighted = raw.Bool("IsWeighted")

	if size, ok := raw.String("PackageSize"); ok {
		if qty, unit, parsed := utils.ParseQuantity(size); parsed {
			item.Quantity = qty
			item.Unit = unit
		}
	}

	if item.Unit == "" {
		if unit, ok := raw.String("Unit"); ok {
			item.Unit = strings.ToLower(unit)
		}
	}

	return Item(item)
}

// CategoryMapping implements Adapter. Groups carry {"Category": {"NodeId", "Description"}}.
func (w *Woolies) CategoryMapping(groups []models.CategoryGroup) models.CategoryMap {
	m := make(models.CategoryMap)

	for _, g := range groups {
		cat, ok := g.Record().Map("Category")
		if !ok {
			continue
		}

		node, _ := cat.String("NodeId")
		desc, _ := cat.String("Description")

		if node != "" && desc != "" {
			m[node] = utils.NormalizeWhitespace(desc)
		}
	}

	return m
}

// CategoryFromMap implements Adapter.
func (w *Woolies) CategoryFromMap(m models.CategoryMap, raw models.RawRecord) (string, error) {
	node, _ := raw.String("PiesDepartmentNodeId")
	return lookupCategory(m, node)
}
