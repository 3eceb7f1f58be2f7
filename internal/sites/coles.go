package sites

import (
	"strings"

	"hotprices/internal/models"
	"hotprices/pkg/utils"
)

const colesProductType = "PRODUCT"

// Coles reads the JSON search results embedded in Coles category pages.
type Coles struct{}

// NewColes creates the Coles adapter.
func NewColes() *Coles {
	return &Coles{}
}

// Name implements Adapter.
func (c *Coles) Name() string {
	return "coles"
}

// Canonical implements Adapter.
func (c *Coles) Canonical(raw models.RawRecord, day string) Result {
	if kind, _ := raw.String("_type"); kind != colesProductType {
		return Skip("not a product tile: " + kind)
	}

	id, ok := raw.String("id")
	if !ok || id == "" {
		return Failf("missing id")
	}

	name, _ := raw.String("name")
	name = utils.NormalizeWhitespace(name)

	if name == "" {
		return Failf("product %s has no name", id)
	}

	if brand, ok := raw.String("brand"); ok && brand != "" && !strings.HasPrefix(name, brand) {
		name = utils.NormalizeWhitespace(brand + " " + name)
	}

	pricing, ok := raw.Map("pricing")
	if !ok {
		return Skip("no pricing")
	}

	price, ok := pricing.Float("now")
	if !ok {
		return Failf("product %s has unreadable pricing.now", id)
	}

	item := models.NewCanonicalItem(id, name, price, day)

	if desc, ok := raw.String("description"); ok {
		item.Description = utils.NormalizeWhitespace(desc)
	}

	if size, ok := raw.String("size"); ok {
		if qty, unit, parsed := utils.ParseQuantity(size); parsed {
			item.Quantity = qty
			item.Unit = unit
		}
	}

	if unit, ok := pricing.Map("unit"); ok {
		item.IsWeighted = unit.Bool("isWeighted")

		if item.Unit == "" {
			measure, _ := unit.String("ofMeasureUnits")
			item.Unit = strings.ToLower(measure)
		}
	}

	return Item(item)
}

// CategoryMapping implements Adapter. Groups carry a display "CategoryName".
func (c *Coles) CategoryMapping(groups []models.CategoryGroup) models.CategoryMap {
	m := make(models.CategoryMap)

	for _, g := range groups {
		name, _ := g.Record().String("CategoryName")
		name = utils.NormalizeWhitespace(name)

		if name != "" {
			m[colesCategoryKey(name)] = name
		}
	}

	return m
}

// CategoryFromMap implements Adapter.
func (c *Coles) CategoryFromMap(m models.CategoryMap, raw models.RawRecord) (string, error) {
	heir, ok := raw.Map("merchandiseHeir")
	if !ok {
		return "", ErrCategoryNotFound
	}

	category, _ := heir.String("category")

	return lookupCategory(m, colesCategoryKey(category))
}

func colesCategoryKey(name string) string {
	return strings.ToLower(utils.NormalizeWhitespace(name))
}
