package sites

import (
	"strings"

	"hotprices/internal/models"
	"hotprices/pkg/utils"
)

// Aldi reads product tiles scraped as HTML fragments from ALDI catalogue pages.
// Each raw record is {"html": "<div data-sku=...>", "category": "<slug>"}.
type Aldi struct{}

// NewAldi creates the ALDI adapter.
func NewAldi() *Aldi {
	return &Aldi{}
}

// Name implements Adapter.
func (a *Aldi) Name() string {
	return "aldi"
}

// Canonical implements Adapter.
func (a *Aldi) Canonical(raw models.RawRecord, day string) Result {
	fragment, ok := raw.String("html")
	if !ok || strings.TrimSpace(fragment) == "" {
		return Failf("missing html")
	}

	doc, err := parseFragment(fragment)
	if err != nil {
		return Fail(err)
	}

	tile := doc.Find("[data-sku]").First()

	sku, exists := tile.Attr("data-sku")
	sku = strings.TrimSpace(sku)

	if !exists || sku == "" {
		return Failf("tile has no data-sku")
	}

	name := utils.NormalizeWhitespace(tile.Find(".product-title").First().Text())
	if name == "" {
		return Failf("sku %s has no title", sku)
	}

	priceText := strings.TrimSpace(tile.Find(".price").First().Text())
	if priceText == "" {
		// "Coming soon" tiles have no price yet.
		return Skip("no price")
	}

	price, ok := utils.ParsePrice(priceText)
	if !ok {
		return Failf("sku %s has unreadable price %q", sku, priceText)
	}

	item := models.NewCanonicalItem(sku, name, price, day)

	if size := utils.NormalizeWhitespace(tile.Find(".size").First().Text()); size != "" {
		if qty, unit, parsed := utils.ParseQuantity(size); parsed {
			item.Quantity = qty
			item.Unit = unit
		}
	}

	unitText := strings.ToLower(utils.NormalizeWhitespace(tile.Find(".unit").First().Text()))
	if strings.HasPrefix(unitText, "per ") {
		item.IsWeighted = true
		item.Unit = strings.TrimPrefix(unitText, "per ")
	}

	return Item(item)
}

// CategoryMapping implements Adapter. Groups carry "Category" and an optional "Slug".
func (a *Aldi) CategoryMapping(groups []models.CategoryGroup) models.CategoryMap {
	m := make(models.CategoryMap)

	for _, g := range groups {
		rec := g.Record()

		label, _ := rec.String("Category")
		label = utils.NormalizeWhitespace(label)

		if label == "" {
			continue
		}

		slug, _ := rec.String("Slug")
		if slug == "" {
			slug = utils.Slugify(label)
		}

		m[slug] = label
	}

	return m
}

// CategoryFromMap implements Adapter.
func (a *Aldi) CategoryFromMap(m models.CategoryMap, raw models.RawRecord) (string, error) {
	slug, _ := raw.String("category")
	return lookupCategory(m, strings.TrimSpace(slug))
}
