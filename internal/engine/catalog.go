package engine

import (
	"fmt"

	"github.com/roach88/retrace/internal/record"
)

// ItemID formats the id of the i-th item.
func ItemID(i int) string { return fmt.Sprintf("ITEM_%04d", i) }

// LocationID formats the id of the w-th warehouse.
func LocationID(w int) string { return fmt.Sprintf("WH_%02d", w) }

// Catalog is the fixed simulation universe.
type Catalog struct {
	items     []string
	locations []string
	pairs     []record.ItemLocation
}

// NewCatalog builds items × locations pairs in item-major order.
func NewCatalog(items, locations int) (*Catalog, error) {
	if items <= 0 || locations <= 0 {
		return nil, newConfigError("catalog", "empty catalog (%d items, %d locations)", items, locations)
	}

	c := &Catalog{
		items:     make([]string, items),
		locations: make([]string, locations),
		pairs:     make([]record.ItemLocation, 0, items*locations),
	}
	for w := range c.locations {
		c.locations[w] = LocationID(w)
	}
	for i := range c.items {
		c.items[i] = ItemID(i)
		for _, loc := range c.locations {
			c.pairs = append(c.pairs, record.ItemLocation{Item: c.items[i], Location: loc})
		}
	}
	return c, nil
}

// Items returns the item ids.
func (c *Catalog) Items() []string { return c.items }

// Locations returns the location ids.
func (c *Catalog) Locations() []string { return c.locations }

// Pairs returns every (item, location) pair.
func (c *Catalog) Pairs() []record.ItemLocation { return c.pairs }

// Has reports whether the pair is in the catalog.
func (c *Catalog) Has(p record.ItemLocation) bool {
	for _, q := range c.pairs {
		if q == p {
			return true
		}
	}
	return false
}

// HasItem reports whether item is in the catalog.
func (c *Catalog) HasItem(item string) bool {
	for _, it := range c.items {
		if it == item {
			return true
		}
	}
	return false
}
