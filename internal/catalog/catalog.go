// Package catalog holds the fixed list of products the storefront sells.
package catalog

import (
	"fmt"
	"slices"

	"github.com/pr-poehali-dev/zdrav-project/internal/domain"
)

const imageBase = "https://cdn.poehali.dev/projects/4485c454-d343-4ff0-8f3b-3aeac6ac7b31/files/"

// Catalog is an immutable, ordered set of products with unique IDs.
type Catalog struct {
	products []domain.Product
	byID     map[int]int
}

// New builds a catalog. Duplicate IDs are a programming error and panic.
func New(products ...domain.Product) *Catalog {
	c := &Catalog{
		products: slices.Clone(products),
		byID:     make(map[int]int, len(products)),
	}
	for i, p := range c.products {
		if _, dup := c.byID[p.ID]; dup {
			panic(fmt.Sprintf("catalog: duplicate product id %d", p.ID))
		}
		c.byID[p.ID] = i
	}
	return c
}

// Default returns the storefront's product line.
func Default() *Catalog {
	return New(
		domain.Product{
			ID:          1,
			Name:        "Швейцарские часы Heritage",
			Price:       485000,
			Image:       imageBase + "e551893c-8ed8-41fa-8a54-f9e9bcf64d2e.jpg",
			Description: "Элегантные часы с автоматическим механизмом",
			Category:    "Часы",
		},
		domain.Product{
			ID:          2,
			Name:        "Бриллиантовое колье",
			Price:       1250000,
			Image:       imageBase + "60675718-7b9f-4e72-ad9e-d56c72ae57e3.jpg",
			Description: "Изысканное колье с натуральными бриллиантами",
			Category:    "Украшения",
		},
		domain.Product{
			ID:          3,
			Name:        "Сумка из итальянской кожи",
			Price:       320000,
			Image:       imageBase + "f0c63d76-e002-495f-b3b4-549cf53afe29.jpg",
			Description: "Роскошная сумка ручной работы из премиальной кожи",
			Category:    "Аксессуары",
		},
	)
}

// List returns the products in catalog order. The slice is a copy.
func (c *Catalog) List() []domain.Product {
	return slices.Clone(c.products)
}

// Get looks a product up by ID.
func (c *Catalog) Get(id int) (domain.Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return domain.Product{}, false
	}
	return c.products[i], true
}

// Len returns the number of products.
func (c *Catalog) Len() int { return len(c.products) }
