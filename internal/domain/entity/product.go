package entity

import "github.com/shopspring/decimal"

type ProductType string

const (
	ProductConsumable    ProductType = "consumable"
	ProductNonConsumable ProductType = "non_consumable"
	ProductSubscription  ProductType = "subscription"
)

// ProductInfo is an immutable snapshot of a catalog entry as reported by a
// storefront provider. Price is kept as the provider's literal string
// (minor-unit integer or decimal) and parsed on demand.
type ProductInfo struct {
	ID    string      `json:"id"`
	Price string      `json:"price"`
	Title string      `json:"title"`
	Type  ProductType `json:"type"`
}

// ParsedPrice parses the provider price string. The zero value is returned
// alongside the error for malformed entries.
func (p ProductInfo) ParsedPrice() (decimal.Decimal, error) {
	return decimal.NewFromString(p.Price)
}
