package enums

// VariantStatus is the availability flag derived from variant stock.
type VariantStatus string

const (
	VariantStatusInStock    VariantStatus = "in_stock"
	VariantStatusOutOfStock VariantStatus = "out_of_stock"
)

// VariantStatusFor derives the availability flag for a stock level.
func VariantStatusFor(stock int) VariantStatus {
	if stock > 0 {
		return VariantStatusInStock
	}
	return VariantStatusOutOfStock
}
