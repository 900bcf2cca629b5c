package enums

// VoucherDiscountType selects how a voucher value is applied: a percentage
// of the subtotal or a fixed amount.
type VoucherDiscountType string

const (
	VoucherDiscountPercentage VoucherDiscountType = "percentage"
	VoucherDiscountFixed      VoucherDiscountType = "fixed"
)

var voucherDiscountTypes = values[VoucherDiscountType]{VoucherDiscountPercentage, VoucherDiscountFixed}

func (v VoucherDiscountType) IsValid() bool { return voucherDiscountTypes.has(v) }

func ParseVoucherDiscountType(raw string) (VoucherDiscountType, error) {
	return voucherDiscountTypes.parse("voucher discount type", raw)
}
