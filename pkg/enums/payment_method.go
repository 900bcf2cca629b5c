package enums

// PaymentMethod is how a buyer settles an order.
type PaymentMethod string

const (
	PaymentMethodCOD    PaymentMethod = "cod"
	PaymentMethodWallet PaymentMethod = "wallet"
)

var paymentMethods = values[PaymentMethod]{PaymentMethodCOD, PaymentMethodWallet}

func (p PaymentMethod) IsValid() bool { return paymentMethods.has(p) }

// IsAsync reports whether confirmation arrives out of band from the gateway.
func (p PaymentMethod) IsAsync() bool {
	return p == PaymentMethodWallet
}

func ParsePaymentMethod(raw string) (PaymentMethod, error) {
	return paymentMethods.parse("payment method", raw)
}
