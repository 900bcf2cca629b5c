package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	got, err := ParseOrderStatus("shipping")
	if err != nil || got != OrderStatusShipping {
		t.Fatalf("expected shipping, got %q (%v)", got, err)
	}
	if _, err := ParseOrderStatus("lost_in_transit"); err == nil {
		t.Fatal("expected unknown status to fail parsing")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{
		OrderStatusPendingPayment:      false,
		OrderStatusPendingConfirmation: false,
		OrderStatusConfirmed:           false,
		OrderStatusShipping:            false,
		OrderStatusDelivered:           true,
		OrderStatusCancelled:           true,
	}
	for status, want := range terminal {
		if got := status.IsTerminal(); got != want {
			t.Fatalf("%s: expected terminal=%v", status, want)
		}
	}
}

func TestPaymentMethodIsAsync(t *testing.T) {
	if PaymentMethodCOD.IsAsync() {
		t.Fatal("cod must not be async")
	}
	if !PaymentMethodWallet.IsAsync() {
		t.Fatal("wallet must be async")
	}
	if _, err := ParsePaymentMethod("card"); err == nil {
		t.Fatal("expected card to be rejected")
	}
}

func TestVariantStatusFor(t *testing.T) {
	if VariantStatusFor(0) != VariantStatusOutOfStock {
		t.Fatal("zero stock must be out of stock")
	}
	if VariantStatusFor(3) != VariantStatusInStock {
		t.Fatal("positive stock must be in stock")
	}
}

func TestValuesRejectUnknown(t *testing.T) {
	checks := map[string]bool{
		"role admin":          RoleAdmin.IsValid(),
		"role guest":          !Role("guest").IsValid(),
		"notification type":   NotificationTypePaymentConfirmed.IsValid(),
		"event type":          EventPaymentFailed.IsValid(),
		"unknown event type":  !OutboxEventType("order_lost").IsValid(),
		"aggregate":           AggregateVoucher.IsValid(),
		"dlq reason":          OutboxDLQReasonNonRetryable.IsValid(),
		"empty dlq reason":    !OutboxDLQErrorReason("").IsValid(),
		"case sensitive role": !Role("Admin").IsValid(),
	}
	for name, ok := range checks {
		if !ok {
			t.Errorf("%s: unexpected validity", name)
		}
	}
}

func TestParseErrorNamesKind(t *testing.T) {
	_, err := ParseVoucherDiscountType("bogus")
	if err == nil || err.Error() != `invalid voucher discount type "bogus"` {
		t.Fatalf("unexpected error %v", err)
	}
}
