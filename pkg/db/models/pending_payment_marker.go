package models

import (
	"time"

	"github.com/google/uuid"
)

// PendingPaymentMarker is the client-held record of an outstanding wallet
// payment. It lives in the client's local SQLite file, never in Postgres.
type PendingPaymentMarker struct {
	OrderID    uuid.UUID `gorm:"column:order_id;primaryKey"`
	BuyerID    uuid.UUID `gorm:"column:buyer_id;not null"`
	PaymentRef string    `gorm:"column:payment_ref;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;not null"`
	IsRetry    bool      `gorm:"column:is_retry;not null;default:false"`
}

func (PendingPaymentMarker) TableName() string {
	return "pending_payment_markers"
}
