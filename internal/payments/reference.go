package payments

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Reference is a parsed wallet transaction reference of the form
// `{initiationTimestampMillis}_{orderId}`. Parsing never fails: a reference the
// gateway mangled still carries Raw for the fuzzier strategies.
type Reference struct {
	Raw          string
	Suffix       string
	InitiatedAt  time.Time
	HasTimestamp bool
}

// NewReference builds the reference sent to the gateway for one payment attempt.
func NewReference(initiatedAt time.Time, orderID uuid.UUID) string {
	return fmt.Sprintf("%d_%s", initiatedAt.UnixMilli(), orderID.String())
}

// ParseReference splits a reference into its timestamp and order suffix.
func ParseReference(raw string) Reference {
	trimmed := strings.TrimSpace(raw)
	ref := Reference{Raw: trimmed, Suffix: trimmed}

	prefix, suffix, found := strings.Cut(trimmed, "_")
	if !found {
		return ref
	}
	millis, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil || millis <= 0 {
		return ref
	}
	ref.Suffix = strings.TrimSpace(suffix)
	ref.InitiatedAt = time.UnixMilli(millis).UTC()
	ref.HasTimestamp = true
	return ref
}

// OrderID returns the suffix as an order id when it is one.
func (r Reference) OrderID() (uuid.UUID, bool) {
	id, err := uuid.Parse(r.Suffix)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
