// Package reference generates human-facing document numbers.
package reference

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// SubscriptionCode returns a code of the form SUB/<year>/<ulid>.
func SubscriptionCode(now time.Time) string {
	return fmt.Sprintf("SUB/%d/%s", now.Year(), newID(now))
}

// InvoiceNumber returns INV-<ulid>. The ulid carries the millisecond timestamp
// in its first ten characters, so numbers sort by issue time.
func InvoiceNumber(now time.Time) string {
	return "INV-" + newID(now)
}

func newID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}
