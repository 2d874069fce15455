package ledger

import (
	"errors"
	"fmt"
)

// ErrOutOfOrder is returned by Rebuild when the declared transactions are not
// sorted by (timestamp, sequence). The caller must re-sort; nothing is
// persisted.
var ErrOutOfOrder = errors.New("transactions out of declared order")

// ValidationError rejects an entire report: none of its entries are applied.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid report: %s %s", e.Field, e.Reason)
}
