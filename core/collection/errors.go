package collection

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotFound is returned when a mutation references an id absent from the collection.
	ErrNotFound = errors.New("item not found")
	// ErrMissingID is returned when an item without an id is loaded into a collection.
	ErrMissingID = errors.New("item has no id")
	// ErrDuplicateID is returned when two loaded items share an id.
	ErrDuplicateID = errors.New("duplicate item id")
)

// RemoteError wraps the failure of a remote call made on behalf of a mutation.
// The failed change is no longer visible in the store when it is returned, even if newer
// mutations of the same item are still pending.
type RemoteError struct {
	Collection string
	Op         string
	ID         string
	Err        error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s %s %s: %v", e.Collection, e.Op, e.ID, e.Err)
}

// Cause returns the underlying remote failure (github.com/pkg/errors compatible).
func (e *RemoteError) Cause() error { return e.Err }

func (e *RemoteError) Unwrap() error { return e.Err }

// IsRemoteFailure reports whether err is (or wraps) a RemoteError.
func IsRemoteFailure(err error) bool {
	var rErr *RemoteError
	return errors.As(err, &rErr)
}

// PartialFailureError reports a bulk run where at least one item failed.
type PartialFailureError struct {
	Summary Summary
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("%s: %d of %d items failed", e.Summary.label(), e.Summary.Failure, e.Summary.Total)
}
