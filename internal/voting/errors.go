package voting

import (
	"errors"
	"fmt"
)

var (
	ErrPollNotFound = errors.New("poll not found")
	ErrVoteNotFound = errors.New("vote not found")

	// ErrInvalidOption means the option index is out of range for the poll.
	ErrInvalidOption = errors.New("invalid option index")

	// ErrStorageConflict means a concurrent writer won the race; the
	// operation can be retried against fresh state.
	ErrStorageConflict = errors.New("storage conflict")
)

// IneligibleError is a business-rule rejection. The reason is stable enough
// for client-side messaging and is never produced by system failures.
type IneligibleError struct {
	Reason string
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("vote not allowed: %s", e.Reason)
}

// IsIneligible reports whether err is a business-rule rejection and
// returns its reason.
func IsIneligible(err error) (string, bool) {
	var ie *IneligibleError
	if errors.As(err, &ie) {
		return ie.Reason, true
	}
	return "", false
}
