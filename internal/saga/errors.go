package saga

import (
	"errors"
	"fmt"
)

var (
	// ErrCheckoutInProgress rejects a second checkout for a tourist whose
	// previous one has not reached a terminal state yet.
	ErrCheckoutInProgress = errors.New("checkout already in progress for this tourist")

	// ErrDebitFailed means the ledger explicitly refused the debit; the
	// token batch has been compensated.
	ErrDebitFailed = errors.New("remote debit failed")

	// ErrCheckoutTimeout means no debit reply arrived within the configured
	// window; the token batch has been compensated.
	ErrCheckoutTimeout = errors.New("no debit reply within the configured window")

	ErrEmptyBatch = errors.New("checkout requires a non-empty token batch")
)

// CompensationError is alarm-worthy: a saga reached a failure outcome but
// deleting its token batch also failed, leaving orphaned provisional tokens.
type CompensationError struct {
	TouristID string
	TokenIDs  []int64
	Err       error
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("compensation failed for tourist %s (tokens %v): %v", e.TouristID, e.TokenIDs, e.Err)
}

func (e *CompensationError) Unwrap() error {
	return e.Err
}
