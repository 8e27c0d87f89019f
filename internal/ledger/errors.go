package ledger

import "errors"

// Ledger errors shared by every implementation. These are contract-level
// rejections: a call that returns one of these has mutated nothing.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a record whose key exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnauthorized is returned when the caller is not the registered
	// writer principal for a gated mutation.
	ErrUnauthorized = errors.New("unauthorized writer")

	// ErrInvalidReport is returned when a signed report fails aggregate
	// signature verification against the registered signer set.
	ErrInvalidReport = errors.New("invalid signed report")

	// ErrInsufficientPayment is returned by Buy when the payment does not
	// cover the integral cost at current supply.
	ErrInsufficientPayment = errors.New("payment does not cover buy cost")

	// ErrInsufficientBalance is returned by Sell when the seller holds
	// fewer tokens than the sell amount.
	ErrInsufficientBalance = errors.New("insufficient token balance")

	// ErrInsufficientReserve is returned by Sell when the reserve cannot
	// cover the refund. Indicates a broken curve invariant upstream.
	ErrInsufficientReserve = errors.New("insufficient curve reserve")

	// ErrSlopeOutOfRange is returned by AdjustSlope for slopes outside
	// [MinSlope, MaxSlope].
	ErrSlopeOutOfRange = errors.New("slope out of range")

	// ErrZeroAmount is returned for zero-amount bets, buys, and sells.
	ErrZeroAmount = errors.New("zero amount")

	// ErrMarketTerminal is returned when mutating a market that already
	// left OPEN.
	ErrMarketTerminal = errors.New("market is terminal")

	// ErrDeadlinePassed is returned for bets placed at or after the
	// market deadline.
	ErrDeadlinePassed = errors.New("market deadline passed")

	// ErrDeadlineNotReached is returned for resolve calls before the
	// market deadline.
	ErrDeadlineNotReached = errors.New("market deadline not reached")

	// ErrDeadlineTooSoon is returned by CreateMarket when the deadline is
	// not beyond the minimum lead time.
	ErrDeadlineTooSoon = errors.New("market deadline too soon")

	// ErrAlreadyClaimed is returned when a user claims from the same
	// market twice.
	ErrAlreadyClaimed = errors.New("already claimed")

	// ErrNothingToClaim is returned when the user has no stake on the
	// paying side of a terminal market.
	ErrNothingToClaim = errors.New("nothing to claim")
)
