package model

import "errors"

var (
	// ErrInsufficientHistory means an indicator lookback is not satisfied.
	// Recoverable: the instrument is skipped for the period.
	ErrInsufficientHistory = errors.New("insufficient price history")

	// ErrMissingPeriodData means one instrument has no bar for one date.
	// Recoverable: the instrument is skipped for the period.
	ErrMissingPeriodData = errors.New("missing period data")

	// ErrInvalidConfiguration is fatal and raised before any period runs.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrStateInvariant marks a portfolio invariant violation. It indicates a
	// logic defect and is never recovered.
	ErrStateInvariant = errors.New("state invariant violation")
)
