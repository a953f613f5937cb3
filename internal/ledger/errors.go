package ledger

import "errors"

var (
	ErrInvalidPredecessor = errors.New("ledger: invalid predecessor")
	ErrInvalidCount       = errors.New("ledger: invalid record count")

	ErrBadGenesis     = errors.New("ledger: malformed genesis record")
	ErrIndexGap       = errors.New("ledger: gap or reordering detected")
	ErrBrokenLink     = errors.New("ledger: previous digest does not match predecessor")
	ErrDigestMismatch = errors.New("ledger: stored digest does not match contents")
)
