package ports

import "context"

// LedgerClock provides the ledger time, expressed as a block height.
type LedgerClock interface {
	Start() error
	Stop()
	CurrentHeight(ctx context.Context) (int64, error)
}
