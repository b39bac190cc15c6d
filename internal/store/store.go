package store

import (
	"context"

	"github.com/valley-guardians/autofarm/internal/models"
)

// Store is the durable account table, keyed by wallet address. Upsert must
// update in place, never duplicate. Flush is the persist point; a failed
// flush is reported to the operator and retried at the next one, state stays
// in memory meanwhile.
type Store interface {
	Load(ctx context.Context) ([]models.Account, error)
	Upsert(ctx context.Context, acct models.Account) error
	Flush(ctx context.Context) error
	Close(ctx context.Context) error
}
