// Package security implements the keyed store of per-user security records.
//
// Callers work through Store.WithTx: every transaction sees a freshly read
// state, transactions are serialized, and the changes made through Put are
// durably written before WithTx returns. If fn returns an error nothing is
// written, including records that GetOrCreate created on the fly.
package security

import (
	"context"

	"github.com/dmitrijs2005/secledger/internal/server/models"
)

// Tx is the view of the store available inside a transaction.
type Tx interface {
	// GetOrCreate returns a copy of the record for username, creating an
	// empty one when the user has never been seen.
	GetOrCreate(ctx context.Context, username string) (*models.UserSecurity, error)
	// Put stages rec as the new state of username.
	Put(ctx context.Context, username string, rec *models.UserSecurity) error
}

type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close() error
}
