package mongo

import (
	"context"

	"yogatherapy/backend/internal/repository"

	"go.mongodb.org/mongo-driver/mongo"
)

// txRunner implements repository.TxRunner on top of MongoDB sessions. The
// mongo.SessionContext passed to fn is what the repositories receive, so
// every write inside fn joins the same transaction.
type txRunner struct {
	client *mongo.Client
}

// NewTxRunner creates a transaction runner bound to the given client.
// Requires the deployment to support multi-document transactions
// (replica set or mongos).
func NewTxRunner(client *mongo.Client) repository.TxRunner {
	return &txRunner{client: client}
}

func (t *txRunner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		// Expected failures (stale write, duplicate key) must abort the
		// transaction without being retried; a retry could double-count.
		if err := fn(sessCtx); err != nil {
			return nil, err
		}
		return nil, nil
	})
	return err
}
