package service

import "context"

// TransactionManager runs fn inside one database transaction. Repositories
// pick the transaction up from the context, so a payment update, its audit
// event and its outbox entry commit or roll back together.
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
