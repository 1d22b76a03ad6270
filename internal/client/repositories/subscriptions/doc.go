// Package subscriptions is the local store for subscription records.
//
// Records are keyed by id (server-assigned, or a "tmp-" prefixed temporary id
// for records created offline) and indexed by owning user and by category.
// Every write is committed before the call returns; multi-statement
// operations such as ReplaceID expect to be run inside dbx.WithTx by the
// caller.
//
// Typical usage:
//
//	repo := subscriptions.NewSQLiteRepository(db)
//	_ = repo.CreateOrUpdate(ctx, sub)
//	list, _ := repo.ListByUser(ctx, userID)
//	_ = repo.Delete(ctx, id)
package subscriptions
