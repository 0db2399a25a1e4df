// Package client is a typed facade over a relational store whose statements
// run in a separate host process.
//
// A Database owns nothing but a store path and an Invoker. Each operation
// sends exactly one named command through the Invoker and waits for a single
// reply; there is no local state, queueing, retry or logging.
//
// Usage:
//
//	db, err := client.Open(ctx, inv, "/var/lib/app/people.db", nil)
//	if err != nil {
//		return err
//	}
//	defer db.Close(ctx)
//
//	people, err := client.Select[Person](ctx, db, "SELECT * FROM person WHERE age > ?1", 18)
//
// Calls issued without waiting on each other are not ordered. Callers that
// need ordering must sequence their calls or use Batch.
package client
