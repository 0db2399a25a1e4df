// Package executor is the host-side half of the bridge. It owns the SQLite
// stores and answers the commands described in bridge/types.
//
// An Executor keeps one *sqlx.DB per store path. Every store is opened with a
// single underlying connection so that pragmas set through set_pragma, and
// the foreign key setting chosen at open time, apply to every later statement
// on that store.
//
// Two entry points are provided:
//
//   - Handle takes a command name and its JSON arguments and returns a value
//     ready to be marshalled as the reply.
//   - HandleRequest takes a marshalled types.Envelope and returns a
//     marshalled types.Reply. Operational errors are packed into the reply;
//     the returned error is only set when the reply itself cannot be built.
//
// Atomicity of batch and bulk execute is provided here, with a transaction
// that is rolled back on the first failing statement.
package executor
