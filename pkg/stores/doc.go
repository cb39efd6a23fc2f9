// Package stores keeps the session journal: one row per interactive session
// and one row per operation the dispatcher executed in it.
//
// SQLiteStore is the pure-Go SQLite implementation, with the schema managed
// by golang-migrate from embedded migrations. Journal adapts a Store to
// engine.EventPublisher so the dispatcher writes the journal as it runs.
package stores
