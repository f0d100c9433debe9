// Package core is the session layer between the transports (HTTP, live
// channel) and the table library.
//
// A [Service] owns one session per browser tab, keyed by a UUID. Each
// session holds at most one [sheet.Table] plus its filter term, guarded by
// its own mutex:
//
//   - [Service.Load] decodes outside the lock, bounded by a [LoadLimiter],
//     then swaps the finished table in. A failed load keeps the old table.
//   - [Service.Edit] addresses cells by stored row index so edits made in a
//     filtered view land on the right row.
//   - [Service.Export] snapshots the table under the lock and renders it
//     outside.
//
// Sessions are written through to a [store.Store] after every change and
// restored from it on first use, so a PostgreSQL-backed server keeps tables
// across restarts. [Service.StartSweeper] evicts idle sessions.
//
// Errors are mapped to user messages with support codes by [MapError]; the
// short toast texts live in notices.go.
package core
