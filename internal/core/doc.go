// Package core holds the process-wide dataset slot and the operations served
// over it.
//
// # Dataset slot
//
// A [Service] keeps at most one [Dataset]. Uploads parse into a fresh table and
// install it with a single atomic store; readers load one snapshot per call.
// Nothing is ever mutated in place, so a reader never observes a half-built
// table and a rejected upload leaves the previous dataset untouched.
//
// # Ingest limits
//
// Parsing holds the whole file in memory, so [IngestLimiter] bounds how many
// uploads parse at once. Waiting longer than the configured wait fails with a
// Busy error that the HTTP layer reports as 503.
//
// # Upload history
//
// Every upload attempt, accepted or rejected, is appended to a [HistoryStore]:
// a [MemoryHistory] ring by default or [PostgresHistory] when a database is
// configured. Only metadata is stored. [Service.StartHistoryPruner] deletes
// events past the retention window.
//
// # Errors
//
// Operations return *dataset.Error values. [MapError] turns any error into a
// [UserMessage] with a support code.
package core
