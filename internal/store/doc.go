// Package store provides the SQLite row store for generated datasets.
//
// Every run appends one row to runs and its records to the five stream
// tables, keyed by run id. A run is written in a single transaction, so a
// failed write leaves no partial dataset behind.
//
// # Ordering
//
//   - Runs are ordered by seq, never by timestamp.
//   - Stream rows are read back in insertion order (ORDER BY rowid), which
//     is generation order. LoadDataset relies on this to reproduce the
//     dataset fingerprint from stored rows.
//
// # Value encoding
//
//   - Timestamps are TEXT in record.TimeLayout.
//   - Confidences are TEXT decimals, never REAL.
//   - Booleans are INTEGER 0/1; a null delay_reason is SQL NULL.
//
// # Connections
//
// Open passes the pragmas as go-sqlite3 DSN parameters so every connection
// gets them: WAL journaling, synchronous=NORMAL, a 5s busy timeout and
// foreign key enforcement. Schema upgrades are tracked in user_version.
package store
