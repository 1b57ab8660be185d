// Package state provides the document store, dedup ledger, lock and debug
// log implementations: JSON files, sqlite and postgres.
package state

import "github.com/user/casewatch/internal/types"

// Compile-time interface compliance checks.
var _ types.DocumentStore = (*FileStore)(nil)
var _ types.DocumentStore = (*SQLStore)(nil)
var _ types.DedupLedger = (*FileLedger)(nil)
var _ types.DedupLedger = (*SQLLedger)(nil)
var _ types.Locker = (*SemaphoreLocker)(nil)
var _ types.Locker = (*AdvisoryLocker)(nil)
var _ types.DebugLog = (*DebugLogStore)(nil)
