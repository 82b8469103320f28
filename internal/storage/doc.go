package storage

// Package storage is the single shared record store of the dispatcher.
//
// It persists listings, channels, templates, agents and orders in SQLite and
// owns the dispatch lock primitives (TryAcquireSendLock/ReleaseSendLock).
// All mutation is transactional read-modify-write with explicit commit; no
// component caches listing state across scheduler ticks.
