// Package storage persists the firing journal: one record per broadcast
// attempt, scheduled or manual. The scheduler reads it back to avoid sending
// the same day's broadcast twice across restarts, and /status lists it.
//
// Drivers: "file" (JSON lines) and "sqlite" (modernc.org/sqlite, no cgo).
package storage
