// Package backend builds the storage and mirror adapters selected by
// configuration.
package backend

import (
	"context"

	"conti/internal/sheets"
	gsheet "conti/internal/sheets/google"
	"conti/internal/storage"
)

// CleanupFunc releases the resources of a backend.
type CleanupFunc func() error

// Result holds the created store and its cleanup function
type Result struct {
	Store   storage.Store
	Cleanup CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*Result, error)
	// CreateMirror returns the spreadsheet mirror, or nil when none is configured.
	CreateMirror(ctx context.Context, config Config) (sheets.LedgerWriter, error)
}

type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Ledger mirror; an empty spreadsheet ID disables it
	Sheets gsheet.Config
}

type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}
