// Package store persists viewer sessions so a table survives a server
// restart. The in-memory store is the default; PostgreSQL is used when a
// database URL is configured.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no session exists for an id.
var ErrNotFound = errors.New("session not found")

// Record is the persisted state of one session.
type Record struct {
	ID        string
	FileName  string
	Rows      [][]string // nil until a file has been loaded
	Filter    string
	Edited    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store saves and restores session records.
type Store interface {
	// Save inserts or replaces the record with r.ID.
	Save(ctx context.Context, r Record) error
	// Get returns the record for id or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)
	// Delete removes id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
	// DeleteIdle removes every record last updated before cutoff and
	// returns how many were removed.
	DeleteIdle(ctx context.Context, cutoff time.Time) (int64, error)
	// Close releases any held resources.
	Close()
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
