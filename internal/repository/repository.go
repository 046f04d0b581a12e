// Package repository declares the persistence contracts the services depend on.
//
// Implementations live in sub-packages (sqlite, mongo). Services only see
// these interfaces, so the store is chosen once at startup and injected.
package repository

import (
	"context"
	"io"
	"time"

	"github.com/sakif/gitpoints/internal/model"
)

// UserRepository stores UserRecords keyed by username.
//
// Every method is a single store operation; there is no cross-request
// locking. Counters change only through MergeScan (overwrite) and
// IncrementCheckIn (atomic +1).
type UserRepository interface {
	// GetByUsername returns apperror.ErrNotFound when no record exists.
	GetByUsername(ctx context.Context, username string) (*model.UserRecord, error)

	// UpsertProfile creates the record with zero counters on first login, or
	// overwrites only the profile fields, token and lastLogin afterwards.
	UpsertProfile(ctx context.Context, profile model.LoginProfile) error

	// MergeScan writes the scan fields and leaves every other field as it is.
	// A missing record is created holding only the scan fields.
	MergeScan(ctx context.Context, username string, patch model.ScanPatch) error

	// IncrementCheckIn atomically adds 1 to points and dailyCheckIns and
	// returns the values right after this increment. A missing record yields
	// apperror.ErrNotFound and nothing is written.
	IncrementCheckIn(ctx context.Context, username string, at time.Time) (model.CheckInResult, error)

	// Leaderboard returns records ordered by points, highest first.
	// limit <= 0 returns every record.
	Leaderboard(ctx context.Context, limit int) ([]model.UserRecord, error)
}

// Store is a UserRepository that owns a connection and must be closed on
// shutdown.
type Store interface {
	UserRepository
	io.Closer
}
