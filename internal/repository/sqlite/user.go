package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/gitpoints/internal/apperror"
	"github.com/sakif/gitpoints/internal/model"
)

// Timestamps are stored as ISO-8601 (RFC 3339) text in UTC.
const timeLayout = time.RFC3339Nano

const userColumns = `username, id, display_name, avatar_url, access_token,
	points, repo_count, commit_count, daily_check_ins,
	last_login, last_updated, last_check_in, last_full_scan`

// GetByUsername retrieves a record by its key.
// Returns apperror.ErrNotFound if no record exists.
func (db *DB) GetByUsername(ctx context.Context, username string) (*model.UserRecord, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = ?`,
		username,
	)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("user", username)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", username, err)
	}
	return u, nil
}

// UpsertProfile creates the record on first login (counters default to 0)
// or refreshes only the login-owned columns of an existing one.
func (db *DB) UpsertProfile(ctx context.Context, p model.LoginProfile) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, id, display_name, avatar_url, access_token, last_login)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET
			id           = excluded.id,
			display_name = excluded.display_name,
			avatar_url   = excluded.avatar_url,
			access_token = excluded.access_token,
			last_login   = excluded.last_login`,
		p.Username,
		p.ID,
		p.DisplayName,
		p.AvatarURL,
		p.AccessToken,
		formatTime(&p.LoginAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: upserting profile of %s: %w", p.Username, err)
	}
	return nil
}

// MergeScan writes a scan result. Only the scan columns appear in the
// DO UPDATE clause, so check-in counters, token and profile survive.
// last_full_scan keeps its old value when the patch carries none.
func (db *DB) MergeScan(ctx context.Context, username string, patch model.ScanPatch) error {
	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (username, repo_count, commit_count, points, last_updated, last_full_scan)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(username) DO UPDATE SET
			repo_count     = excluded.repo_count,
			commit_count   = excluded.commit_count,
			points         = excluded.points,
			last_updated   = excluded.last_updated,
			last_full_scan = COALESCE(excluded.last_full_scan, users.last_full_scan)`,
		username,
		patch.RepoCount,
		patch.CommitCount,
		patch.Points,
		formatTime(&patch.UpdatedAt),
		formatTime(patch.FullScanAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: merging scan of %s: %w", username, err)
	}
	return nil
}

// IncrementCheckIn bumps points and daily_check_ins in one UPDATE statement,
// so concurrent check-ins never lose an increment. RETURNING hands back the
// values this statement produced, not a later or earlier snapshot.
func (db *DB) IncrementCheckIn(ctx context.Context, username string, at time.Time) (model.CheckInResult, error) {
	var res model.CheckInResult
	err := db.conn.QueryRowContext(ctx,
		`UPDATE users
		 SET points = points + 1,
			 daily_check_ins = daily_check_ins + 1,
			 last_check_in = ?
		 WHERE username = ?
		 RETURNING points, daily_check_ins`,
		formatTime(&at),
		username,
	).Scan(&res.Points, &res.DailyCheckIns)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CheckInResult{}, apperror.NotFound("user", username)
		}
		return model.CheckInResult{}, fmt.Errorf("sqlite: checking in %s: %w", username, err)
	}
	return res, nil
}

// Leaderboard returns records by points, highest first. Ties are ordered by
// username so pages are stable.
func (db *DB) Leaderboard(ctx context.Context, limit int) ([]model.UserRecord, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 ORDER BY points DESC, username ASC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying leaderboard: %w", err)
	}
	defer rows.Close()

	users := []model.UserRecord{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning leaderboard row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating leaderboard: %w", err)
	}
	return users, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.UserRecord, error) {
	var (
		u                                         model.UserRecord
		lastLogin, lastUpdated, lastCheckIn, full sql.NullString
	)
	err := row.Scan(
		&u.Username,
		&u.ID,
		&u.DisplayName,
		&u.AvatarURL,
		&u.AccessToken,
		&u.Points,
		&u.RepoCount,
		&u.CommitCount,
		&u.DailyCheckIns,
		&lastLogin,
		&lastUpdated,
		&lastCheckIn,
		&full,
	)
	if err != nil {
		return nil, err
	}

	for _, f := range []struct {
		src sql.NullString
		dst **time.Time
	}{
		{lastLogin, &u.LastLogin},
		{lastUpdated, &u.LastUpdated},
		{lastCheckIn, &u.LastCheckIn},
		{full, &u.LastFullScan},
	} {
		t, err := parseTime(f.src)
		if err != nil {
			return nil, err
		}
		*f.dst = t
	}
	return &u, nil
}

// formatTime turns a timestamp into the stored text form; nil stays NULL.
func formatTime(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("parsing timestamp %q: %w", s.String, err)
	}
	return &t, nil
}
