// Package model defines the data structures used throughout the application.
package model

import "time"

// UserRecord is the persisted leaderboard entry for one GitHub account.
//
// The username is the canonical key: every lookup, merge and increment is
// addressed by it. A record created by a scan merge before the user ever
// logged in carries only the scan fields; profile fields stay empty until the
// first login fills them in.
//
// Counters (Points, RepoCount, CommitCount, DailyCheckIns) are plain ints and
// default to 0 in every store, so they are always present once a record exists.
type UserRecord struct {
	ID          string `json:"id"          bson:"id"`          // OAuth provider's user ID
	Username    string `json:"username"    bson:"_id"`         // GitHub login, unique key
	DisplayName string `json:"displayName" bson:"displayName"` // overwritten on each login
	AvatarURL   string `json:"avatarUrl"   bson:"avatarUrl"`   // overwritten on each login
	AccessToken string `json:"accessToken" bson:"accessToken"` // optional, raises GitHub rate limits

	Points        int `json:"points"        bson:"points"`
	RepoCount     int `json:"repoCount"     bson:"repoCount"`
	CommitCount   int `json:"commitCount"   bson:"commitCount"`
	DailyCheckIns int `json:"dailyCheckIns" bson:"dailyCheckIns"`

	LastLogin    *time.Time `json:"lastLogin,omitempty"    bson:"lastLogin,omitempty"`
	LastUpdated  *time.Time `json:"lastUpdated,omitempty"  bson:"lastUpdated,omitempty"`
	LastCheckIn  *time.Time `json:"lastCheckIn,omitempty"  bson:"lastCheckIn,omitempty"`
	LastFullScan *time.Time `json:"lastFullScan,omitempty" bson:"lastFullScan,omitempty"`
}

// Public projects the record to the fields that are safe to show to anyone.
// The access token never leaves the server through this path.
func (u *UserRecord) Public() LeaderboardEntry {
	return LeaderboardEntry{
		Username:      u.Username,
		DisplayName:   u.DisplayName,
		AvatarURL:     u.AvatarURL,
		Points:        u.Points,
		RepoCount:     u.RepoCount,
		CommitCount:   u.CommitCount,
		DailyCheckIns: u.DailyCheckIns,
		LastUpdated:   u.LastUpdated,
	}
}

// LeaderboardEntry is the public projection of a UserRecord.
type LeaderboardEntry struct {
	Username      string     `json:"username"`
	DisplayName   string     `json:"displayName"`
	AvatarURL     string     `json:"avatarUrl"`
	Points        int        `json:"points"`
	RepoCount     int        `json:"repoCount"`
	CommitCount   int        `json:"commitCount"`
	DailyCheckIns int        `json:"dailyCheckIns"`
	LastUpdated   *time.Time `json:"lastUpdated,omitempty"`
}

// LoginProfile is what a successful OAuth login contributes to a record.
// Only these fields (plus LastLogin) are touched by an upsert on login.
type LoginProfile struct {
	ID          string
	Username    string
	DisplayName string
	AvatarURL   string
	AccessToken string
	LoginAt     time.Time
}

// ScanPatch is the merge payload written after a scan. Fields that are not
// part of it (check-in counters, token, profile) are left untouched.
type ScanPatch struct {
	RepoCount   int
	CommitCount int
	Points      int
	UpdatedAt   time.Time
	// FullScanAt is set only by full scans; nil keeps the previous lastFullScan.
	FullScanAt *time.Time
}

// CheckInResult is the state immediately after one check-in increment.
type CheckInResult struct {
	Points        int
	DailyCheckIns int
}
