package service

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/sakif/gitpoints/internal/apperror"
	"github.com/sakif/gitpoints/internal/model"
)

// =========================================================================
// FAKES AND HELPERS
// =========================================================================

// fakeUserRepo is an in-memory repository.UserRepository with the same merge
// semantics as the real stores.
type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*model.UserRecord
	writes int
	// set to a non-nil error to simulate a store failure
	getErr   error
	mergeErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.UserRecord)}
}

func (f *fakeUserRepo) GetByUsername(_ context.Context, username string) (*model.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	u, ok := f.users[username]
	if !ok {
		return nil, apperror.NotFound("user", username)
	}
	copied := *u
	return &copied, nil
}

func (f *fakeUserRepo) UpsertProfile(_ context.Context, p model.LoginProfile) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	u, ok := f.users[p.Username]
	if !ok {
		u = &model.UserRecord{Username: p.Username}
		f.users[p.Username] = u
	}
	at := p.LoginAt
	u.ID, u.DisplayName, u.AvatarURL, u.AccessToken, u.LastLogin = p.ID, p.DisplayName, p.AvatarURL, p.AccessToken, &at
	return nil
}

func (f *fakeUserRepo) MergeScan(_ context.Context, username string, patch model.ScanPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeErr != nil {
		return f.mergeErr
	}
	f.writes++
	u, ok := f.users[username]
	if !ok {
		u = &model.UserRecord{Username: username}
		f.users[username] = u
	}
	updated := patch.UpdatedAt
	u.RepoCount, u.CommitCount, u.Points, u.LastUpdated = patch.RepoCount, patch.CommitCount, patch.Points, &updated
	if patch.FullScanAt != nil {
		u.LastFullScan = patch.FullScanAt
	}
	return nil
}

func (f *fakeUserRepo) IncrementCheckIn(_ context.Context, username string, at time.Time) (model.CheckInResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[username]
	if !ok {
		return model.CheckInResult{}, apperror.NotFound("user", username)
	}
	f.writes++
	u.Points++
	u.DailyCheckIns++
	u.LastCheckIn = &at
	return model.CheckInResult{Points: u.Points, DailyCheckIns: u.DailyCheckIns}, nil
}

func (f *fakeUserRepo) Leaderboard(_ context.Context, limit int) ([]model.UserRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.UserRecord, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].Username < out[j].Username
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

// fakeScanner returns canned results and records the token it was given.
type fakeScanner struct {
	full      model.AggregationResult
	quick     model.AggregationResult
	err       error
	block     bool // wait for ctx to end instead of returning
	lastToken string
}

func (f *fakeScanner) Full(ctx context.Context, _ string, token string) (model.AggregationResult, error) {
	return f.answer(ctx, token, f.full)
}

func (f *fakeScanner) Quick(ctx context.Context, _ string, token string) (model.AggregationResult, error) {
	return f.answer(ctx, token, f.quick)
}

func (f *fakeScanner) answer(ctx context.Context, token string, r model.AggregationResult) (model.AggregationResult, error) {
	f.lastToken = token
	if f.block {
		<-ctx.Done()
		return model.AggregationResult{}, ctx.Err()
	}
	if f.err != nil {
		return model.AggregationResult{}, f.err
	}
	return r, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var fixedNow = time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

func newTestPointsService(repo *fakeUserRepo, scanner *fakeScanner) *PointsService {
	svc := NewPointsService(repo, scanner, time.Second, discardLogger())
	svc.now = func() time.Time { return fixedNow }
	return svc
}
