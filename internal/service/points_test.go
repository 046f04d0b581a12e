package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	gh "github.com/google/go-github/v68/github"

	"github.com/sakif/gitpoints/internal/apperror"
	"github.com/sakif/gitpoints/internal/model"
	"github.com/sakif/gitpoints/internal/scan"
)

// =========================================================================
// FULL SCAN TESTS
// =========================================================================

func TestFullScan_ScoresAndMerges(t *testing.T) {
	repo := newFakeUserRepo()
	repo.users["octocat"] = &model.UserRecord{Username: "octocat", AccessToken: "X", DailyCheckIns: 3, Points: 7}
	scanner := &fakeScanner{full: model.AggregationResult{RepoCount: 8, CommitCount: 12}}
	svc := newTestPointsService(repo, scanner)

	report, err := svc.FullScan(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("FullScan() error = %v", err)
	}

	if report.Points != 116 {
		t.Errorf("Points = %d, want 116", report.Points)
	}
	if report.Mode != scan.ModeFull {
		t.Errorf("Mode = %q, want %q", report.Mode, scan.ModeFull)
	}
	if scanner.lastToken != "X" {
		t.Errorf("scanner got token %q, want the stored one", scanner.lastToken)
	}

	u := repo.users["octocat"]
	if u.Points != 116 || u.RepoCount != 8 || u.CommitCount != 12 {
		t.Errorf("stored = %+v, want points=116 repos=8 commits=12", u)
	}
	if u.DailyCheckIns != 3 || u.AccessToken != "X" {
		t.Errorf("merge must keep dailyCheckIns and accessToken, got %d / %q", u.DailyCheckIns, u.AccessToken)
	}
	if u.LastFullScan == nil || !u.LastFullScan.Equal(fixedNow) {
		t.Errorf("LastFullScan = %v, want %v", u.LastFullScan, fixedNow)
	}
}

func TestFullScan_UnknownUserCreatesBareRecord(t *testing.T) {
	repo := newFakeUserRepo()
	scanner := &fakeScanner{full: model.AggregationResult{RepoCount: 1, CommitCount: 1}}
	svc := newTestPointsService(repo, scanner)

	if _, err := svc.FullScan(context.Background(), "newcomer"); err != nil {
		t.Fatalf("FullScan() error = %v", err)
	}

	if scanner.lastToken != "" {
		t.Errorf("no record means no token, got %q", scanner.lastToken)
	}
	u, ok := repo.users["newcomer"]
	if !ok {
		t.Fatal("FullScan() should create a record for an unknown user")
	}
	if u.Points != 13 || u.DisplayName != "" {
		t.Errorf("bare record = %+v", u)
	}
}

func TestFullScan_UpstreamFailureWritesNothing(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestPointsService(repo, &fakeScanner{err: errors.New("connection refused")})

	_, err := svc.FullScan(context.Background(), "octocat")
	if !errors.Is(err, apperror.ErrUpstream) {
		t.Fatalf("FullScan() error = %v, want ErrUpstream", err)
	}
	if repo.writes != 0 {
		t.Errorf("writes = %d, want 0", repo.writes)
	}
}

func TestFullScan_UnknownGitHubUser(t *testing.T) {
	notFound := &gh.ErrorResponse{
		Response: &http.Response{
			StatusCode: http.StatusNotFound,
			Request:    &http.Request{Method: http.MethodGet, URL: &url.URL{Path: "/users/ghost/repos"}},
		},
		Message: "Not Found",
	}
	svc := newTestPointsService(newFakeUserRepo(), &fakeScanner{err: notFound})

	_, err := svc.FullScan(context.Background(), "ghost")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("FullScan() error = %v, want ErrNotFound", err)
	}
}

func TestFullScan_Timeout(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewPointsService(repo, &fakeScanner{block: true}, 20*time.Millisecond, discardLogger())

	_, err := svc.FullScan(context.Background(), "octocat")
	if !errors.Is(err, apperror.ErrTimeout) {
		t.Fatalf("FullScan() error = %v, want ErrTimeout", err)
	}
	if repo.writes != 0 {
		t.Errorf("a timed out scan must not write, writes = %d", repo.writes)
	}
}

func TestFullScan_StoreFailure(t *testing.T) {
	repo := newFakeUserRepo()
	repo.mergeErr = errors.New("disk full")
	svc := newTestPointsService(repo, &fakeScanner{})

	_, err := svc.FullScan(context.Background(), "octocat")
	if err == nil || errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("FullScan() error = %v, want the store error", err)
	}
}

func TestFullScan_InvalidUsername(t *testing.T) {
	svc := newTestPointsService(newFakeUserRepo(), &fakeScanner{})

	for _, name := range []string{"", "-leading", "trailing-", "a--b", "has space", "way-too-long-for-a-github-login-0123456789"} {
		_, err := svc.FullScan(context.Background(), name)
		if !errors.Is(err, apperror.ErrValidation) {
			t.Errorf("FullScan(%q) error = %v, want ErrValidation", name, err)
		}
	}
}

func TestValidateUsername_AcceptsGitHubLogins(t *testing.T) {
	for _, name := range []string{"a", "octocat", "Octo-Cat", "a-b-c", "x1-2y", "abcdefghijklmnopqrstuvwxyz-0123456789ab"} {
		if err := validateUsername(name); err != nil {
			t.Errorf("validateUsername(%q) = %v, want nil", name, err)
		}
	}
}

// =========================================================================
// QUICK SCAN TESTS
// =========================================================================

func TestQuickScan_DoesNotPersist(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestPointsService(repo, &fakeScanner{quick: model.AggregationResult{RepoCount: 8, CommitCount: 0}})

	report, err := svc.QuickScan(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("QuickScan() error = %v", err)
	}
	if report.Points != 40 {
		t.Errorf("Points = %d, want 40", report.Points)
	}
	if report.Mode != scan.ModeQuick {
		t.Errorf("Mode = %q, want %q", report.Mode, scan.ModeQuick)
	}
	if repo.writes != 0 || len(repo.users) != 0 {
		t.Errorf("QuickScan() must not write, writes = %d", repo.writes)
	}
}

// =========================================================================
// CHECK-IN TESTS
// =========================================================================

func TestCheckIn_MissingUser(t *testing.T) {
	repo := newFakeUserRepo()
	svc := newTestPointsService(repo, &fakeScanner{})

	_, err := svc.CheckIn(context.Background(), "ghost")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("CheckIn() error = %v, want ErrNotFound", err)
	}
	if err.Error() != checkInNotFoundMessage {
		t.Errorf("CheckIn() message = %q, want %q", err.Error(), checkInNotFoundMessage)
	}
	if repo.writes != 0 || len(repo.users) != 0 {
		t.Error("CheckIn() must not create a record")
	}
}

func TestCheckIn_SequentialIncrements(t *testing.T) {
	repo := newFakeUserRepo()
	repo.users["octocat"] = &model.UserRecord{Username: "octocat", Points: 10}
	svc := newTestPointsService(repo, &fakeScanner{})

	first, err := svc.CheckIn(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("first CheckIn() error = %v", err)
	}
	second, err := svc.CheckIn(context.Background(), "octocat")
	if err != nil {
		t.Fatalf("second CheckIn() error = %v", err)
	}

	if first.Points != 11 || second.Points != 12 {
		t.Errorf("points = %d then %d, want 11 then 12", first.Points, second.Points)
	}
	if second.DailyCheckIns != 2 {
		t.Errorf("DailyCheckIns = %d, want 2", second.DailyCheckIns)
	}
	if got := repo.users["octocat"].LastCheckIn; got == nil || !got.Equal(fixedNow) {
		t.Errorf("LastCheckIn = %v, want %v", got, fixedNow)
	}
}

// =========================================================================
// LEADERBOARD & DEBUG TESTS
// =========================================================================

func TestLeaderboard_PublicProjection(t *testing.T) {
	repo := newFakeUserRepo()
	for name, points := range map[string]int{"a": 5, "b": 90, "c": 3, "d": 90} {
		repo.users[name] = &model.UserRecord{Username: name, Points: points, AccessToken: "secret-" + name}
	}
	svc := newTestPointsService(repo, &fakeScanner{})

	board, err := svc.Leaderboard(context.Background(), 0)
	if err != nil {
		t.Fatalf("Leaderboard() error = %v", err)
	}
	if len(board) != 4 {
		t.Fatalf("len = %d, want 4", len(board))
	}
	for i := 1; i < len(board); i++ {
		if board[i].Points > board[i-1].Points {
			t.Errorf("not sorted at %d: %d > %d", i, board[i].Points, board[i-1].Points)
		}
	}

	top, err := svc.Leaderboard(context.Background(), 2)
	if err != nil {
		t.Fatalf("Leaderboard(2) error = %v", err)
	}
	if len(top) != 2 || top[0].Points != 90 || top[1].Points != 90 {
		t.Errorf("Leaderboard(2) = %+v", top)
	}
}

func TestDebugUser(t *testing.T) {
	repo := newFakeUserRepo()
	repo.users["octocat"] = &model.UserRecord{Username: "octocat", AccessToken: "X"}
	svc := newTestPointsService(repo, &fakeScanner{})

	u, found, err := svc.DebugUser(context.Background(), "octocat")
	if err != nil || !found {
		t.Fatalf("DebugUser() = %v, %v, %v", u, found, err)
	}
	if u.AccessToken != "X" {
		t.Errorf("debug view should include the token, got %q", u.AccessToken)
	}

	_, found, err = svc.DebugUser(context.Background(), "ghost")
	if err != nil || found {
		t.Errorf("DebugUser(ghost) found=%v err=%v, want not found and no error", found, err)
	}
}
