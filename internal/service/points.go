// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes the user record store
//
// Services accept and return domain types and apperror values; they never
// see an *http.Request. The handler decides which status code an error maps to.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/sakif/gitpoints/internal/apperror"
	"github.com/sakif/gitpoints/internal/github"
	"github.com/sakif/gitpoints/internal/model"
	"github.com/sakif/gitpoints/internal/repository"
	"github.com/sakif/gitpoints/internal/scan"
)

// DefaultScanTimeout bounds one scan when the caller configures none.
const DefaultScanTimeout = 2 * time.Minute

// checkInNotFoundMessage tells the user how to get a record.
const checkInNotFoundMessage = "User not found. Please log in with GitHub first."

// GitHub logins: alphanumerics separated by single hyphens, never starting or
// ending with one, at most maxUsernameLength characters.
var usernameRx = regexp.MustCompile(`^[A-Za-z0-9]+(?:-[A-Za-z0-9]+)*$`)

const maxUsernameLength = 39

// Scanner runs the two aggregation modes. *scan.Scanner implements it.
type Scanner interface {
	Full(ctx context.Context, username, token string) (model.AggregationResult, error)
	Quick(ctx context.Context, username, token string) (model.AggregationResult, error)
}

var _ Scanner = (*scan.Scanner)(nil)

// ScanReport is the outcome of one scan, ready to render.
type ScanReport struct {
	Username    string
	Mode        scan.Mode
	RepoCount   int
	CommitCount int
	Points      int
}

// PointsService owns scoring, check-ins and the leaderboard.
//
// DEPENDENCIES (injected via NewPointsService):
//   - users    repository.UserRepository → read/merge/increment user records
//   - scanner  Scanner                   → GitHub aggregation
//   - timeout  time.Duration             → upper bound for one scan
type PointsService struct {
	users   repository.UserRepository
	scanner Scanner
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func NewPointsService(users repository.UserRepository, scanner Scanner, scanTimeout time.Duration, logger *slog.Logger) *PointsService {
	if scanTimeout <= 0 {
		scanTimeout = DefaultScanTimeout
	}
	return &PointsService{
		users:   users,
		scanner: scanner,
		timeout: scanTimeout,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "points")),
	}
}

// FullScan counts every commit the user authored across their repositories,
// scores the result with the full formula and merges it into the record.
//
// The merge never touches check-in counters, the stored token or profile
// fields, and creates a bare record when the user never logged in.
// Nothing is written when the scan fails or times out.
func (s *PointsService) FullScan(ctx context.Context, username string) (*ScanReport, error) {
	report, err := s.run(ctx, scan.ModeFull, username)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	patch := model.ScanPatch{
		RepoCount:   report.RepoCount,
		CommitCount: report.CommitCount,
		Points:      report.Points,
		UpdatedAt:   now,
		FullScanAt:  &now,
	}
	if err := s.users.MergeScan(ctx, username, patch); err != nil {
		return nil, fmt.Errorf("service/points: saving scan of %s: %w", username, err)
	}

	s.logger.Info("points updated",
		slog.String("username", username),
		slog.Int("points", report.Points),
	)
	return report, nil
}

// QuickScan estimates activity from the public event feed. The result is
// returned only, never persisted.
func (s *PointsService) QuickScan(ctx context.Context, username string) (*ScanReport, error) {
	return s.run(ctx, scan.ModeQuick, username)
}

func (s *PointsService) run(ctx context.Context, mode scan.Mode, username string) (*ScanReport, error) {
	if err := validateUsername(username); err != nil {
		return nil, err
	}

	token, err := s.storedToken(ctx, username)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var result model.AggregationResult
	switch mode {
	case scan.ModeFull:
		result, err = s.scanner.Full(ctx, username, token)
	case scan.ModeQuick:
		result, err = s.scanner.Quick(ctx, username, token)
	default:
		return nil, fmt.Errorf("service/points: unknown scan mode %q", mode)
	}
	if err != nil {
		return nil, s.scanError(ctx, mode, username, err)
	}

	points, err := scan.Score(mode, result.RepoCount, result.CommitCount)
	if err != nil {
		return nil, err
	}

	return &ScanReport{
		Username:    username,
		Mode:        mode,
		RepoCount:   result.RepoCount,
		CommitCount: result.CommitCount,
		Points:      points,
	}, nil
}

// storedToken returns the user's access token, or "" when there is no
// record yet. Store failures abort the scan.
func (s *PointsService) storedToken(ctx context.Context, username string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("service/points: loading %s: %w", username, err)
	}
	return user.AccessToken, nil
}

func (s *PointsService) scanError(ctx context.Context, mode scan.Mode, username string, err error) error {
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		s.logger.Warn("scan timed out",
			slog.String("username", username),
			slog.String("mode", string(mode)),
			slog.Duration("timeout", s.timeout),
		)
		return apperror.Timeout(fmt.Sprintf("%s scan of %s", mode, username))
	case errors.Is(err, context.Canceled):
		// Client went away; the handler answers 499 without reporting.
		return err
	case github.IsNotFound(err):
		return apperror.NotFound("GitHub user", username)
	default:
		return apperror.Upstream("GitHub", err)
	}
}

// CheckIn adds one point and one daily check-in for an existing user.
// Unknown users get a not-found error and nothing is written.
func (s *PointsService) CheckIn(ctx context.Context, username string) (model.CheckInResult, error) {
	if err := validateUsername(username); err != nil {
		return model.CheckInResult{}, err
	}

	result, err := s.users.IncrementCheckIn(ctx, username, s.now().UTC())
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return model.CheckInResult{}, apperror.NotFoundf(checkInNotFoundMessage)
		}
		return model.CheckInResult{}, fmt.Errorf("service/points: check-in of %s: %w", username, err)
	}

	s.logger.Info("check-in recorded",
		slog.String("username", username),
		slog.Int("points", result.Points),
		slog.Int("dailyCheckIns", result.DailyCheckIns),
	)
	return result, nil
}

// Leaderboard returns the public projection of the top records, highest
// points first. limit <= 0 means every record.
func (s *PointsService) Leaderboard(ctx context.Context, limit int) ([]model.LeaderboardEntry, error) {
	users, err := s.users.Leaderboard(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("service/points: loading leaderboard: %w", err)
	}

	entries := make([]model.LeaderboardEntry, 0, len(users))
	for i := range users {
		entries = append(entries, users[i].Public())
	}
	return entries, nil
}

// DebugUser returns the raw record, token included. found is false when no
// record exists.
func (s *PointsService) DebugUser(ctx context.Context, username string) (user *model.UserRecord, found bool, err error) {
	user, err = s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("service/points: loading %s: %w", username, err)
	}
	return user, true, nil
}

func validateUsername(username string) error {
	if username == "" {
		return apperror.ValidationFailed("username", "username is required")
	}
	if len(username) > maxUsernameLength || !usernameRx.MatchString(username) {
		return apperror.ValidationFailed("username", fmt.Sprintf("%q is not a valid GitHub username", username))
	}
	return nil
}
