// Package scan turns a GitHub account's public activity into a repository
// count and a commit count, and weights them into points.
//
// FULL SCAN:
//
//	list every repository (paged) → count the user's commits in each one,
//	one repository at a time with a pause in between → sum
//
// The per-repository calls are sequential on purpose: GitHub's rate limit,
// not local CPU, bounds how fast a scan can go, and a fixed pause gives
// predictable backpressure. A scan's latency therefore grows with the
// number of repositories; callers bound it with a context deadline.
//
// QUICK SCAN:
//
//	list every repository (paged, shorter pause) → count push events in the
//	bounded public event feed
//
// The quick scan never touches the commit endpoints. It is a cheaper,
// less accurate product chosen explicitly by the caller, not a fallback.
package scan

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/gitpoints/internal/github"
	"github.com/sakif/gitpoints/internal/model"
)

// Source is the slice of the GitHub API a scan needs.
// *github.Client implements it.
type Source interface {
	ListRepositories(ctx context.Context, username, token string) ([]model.RepositoryDescriptor, error)
	CountCommits(ctx context.Context, repo model.RepositoryDescriptor, author, token string) (int, error)
	CountPushEvents(ctx context.Context, username, token string, maxPages int) (int, error)
}

var _ Source = (*github.Client)(nil)

// Config tunes the pacing of the two scan modes.
type Config struct {
	// RepoDelay is the pause before each per-repository commit count.
	RepoDelay time.Duration
	// QuickEventPages bounds how many pages of the event feed a quick scan reads.
	QuickEventPages int
}

// Scanner runs aggregations. It holds no per-request state, so one Scanner
// serves every request concurrently.
type Scanner struct {
	full         Source
	quick        Source
	repoThrottle *github.Throttle
	eventPages   int
	logger       *slog.Logger
}

// NewScanner wires a Scanner. full and quick are usually the same GitHub
// client configured with different page pauses.
func NewScanner(full, quick Source, cfg Config, logger *slog.Logger) *Scanner {
	pages := cfg.QuickEventPages
	if pages <= 0 {
		pages = 3
	}
	return &Scanner{
		full:         full,
		quick:        quick,
		repoThrottle: github.NewThrottle(cfg.RepoDelay),
		eventPages:   pages,
		logger:       logger.With(slog.String("component", "scanner")),
	}
}

// Full lists every repository of username and sums the commits username
// authored in each. Repositories that cannot be counted contribute 0; a
// failed repository listing fails the whole scan.
func (s *Scanner) Full(ctx context.Context, username, token string) (model.AggregationResult, error) {
	start := time.Now()

	repos, err := s.full.ListRepositories(ctx, username, token)
	if err != nil {
		return model.AggregationResult{}, fmt.Errorf("scan: full scan of %s: %w", username, err)
	}
	s.logger.Debug("counting commits",
		slog.String("username", username),
		slog.Int("repoCount", len(repos)),
		slog.Duration("repoDelay", s.repoThrottle.Delay()),
	)

	commits := 0
	for _, repo := range repos {
		if err := s.repoThrottle.Wait(ctx); err != nil {
			return model.AggregationResult{}, fmt.Errorf("scan: full scan of %s: %w", username, err)
		}

		n, err := s.full.CountCommits(ctx, repo, username, token)
		if err != nil {
			return model.AggregationResult{}, fmt.Errorf("scan: counting commits in %s: %w", repo.FullName(), err)
		}
		commits += n
	}

	result := model.AggregationResult{RepoCount: len(repos), CommitCount: commits}
	s.logger.Info("full scan finished",
		slog.String("username", username),
		slog.Int("repoCount", result.RepoCount),
		slog.Int("commitCount", result.CommitCount),
		slog.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// Quick lists the repositories of username and estimates the commit count
// from push events in the recent public event feed.
func (s *Scanner) Quick(ctx context.Context, username, token string) (model.AggregationResult, error) {
	repos, err := s.quick.ListRepositories(ctx, username, token)
	if err != nil {
		return model.AggregationResult{}, fmt.Errorf("scan: quick scan of %s: %w", username, err)
	}

	pushes, err := s.quick.CountPushEvents(ctx, username, token, s.eventPages)
	if err != nil {
		return model.AggregationResult{}, fmt.Errorf("scan: quick scan of %s: %w", username, err)
	}

	result := model.AggregationResult{RepoCount: len(repos), CommitCount: pushes}
	s.logger.Debug("quick scan finished",
		slog.String("username", username),
		slog.Int("repoCount", result.RepoCount),
		slog.Int("pushEvents", result.CommitCount),
	)
	return result, nil
}
