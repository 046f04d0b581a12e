package github

import (
	"context"
	"fmt"
	"log/slog"

	gh "github.com/google/go-github/v68/github"

	"github.com/sakif/gitpoints/internal/model"
)

// pushEventType is the GitHub event type emitted for every push.
const pushEventType = "PushEvent"

// ListRepositories returns every repository owned by username, following
// pagination to the end. Any failure is returned to the caller: without a
// complete listing there is no meaningful repository count.
func (c *Client) ListRepositories(ctx context.Context, username, token string) ([]model.RepositoryDescriptor, error) {
	api := c.forToken(token)

	repos, err := Paginate(ctx, c.pageThrottle, func(ctx context.Context, page int) ([]*gh.Repository, int, error) {
		opts := &gh.RepositoryListByUserOptions{
			Type:        "owner",
			Sort:        "full_name",
			ListOptions: gh.ListOptions{Page: page, PerPage: c.pageSize},
		}
		repos, resp, err := api.Repositories.ListByUser(ctx, username, opts)
		if err != nil {
			return nil, 0, err
		}
		return repos, resp.NextPage, nil
	})
	if err != nil {
		return nil, fmt.Errorf("github: listing repositories of %s: %w", username, err)
	}

	descriptors := make([]model.RepositoryDescriptor, 0, len(repos))
	for _, r := range repos {
		owner := r.GetOwner().GetLogin()
		if owner == "" {
			owner = username
		}
		descriptors = append(descriptors, model.RepositoryDescriptor{
			Owner: owner,
			Name:  r.GetName(),
		})
	}

	c.logger.Debug("listed repositories",
		slog.String("username", username),
		slog.Int("count", len(descriptors)),
	)
	return descriptors, nil
}

// CountCommits returns how many commits author has in repo.
//
// ERROR POLICY:
// A single unreadable repository must never sink a whole scan, so every
// upstream failure counts as 0 and is only logged:
//   - empty repository (409)           → 0, debug log
//   - not found / forbidden (404, 403) → 0, warn log
//   - rate limited or transport error  → 0, warn log
//
// The only error returned is the caller's context ending, so the scan stops
// instead of counting every remaining repository as zero.
func (c *Client) CountCommits(ctx context.Context, repo model.RepositoryDescriptor, author, token string) (int, error) {
	api := c.forToken(token)

	commits, err := Paginate(ctx, c.pageThrottle, func(ctx context.Context, page int) ([]*gh.RepositoryCommit, int, error) {
		opts := &gh.CommitsListOptions{
			Author:      author,
			ListOptions: gh.ListOptions{Page: page, PerPage: c.pageSize},
		}
		commits, resp, err := api.Repositories.ListCommits(ctx, repo.Owner, repo.Name, opts)
		if err != nil {
			return nil, 0, err
		}
		return commits, resp.NextPage, nil
	})
	if err == nil {
		return len(commits), nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}

	attrs := []any{
		slog.String("repo", repo.FullName()),
		slog.String("author", author),
		slog.String("error", err.Error()),
	}
	switch {
	case IsEmptyRepository(err):
		c.logger.Debug("repository is empty, counting 0 commits", attrs...)
	case IsInaccessible(err):
		c.logger.Warn("repository is not accessible, counting 0 commits", attrs...)
	case IsRateLimited(err):
		c.logger.Warn("rate limited while counting commits, counting 0", attrs...)
	default:
		c.logger.Warn("counting commits failed, counting 0", attrs...)
	}
	return 0, nil
}

// CountPushEvents counts push events in the public event feed of username,
// reading at most maxPages pages. GitHub itself only keeps a bounded window of
// recent events, so the result is an estimate of recent activity, not a
// commit total.
func (c *Client) CountPushEvents(ctx context.Context, username, token string, maxPages int) (int, error) {
	api := c.forToken(token)

	events, err := PaginateLimit(ctx, c.pageThrottle, maxPages, func(ctx context.Context, page int) ([]*gh.Event, int, error) {
		opts := &gh.ListOptions{Page: page, PerPage: c.pageSize}
		events, resp, err := api.Activity.ListEventsPerformedByUser(ctx, username, true, opts)
		if err != nil {
			return nil, 0, err
		}
		return events, resp.NextPage, nil
	})
	if err != nil {
		return 0, fmt.Errorf("github: listing public events of %s: %w", username, err)
	}

	pushes := 0
	for _, ev := range events {
		if ev.GetType() == pushEventType {
			pushes++
		}
	}
	return pushes, nil
}
