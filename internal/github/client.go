// Package github talks to the GitHub REST API on behalf of the scanner.
//
// It is built on google/go-github and adds the three things the aggregation
// pipeline needs on top of it: following paged listings to the end
// (Paginate), pausing between calls (Throttle), and a commit counter that
// treats empty or inaccessible repositories as zero instead of failing.
//
// A Client is safe for concurrent use. Per-user credentials are applied per
// call, so one Client serves every request.
package github

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v68/github"
)

// DefaultPageSize is the largest page GitHub serves for the listings we use.
const DefaultPageSize = 100

// Options configures a Client.
type Options struct {
	// HTTPClient is the transport used for every call. nil means http.DefaultClient.
	HTTPClient *http.Client
	// BaseURL points the client at GitHub Enterprise or a test server.
	// Empty means https://api.github.com/.
	BaseURL string
	// FallbackToken is used when the caller supplies no user token.
	FallbackToken string
	// PageSize is the per_page value for paged listings (1..100).
	PageSize int
	// PageThrottle is the pause between two pages of one listing.
	PageThrottle *Throttle
}

// Client wraps a go-github client with paging, throttling and the error
// policy of the commit counter.
type Client struct {
	api           *gh.Client
	fallbackToken string
	pageSize      int
	pageThrottle  *Throttle
	logger        *slog.Logger
}

// NewClient builds a Client from opts.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	api := gh.NewClient(opts.HTTPClient)

	if opts.BaseURL != "" {
		base := opts.BaseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("github: parsing base URL %q: %w", opts.BaseURL, err)
		}
		api.BaseURL = u
	}

	pageSize := opts.PageSize
	if pageSize <= 0 || pageSize > DefaultPageSize {
		pageSize = DefaultPageSize
	}

	return &Client{
		api:           api,
		fallbackToken: opts.FallbackToken,
		pageSize:      pageSize,
		pageThrottle:  opts.PageThrottle,
		logger:        logger.With(slog.String("component", "github")),
	}, nil
}

// WithPageThrottle returns a copy of c that pauses with t between pages.
// The quick scan uses this to page faster than the full scan.
func (c *Client) WithPageThrottle(t *Throttle) *Client {
	clone := *c
	clone.pageThrottle = t
	return &clone
}

// forToken returns an API client authenticated with token, the fallback
// token, or no token at all. Unauthenticated calls are valid, just more
// tightly rate limited by GitHub.
func (c *Client) forToken(token string) *gh.Client {
	if token == "" {
		token = c.fallbackToken
	}
	if token == "" {
		return c.api
	}
	return c.api.WithAuthToken(token)
}

// statusOf extracts the HTTP status GitHub answered with, or 0 when the
// failure happened before a response arrived.
func statusOf(err error) int {
	var errResp *gh.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return errResp.Response.StatusCode
	}
	return 0
}

// IsEmptyRepository reports whether err is GitHub's "Git Repository is empty"
// answer (409 Conflict on the commits endpoint).
func IsEmptyRepository(err error) bool {
	return statusOf(err) == http.StatusConflict
}

// IsNotFound reports whether GitHub answered 404, e.g. for an unknown user.
func IsNotFound(err error) bool {
	return statusOf(err) == http.StatusNotFound
}

// IsInaccessible reports whether err means the repository cannot be read
// with the current credential: not found, forbidden or legally blocked.
// Rate limit rejections are excluded; go-github reports those as
// *RateLimitError / *AbuseRateLimitError instead.
func IsInaccessible(err error) bool {
	switch statusOf(err) {
	case http.StatusNotFound, http.StatusForbidden, http.StatusUnavailableForLegalReasons:
		return true
	}
	return false
}

// IsRateLimited reports whether GitHub rejected the call for exceeding a
// primary or secondary rate limit.
func IsRateLimited(err error) bool {
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	return errors.As(err, &rateErr) || errors.As(err, &abuseErr)
}
