// Package reporting sends unexpected server errors to Sentry.
//
// Without a DSN every function here degrades to logging only, so local
// development needs no Sentry project.
package reporting

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/getsentry/sentry-go"
	sentryhttp "github.com/getsentry/sentry-go/http"
)

var tokenRx = regexp.MustCompile(`\b(gh[pousr]_[A-Za-z0-9]{20,}|github_pat_[A-Za-z0-9_]{20,})\b`)
var hostRx = regexp.MustCompile(`\d{1,3}(\.\d{1,3}){3}:\d+`)

// sanitizeError keeps credentials out of Sentry and collapses connection
// addresses so identical failures share a fingerprint.
func sanitizeError(err string) string {
	err = tokenRx.ReplaceAllString(err, "<token>")
	err = hostRx.ReplaceAllString(err, "<host>")
	return err
}

// Middleware attaches a Sentry hub to every request context.
type Middleware func(http.Handler) http.Handler

// Init configures the global Sentry client. With an empty DSN it returns a
// passthrough middleware and a no-op flush.
func Init(dsn, environment string) (Middleware, func(), error) {
	if dsn == "" {
		return func(next http.Handler) http.Handler { return next }, func() {}, nil
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		EnableTracing:    true,
		TracesSampleRate: 1.0 / 100.0,
	})
	if err != nil {
		return nil, nil, err
	}

	handler := sentryhttp.New(sentryhttp.Options{Repanic: true})
	flush := func() {
		sentry.Flush(5 * time.Second)
	}
	return handler.Handle, flush, nil
}

// Report logs err and captures it on the request's Sentry hub, if any.
func Report(ctx context.Context, logger *slog.Logger, err error, extras map[string]string) {
	logger.Error("unexpected error",
		slog.String("error", err.Error()),
		slog.Any("extras", extras),
	)

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		scope.SetFingerprint([]string{"{{ default }}", sanitizeError(err.Error())})
		hub.CaptureException(err)
	})
}
