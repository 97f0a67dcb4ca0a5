package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"

	"github.com/getsentry/sentry-go"

	"github.com/onnwee/barnes-hut-tree/internal/apierr"
	"github.com/onnwee/barnes-hut-tree/internal/bhtree"
	"github.com/onnwee/barnes-hut-tree/internal/errorreporting"
	"github.com/onnwee/barnes-hut-tree/internal/logger"
	"github.com/onnwee/barnes-hut-tree/internal/metrics"
)

// RecoverWithSentry recovers from panics, reports them to Sentry and
// answers with a structured 500. Tree invariant violations are answered
// with TREE_CORRUPT.
func RecoverWithSentry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			err := errorreporting.PanicError(rec)

			logger.ErrorContext(r.Context(), "Panic recovered",
				"error", err,
				"stack", string(debug.Stack()),
				"method", r.Method,
				"path", r.URL.Path,
			)

			var inv *bhtree.InvariantError
			invariant := errors.As(err, &inv)
			if invariant {
				metrics.TreeInvariantFailures.Inc()
			}

			if errorreporting.IsSentryEnabled() {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(r)
				hub.Scope().SetLevel(sentry.LevelError)
				hub.Scope().SetTag("method", r.Method)
				hub.Scope().SetTag("path", r.URL.Path)
				if invariant {
					hub.Scope().SetTag("bhtree.op", inv.Op)
				}
				hub.CaptureException(err)
			}

			if invariant {
				apierr.WriteErrorWithContext(w, r, apierr.TreeCorrupt())
				return
			}
			apierr.WriteErrorWithContext(w, r, apierr.SystemInternal(""))
		}()

		next.ServeHTTP(w, r)
	})
}
