package middleware

import (
	"fmt"
	"net/http"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog"
)

// RecoveryMiddleware provides panic recovery middleware.
type RecoveryMiddleware struct {
	logger zerolog.Logger
}

// NewRecoveryMiddleware creates a new recovery middleware.
func NewRecoveryMiddleware(logger zerolog.Logger) *RecoveryMiddleware {
	return &RecoveryMiddleware{
		logger: logger,
	}
}

// Handler returns an HTTP middleware that recovers from panics and responds
// with a 500.
func (m *RecoveryMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				m.handlePanic(rec, r.Method+" "+r.URL.Path)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// handlePanic logs panic information.
func (m *RecoveryMiddleware) handlePanic(r interface{}, method string) {
	stack := debug.Stack()

	m.logger.Error().
		Str("method", method).
		Interface("panic", r).
		Str("stack", string(stack)).
		Msg("Panic recovered")

	// Also print to stderr for debugging
	fmt.Fprintf(stderr, "PANIC in %s: %v\n%s\n", method, r, stack)
}

// stderr is used for panic output
var stderr = os.Stderr
