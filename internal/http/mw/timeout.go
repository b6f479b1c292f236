package mw

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"
)

// handlerPanic carries a panic value together with its stack trace across
// the timeout goroutine boundary.
type handlerPanic struct {
	value any
	stack []byte
}

// TimeoutConfig defines timeout behavior for different path patterns.
type TimeoutConfig struct {
	// Default timeout for most endpoints
	Default time.Duration
	// Extended timeout for long-running operations (oracle calls)
	Extended time.Duration
	// Patterns that get the extended timeout (e.g. "/generate", "/estimate")
	ExtendedPatterns []string
	// Patterns that skip timeout entirely (e.g. "/voice" for websockets)
	SkipPatterns []string
}

// Timeout returns a middleware that applies configurable timeouts to requests.
// Paths matching SkipPatterns run with no timeout at all; long-lived websocket
// relays live there. Paths matching ExtendedPatterns get the Extended timeout,
// everything else gets Default.
func Timeout(cfg TimeoutConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, pattern := range cfg.SkipPatterns {
				if strings.Contains(r.URL.Path, pattern) {
					next.ServeHTTP(w, r)
					return
				}
			}

			timeout := cfg.Default
			for _, pattern := range cfg.ExtendedPatterns {
				if strings.Contains(r.URL.Path, pattern) {
					timeout = cfg.Extended
					break
				}
			}

			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()

			done := make(chan struct{})
			panicChan := make(chan *handlerPanic, 1)

			go func() {
				defer func() {
					if p := recover(); p != nil {
						panicChan <- &handlerPanic{value: p, stack: debug.Stack()}
					}
				}()
				next.ServeHTTP(w, r.WithContext(ctx))
				close(done)
			}()

			select {
			case <-done:
				return
			case p := <-panicChan:
				// Re-panic so the recoverer middleware reports the original
				// panic site, not this select.
				panic(fmt.Sprintf("%v\n\nOriginal stack trace:\n%s", p.value, p.stack))
			case <-ctx.Done():
				if ctx.Err() == context.DeadlineExceeded {
					w.WriteHeader(http.StatusGatewayTimeout)
					return
				}
			}
		})
	}
}
