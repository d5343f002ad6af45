package transport

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pitabwire/signoff/internal/idempotency"
	"github.com/pitabwire/signoff/internal/observability"
	"github.com/pitabwire/signoff/model"
)

// Idempotency headers.
const (
	HeaderIdempotencyKey   = "Idempotency-Key"
	HeaderIdempotentReplay = "Idempotent-Replayed"
)

// Idempotency replays the stored response for a POST carrying an
// Idempotency-Key that was already served for the same path and body. Reusing
// a key with a different body is a 409. Server errors are not cached. A nil
// store disables the middleware.
func Idempotency(store idempotency.Store, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
			if r.Method != http.MethodPost || clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
			if err != nil {
				respondError(w, r, model.NewBadRequestError("failed to read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			key := idempotency.FormatKey(r.URL.Path, clientKey)
			logger := observability.RequestLogger(r.Context(), zap.L())

			cached, found, err := store.Check(r.Context(), key, hash)
			var env *model.ErrorEnvelope
			switch {
			case errors.As(err, &env):
				respondError(w, r, err)
				return
			case err != nil:
				logger.Warn("idempotency lookup failed, serving uncached", zap.Error(err))
			case found:
				w.Header().Set("Content-Type", cached.ContentType)
				w.Header().Set(HeaderIdempotentReplay, "true")
				w.WriteHeader(cached.Status)
				w.Write(cached.Body)
				return
			}

			cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(cw, r)

			if cw.status >= http.StatusInternalServerError {
				return
			}
			resp := idempotency.Response{
				Status:      cw.status,
				ContentType: cw.Header().Get("Content-Type"),
				Body:        cw.buf.Bytes(),
			}
			if err := store.Save(r.Context(), key, hash, resp, ttl); err != nil {
				logger.Warn("idempotency save failed", zap.Error(err))
			}
		})
	}
}

// captureWriter tees the response body into a buffer.
type captureWriter struct {
	http.ResponseWriter
	status  int
	written bool
	buf     bytes.Buffer
}

func (w *captureWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.written = true
	w.buf.Write(b)
	return w.ResponseWriter.Write(b)
}
