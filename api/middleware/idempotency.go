package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Thangvh29/WEB-tmdt-sub001/api/responses"
	pkgerrors "github.com/Thangvh29/WEB-tmdt-sub001/pkg/errors"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	pkgredis "github.com/Thangvh29/WEB-tmdt-sub001/pkg/redis"
)

const (
	idempotencyHeader      = "Idempotency-Key"
	replayedHeader         = "Idempotent-Replayed"
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	inFlightTTL            = 2 * time.Minute
	maxIdempotencyKeyBytes = 255
)

type idempotencyRule struct {
	ttl      time.Duration
	required bool
}

// idempotencyRules is keyed by "METHOD pattern".
var idempotencyRules = map[string]idempotencyRule{
	http.MethodPost + " /api/v1/orders":                    {ttl: criticalIdempotencyTTL, required: true},
	http.MethodPatch + " /api/v1/orders/{orderId}/status":  {ttl: defaultIdempotencyTTL},
	http.MethodPatch + " /api/v1/orders/{orderId}/payment": {ttl: defaultIdempotencyTTL},
}

func matchRule(method, pattern string) (idempotencyRule, bool) {
	if len(pattern) > 1 {
		pattern = strings.TrimSuffix(pattern, "/")
	}
	rule, ok := idempotencyRules[method+" "+pattern]
	return rule, ok
}

// storedResponse is what lands in redis under the scoped key. While the
// first request runs only Fingerprint and Pending are set.
type storedResponse struct {
	Fingerprint string `json:"fingerprint"`
	Pending     bool   `json:"pending,omitempty"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

var (
	errKeyMissing  = pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required")
	errKeyTooLong  = pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header too long")
	errInProgress  = pkgerrors.New(pkgerrors.CodeIdempotency, "idempotent request is still in progress")
	errBodyChanged = pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
)

// Idempotency replays the stored response for a repeated Idempotency-Key.
// Keys are scoped to the caller, method and path. The first request claims
// the key with a pending marker so a concurrent duplicate gets a conflict
// instead of running twice. Server errors drop the marker and the client may
// retry with the same key.
//
// Mount it after routing (chi With) so the route pattern is known.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rule, ok := matchRule(r.Method, routePattern(r))
			if !ok || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			switch {
			case clientKey == "" && rule.required:
				responses.WriteError(ctx, logg, w, errKeyMissing)
				return
			case clientKey == "":
				next.ServeHTTP(w, r)
				return
			case len(clientKey) > maxIdempotencyKeyBytes:
				responses.WriteError(ctx, logg, w, errKeyTooLong)
				return
			}

			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			slot := idempotencySlot{
				store:       store,
				logg:        logg,
				key:         store.IdempotencyKey(requestScope(r), clientKey),
				fingerprint: hex.EncodeToString(sum[:]),
			}

			fresh, err := slot.claim(ctx)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
				return
			}
			if !fresh {
				slot.replay(ctx, w)
				return
			}

			capture := &capturingWriter{ResponseWriter: w}
			next.ServeHTTP(capture, r)
			slot.finish(ctx, capture, rule.ttl)
		})
	}
}

type idempotencySlot struct {
	store       pkgredis.IdempotencyStore
	logg        *logger.Logger
	key         string
	fingerprint string
}

func (s idempotencySlot) claim(ctx context.Context) (bool, error) {
	marker, err := json.Marshal(storedResponse{Fingerprint: s.fingerprint, Pending: true})
	if err != nil {
		return false, err
	}
	return s.store.SetNX(ctx, s.key, string(marker), inFlightTTL)
}

func (s idempotencySlot) replay(ctx context.Context, w http.ResponseWriter) {
	raw, err := s.store.Get(ctx, s.key)
	switch {
	case errors.Is(err, pkgredis.ErrNotFound) || (err == nil && raw == ""):
		// the first request released its marker between our claim and this read
		responses.WriteError(ctx, s.logg, w, errInProgress)
		return
	case err != nil:
		responses.WriteError(ctx, s.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
		return
	}

	var stored storedResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		responses.WriteError(ctx, s.logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record"))
		return
	}
	if stored.Fingerprint != s.fingerprint {
		responses.WriteError(ctx, s.logg, w, errBodyChanged)
		return
	}
	if stored.Pending {
		responses.WriteError(ctx, s.logg, w, errInProgress)
		return
	}

	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set(replayedHeader, "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

// finish replaces the pending marker with the captured response, or drops
// it when the handler failed with a server error.
func (s idempotencySlot) finish(ctx context.Context, capture *capturingWriter, ttl time.Duration) {
	status := capture.statusCode()
	if status >= http.StatusInternalServerError {
		s.warn(ctx, "release idempotency marker", s.store.Del(ctx, s.key))
		return
	}
	payload, err := json.Marshal(storedResponse{
		Fingerprint: s.fingerprint,
		Status:      status,
		ContentType: capture.Header().Get("Content-Type"),
		Body:        capture.body.Bytes(),
	})
	if err != nil {
		s.warn(ctx, "encode idempotency record", err)
		return
	}
	s.warn(ctx, "persist idempotency record", s.store.Set(ctx, s.key, string(payload), ttl))
}

func (s idempotencySlot) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil || err == nil {
		return
	}
	s.logg.Error(s.logg.WithField(ctx, "idempotency_key", s.key), msg, err)
}

func requestScope(r *http.Request) string {
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
}

// routePattern prefers the matched chi pattern so path params collapse.
func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

type capturingWriter struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *capturingWriter) statusCode() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *capturingWriter) WriteHeader(code int) {
	if c.status == 0 {
		c.status = code
	}
	c.ResponseWriter.WriteHeader(code)
}

func (c *capturingWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}
