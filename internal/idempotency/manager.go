// Package idempotency replays stored responses for repeated requests carrying the same key.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"
)

var (
	ErrRequestInProgress = errors.New("request with this key is already in progress")
	ErrKeyReused         = errors.New("key was already used for a different request")
)

// Response is a captured HTTP response.
type Response struct {
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Operation runs the guarded work. Only responses it marks storable are replayed later;
// everything else may be retried with the same key.
type Operation func(ctx context.Context) (resp *Response, storable bool, err error)

type Result struct {
	Response  *Response
	FromCache bool
}

// Manager runs an operation at most once per key. fingerprint identifies the request
// payload; a stored response is replayed only to a request with the same fingerprint.
type Manager interface {
	Execute(ctx context.Context, key, fingerprint string, fn Operation) (*Result, error)
}

type manager struct {
	store   Store
	ttl     time.Duration
	lockTTL time.Duration
	log     *slog.Logger
}

func NewManager(store Store, ttl, lockTTL time.Duration, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}

	return &manager{
		store:   store,
		ttl:     ttl,
		lockTTL: lockTTL,
		log:     log,
	}
}

func (m *manager) Execute(ctx context.Context, key, fingerprint string, fn Operation) (*Result, error) {
	if fn == nil {
		return nil, errors.New("operation fn cannot be nil")
	}

	if cached, err := m.completed(ctx, key, fingerprint); err != nil || cached != nil {
		return cached, err
	}

	locked, err := m.store.Lock(ctx, key, m.lockTTL)
	if err != nil {
		return nil, err
	}
	if !locked {
		// The holder may have finished between the first read and the lock attempt.
		if cached, err := m.completed(ctx, key, fingerprint); err != nil || cached != nil {
			return cached, err
		}
		return nil, ErrRequestInProgress
	}
	defer func() {
		if err := m.store.ReleaseLock(context.WithoutCancel(ctx), key); err != nil {
			m.log.Warn("failed to release idempotency lock", slog.String("key", key), slog.Any("error", err))
		}
	}()

	resp, storable, err := fn(ctx)
	if err != nil {
		return nil, err
	}

	if storable && resp != nil {
		record := &Record{Status: StatusCompleted, Fingerprint: fingerprint, Response: resp}
		if err := m.store.Set(ctx, key, record, m.ttl); err != nil {
			m.log.Warn("failed to store idempotent response", slog.String("key", key), slog.Any("error", err))
		}
	}

	return &Result{Response: resp}, nil
}

func (m *manager) completed(ctx context.Context, key, fingerprint string) (*Result, error) {
	record, err := m.store.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Status != StatusCompleted || record.Response == nil {
		return nil, nil
	}
	if record.Fingerprint != fingerprint {
		return nil, ErrKeyReused
	}
	return &Result{Response: record.Response, FromCache: true}, nil
}

// Fingerprint hashes a request body for comparison against the stored one.
func Fingerprint(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// RequestKey scopes a client-supplied Idempotency-Key to the caller and the route,
// so two users or two endpoints never share a stored response.
func RequestKey(userID, method, route, clientKey string) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{userID, method, route, clientKey}, "\x00")))
	return hex.EncodeToString(sum[:])
}
