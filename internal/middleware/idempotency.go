package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/Proton-105/profile-service/internal/errors"
	"github.com/Proton-105/profile-service/internal/idempotency"
)

const (
	IdempotencyKeyHeader   = "Idempotency-Key"
	IdempotentReplayHeader = "Idempotent-Replayed"

	maxIdempotencyKeyLength = 255
)

// Idempotency replays the stored response when a mutating request repeats its Idempotency-Key.
// Only 2xx responses are stored; requests without the header pass through untouched.
func Idempotency(manager idempotency.Manager, log *slog.Logger) gin.HandlerFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(c *gin.Context) {
		if manager == nil || !mutating(c.Request.Method) {
			c.Next()
			return
		}

		clientKey := c.GetHeader(IdempotencyKeyHeader)
		if clientKey == "" {
			c.Next()
			return
		}
		if len(clientKey) > maxIdempotencyKeyLength {
			abort(c, apperrors.NewInvalidArgumentError("Idempotency-Key is too long"))
			return
		}

		body, err := c.GetRawData()
		if err != nil {
			abort(c, apperrors.NewInvalidArgumentError("Request body could not be read"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		userID, _ := UserID(c)
		key := idempotency.RequestKey(userID, c.Request.Method, c.FullPath(), clientKey)

		executed := false
		result, err := manager.Execute(c.Request.Context(), key, idempotency.Fingerprint(body), func(context.Context) (*idempotency.Response, bool, error) {
			executed = true

			writer := &captureWriter{ResponseWriter: c.Writer}
			c.Writer = writer
			c.Next()
			c.Writer = writer.ResponseWriter

			status := writer.Status()
			return &idempotency.Response{
				StatusCode:  status,
				ContentType: writer.Header().Get("Content-Type"),
				Body:        writer.body.Bytes(),
			}, status >= http.StatusOK && status < http.StatusMultipleChoices, nil
		})

		switch {
		case errors.Is(err, idempotency.ErrRequestInProgress):
			abort(c, apperrors.NewConflictError("A request with this Idempotency-Key is already in progress"))
		case errors.Is(err, idempotency.ErrKeyReused):
			abort(c, apperrors.NewConflictError("Idempotency-Key was already used with a different request body"))
		case err != nil:
			log.Warn("idempotency store unavailable", slog.String("key", key), slog.Any("error", err))
			if !executed {
				c.Next()
			}
		case result != nil && result.FromCache:
			c.Header(IdempotentReplayHeader, "true")
			c.Data(result.Response.StatusCode, result.Response.ContentType, result.Response.Body)
			c.Abort()
		}
	}
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

type captureWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *captureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *captureWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
