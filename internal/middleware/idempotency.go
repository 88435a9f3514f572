package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ronalsilva/waller-microservice/internal/apierror"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"

	CodeDuplicateRequest = "DUPLICATE_REQUEST"
	CodeKeyReused        = "IDEMPOTENCY_KEY_REUSED"

	idempotencyPrefix = "idempotency:v2:"
	inProgressMarker  = "__in_progress__"
	maxKeyLen         = 255
	cacheOpTimeout    = 2 * time.Second
)

// replayRecord is what gets stored for a completed request.
type replayRecord struct {
	Fingerprint string `json:"fingerprint"`
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

type replayCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// Idempotency makes unsafe wallet calls retry-safe. A request carrying an
// Idempotency-Key header is executed once per caller, path and key; repeats
// with the same body replay the stored 2xx response, repeats with a different
// body are rejected, and repeats racing the first attempt get 409. Failed
// attempts release the key so the client may retry. Without a Redis client or
// the header the middleware is a pass-through.
func Idempotency(client *redis.Client, ttl time.Duration, logger *slog.Logger) fiber.Handler {
	cache := replayCache{client: client, ttl: ttl, logger: logger}
	return func(c *fiber.Ctx) error {
		switch c.Method() {
		case fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions:
			return c.Next()
		}
		key := c.Get(IdempotencyKeyHeader)
		if key == "" || client == nil {
			return c.Next()
		}
		if len(key) > maxKeyLen {
			return apierror.New(http.StatusBadRequest, apierror.CodeBadRequest, "idempotency key too long")
		}

		uid, _ := c.Locals(UserIDKey).(string)
		slot := idempotencyPrefix + uid + ":" + c.Path() + ":" + key
		fingerprint := fingerprintOf(c.Body())

		ctx, cancel := context.WithTimeout(c.UserContext(), cacheOpTimeout)
		defer cancel()

		record, found, err := cache.lookup(ctx, slot)
		if err != nil {
			return err
		}
		if found {
			if record == nil {
				return apierror.New(http.StatusConflict, CodeDuplicateRequest, "duplicate request currently processing")
			}
			if record.Fingerprint != fingerprint {
				return apierror.New(http.StatusUnprocessableEntity, CodeKeyReused, "idempotency key already used with a different request")
			}
			c.Set(fiber.HeaderContentType, record.ContentType)
			c.Set("Idempotent-Replayed", "true")
			return c.Status(record.Status).Send(record.Body)
		}

		reserved, err := cache.reserve(ctx, slot)
		if err != nil {
			return err
		}
		if !reserved {
			return apierror.New(http.StatusConflict, CodeDuplicateRequest, "duplicate request currently processing")
		}

		if err := c.Next(); err != nil {
			cache.release(slot)
			return err
		}

		status := c.Response().StatusCode()
		if status < 200 || status >= 300 {
			cache.release(slot)
			return nil
		}
		cache.store(slot, replayRecord{
			Fingerprint: fingerprint,
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        append([]byte(nil), c.Response().Body()...),
		})
		return nil
	}
}

// lookup returns found=true with a nil record while the first attempt is
// still running.
func (r replayCache) lookup(ctx context.Context, slot string) (*replayRecord, bool, error) {
	raw, err := r.client.Get(ctx, slot).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		r.logger.Error("idempotency lookup failed", slog.String("slot", slot), slog.Any("error", err))
		return nil, false, apierror.Wrap(err, http.StatusServiceUnavailable, apierror.CodeStorageUnavailable, "idempotency store unavailable")
	}
	if string(raw) == inProgressMarker {
		return nil, true, nil
	}
	var record replayRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		r.logger.Warn("discarding unreadable idempotency record", slog.String("slot", slot), slog.Any("error", err))
		r.release(slot)
		return nil, false, nil
	}
	return &record, true, nil
}

func (r replayCache) reserve(ctx context.Context, slot string) (bool, error) {
	ok, err := r.client.SetNX(ctx, slot, inProgressMarker, r.ttl).Result()
	if err != nil {
		r.logger.Error("idempotency reservation failed", slog.String("slot", slot), slog.Any("error", err))
		return false, apierror.Wrap(err, http.StatusServiceUnavailable, apierror.CodeStorageUnavailable, "idempotency store unavailable")
	}
	return ok, nil
}

// store and release run on a fresh context; the request context may already
// be done once the handler returns.
func (r replayCache) store(slot string, record replayRecord) {
	payload, err := json.Marshal(record)
	if err != nil {
		r.logger.Error("encode idempotency record", slog.String("slot", slot), slog.Any("error", err))
		r.release(slot)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := r.client.Set(ctx, slot, payload, r.ttl).Err(); err != nil {
		r.logger.Error("persist idempotency record", slog.String("slot", slot), slog.Any("error", err))
		r.client.Del(ctx, slot)
	}
}

func (r replayCache) release(slot string) {
	ctx, cancel := context.WithTimeout(context.Background(), cacheOpTimeout)
	defer cancel()
	if err := r.client.Del(ctx, slot).Err(); err != nil {
		r.logger.Warn("release idempotency slot", slog.String("slot", slot), slog.Any("error", err))
	}
}

func fingerprintOf(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
