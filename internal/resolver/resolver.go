package resolver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ronalsilva/waller-microservice/internal/logging"
	"github.com/ronalsilva/waller-microservice/internal/metrics"
)

const (
	ActionGetUserByID             = "getUserById"
	ActionValidateTokenAndGetUser = "validateTokenAndGetUser"
)

const (
	DefaultRequestTopic   = "client-microservice-requests"
	DefaultResponseTopic  = "client-microservice-responses"
	DefaultLookupTimeout  = 5 * time.Second
	DefaultTokenTimeout   = 10 * time.Second
	DefaultReconnectDelay = 5 * time.Second
)

// Publisher hands one message to the transport.
type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Subscriber consumes topic from the newest offset and passes every message to
// handle. It blocks until ctx is cancelled or the underlying connection fails.
type Subscriber interface {
	Subscribe(ctx context.Context, topic string, handle func(ctx context.Context, value []byte)) error
}

// Identity is the user record returned by the identity service. Raw keeps the
// full object, including fields not mapped here.
type Identity struct {
	ID    string          `json:"id"`
	Email string          `json:"email,omitempty"`
	Name  string          `json:"name,omitempty"`
	Raw   json.RawMessage `json:"-"`
}

// Options configures topics and budgets. Zero values fall back to defaults.
type Options struct {
	RequestTopic   string
	ResponseTopic  string
	LookupTimeout  time.Duration
	TokenTimeout   time.Duration
	ReconnectDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.RequestTopic == "" {
		o.RequestTopic = DefaultRequestTopic
	}
	if o.ResponseTopic == "" {
		o.ResponseTopic = DefaultResponseTopic
	}
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = DefaultLookupTimeout
	}
	if o.TokenTimeout <= 0 {
		o.TokenTimeout = DefaultTokenTimeout
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultReconnectDelay
	}
	return o
}

type response struct {
	CorrelationID string          `json:"correlationId"`
	User          json.RawMessage `json:"user,omitempty"`
	Error         string          `json:"error,omitempty"`
	Message       string          `json:"message,omitempty"`
}

// Resolver turns a publish on the request topic into a call that waits for the
// correlated message on the response topic. Each instance owns its own
// correlation table.
type Resolver struct {
	publisher  Publisher
	subscriber Subscriber
	opts       Options
	pending    *pendingTable
	metrics    *metrics.Metrics
	logger     *slog.Logger
	now        func() time.Time
}

// New builds a resolver. Start must run for responses to be consumed.
func New(publisher Publisher, subscriber Subscriber, opts Options, m *metrics.Metrics, logger *slog.Logger) *Resolver {
	return &Resolver{
		publisher:  publisher,
		subscriber: subscriber,
		opts:       opts.withDefaults(),
		pending:    newPendingTable(),
		metrics:    m,
		logger:     logging.Component(logger, "identity_resolver"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// LookupUser resolves a user id with the lookup budget.
func (r *Resolver) LookupUser(ctx context.Context, userID string) (Identity, error) {
	return r.Resolve(ctx, ActionGetUserByID, map[string]any{"userId": userID}, r.opts.LookupTimeout)
}

// ValidateToken resolves a bearer token with the token budget.
func (r *Resolver) ValidateToken(ctx context.Context, token string) (Identity, error) {
	return r.Resolve(ctx, ActionValidateTokenAndGetUser, map[string]any{"token": token}, r.opts.TokenTimeout)
}

// Pending reports how many calls are awaiting a response.
func (r *Resolver) Pending() int {
	return r.pending.len()
}

// Resolve publishes {action, correlationId, timestamp, ...fields} and waits for
// the correlated response or for timeout to elapse. If ctx ends first the call
// returns ctx.Err() and its entry is left to its own timer.
func (r *Resolver) Resolve(ctx context.Context, action string, fields map[string]any, timeout time.Duration) (Identity, error) {
	correlationID := uuid.NewString()

	envelope := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		envelope[k] = v
	}
	envelope["action"] = action
	envelope["correlationId"] = correlationID
	envelope["timestamp"] = r.now().Format(time.RFC3339Nano)
	payload, err := json.Marshal(envelope)
	if err != nil {
		return Identity{}, fmt.Errorf("encode %s request: %w", action, err)
	}

	call := r.pending.add(correlationID, timeout, func() { r.expire(correlationID, action) })
	r.metrics.SetPending(r.pending.len())

	if err := r.publisher.Publish(ctx, r.opts.RequestTopic, []byte(correlationID), payload); err != nil {
		if _, ok := r.pending.take(correlationID); ok {
			r.metrics.SetPending(r.pending.len())
		}
		r.metrics.ResolveOutcome("publish_error", time.Since(call.started))
		return Identity{}, fmt.Errorf("%w: %w", ErrPublish, err)
	}

	select {
	case out := <-call.done:
		identity, err := out.identity()
		r.metrics.ResolveOutcome(outcomeLabel(err), time.Since(call.started))
		return identity, err
	case <-ctx.Done():
		r.metrics.ResolveOutcome("canceled", time.Since(call.started))
		return Identity{}, ctx.Err()
	}
}

// HandleResponse demultiplexes one inbound message. It never panics on bad
// input; messages that complete no call are logged and reported as
// ErrMalformedResponse or ErrUnmatchedResponse.
func (r *Resolver) HandleResponse(_ context.Context, value []byte) error {
	var resp response
	if err := json.Unmarshal(value, &resp); err != nil || resp.CorrelationID == "" {
		r.logger.Warn("malformed identity response dropped", slog.Int("bytes", len(value)))
		r.metrics.ResponseDropped("malformed")
		return ErrMalformedResponse
	}
	if hasUser(resp.User) {
		var probe Identity
		if err := json.Unmarshal(resp.User, &probe); err != nil {
			r.logger.Warn("malformed identity response dropped",
				slog.String("correlation_id", resp.CorrelationID),
				slog.Any("error", err),
			)
			r.metrics.ResponseDropped("malformed")
			return ErrMalformedResponse
		}
	}

	call, ok := r.pending.take(resp.CorrelationID)
	if !ok {
		r.logger.Warn("unmatched identity response dropped", slog.String("correlation_id", resp.CorrelationID))
		r.metrics.ResponseDropped("unmatched")
		return ErrUnmatchedResponse
	}
	r.metrics.SetPending(r.pending.len())
	call.done <- outcome{resp: resp}
	return nil
}

// Start consumes the response topic until ctx is cancelled. When the
// subscription fails it is re-established after the reconnect delay; failures
// are logged and never reach in-flight callers.
func (r *Resolver) Start(ctx context.Context) error {
	for {
		err := r.subscriber.Subscribe(ctx, r.opts.ResponseTopic, func(ctx context.Context, value []byte) {
			_ = r.HandleResponse(ctx, value)
		})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			r.logger.Error("identity response consumer crashed", slog.Any("error", err))
		} else {
			r.logger.Warn("identity response consumer stopped")
		}

		t := time.NewTimer(r.opts.ReconnectDelay)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil
		case <-t.C:
		}
		r.logger.Info("reconnecting identity response consumer", slog.String("topic", r.opts.ResponseTopic))
	}
}

func (r *Resolver) expire(correlationID, action string) {
	call, ok := r.pending.take(correlationID)
	if !ok {
		return
	}
	r.metrics.SetPending(r.pending.len())
	r.logger.Warn("identity request timed out",
		slog.String("correlation_id", correlationID),
		slog.String("action", action),
	)
	call.done <- outcome{err: ErrTimeout}
}

func (o outcome) identity() (Identity, error) {
	if o.err != nil {
		return Identity{}, o.err
	}
	if o.resp.Error != "" {
		return Identity{}, &RemoteError{Reason: o.resp.Error, Message: o.resp.Message}
	}
	if !hasUser(o.resp.User) {
		return Identity{}, ErrNoIdentity
	}
	var identity Identity
	if err := json.Unmarshal(o.resp.User, &identity); err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if identity.ID == "" {
		return Identity{}, ErrNoIdentity
	}
	identity.Raw = append(json.RawMessage(nil), o.resp.User...)
	return identity, nil
}

func hasUser(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrRemote):
		return "remote_error"
	case errors.Is(err, ErrNoIdentity):
		return "no_identity"
	}
	return "error"
}
