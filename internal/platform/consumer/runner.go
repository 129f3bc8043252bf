// Package consumer implements the Idempotent Consumer Runner: the
// shared loop every event handler in the system runs inside. It owns
// subscribe, envelope decode, duplicate detection, transactional handler
// execution, retry, and DLQ routing so individual handlers (posting,
// reversal) only ever implement "given this payload, do the domain work".
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
	"github.com/Haleralex/ledgerflow/internal/pkg/logger"
	"github.com/Haleralex/ledgerflow/internal/platform/dbctx"
	"github.com/Haleralex/ledgerflow/internal/platform/dlq"
	"github.com/Haleralex/ledgerflow/internal/platform/eventbus"
	"github.com/Haleralex/ledgerflow/internal/platform/events"
	"github.com/Haleralex/ledgerflow/internal/platform/idempotency"
	"github.com/Haleralex/ledgerflow/internal/platform/retry"
	"github.com/Haleralex/ledgerflow/internal/platform/tracing"
)

// Handler performs the domain work for one decoded envelope. It runs inside
// the same database transaction the runner uses to record the
// processed-events row, so a handler's own writes (journal entries,
// balances, its own outbox rows) commit or roll back atomically with
// dedup bookkeeping.
type Handler func(ctx context.Context, env events.Envelope) error

// Config names the consumer and the subject it subscribes to.
type Config struct {
	Name         string // consumer_name in processed_events / DLQ
	SubjectPattern string
	RetryConfig  retry.Config
}

// Runner wires a Handler to a bus subscription with idempotency, retry, and
// DLQ semantics already applied.
type Runner struct {
	pool    *pgxpool.Pool
	bus     eventbus.Bus
	idem    idempotency.Store
	dead    dlq.Store
	logger  *slog.Logger
	cfg     Config
	handler Handler
}

// NewRunner builds a runner. Call Start to subscribe; it does not block.
func NewRunner(pool *pgxpool.Pool, bus eventbus.Bus, idem idempotency.Store, dead dlq.Store, log *slog.Logger, cfg Config, handler Handler) *Runner {
	if log == nil {
		log = slog.Default()
	}
	if cfg.RetryConfig == (retry.Config{}) {
		cfg.RetryConfig = retry.DefaultConfig()
	}
	return &Runner{pool: pool, bus: bus, idem: idem, dead: dead, logger: log, cfg: cfg, handler: handler}
}

// Start subscribes on cfg.SubjectPattern under a queue-group-like consumer
// name; the in-memory bus fans out to every subscriber regardless, while
// the NATS bus load-balances within a queue group when one is configured at
// the bus level.
func (r *Runner) Start(ctx context.Context) (eventbus.Subscription, error) {
	return r.bus.Subscribe(ctx, r.cfg.SubjectPattern, r.handle)
}

// handle is the eventbus.Handler invoked for every delivered message. It
// never returns an error to the bus: by design the bus has no retry of its
// own (see eventbus.Handler's doc comment), so every failure path here
// either already retried via r.cfg.RetryConfig or has already been routed
// to the DLQ before returning.
func (r *Runner) handle(ctx context.Context, msg eventbus.Message) error {
	var env events.Envelope
	if err := decodeEnvelope(msg.Data, &env); err != nil {
		r.logger.ErrorContext(ctx, "dropping malformed message, cannot decode envelope",
			slog.String("subject", msg.Subject), slog.Any("error", err))
		env.EventID = uuid.New()
		r.toDLQ(ctx, env, msg, err)
		return nil
	}

	ctx = logger.WithTenantID(ctx, env.TenantID)
	ctx = logger.WithEventID(ctx, env.EventID.String())

	if err := env.Validate(); err != nil {
		r.logger.ErrorContext(ctx, "dropping invalid envelope", slog.Any("error", err))
		r.toDLQ(ctx, env, msg, err)
		return nil
	}

	existing, err := r.idem.Get(ctx, env.EventID, r.cfg.Name)
	if err != nil {
		r.logger.ErrorContext(ctx, "idempotency lookup failed, routing to dead-letter queue", slog.Any("error", err))
		r.toDLQ(ctx, env, msg, domain.NewTransientError(err))
		return nil
	}
	if existing != nil {
		r.logger.InfoContext(ctx, "duplicate delivery, already processed", slog.String("consumer", r.cfg.Name))
		return nil
	}

	err = r.runWithRetry(ctx, env)

	if err == nil {
		return nil
	}

	if domain.IsDuplicate(err) {
		r.logger.InfoContext(ctx, "handler observed duplicate mid-transaction, absorbing")
		return nil
	}

	r.logger.ErrorContext(ctx, "handler failed, routing to dead-letter queue",
		slog.String("consumer", r.cfg.Name), slog.Any("error", err))
	r.toDLQ(ctx, env, msg, err)
	return nil
}

// runWithRetry gives the handler cfg.RetryConfig attempts, but only for
// errors domain.Recoverable classifies as worth another try; a validation
// or governance failure is deterministic, so retrying it would just delay
// the inevitable DLQ write. The early exit is retry.DoUntil's stop hook.
func (r *Runner) runWithRetry(ctx context.Context, env events.Envelope) error {
	return retry.DoUntil(ctx, r.cfg.RetryConfig, func(ctx context.Context) error {
		return r.runOnce(ctx, env)
	}, func(err error) bool {
		return domain.IsDuplicate(err) || !domain.Recoverable(err)
	})
}

// runOnce executes the handler and the idempotency record inside a single
// transaction: either both the domain effect and the processed-events row
// land, or neither does, which is what makes a redelivered event safe to
// simply re-run from scratch.
func (r *Runner) runOnce(ctx context.Context, env events.Envelope) (err error) {
	ctx, span := tracing.Tracer().Start(ctx, "consumer.Runner.runOnce")
	span.SetAttributes(
		attribute.String("consumer.name", r.cfg.Name),
		attribute.String("event.type", env.EventType),
		attribute.String("event.id", env.EventID.String()),
	)
	defer func() { tracing.End(span, err) }()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.NewTransientError(err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	txCtx := dbctx.WithTx(ctx, tx)

	inserted, _, err := r.idem.SetIfAbsent(txCtx, idempotency.Entry{
		EventID:      env.EventID,
		ConsumerName: r.cfg.Name,
		EventType:    env.EventType,
	})
	if err != nil {
		return domain.NewTransientError(err)
	}
	if !inserted {
		// Another worker's transaction won the race and has already
		// committed (or is committing) the effect for this event; absorb
		// it here rather than doing the work twice.
		_ = tx.Rollback(ctx)
		committed = true
		return &domain.DuplicateEvent{EventID: env.EventID.String()}
	}

	if err := r.handler(txCtx, env); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.NewTransientError(err)
	}
	committed = true
	return nil
}

func (r *Runner) toDLQ(ctx context.Context, env events.Envelope, msg eventbus.Message, cause error) {
	row := dlq.Row{
		EventID:      env.EventID,
		Subject:      msg.Subject,
		TenantID:     env.TenantID,
		EnvelopeJSON: msg.Data,
		Error:        cause.Error(),
		ReasonCode:   domain.ClassifyKind(cause).String(),
		FailedAt:     time.Now().UTC(),
	}
	if err := r.dead.Record(ctx, row); err != nil {
		r.logger.ErrorContext(ctx, "failed to record dead-letter row", slog.Any("error", err))
	}
}

func decodeEnvelope(data []byte, env *events.Envelope) error {
	if len(data) == 0 {
		return errors.New("empty message body")
	}
	return json.Unmarshal(data, env)
}
