package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
	"github.com/Haleralex/ledgerflow/internal/platform/dbctx"
	"github.com/Haleralex/ledgerflow/internal/platform/eventbus"
	"github.com/Haleralex/ledgerflow/internal/platform/tracing"
)

// PublisherConfig tunes the drain loop's tick interval and batch size.
type PublisherConfig struct {
	TickInterval time.Duration
	BatchSize    int
}

// DefaultPublisherConfig uses a ~1s tick and a 100-row batch size.
func DefaultPublisherConfig() PublisherConfig {
	return PublisherConfig{TickInterval: time.Second, BatchSize: 100}
}

// Publisher is the single per-service drain-loop task: on every tick
// it fetches unpublished rows, publishes each to the bus on its derived
// subject, and marks it published. It is a process-lifetime singleton
// keyed by the pool and bus passed at construction, with no hidden
// global state.
type Publisher struct {
	pool   *pgxpool.Pool
	store  Store
	bus    eventbus.Bus
	cfg    PublisherConfig
	logger *slog.Logger
}

// NewPublisher wires a drain-loop task. Call Run in its own goroutine; it
// blocks until ctx is cancelled.
func NewPublisher(pool *pgxpool.Pool, store Store, bus eventbus.Bus, cfg PublisherConfig, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{pool: pool, store: store, bus: bus, cfg: cfg, logger: logger}
}

// Run ticks forever until ctx is cancelled, surviving and logging
// transient errors rather than dying on the first one.
func (p *Publisher) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Tick(ctx); err != nil {
				p.logger.ErrorContext(ctx, "outbox drain tick failed", slog.Any("error", err))
			}
		}
	}
}

// Tick runs one drain pass inside a single transaction: the FOR UPDATE
// SKIP LOCKED fetch and every successful row's mark-published share that
// transaction's lock lifetime, so a crash mid-tick leaves every row in
// this batch unpublished for the next tick to retry.
func (p *Publisher) Tick(ctx context.Context) (err error) {
	ctx, span := tracing.Tracer().Start(ctx, "outbox.Publisher.Tick")
	defer func() { tracing.End(span, err) }()

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	txCtx := dbctx.WithTx(ctx, tx)

	rows, err := p.store.FetchUnpublished(txCtx, p.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, row := range rows {
		subject := domain.DeriveSubject(row.EventType)
		data, err := json.Marshal(row.Envelope)
		if err != nil {
			p.logger.ErrorContext(txCtx, "failed to encode outbox row envelope",
				slog.String("event_id", row.EventID.String()), slog.Any("error", err))
			continue
		}
		if err := p.bus.Publish(txCtx, subject, data); err != nil {
			// Publish failure for this row aborts only this row; the next
			// tick retries it since it is never marked published.
			p.logger.WarnContext(txCtx, "failed to publish outbox row, will retry next tick",
				slog.String("event_id", row.EventID.String()), slog.String("subject", subject), slog.Any("error", err))
			continue
		}
		if err := p.store.MarkPublished(txCtx, row.EventID); err != nil {
			p.logger.ErrorContext(txCtx, "failed to mark outbox row published",
				slog.String("event_id", row.EventID.String()), slog.Any("error", err))
			continue
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	committed = true
	return nil
}
