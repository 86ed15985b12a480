package sms

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/offline-pay/offline_pay/internal/connectivity"
	"github.com/offline-pay/offline_pay/internal/eventbus"
	"github.com/offline-pay/offline_pay/internal/kvstore"
	"github.com/offline-pay/offline_pay/internal/localledger"
	"github.com/offline-pay/offline_pay/internal/metrics"
	"github.com/offline-pay/offline_pay/internal/scheduler"
	"github.com/offline-pay/offline_pay/internal/txlog"
)

// Outcome describes what one scan did.
type Outcome string

const (
	OutcomeSkipped    Outcome = "skipped"
	OutcomeEmpty      Outcome = "empty"
	OutcomeStale      Outcome = "stale"
	OutcomeMalformed  Outcome = "malformed"
	OutcomeUnverified Outcome = "unverified"
	OutcomeApplied    Outcome = "applied"
	OutcomeFailed     Outcome = "failed"
)

// ListenerConfig wires a Listener.
type ListenerConfig struct {
	Inbox     Inbox
	Ledger    *localledger.Ledger
	Store     kvstore.Store
	Monitor   *connectivity.Monitor
	Signer    *Signer
	Self      string
	Formatter txlog.Formatter
	Bus       *eventbus.Bus
	Logger    *slog.Logger
}

// Listener credits the local ledger from inbound notifications while the
// device is offline. Only messages strictly newer than the last one it
// inspected are considered; the watermark survives restarts.
type Listener struct {
	cfg ListenerConfig
	now func() time.Time

	mu     sync.Mutex
	since  time.Time
	loaded bool
}

// NewListener builds a listener. Missing logger and bus are tolerated.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Listener{cfg: cfg, now: time.Now}
}

// Scan inspects the newest message once.
func (l *Listener) Scan(ctx context.Context) Outcome {
	if l.cfg.Monitor != nil && l.cfg.Monitor.Online() {
		return OutcomeSkipped
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	since, err := l.watermark(ctx)
	if err != nil {
		l.cfg.Logger.Error("sms watermark unavailable", "error", err)
		return OutcomeFailed
	}

	msg, err := l.cfg.Inbox.Latest(ctx)
	if errors.Is(err, ErrEmptyInbox) {
		return OutcomeEmpty
	}
	if err != nil {
		l.cfg.Logger.Warn("sms inbox read failed", "error", err)
		return OutcomeFailed
	}
	if !msg.SentAt.After(since) {
		return OutcomeStale
	}

	credit, err := Parse(msg.Body)
	if err != nil {
		l.cfg.Logger.Debug("sms ignored", "from", msg.From, "reason", err)
		metrics.RecordSMSCredit(metrics.OutcomeMalformed)
		return l.skip(ctx, msg, OutcomeMalformed)
	}
	if !l.cfg.Signer.Verify(credit, l.cfg.Self) {
		l.cfg.Logger.Warn("sms receipt rejected", "from", msg.From, "sender", credit.Sender, "amount", credit.Amount)
		metrics.RecordSMSCredit(metrics.OutcomeUnsigned)
		return l.skip(ctx, msg, OutcomeUnverified)
	}

	snap, err := l.cfg.Ledger.Apply(ctx, localledger.Mutation{
		Delta: credit.Amount,
		Entry: l.cfg.Formatter.Received(l.now(), credit.Amount, credit.Sender),
		Extra: map[string]string{kvstore.KeyLastSeenCredit: formatWatermark(msg.SentAt)},
	})
	if err != nil {
		l.cfg.Logger.Error("sms credit failed", "sender", credit.Sender, "amount", credit.Amount, "error", err)
		metrics.RecordSMSCredit(metrics.OutcomeError)
		return l.skip(ctx, msg, OutcomeFailed)
	}
	l.since = msg.SentAt

	metrics.RecordSMSCredit(metrics.OutcomeApplied)
	l.cfg.Logger.Info("sms credit applied", "sender", credit.Sender, "amount", credit.Amount, "balance", snap.Balance)
	if l.cfg.Bus != nil {
		l.cfg.Bus.Publish(eventbus.Event{Kind: eventbus.KindCredited, Detail: credit.Sender, Balance: snap.Balance})
	}
	return OutcomeApplied
}

// Start scans every interval until ctx is done.
func (l *Listener) Start(ctx context.Context, interval time.Duration) (*scheduler.Scheduler, error) {
	s, err := scheduler.New("sms-listener", interval, func(ctx context.Context) { l.Scan(ctx) }, l.cfg.Logger)
	if err != nil {
		return nil, err
	}
	s.Start(ctx)
	return s, nil
}

// skip advances the watermark past a message that was not credited so it is
// reported once and never retried.
func (l *Listener) skip(ctx context.Context, msg Message, outcome Outcome) Outcome {
	if err := l.cfg.Store.Set(ctx, kvstore.KeyLastSeenCredit, formatWatermark(msg.SentAt)); err != nil {
		l.cfg.Logger.Warn("sms watermark not saved", "error", err)
		return outcome
	}
	l.since = msg.SentAt
	return outcome
}

// watermark loads the persisted watermark, seeding it with the current time
// on first activation so older messages are never credited.
func (l *Listener) watermark(ctx context.Context) (time.Time, error) {
	if l.loaded {
		return l.since, nil
	}
	raw, err := l.cfg.Store.Get(ctx, kvstore.KeyLastSeenCredit)
	switch {
	case err == nil:
		t, perr := time.Parse(time.RFC3339Nano, raw)
		if perr != nil {
			return time.Time{}, fmt.Errorf("parse %s: %w", kvstore.KeyLastSeenCredit, perr)
		}
		l.since = t
	case errors.Is(err, kvstore.ErrNotFound):
		l.since = l.now().UTC()
		if err := l.cfg.Store.Set(ctx, kvstore.KeyLastSeenCredit, formatWatermark(l.since)); err != nil {
			return time.Time{}, err
		}
	default:
		return time.Time{}, err
	}
	l.loaded = true
	return l.since, nil
}

func formatWatermark(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
