// Package syncer routes transfers between the backend and the offline queue
// and keeps the device ledger reconciled with the backend.
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/offline-pay/offline_pay/internal/apiclient"
	"github.com/offline-pay/offline_pay/internal/connectivity"
	"github.com/offline-pay/offline_pay/internal/eventbus"
	"github.com/offline-pay/offline_pay/internal/kvstore"
	"github.com/offline-pay/offline_pay/internal/localledger"
	"github.com/offline-pay/offline_pay/internal/metrics"
	"github.com/offline-pay/offline_pay/internal/pending"
	"github.com/offline-pay/offline_pay/internal/session"
	"github.com/offline-pay/offline_pay/internal/sms"
	"github.com/offline-pay/offline_pay/internal/txlog"
	"github.com/offline-pay/offline_pay/internal/validation"
)

// ErrOffline is returned by operations that need the backend while it is unreachable.
var ErrOffline = errors.New("backend is unreachable")

const (
	RouteOnline  = "online"
	RouteOffline = "offline"
)

// API is the subset of the backend the coordinator uses.
type API interface {
	Register(ctx context.Context, req apiclient.RegisterRequest) (string, error)
	Login(ctx context.Context, req apiclient.LoginRequest) (string, error)
	Transfer(ctx context.Context, token string, req apiclient.TransferRequest, idempotencyKey string) error
	Refetch(ctx context.Context, token string) (apiclient.Statement, error)
}

// Config wires a Coordinator. SMS, Signer and Bus are optional.
type Config struct {
	API       API
	Store     kvstore.Store
	Monitor   *connectivity.Monitor
	SMS       sms.Sender
	Signer    *sms.Signer
	Formatter txlog.Formatter
	Bus       *eventbus.Bus
	Logger    *slog.Logger
}

// TransferResult describes a completed SendTransfer.
type TransferResult struct {
	Route      string
	ClientTxID string
	Balance    int64
	// Notified is false when the SMS side channel failed or is not configured.
	Notified  bool
	NotifyErr error
	// Stale is set when an online transfer settled but the refetch that
	// follows it failed, so Balance is the pre-transfer value.
	Stale bool
}

// Rejection is a queued transfer the backend refused.
type Rejection struct {
	Transfer pending.Transfer
	Reason   string
}

// DrainReport summarizes one drain.
type DrainReport struct {
	Replayed []pending.Transfer
	Rejected []Rejection
	Retained []pending.Transfer
	// RefreshErr is set when the post-drain refetch failed.
	RefreshErr error
}

// Status is the device view of the account.
type Status struct {
	Session session.Session
	Ledger  localledger.Snapshot
	Pending int
	Online  bool
}

// Coordinator is the single writer of the device ledger, queue and session.
type Coordinator struct {
	mu sync.Mutex

	api      API
	ledger   *localledger.Ledger
	queue    *pending.Queue
	sessions *session.Store
	monitor  *connectivity.Monitor
	sms      sms.Sender
	signer   *sms.Signer
	format   txlog.Formatter
	bus      *eventbus.Bus
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

// New builds a coordinator over cfg.Store.
func New(cfg Config) *Coordinator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	monitor := cfg.Monitor
	if monitor == nil {
		monitor = connectivity.NewMonitor(false)
	}
	return &Coordinator{
		api:      cfg.API,
		ledger:   localledger.New(cfg.Store),
		queue:    pending.New(cfg.Store),
		sessions: session.NewStore(cfg.Store),
		monitor:  monitor,
		sms:      cfg.SMS,
		signer:   cfg.Signer,
		format:   cfg.Formatter,
		bus:      cfg.Bus,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Ledger exposes the device ledger, for the SMS listener.
func (c *Coordinator) Ledger() *localledger.Ledger { return c.ledger }

// Monitor exposes the connectivity monitor.
func (c *Coordinator) Monitor() *connectivity.Monitor { return c.monitor }

// Status reads the current device state.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.sessions.Load(ctx)
	if err != nil {
		return Status{}, err
	}
	snap, err := c.ledger.Snapshot(ctx)
	if err != nil {
		return Status{}, err
	}
	n, err := c.queue.Len(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{Session: sess, Ledger: snap, Pending: n, Online: c.monitor.Online()}, nil
}

// SendTransfer moves amount to the 10 digit number to. Online it settles on
// the backend and resyncs; offline it debits locally, queues the transfer and
// notifies the recipient over SMS.
func (c *Coordinator) SendTransfer(ctx context.Context, to string, amount int64) (TransferResult, error) {
	if err := validation.Struct(validation.Transfer{To: to, Amount: amount}); err != nil {
		return TransferResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.sessions.Load(ctx)
	if err != nil {
		return TransferResult{}, err
	}
	if c.monitor.Online() {
		return c.sendOnline(ctx, sess, to, amount)
	}
	return c.sendOffline(ctx, sess, to, amount)
}

func (c *Coordinator) sendOnline(ctx context.Context, sess session.Session, to string, amount int64) (TransferResult, error) {
	res := TransferResult{Route: RouteOnline, ClientTxID: c.newID()}
	req := apiclient.TransferRequest{From: sess.Num, To: to, Amount: amount}
	if err := c.api.Transfer(ctx, sess.Token, req, res.ClientTxID); err != nil {
		metrics.RecordTransfer(RouteOnline, metrics.OutcomeError)
		return TransferResult{}, fmt.Errorf("transfer: %w", err)
	}
	metrics.RecordTransfer(RouteOnline, metrics.OutcomeSuccess)

	snap, err := c.refetchLocked(ctx, sess)
	if err != nil {
		c.logger.Warn("refetch after transfer failed", "to", to, "amount", amount, "error", err)
		res.Stale = true
		if prev, perr := c.ledger.Snapshot(ctx); perr == nil {
			res.Balance = prev.Balance
		}
	} else {
		res.Balance = snap.Balance
	}
	c.publish(eventbus.KindOnlineTransfer, to, res.Balance)
	return res, nil
}

func (c *Coordinator) sendOffline(ctx context.Context, sess session.Session, to string, amount int64) (TransferResult, error) {
	now := c.now()
	item := pending.Transfer{
		From:       sess.Num,
		To:         to,
		Amount:     amount,
		ClientTxID: c.newID(),
		QueuedAt:   now.UTC(),
	}
	writes, err := c.queue.Stage(ctx, item)
	if err != nil {
		return TransferResult{}, err
	}
	snap, err := c.ledger.Apply(ctx, localledger.Mutation{
		Delta: -amount,
		Entry: c.format.Sent(now, amount, to),
		Extra: writes,
	})
	if err != nil {
		metrics.RecordTransfer(RouteOffline, metrics.OutcomeError)
		return TransferResult{}, fmt.Errorf("offline transfer: %w", err)
	}
	metrics.RecordTransfer(RouteOffline, metrics.OutcomeSuccess)
	c.reportPending(ctx)

	res := TransferResult{Route: RouteOffline, ClientTxID: item.ClientTxID, Balance: snap.Balance}
	res.NotifyErr = c.notify(ctx, item)
	res.Notified = res.NotifyErr == nil && c.sms != nil
	if res.NotifyErr != nil {
		c.logger.Warn("sms notification failed", "to", to, "amount", amount, "error", res.NotifyErr)
	}

	c.logger.Info("transfer queued", "to", to, "amount", amount, "client_tx_id", item.ClientTxID, "balance", snap.Balance)
	c.publish(eventbus.KindOfflineTransfer, to, snap.Balance)
	return res, nil
}

func (c *Coordinator) notify(ctx context.Context, item pending.Transfer) error {
	if c.sms == nil {
		return nil
	}
	body := c.signer.Body(item.From, item.To, item.Amount, item.ClientTxID)
	return c.sms.Send(ctx, c.format.Address(item.To), body)
}

// Drain replays queued transfers in order. Transfers that fail before the
// backend answers, or with a retryable status, stay queued; rejected ones are
// dropped. A transport failure stops the drain and keeps the remaining
// transfers for the next one.
func (c *Coordinator) Drain(ctx context.Context) (DrainReport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.drainLocked(ctx)
}

func (c *Coordinator) drainLocked(ctx context.Context) (DrainReport, error) {
	var report DrainReport

	sess, err := c.sessions.Load(ctx)
	if err != nil {
		return report, err
	}
	items, err := c.queue.List(ctx)
	if err != nil {
		return report, err
	}
	if len(items) == 0 {
		return report, nil
	}

	halted := false
	for _, item := range items {
		if item.ClientTxID == "" {
			item.ClientTxID = c.newID()
		}
		if item.From == "" {
			item.From = sess.Num
		}
		if halted || ctx.Err() != nil {
			report.Retained = append(report.Retained, item)
			continue
		}

		req := apiclient.TransferRequest{From: item.From, To: item.To, Amount: item.Amount}
		err := c.api.Transfer(ctx, sess.Token, req, item.ClientTxID)
		switch {
		case err == nil:
			report.Replayed = append(report.Replayed, item)
			metrics.RecordReplay(metrics.OutcomeReplayed)
		case apiclient.Retryable(err):
			report.Retained = append(report.Retained, item)
			metrics.RecordReplay(metrics.OutcomeRetained)
			c.logger.Warn("replay deferred", "client_tx_id", item.ClientTxID, "error", err)
			if apiclient.IsTransport(err) {
				halted = true
			}
		default:
			report.Rejected = append(report.Rejected, Rejection{Transfer: item, Reason: err.Error()})
			metrics.RecordReplay(metrics.OutcomeRejected)
			c.logger.Warn("replay rejected", "client_tx_id", item.ClientTxID, "to", item.To, "amount", item.Amount, "error", err)
		}
	}

	if err := c.queue.Replace(ctx, report.Retained); err != nil {
		return report, fmt.Errorf("drain: %w", err)
	}
	c.reportPending(ctx)

	var balance int64
	if len(report.Replayed)+len(report.Rejected) > 0 {
		snap, err := c.refetchLocked(ctx, sess)
		if err != nil {
			report.RefreshErr = err
			c.logger.Warn("refetch after drain failed", "error", err)
		}
		balance = snap.Balance
	}

	c.logger.Info("queue drained",
		"replayed", len(report.Replayed),
		"rejected", len(report.Rejected),
		"retained", len(report.Retained),
	)
	c.publish(eventbus.KindDrained, fmt.Sprintf("replayed=%d rejected=%d retained=%d",
		len(report.Replayed), len(report.Rejected), len(report.Retained)), balance)
	return report, nil
}

// Refresh pulls the authoritative balance and log. Queued transfers are
// replayed first so the backend view includes them.
func (c *Coordinator) Refresh(ctx context.Context) (localledger.Snapshot, error) {
	if !c.monitor.Online() {
		return localledger.Snapshot{}, ErrOffline
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	sess, err := c.sessions.Load(ctx)
	if err != nil {
		return localledger.Snapshot{}, err
	}
	n, err := c.queue.Len(ctx)
	if err != nil {
		return localledger.Snapshot{}, err
	}
	if n > 0 {
		report, err := c.drainLocked(ctx)
		if err != nil {
			return localledger.Snapshot{}, err
		}
		if report.RefreshErr == nil && len(report.Replayed)+len(report.Rejected) > 0 {
			return c.ledger.Snapshot(ctx)
		}
	}
	return c.refetchLocked(ctx, sess)
}

// refetchLocked overwrites the device ledger with the backend statement.
// Transfers still queued are re-applied on top so the local balance never
// shows money that has already left the device.
func (c *Coordinator) refetchLocked(ctx context.Context, sess session.Session) (localledger.Snapshot, error) {
	st, err := c.api.Refetch(ctx, sess.Token)
	if err != nil {
		return localledger.Snapshot{}, fmt.Errorf("refetch: %w", err)
	}
	snap := localledger.Snapshot{Balance: st.Balance, Logs: append([]string{}, st.Logs...)}

	queued, err := c.queue.List(ctx)
	if err != nil {
		return localledger.Snapshot{}, err
	}
	now := c.now()
	for _, item := range queued {
		at := now
		if !item.QueuedAt.IsZero() {
			at = item.QueuedAt.In(now.Location())
		}
		snap.Balance -= item.Amount
		snap.Logs = append(snap.Logs, c.format.Sent(at, item.Amount, item.To))
	}
	if snap.Balance < 0 {
		snap.Balance = 0
	}

	if err := c.ledger.Replace(ctx, snap); err != nil {
		return localledger.Snapshot{}, err
	}
	c.publish(eventbus.KindRefreshed, "", snap.Balance)
	return snap, nil
}

// Register creates an account, stores its token and starts an empty ledger.
func (c *Coordinator) Register(ctx context.Context, name, num, pass string) (session.Session, error) {
	if err := validation.Struct(validation.Registration{Name: name, Num: num, Pass: pass}); err != nil {
		return session.Session{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	token, err := c.api.Register(ctx, apiclient.RegisterRequest{Name: name, Num: num, Pass: pass})
	if err != nil {
		return session.Session{}, fmt.Errorf("register: %w", err)
	}
	sess, err := c.sessions.Save(ctx, token)
	if err != nil {
		return session.Session{}, err
	}
	if err := c.ledger.Init(ctx); err != nil {
		return session.Session{}, err
	}
	if c.monitor.Online() {
		if _, err := c.refetchLocked(ctx, sess); err != nil {
			c.logger.Warn("initial refetch failed", "num", sess.Num, "error", err)
		}
	}
	c.logger.Info("registered", "num", sess.Num)
	c.publish(eventbus.KindSession, sess.Num, 0)
	return sess, nil
}

// Login stores a token for existing credentials and pulls the account state.
// A failed refetch leaves the session in place and is logged.
func (c *Coordinator) Login(ctx context.Context, num, pass string) (session.Session, error) {
	if err := validation.Struct(validation.Login{Num: num, Pass: pass}); err != nil {
		return session.Session{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	token, err := c.api.Login(ctx, apiclient.LoginRequest{Num: num, Pass: pass})
	if err != nil {
		return session.Session{}, fmt.Errorf("login: %w", err)
	}
	sess, err := c.sessions.Save(ctx, token)
	if err != nil {
		return session.Session{}, err
	}
	if _, err := c.refetchLocked(ctx, sess); err != nil {
		c.logger.Warn("refetch after login failed", "num", sess.Num, "error", err)
	}
	c.logger.Info("logged in", "num", sess.Num)
	c.publish(eventbus.KindSession, sess.Num, 0)
	return sess, nil
}

// Logout forgets the token. Balance, log and queue stay on the device.
func (c *Coordinator) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.sessions.Clear(ctx); err != nil {
		return err
	}
	c.publish(eventbus.KindSession, "", 0)
	return nil
}

// Run drains the queue whenever the monitor reports the backend reachable
// again, until ctx is done.
func (c *Coordinator) Run(ctx context.Context) error {
	transitions, cancel := c.monitor.Subscribe()
	defer cancel()

	if c.monitor.Online() {
		c.drainIfPending(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case online, ok := <-transitions:
			if !ok {
				return nil
			}
			state := "offline"
			if online {
				state = "online"
			}
			c.publish(eventbus.KindConnectivity, state, 0)
			if online {
				c.drainIfPending(ctx)
			}
		}
	}
}

func (c *Coordinator) drainIfPending(ctx context.Context) {
	n, err := c.queue.Len(ctx)
	if err != nil {
		c.logger.Error("read pending queue", "error", err)
		return
	}
	if n == 0 {
		return
	}
	if _, err := c.Drain(ctx); err != nil && !errors.Is(err, session.ErrNoSession) {
		c.logger.Error("drain failed", "error", err)
	}
}

func (c *Coordinator) reportPending(ctx context.Context) {
	if n, err := c.queue.Len(ctx); err == nil {
		metrics.SetPending(n)
	}
}

func (c *Coordinator) publish(kind, detail string, balance int64) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(eventbus.Event{Kind: kind, Detail: detail, Balance: balance})
}
