package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/offline-pay/offline_pay/internal/apiclient"
	"github.com/offline-pay/offline_pay/internal/config"
	"github.com/offline-pay/offline_pay/internal/connectivity"
	"github.com/offline-pay/offline_pay/internal/eventbus"
	"github.com/offline-pay/offline_pay/internal/infra"
	"github.com/offline-pay/offline_pay/internal/kvstore"
	"github.com/offline-pay/offline_pay/internal/session"
	"github.com/offline-pay/offline_pay/internal/sms"
	"github.com/offline-pay/offline_pay/internal/syncer"
	"github.com/offline-pay/offline_pay/internal/txlog"
)

// device bundles everything one simulated handset needs.
type device struct {
	logger  *slog.Logger
	client  *redis.Client
	store   kvstore.Store
	monitor *connectivity.Monitor
	prober  *connectivity.Prober
	format  txlog.Formatter
	signer  *sms.Signer
	bus     *eventbus.Bus
	coord   *syncer.Coordinator
	self    string
	offline bool
}

// openDevice connects to the device store under namespace and decides
// whether the backend is reachable. forceOffline skips the probe.
func openDevice(ctx context.Context, cfg config.Config, logger *slog.Logger, namespace string, forceOffline bool) (*device, error) {
	if cfg.DeviceStoreURL == "" {
		return nil, errors.New("DEVICE_STORE_URL (or REDIS_URL) must point at the device store")
	}
	connectCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
	client, err := infra.NewRedisClient(connectCtx, cfg.DeviceStoreURL, cfg.RequestTimeout)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("device store: %w", err)
	}

	d := &device{
		logger:  logger.With("device", namespace),
		client:  client,
		store:   kvstore.NewRedis(client, namespace),
		monitor: connectivity.NewMonitor(false),
		format:  txlog.Formatter{Prefix: cfg.CountryPrefix},
		signer:  sms.NewSigner(cfg.SMSReceiptKey),
		bus:     eventbus.New(),
		offline: forceOffline,
	}
	d.prober = connectivity.NewProber(cfg.APIBaseURL, cfg.RequestTimeout, d.monitor, d.logger)
	if !forceOffline {
		d.prober.Tick(ctx)
	}

	// The outbound SMS channel sends as the signed-in number.
	var sender sms.Sender
	if sess, err := session.NewStore(d.store).Load(ctx); err == nil {
		d.self = sess.Num
		sender = sms.NewRedisGateway(client, d.format.Address(sess.Num))
	} else if !errors.Is(err, session.ErrNoSession) {
		d.logger.Warn("stored session unreadable", "error", err)
	}

	d.coord = syncer.New(syncer.Config{
		API:       apiclient.New(cfg.APIBaseURL, cfg.RequestTimeout),
		Store:     d.store,
		Monitor:   d.monitor,
		SMS:       sender,
		Signer:    d.signer,
		Formatter: d.format,
		Bus:       d.bus,
		Logger:    d.logger,
	})
	return d, nil
}

// listener builds the inbox scanner for the signed-in number.
func (d *device) listener() (*sms.Listener, error) {
	if d.self == "" {
		return nil, session.ErrNoSession
	}
	return sms.NewListener(sms.ListenerConfig{
		Inbox:     sms.NewRedisGateway(d.client, d.format.Address(d.self)),
		Ledger:    d.coord.Ledger(),
		Store:     d.store,
		Monitor:   d.monitor,
		Signer:    d.signer,
		Self:      d.self,
		Formatter: d.format,
		Bus:       d.bus,
		Logger:    d.logger,
	}), nil
}

func (d *device) Close() {
	if err := d.client.Close(); err != nil {
		d.logger.Warn("close device store", "error", err)
	}
}

func stamp(t time.Time) string {
	return t.Local().Format(time.Kitchen)
}
