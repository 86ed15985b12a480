// Command offlinepay drives one simulated handset: it signs in against the
// sandbox API, sends money online or through the offline queue, and watches
// the SMS inbox for credits while the backend is unreachable.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/offline-pay/offline_pay/internal/config"
	"github.com/offline-pay/offline_pay/internal/localledger"
	"github.com/offline-pay/offline_pay/internal/logging"
	"github.com/offline-pay/offline_pay/internal/session"
	"github.com/offline-pay/offline_pay/internal/syncer"
)

const usage = `usage: offlinepay <command> [flags]

commands:
  register  -name NAME -num NUM -pass PASS
  login     -num NUM -pass PASS
  logout
  send      -to NUM -amount N
  sync      replay queued transfers
  refresh   pull balance and log from the backend
  balance
  logs
  inbox     scan the SMS inbox once
  watch     probe, drain and listen until interrupted

every command accepts -device ID and -offline`

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.LoadClient()
	if err != nil {
		fail("load config", err)
	}
	logger := logging.NewTo(os.Stderr, cfg.LogLevel, cfg.LogFile)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var run func(context.Context, config.Config, *slog.Logger, []string) error
	switch os.Args[1] {
	case "register":
		run = runRegister
	case "login":
		run = runLogin
	case "logout":
		run = runLogout
	case "send":
		run = runSend
	case "sync":
		run = runSync
	case "refresh":
		run = runRefresh
	case "balance":
		run = runBalance
	case "logs":
		run = runLogs
	case "inbox":
		run = runInbox
	case "watch":
		run = runWatch
	case "-h", "--help", "help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s\n", os.Args[1], usage)
		os.Exit(2)
	}

	if err := run(ctx, cfg, logger, os.Args[2:]); err != nil {
		fail(os.Args[1], err)
	}
}

func fail(what string, err error) {
	switch {
	case errors.Is(err, syncer.ErrOffline):
		fmt.Fprintf(os.Stderr, "%s: backend unreachable, try again when online\n", what)
	case errors.Is(err, session.ErrNoSession):
		fmt.Fprintf(os.Stderr, "%s: not signed in, run offlinepay login first\n", what)
	case errors.Is(err, localledger.ErrNotInitialized):
		fmt.Fprintf(os.Stderr, "%s: no balance on this device yet, sign in while online\n", what)
	default:
		fmt.Fprintf(os.Stderr, "%s: %v\n", what, err)
	}
	os.Exit(1)
}

// command is a subcommand flag set carrying the device flags every command shares.
type command struct {
	fs      *flag.FlagSet
	device  *string
	offline *bool
}

func newCommand(name string) *command {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &command{
		fs:      fs,
		device:  fs.String("device", "default", "device namespace in the device store"),
		offline: fs.Bool("offline", false, "skip the connectivity probe and act offline"),
	}
}

func (c *command) open(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) (*device, error) {
	if err := c.fs.Parse(args); err != nil {
		return nil, err
	}
	return openDevice(ctx, cfg, logger, *c.device, *c.offline)
}

func runRegister(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	cmd := newCommand("register")
	name := cmd.fs.String("name", "", "display name (required)")
	num := cmd.fs.String("num", "", "10 digit mobile number (required)")
	pass := cmd.fs.String("pass", "", "password, at least 8 characters (required)")
	d, err := cmd.open(ctx, cfg, logger, args)
	if err != nil {
		return err
	}
	defer d.Close()

	sess, err := d.coord.Register(ctx, *name, *num, *pass)
	if err != nil {
		return err
	}
	fmt.Printf("registered %s (%s)\n", sess.Name, d.format.Address(sess.Num))
	return printBalance(ctx, d)
}

func runLogin(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	cmd := newCommand("login")
	num := cmd.fs.String("num", "", "10 digit mobile number (required)")
	pass := cmd.fs.String("pass", "", "password (required)")
	d, err := cmd.open(ctx, cfg, logger, args)
	if err != nil {
		return err
	}
	defer d.Close()

	sess, err := d.coord.Login(ctx, *num, *pass)
	if err != nil {
		return err
	}
	fmt.Printf("signed in as %s (%s)\n", sess.Name, d.format.Address(sess.Num))
	return printBalance(ctx, d)
}

func runLogout(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	d, err := newCommand("logout").open(ctx, cfg, logger, args)
	if err != nil {
		return err
	}
	defer d.Close()

	if err := d.coord.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("signed out, balance and queued transfers stay on this device")
	return nil
}

func runSend(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	cmd := newCommand("send")
	to := cmd.fs.String("to", "", "recipient 10 digit mobile number (required)")
	amount := cmd.fs.Int64("amount", 0, "whole rupees to send")
	d, err := cmd.open(ctx, cfg, logger, args)
	if err != nil {
		return err
	}
	defer d.Close()

	res, err := d.coord.SendTransfer(ctx, *to, *amount)
	if err != nil {
		return err
	}
	switch res.Route {
	case syncer.RouteOnline:
		fmt.Printf("sent Rs.%d to %s\n", *amount, d.format.Address(*to))
		if res.Stale {
			fmt.Println("balance could not be refreshed, showing the last known value")
		}
	default:
		fmt.Printf("queued Rs.%d to %s (%s)\n", *amount, d.format.Address(*to), res.ClientTxID)
		if res.NotifyErr != nil {
			fmt.Printf("recipient was not notified: %v\n", res.NotifyErr)
		}
	}
	fmt.Printf("balance Rs.%d\n", res.Balance)
	return nil
}

func runSync(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	d, err := newCommand("sync").open(ctx, cfg, logger, args)
	if err != nil {
		return err
	}
	defer d.Close()

	if !d.monitor.Online() {
		return syncer.ErrOffline
	}
	report, err := d.coord.Drain(ctx)
	if err != nil {
		return err
	}
	for _, t := range report.Replayed {
		fmt.Printf("replayed Rs.%d to %s\n", t.Amount, d.format.Address(t.To))
	}
	for _, r := range report.Rejected {
		fmt.Printf("rejected Rs.%d to %s: %s\n", r.Transfer.Amount, d.format.Address(r.Transfer.To), r.Reason)
	}
	if n := len(report.Retained); n > 0 {
		fmt.Printf("%d transfer(s) still queued\n", n)
	}
	if report.RefreshErr != nil {
		fmt.Printf("balance not refreshed: %v\n", report.RefreshErr)
	}
	return printBalance(ctx, d)
}

func runRefresh(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	d, err := newCommand("refresh").open(ctx, cfg, logger, args)
	if err != nil {
		return err
	}
	defer d.Close()

	snap, err := d.coord.Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("balance Rs.%d (%d log entries)\n", snap.Balance, len(snap.Logs))
	return nil
}

func runBalance(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	d, err := newCommand("balance").open(ctx, cfg, logger, args)
	if err != nil {
		return err
	}
	defer d.Close()

	st, err := d.coord.Status(ctx)
	if err != nil {
		return err
	}
	mode := "offline"
	if st.Online {
		mode = "online"
	}
	fmt.Printf("%s (%s), %s\n", st.Session.Name, d.format.Address(st.Session.Num), mode)
	fmt.Printf("balance Rs.%d\n", st.Ledger.Balance)
	if st.Pending > 0 {
		fmt.Printf("%d transfer(s) waiting to sync\n", st.Pending)
	}
	return nil
}

func runLogs(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	d, err := newCommand("logs").open(ctx, cfg, logger, args)
	if err != nil {
		return err
	}
	defer d.Close()

	snap, err := d.coord.Ledger().Snapshot(ctx)
	if err != nil {
		return err
	}
	if len(snap.Logs) == 0 {
		fmt.Println("no transactions yet")
		return nil
	}
	for _, line := range snap.Logs {
		fmt.Println(line)
	}
	return nil
}

func runInbox(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	d, err := newCommand("inbox").open(ctx, cfg, logger, args)
	if err != nil {
		return err
	}
	defer d.Close()

	l, err := d.listener()
	if err != nil {
		return err
	}
	fmt.Printf("inbox: %s\n", l.Scan(ctx))
	return printBalance(ctx, d)
}

func runWatch(ctx context.Context, cfg config.Config, logger *slog.Logger, args []string) error {
	d, err := newCommand("watch").open(ctx, cfg, logger, args)
	if err != nil {
		return err
	}
	defer d.Close()

	events, unsubscribe := d.bus.Subscribe()
	defer unsubscribe()

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				d.logger.Error("metrics server", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if !d.offline {
		probe, err := d.prober.Start(ctx, cfg.ProbeInterval)
		if err != nil {
			return err
		}
		defer probe.Stop()
	}

	if l, err := d.listener(); err == nil {
		inbox, err := l.Start(ctx, cfg.InboxPollInterval)
		if err != nil {
			return err
		}
		defer inbox.Stop()
	} else {
		d.logger.Warn("not signed in, inbox is not watched")
	}

	runErr := make(chan error, 1)
	go func() { runErr <- d.coord.Run(ctx) }()

	fmt.Println("watching, press Ctrl+C to stop")
	for {
		select {
		case e, ok := <-events:
			if !ok {
				return nil
			}
			fmt.Printf("%s %-22s %s balance=Rs.%d\n", stamp(e.At), e.Kind, e.Detail, e.Balance)
		case err := <-runErr:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

func printBalance(ctx context.Context, d *device) error {
	snap, err := d.coord.Ledger().Snapshot(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("balance Rs.%d\n", snap.Balance)
	return nil
}
