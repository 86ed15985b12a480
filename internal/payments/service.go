package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/offline-pay/offline_pay/internal/ledger"
	"github.com/offline-pay/offline_pay/internal/metrics"
	"github.com/offline-pay/offline_pay/internal/notification"
	"github.com/offline-pay/offline_pay/internal/sms"
	"github.com/offline-pay/offline_pay/internal/txlog"
	"github.com/offline-pay/offline_pay/internal/wallet"
)

var (
	// ErrNotOwner indicates num_from is not the authenticated number.
	ErrNotOwner = errors.New("num_from does not match the signed in number")
	// ErrSelfTransfer rejects transfers to the sender's own number.
	ErrSelfTransfer = errors.New("cannot transfer to yourself")
	// ErrRecipientNotFound indicates num_to has no wallet.
	ErrRecipientNotFound = errors.New("recipient is not registered")
)

// Service wires wallet ledger postings for P2P transfers.
type Service struct {
	ledger        ledger.Ledger
	walletService *wallet.Service
	notifier      notification.Notifier
	format        txlog.Formatter
	now           func() time.Time
	loc           *time.Location
}

// NewService constructs a payment service.
func NewService(ledger ledger.Ledger, walletService *wallet.Service, notifier notification.Notifier, format txlog.Formatter) *Service {
	return &Service{ledger: ledger, walletService: walletService, notifier: notifier, format: format, now: time.Now, loc: time.Local}
}

// TransferInput captures the data needed to move funds between numbers.
type TransferInput struct {
	From           string
	To             string
	Amount         int64
	ClientTxID     string
	RequestorPhone string
}

// TransferResult describes the ledger outcome of a P2P transfer.
type TransferResult struct {
	TransactionID string
	FromBalance   int64
	ToBalance     int64
	CompletedAt   time.Time
	// Duplicate is set when ClientTxID was already settled; nothing moved.
	Duplicate bool
}

// Statement is a number's balance and rendered transaction log.
type Statement struct {
	Balance int64
	Logs    []string
}

// Transfer posts a balanced ledger entry between two wallets. Replays of a
// settled ClientTxID succeed without moving funds again.
func (s *Service) Transfer(ctx context.Context, input TransferInput) (TransferResult, error) {
	if input.Amount <= 0 {
		return TransferResult{}, ledger.ErrInvalidAmount
	}
	if input.RequestorPhone != "" && input.From != input.RequestorPhone {
		return TransferResult{}, ErrNotOwner
	}
	if input.From == input.To {
		return TransferResult{}, ErrSelfTransfer
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.New().String()
	}
	// Keys are chosen by clients, so they are only unique per sender.
	txKey := input.From + ":" + input.ClientTxID

	fromWallet, err := s.walletService.GetByOwner(ctx, input.From)
	if err != nil {
		return TransferResult{}, err
	}
	toWallet, err := s.walletService.GetByOwner(ctx, input.To)
	if errors.Is(err, wallet.ErrWalletNotFound) {
		return TransferResult{}, ErrRecipientNotFound
	}
	if err != nil {
		return TransferResult{}, err
	}

	res, err := s.ledger.Transfer(ctx, fromWallet.AccountCode, toWallet.AccountCode, ledger.KindP2P, txKey, input.Amount)
	if errors.Is(err, ledger.ErrDuplicateTransaction) {
		metrics.RecordBackendTransfer(metrics.OutcomeDuplicate)
		return TransferResult{
			TransactionID: res.TransactionID,
			FromBalance:   res.FromBalance,
			ToBalance:     res.ToBalance,
			CompletedAt:   s.now().UTC(),
			Duplicate:     true,
		}, nil
	}
	if err != nil {
		metrics.RecordBackendTransfer(metrics.OutcomeError)
		return TransferResult{}, err
	}
	metrics.RecordBackendTransfer(metrics.OutcomeSuccess)

	outcome := TransferResult{
		TransactionID: res.TransactionID,
		FromBalance:   res.FromBalance,
		ToBalance:     res.ToBalance,
		CompletedAt:   s.now().UTC(),
	}

	if s.notifier != nil {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferReceived,
			Destination: input.To,
			Body:        sms.Body(input.From, input.Amount),
		})
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTransferSent,
			Destination: input.From,
			Body:        fmt.Sprintf("You sent Rs.%d to %s", input.Amount, s.format.Address(input.To)),
		})
	}

	return outcome, nil
}

// Statement returns the balance and the P2P history of phone, oldest first,
// rendered the way the device log stores it.
func (s *Service) Statement(ctx context.Context, phone string) (Statement, error) {
	w, err := s.walletService.GetByOwner(ctx, phone)
	if err != nil {
		return Statement{}, err
	}
	balance, err := s.ledger.Balance(ctx, w.AccountCode)
	if err != nil {
		return Statement{}, err
	}
	postings, err := s.ledger.Statement(ctx, w.AccountCode)
	if err != nil {
		return Statement{}, err
	}

	logs := make([]string, 0, len(postings))
	for _, p := range postings {
		if p.Kind != ledger.KindP2P {
			continue
		}
		counterparty, ok := wallet.OwnerOf(p.Counterparty)
		if !ok {
			continue
		}
		at := p.At.In(s.loc)
		if p.Amount < 0 {
			logs = append(logs, s.format.Sent(at, -p.Amount, counterparty))
		} else {
			logs = append(logs, s.format.Received(at, p.Amount, counterparty))
		}
	}
	return Statement{Balance: balance, Logs: logs}, nil
}
