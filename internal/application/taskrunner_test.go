package application

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lnbridge/xerosync/internal/domain/model"
	"github.com/lnbridge/xerosync/internal/domain/port/driven"
)

func TestTaskRunner_SweepPushesEveryEnabledWallet(t *testing.T) {
	cfgA := pushConfig()
	cfgB := pushConfig()
	cfgB.ID = "cfg-2"
	cfgB.WalletID = "wallet-2"
	disabled := pushConfig()
	disabled.ID = "cfg-3"
	disabled.WalletID = "wallet-3"
	disabled.PushPayments = false

	wallets := newMockWalletStore(cfgA, cfgB, disabled)
	attempts := &mockAttemptStore{}
	p2 := settledPayment("hash-b", 2.50)
	p2.WalletID = "wallet-2"
	p3 := settledPayment("hash-c", 3.00)
	p3.WalletID = "wallet-3"
	ledger := &mockLedger{payments: []model.Payment{settledPayment("hash-a", 1.05), p2, p3}}
	xero := &mockXeroClient{}
	svc := newTestSyncService(wallets, attempts, ledger, xero)
	runner := NewTaskRunner(wallets, svc, time.Minute, slog.Default())

	require.NoError(t, runner.sweep(context.Background()))
	assert.Equal(t, 2, xero.createdCount(), "push-disabled wallets are never swept")
}

func TestTaskRunner_SweepSkipsIncompleteConfigs(t *testing.T) {
	broken := pushConfig()
	broken.XeroBankAccountID = ""
	ok := pushConfig()
	ok.ID = "cfg-2"
	ok.WalletID = "wallet-2"

	wallets := newMockWalletStore(broken, ok)
	p := settledPayment("hash-a", 1.05)
	p.WalletID = "wallet-2"
	ledger := &mockLedger{payments: []model.Payment{p}}
	xero := &mockXeroClient{}
	svc := newTestSyncService(wallets, &mockAttemptStore{}, ledger, xero)
	runner := NewTaskRunner(wallets, svc, time.Minute, slog.Default())

	// One wallet missing its bank account must not stop the others.
	require.NoError(t, runner.sweep(context.Background()))
	assert.Equal(t, 1, xero.createdCount())
}

func TestTaskRunner_SweepHaltsWhenDisconnected(t *testing.T) {
	cfgA := pushConfig()
	cfgB := pushConfig()
	cfgB.ID = "cfg-2"
	cfgB.WalletID = "wallet-2"

	wallets := newMockWalletStore(cfgA, cfgB)
	ledger := &mockLedger{err: driven.ErrNotConnected}
	xero := &mockXeroClient{}
	svc := newTestSyncService(wallets, &mockAttemptStore{}, ledger, xero)
	runner := NewTaskRunner(wallets, svc, time.Minute, slog.Default())

	require.NoError(t, runner.sweep(context.Background()))
	// Every wallet would fail the same way; only the first is attempted.
	assert.Len(t, wallets.statuses, 2, "one syncing transition and one error transition")
}

func TestTaskRunner_StartStopsOnCancel(t *testing.T) {
	wallets := newMockWalletStore()
	svc := newTestSyncService(wallets, &mockAttemptStore{}, &mockLedger{}, &mockXeroClient{})
	runner := NewTaskRunner(wallets, svc, 10*time.Millisecond, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runner.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task runner did not stop on context cancellation")
	}
}
