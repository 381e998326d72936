package lnbits

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLedger(t *testing.T, handler http.Handler) *Ledger {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewLedger(srv.URL, "test-api-key", slog.Default())
}

func paymentJSON(hash, walletID string, amount int64, status string, pending bool, settled time.Time, fiatCurrency string, fiatAmount float64) map[string]any {
	return map[string]any{
		"payment_hash": hash,
		"wallet_id":    walletID,
		"amount":       amount,
		"memo":         "memo for " + hash,
		"status":       status,
		"pending":      pending,
		"time":         float64(settled.Unix()),
		"extra": map[string]any{
			"wallet_fiat_currency": fiatCurrency,
			"wallet_fiat_amount":   fiatAmount,
		},
	}
}

func TestLedger_ListSuccessfulIncomingPayments(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)

	var gotKey, gotWallet string
	ledger := newTestLedger(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotWallet = r.URL.Query().Get("wallet_id")
		_ = json.NewEncoder(w).Encode([]map[string]any{
			paymentJSON("hash-in", "wallet-1", 21_000, "success", false, now, "EUR", 1.05),
			paymentJSON("hash-out", "wallet-1", -21_000, "success", false, now, "EUR", 1.05),
			paymentJSON("hash-pending", "wallet-1", 10_000, "pending", true, now, "", 0),
			paymentJSON("hash-other", "wallet-2", 10_000, "success", false, now, "EUR", 0.5),
		})
	}))

	payments, err := ledger.ListSuccessfulIncomingPayments(context.Background(), "wallet-1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "test-api-key", gotKey)
	assert.Equal(t, "wallet-1", gotWallet)

	require.Len(t, payments, 1)
	p := payments[0]
	assert.Equal(t, "hash-in", p.PaymentHash)
	assert.Equal(t, int64(21_000), p.AmountMsat)
	assert.Equal(t, "EUR", p.FiatCurrency)
	assert.Equal(t, 1.05, p.FiatAmount)
	assert.True(t, p.SettledAt.Equal(now))
	assert.True(t, p.HasFiat())
}

func TestLedger_SinceFilter(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	old := now.Add(-48 * time.Hour)

	ledger := newTestLedger(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.URL.Query().Get("since"))
		_ = json.NewEncoder(w).Encode([]map[string]any{
			paymentJSON("hash-old", "wallet-1", 5_000, "success", false, old, "EUR", 0.25),
			paymentJSON("hash-new", "wallet-1", 5_000, "success", false, now, "EUR", 0.25),
		})
	}))

	payments, err := ledger.ListSuccessfulIncomingPayments(context.Background(), "wallet-1", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "hash-new", payments[0].PaymentHash)
}

func TestLedger_LegacyPendingFlag(t *testing.T) {
	now := time.Now().UTC()

	// Older platforms omit status and report pending as a boolean.
	ledger := newTestLedger(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]map[string]any{
			paymentJSON("hash-settled", "wallet-1", 5_000, "", false, now, "EUR", 0.25),
			paymentJSON("hash-pending", "wallet-1", 5_000, "", true, now, "EUR", 0.25),
		})
	}))

	payments, err := ledger.ListSuccessfulIncomingPayments(context.Background(), "wallet-1", time.Time{})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "hash-settled", payments[0].PaymentHash)
}

func TestLedger_UpstreamError(t *testing.T) {
	ledger := newTestLedger(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := ledger.ListSuccessfulIncomingPayments(context.Background(), "wallet-1", time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
