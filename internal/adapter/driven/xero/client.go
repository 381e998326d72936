// Package xero implements the XeroClient port over the Xero accounting API
// with a caching transport and exponential-backoff retries.
package xero

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gregjones/httpcache"

	"github.com/lnbridge/xerosync/internal/domain/model"
	"github.com/lnbridge/xerosync/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.XeroClient = (*Client)(nil)

const (
	defaultBaseURL = "https://api.xero.com/api.xro/2.0"

	requestTimeout  = 15 * time.Second
	retryBase       = 500 * time.Millisecond
	retryMultiplier = 2
	maxRetries      = 3
)

// TokenProvider supplies a valid access token and tenant id per call, and
// forces a refresh when the provider-side token has been revoked early.
type TokenProvider interface {
	// Token returns a credential whose access token is valid for at least
	// the refresh safety margin.
	Token(ctx context.Context) (access, tenant string, err error)

	// Invalidate discards the cached access token so the next Token call
	// performs a refresh. Used after a 401.
	Invalidate(ctx context.Context) error
}

// ClientError is a non-retryable 4xx failure from the Xero API.
type ClientError struct {
	Status int
	Body   string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("xero api error %d: %s", e.Status, e.Body)
}

// ServerError is a 5xx failure from the Xero API. Requests that hit one are
// retried; the caller only sees a ServerError once the retries are exhausted.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("xero server error %d: %s", e.Status, e.Body)
}

// Client implements the driven.XeroClient port. Transport stack:
//  1. httpcache (conditional request caching for reference-data GETs)
//  2. net/http with a 15s per-request timeout
type Client struct {
	http      *http.Client
	baseURL   string
	tokens    TokenProvider
	logger    *slog.Logger
	retryBase time.Duration
}

// NewClient creates a Xero API client backed by the given token provider.
func NewClient(tokens TokenProvider, logger *slog.Logger) *Client {
	return &Client{
		http: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   requestTimeout,
		},
		baseURL:   defaultBaseURL,
		tokens:    tokens,
		logger:    logger,
		retryBase: retryBase,
	}
}

// NewClientWithBaseURL creates a Client pointed at a custom base URL without
// the caching transport. Intended for httptest servers.
func NewClientWithBaseURL(baseURL string, tokens TokenProvider, logger *slog.Logger) *Client {
	return &Client{
		http:      &http.Client{Timeout: requestTimeout},
		baseURL:   baseURL,
		tokens:    tokens,
		logger:    logger,
		retryBase: retryBase,
	}
}

// xeroAccount is the wire shape of a chart-of-accounts entry.
type xeroAccount struct {
	AccountID     string `json:"AccountID"`
	Code          string `json:"Code"`
	Name          string `json:"Name"`
	Type          string `json:"Type"`
	AccountNumber string `json:"AccountNumber"`
}

type accountsResponse struct {
	Accounts []xeroAccount `json:"Accounts"`
}

// ListAccounts fetches the chart of accounts projected for select inputs.
func (c *Client) ListAccounts(ctx context.Context) ([]model.XeroAccountRef, error) {
	var body accountsResponse
	if err := c.do(ctx, http.MethodGet, "/Accounts", nil, &body); err != nil {
		return nil, err
	}

	refs := make([]model.XeroAccountRef, 0, len(body.Accounts))
	for _, acc := range body.Accounts {
		value := acc.Code
		if value == "" {
			value = acc.AccountID
		}
		refs = append(refs, model.XeroAccountRef{
			Value: value,
			Label: accountLabel(acc.Code, acc.Name),
			Type:  acc.Type,
		})
	}
	return refs, nil
}

// ListBankAccounts fetches bank-type accounts projected for select inputs.
func (c *Client) ListBankAccounts(ctx context.Context) ([]model.XeroBankAccountRef, error) {
	var body accountsResponse
	if err := c.do(ctx, http.MethodGet, `/Accounts?where=Type=="BANK"`, nil, &body); err != nil {
		return nil, err
	}

	refs := make([]model.XeroBankAccountRef, 0, len(body.Accounts))
	for _, acc := range body.Accounts {
		label := acc.Name
		if acc.AccountNumber != "" {
			label = fmt.Sprintf("%s (%s)", acc.Name, acc.AccountNumber)
		}
		refs = append(refs, model.XeroBankAccountRef{
			Value: acc.AccountID,
			Label: label,
		})
	}
	return refs, nil
}

// bankTransactionPayload is the wire shape of a BankTransactions create call.
type bankTransactionPayload struct {
	BankTransactions []bankTransaction `json:"BankTransactions"`
}

type bankTransaction struct {
	Type              string     `json:"Type"`
	Contact           contact    `json:"Contact"`
	BankAccount       bankRef    `json:"BankAccount"`
	LineItems         []lineItem `json:"LineItems"`
	Reference         string     `json:"Reference,omitempty"`
	CurrencyCode      string     `json:"CurrencyCode,omitempty"`
	Date              string     `json:"Date,omitempty"`
	BankTransactionID string     `json:"BankTransactionID,omitempty"`
}

type contact struct {
	Name string `json:"Name"`
}

type bankRef struct {
	AccountID string `json:"AccountID"`
}

type lineItem struct {
	Description string  `json:"Description"`
	Quantity    float64 `json:"Quantity"`
	UnitAmount  float64 `json:"UnitAmount"`
	AccountCode string  `json:"AccountCode,omitempty"`
	TaxType     string  `json:"TaxType,omitempty"`
}

// CreateBankTransaction creates a RECEIVE bank transaction and returns the
// Xero transaction id.
func (c *Client) CreateBankTransaction(ctx context.Context, tx model.BankTransaction) (string, error) {
	payload := bankTransactionPayload{
		BankTransactions: []bankTransaction{{
			Type:        "RECEIVE",
			Contact:     contact{Name: tx.ContactName},
			BankAccount: bankRef{AccountID: tx.BankAccountID},
			LineItems: []lineItem{{
				Description: tx.Description,
				Quantity:    1,
				UnitAmount:  tx.UnitAmount,
				AccountCode: tx.AccountCode,
				TaxType:     tx.TaxType,
			}},
			Reference:    tx.Reference,
			CurrencyCode: tx.CurrencyCode,
			Date:         tx.Date,
		}},
	}

	var body bankTransactionPayload
	if err := c.do(ctx, http.MethodPost, "/BankTransactions", payload, &body); err != nil {
		return "", err
	}

	if len(body.BankTransactions) == 0 {
		return "", fmt.Errorf("xero returned no bank transaction in response")
	}
	return body.BankTransactions[0].BankTransactionID, nil
}

// do performs one authenticated API call with the retry policy: transient
// failures (5xx, transport errors) retried up to 3 times with exponential
// backoff and jitter; 4xx never retried; 401 gets exactly one forced token
// refresh before failing as ErrUnauthorized.
func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var encoded []byte
	if payload != nil {
		var err error
		if encoded, err = json.Marshal(payload); err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
	}

	refreshed := false
	attempt := func() error {
		access, tenant, err := c.tokens.Token(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}

		var reqBody io.Reader
		if encoded != nil {
			reqBody = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+access)
		req.Header.Set("xero-tenant-id", tenant)
		req.Header.Set("Accept", "application/json")
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			// Transport failure or timeout: transient.
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read response for %s %s: %w", method, path, err)
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if out == nil || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, out); err != nil {
				return backoff.Permanent(fmt.Errorf("decode response for %s %s: %w", method, path, err))
			}
			return nil

		case resp.StatusCode == http.StatusUnauthorized:
			if !refreshed {
				refreshed = true
				if invErr := c.tokens.Invalidate(ctx); invErr != nil {
					return backoff.Permanent(invErr)
				}
				c.logger.Warn("xero returned 401, forcing token refresh", "path", path)
				return fmt.Errorf("unauthorized, retrying after refresh")
			}
			return backoff.Permanent(driven.ErrUnauthorized)

		case resp.StatusCode >= 500:
			c.logger.Warn("xero server error, will retry", "path", path, "status", resp.StatusCode)
			return &ServerError{Status: resp.StatusCode, Body: string(respBody)}

		default:
			return backoff.Permanent(&ClientError{Status: resp.StatusCode, Body: string(respBody)})
		}
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryBase
	bo.Multiplier = retryMultiplier

	return backoff.Retry(attempt, backoff.WithContext(backoff.WithMaxRetries(bo, maxRetries), ctx))
}

// accountLabel renders "Code - Name", dropping whichever side is empty.
func accountLabel(code, name string) string {
	switch {
	case code == "":
		return name
	case name == "":
		return code
	default:
		return code + " - " + name
	}
}
