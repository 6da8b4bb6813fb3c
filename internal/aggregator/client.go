// Package aggregator wraps the third-party financial-data provider that
// supplies bank account and transaction data. The reconciler depends only on
// the Client interface; HTTPClient is the production implementation.
package aggregator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nlozovan/budget-ledger/internal/logger"
)

const (
	// pageSize is the number of records requested per page.
	pageSize = 500

	// maxPages bounds the pagination loop so a misbehaving upstream cannot
	// cause unbounded work. 25 pages x 500 records covers any realistic
	// household window.
	maxPages = 25

	dateFormat = "2006-01-02"
)

// ErrReauthRequired indicates the provider rejected the credential and the
// user must reconnect the institution. Distinct from transient fetch errors.
var ErrReauthRequired = errors.New("aggregator: reauthentication required")

// Client fetches all transaction records for a date window. Implementations
// must exhaust pagination internally and return the complete set.
type Client interface {
	FetchTransactions(ctx context.Context, accessToken string, start, end time.Time, includePending bool) (*FetchResult, error)
}

// HTTPClient talks to the provider's REST transactions endpoint.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates an HTTPClient for the given provider base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type fetchRequest struct {
	AccessToken    string `json:"access_token"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	IncludePending bool   `json:"include_pending"`
	Count          int    `json:"count"`
	Offset         int    `json:"offset"`
}

type fetchResponse struct {
	Transactions      []TransactionRecord `json:"transactions"`
	TotalTransactions int                 `json:"total_transactions"`
	ErrorCode         string              `json:"error_code,omitempty"`
	ErrorMessage      string              `json:"error_message,omitempty"`
}

// FetchTransactions implements Client. It pages through the provider's
// transactions endpoint until the authoritative total is reached or the page
// cap is hit.
func (c *HTTPClient) FetchTransactions(ctx context.Context, accessToken string, start, end time.Time, includePending bool) (*FetchResult, error) {
	log := logger.FromContext(ctx)

	result := &FetchResult{}
	for page := 0; page < maxPages; page++ {
		resp, err := c.fetchPage(ctx, fetchRequest{
			AccessToken:    accessToken,
			StartDate:      start.Format(dateFormat),
			EndDate:        end.Format(dateFormat),
			IncludePending: includePending,
			Count:          pageSize,
			Offset:         page * pageSize,
		})
		if err != nil {
			return nil, err
		}

		result.Transactions = append(result.Transactions, resp.Transactions...)
		result.TotalCount = resp.TotalTransactions

		if len(result.Transactions) >= resp.TotalTransactions || len(resp.Transactions) == 0 {
			return result, nil
		}
	}

	log.Warn().
		Int("fetched", len(result.Transactions)).
		Int("reported_total", result.TotalCount).
		Msg("Hit pagination cap before exhausting window")

	return nil, fmt.Errorf("aggregator: window not exhausted after %d pages (%d of %d records)",
		maxPages, len(result.Transactions), result.TotalCount)
}

func (c *HTTPClient) fetchPage(ctx context.Context, reqBody fetchRequest) (*fetchResponse, error) {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("fetchPage: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transactions/get", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("fetchPage: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetchPage: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("fetchPage: reading response: %w", err)
	}

	var resp fetchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("fetchPage: decoding response: %w", err)
	}

	// The provider reports credential problems in-band with a 4xx status.
	if resp.ErrorCode == "ITEM_LOGIN_REQUIRED" || httpResp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("fetchPage: %s: %w", resp.ErrorMessage, ErrReauthRequired)
	}
	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetchPage: provider returned %d: %s", httpResp.StatusCode, resp.ErrorMessage)
	}

	return &resp, nil
}
