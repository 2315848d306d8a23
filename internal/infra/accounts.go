package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// TakingsPayload is what the accounts service receives for one session.
type TakingsPayload struct {
	SessionID   int64                      `json:"session_id"`
	Date        string                     `json:"date"`
	Takings     map[string]decimal.Decimal `json:"takings"`     // by payment method
	Departments map[string]decimal.Decimal `json:"departments"` // sales by department
	Terminal    string                     `json:"terminal"`
}

// TakingsReceipt is returned once the accounts service has booked the
// takings. Reference identifies the booking there.
type TakingsReceipt struct {
	Reference string `json:"reference"`
}

// AccountsClient posts session takings to the external accounts service.
type AccountsClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAccountsClient(baseURL string, timeout time.Duration) *AccountsClient {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &AccountsClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Configured reports whether an accounts service URL was given.
func (c *AccountsClient) Configured() bool { return c.baseURL != "" }

// PostTakings sends the takings of one session. Posting the same session
// again replaces the earlier booking.
func (c *AccountsClient) PostTakings(ctx context.Context, payload TakingsPayload) (*TakingsReceipt, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("accounts: marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/sessions/%d/takings", c.baseURL, payload.SessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("accounts: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("accounts: service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("accounts: service returned %d", resp.StatusCode)
	}

	var result TakingsReceipt
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("accounts: decode response: %w", err)
	}
	if result.Reference == "" {
		return nil, fmt.Errorf("accounts: response has no reference")
	}
	return &result, nil
}
