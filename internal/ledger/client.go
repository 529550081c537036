package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/mtlprog/sale/internal/domain"
)

// Client is an HTTP client for the ledger gateway with retry on 429.
// It implements TokenBackend, OwnershipRegistry, StableToken and NativeBank.
type Client struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
}

// NewClient creates a new ledger gateway client.
func NewClient(baseURL string, maxRetries int, baseDelay time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
	}
}

type createClassRequest struct {
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	Memo            string `json:"memo"`
	Treasury        string `json:"treasury"`
	SupplyAuthority string `json:"supplyAuthority"`
}

type createClassResponse struct {
	Code    ResponseCode `json:"code"`
	ClassID string       `json:"classId"`
}

// CreateClass registers a new asset class with the token backend.
func (c *Client) CreateClass(ctx context.Context, def ClassDefinition) (domain.ClassID, ResponseCode, error) {
	req := createClassRequest{
		Name:            def.Name,
		Symbol:          def.Symbol,
		Memo:            def.Memo,
		Treasury:        string(def.Treasury),
		SupplyAuthority: string(def.SupplyAuthority),
	}
	var resp createClassResponse
	if err := c.postJSON(ctx, "/v1/token/classes", req, &resp); err != nil {
		return "", CodeInternal, err
	}
	return domain.ClassID(resp.ClassID), resp.Code, nil
}

type mintRequest struct {
	Metadata []byte `json:"metadata"`
	Quantity int    `json:"quantity"`
}

type mintResponse struct {
	Code    ResponseCode          `json:"code"`
	Serials []domain.SerialNumber `json:"serials"`
}

// MintUnits mints quantity units of the class with the given metadata.
func (c *Client) MintUnits(ctx context.Context, class domain.ClassID, metadata []byte, quantity int) ([]domain.SerialNumber, ResponseCode, error) {
	var resp mintResponse
	path := fmt.Sprintf("/v1/token/classes/%s/mint", class)
	if err := c.postJSON(ctx, path, mintRequest{Metadata: metadata, Quantity: quantity}, &resp); err != nil {
		return nil, CodeInternal, err
	}
	return resp.Serials, resp.Code, nil
}

type transferRequest struct {
	Class  string `json:"class"`
	Serial int64  `json:"serial"`
	From   string `json:"from"`
	To     string `json:"to"`
}

// TransferUnit moves a minted unit between accounts via the ownership registry.
func (c *Client) TransferUnit(ctx context.Context, unit domain.UnitRef, from, to domain.AccountID) error {
	req := transferRequest{
		Class:  string(unit.Class),
		Serial: int64(unit.Serial),
		From:   string(from),
		To:     string(to),
	}
	var resp codeResponse
	if err := c.postJSON(ctx, "/v1/registry/transfer", req, &resp); err != nil {
		return err
	}
	if resp.Code != CodeOK {
		return &CodeError{Op: "transfer " + unit.String(), Code: resp.Code}
	}
	return nil
}

type pullRequest struct {
	Token  string `json:"token"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// Pull withdraws a pre-approved stable-token amount from the payer.
func (c *Client) Pull(ctx context.Context, token domain.TokenID, from, to domain.AccountID, units int64) error {
	req := pullRequest{Token: string(token), From: string(from), To: string(to), Amount: units}
	var resp codeResponse
	if err := c.postJSON(ctx, "/v1/payments/stable/pull", req, &resp); err != nil {
		return err
	}
	if resp.Code != CodeOK {
		return &CodeError{Op: "stable pull", Code: resp.Code}
	}
	return nil
}

// Push transfers stable tokens out of an account this service controls.
func (c *Client) Push(ctx context.Context, token domain.TokenID, from, to domain.AccountID, units int64) error {
	req := pullRequest{Token: string(token), From: string(from), To: string(to), Amount: units}
	var resp codeResponse
	if err := c.postJSON(ctx, "/v1/payments/stable/transfer", req, &resp); err != nil {
		return err
	}
	if resp.Code != CodeOK {
		return &CodeError{Op: "stable push", Code: resp.Code}
	}
	return nil
}

type sendRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

// Send pushes native currency from one account to another.
func (c *Client) Send(ctx context.Context, from, to domain.AccountID, amount *big.Int) error {
	req := sendRequest{From: string(from), To: string(to), Amount: amount.String()}
	var resp codeResponse
	if err := c.postJSON(ctx, "/v1/payments/native/send", req, &resp); err != nil {
		return err
	}
	if resp.Code != CodeOK {
		return &CodeError{Op: "native send", Code: resp.Code}
	}
	return nil
}

type codeResponse struct {
	Code ResponseCode `json:"code"`
}

// postJSON performs a POST with retry on 429 and unmarshals the JSON response.
func (c *Client) postJSON(ctx context.Context, path string, payload, dest any) error {
	url := c.baseURL + path
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request for %s: %w", path, err)
	}

	var lastErr error
	for attempt := range c.maxRetries + 1 {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("executing request: %w", err)
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode == http.StatusOK {
			if err := json.Unmarshal(respBody, dest); err != nil {
				return fmt.Errorf("parsing JSON from %s: %w", path, err)
			}
			return nil
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("HTTP 429 at %s (attempt %d/%d)", url, attempt+1, c.maxRetries+1)
			if attempt < c.maxRetries {
				delay := c.baseDelay * time.Duration(1<<uint(attempt))
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(delay):
				}
				continue
			}
			return lastErr
		}

		return fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, url, string(respBody))
	}

	return lastErr
}
