package tonapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var ErrTransactionNotFound = errors.New("tonapi: transaction not found")

// Client fetches confirmed transactions from a tonapi-compatible indexer.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type Account struct {
	Address string `json:"address"`
}

type OutMessage struct {
	Destination Account `json:"destination"`
	Value       int64   `json:"value"`
}

type Transaction struct {
	Hash    string       `json:"hash"`
	Success bool         `json:"success"`
	UTime   int64        `json:"utime"`
	OutMsgs []OutMessage `json:"out_msgs"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// LookupTransaction resolves a transaction by its cell hash in hex form.
// A 404 from the indexer means the transaction never reached the chain.
func (c *Client) LookupTransaction(ctx context.Context, hash string) (Transaction, error) {
	if c == nil || c.baseURL == "" {
		return Transaction{}, fmt.Errorf("tonapi client is not configured")
	}
	if strings.TrimSpace(hash) == "" {
		return Transaction{}, fmt.Errorf("transaction hash is required")
	}

	url := fmt.Sprintf("%s/v2/blockchain/transactions/%s", c.baseURL, strings.TrimSpace(hash))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Transaction{}, fmt.Errorf("create tonapi request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Transaction{}, fmt.Errorf("call tonapi: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return Transaction{}, ErrTransactionNotFound
	case resp.StatusCode != http.StatusOK:
		return Transaction{}, fmt.Errorf("tonapi returned status %d", resp.StatusCode)
	}

	var tx Transaction
	if err := json.NewDecoder(resp.Body).Decode(&tx); err != nil {
		return Transaction{}, fmt.Errorf("decode tonapi response: %w", err)
	}

	return tx, nil
}
