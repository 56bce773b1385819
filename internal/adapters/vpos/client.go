package vpos

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
)

// Config contains connection settings for one virtual POS endpoint
type Config struct {
	BaseURL            string
	MerchantID         string
	APIKey             string
	SecretKey          string
	Timeout            time.Duration
	InsecureSkipVerify bool
}

// DefaultConfig returns sane defaults for a sandbox endpoint
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}
}

// client wraps the HTTP plumbing shared by the processor adapters
type client struct {
	config     *Config
	httpClient *http.Client
	logger     ports.Logger
}

func newClient(config *Config, logger ports.Logger) *client {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.InsecureSkipVerify,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
	}

	return &client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		logger: logger,
	}
}

// chargeResponse covers the fields both processors return; everything else
// stays in the raw body.
type chargeResponse struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId"`
	ResponseCode  string `json:"responseCode"`
	ErrorMessage  string `json:"errorMessage"`
}

// post sends a JSON payload and returns the parsed envelope plus the raw body
func (c *client) post(ctx context.Context, path string, payload interface{}) (*chargeResponse, json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal charge payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("create charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Api-Key", c.config.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, domain.WrapError(domain.ErrorCodeGatewayTimeout,
				"Ödeme sağlayıcısı zaman aşımına uğradı", err)
		}
		return nil, nil, domain.WrapError(domain.ErrorCodeGatewayError,
			"Ödeme sağlayıcısına ulaşılamadı", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, nil, fmt.Errorf("read charge response: %w", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, nil, domain.NewDomainError(domain.ErrorCodeGatewayError,
			fmt.Sprintf("Ödeme sağlayıcısı hatası (HTTP %d)", resp.StatusCode))
	}

	var envelope chargeResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, nil, fmt.Errorf("decode charge response: %w", err)
	}
	return &envelope, json.RawMessage(raw), nil
}

// retryableCodes are processor response codes worth retrying later.
// Declines on these codes come from the acquirer side, not the card.
var retryableCodes = map[string]bool{
	"91": true, // issuer unavailable
	"96": true, // system malfunction
	"05": false,
	"51": false,
}

func isRetryable(code string) bool {
	return retryableCodes[code]
}
