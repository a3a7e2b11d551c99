package fxrate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"transfer-reconciliation-service/pkg/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// DefaultProviderSource tags provider rates that come back without a source.
const DefaultProviderSource = "provider"

// HTTPProviderConfig configures the external rate provider client.
type HTTPProviderConfig struct {
	URL           string        `mapstructure:"provider_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    uint64        `mapstructure:"max_retries"`
	RetryInterval time.Duration `mapstructure:"retry_interval"`
}

// DefaultHTTPProviderConfig returns the client defaults.
func DefaultHTTPProviderConfig() HTTPProviderConfig {
	return HTTPProviderConfig{
		Timeout:       10 * time.Second,
		MaxRetries:    2,
		RetryInterval: 200 * time.Millisecond,
	}
}

type providerRequest struct {
	Date         string `json:"date"`
	FromCurrency string `json:"from_currency"`
	ToCurrency   string `json:"to_currency"`
}

type providerResponse struct {
	Success bool            `json:"success"`
	Rate    decimal.Decimal `json:"rate"`
	Source  string          `json:"source"`
	Error   string          `json:"error"`
}

// HTTPProvider asks an external service for the rate on an exact date.
// Transport errors and 5xx answers are retried; 4xx answers and
// success=false bodies are not.
type HTTPProvider struct {
	config HTTPProviderConfig
	client *http.Client
	logger logger.Logger
}

// NewHTTPProvider creates a provider client. A nil client gets one with the
// configured timeout.
func NewHTTPProvider(config HTTPProviderConfig, client *http.Client, log logger.Logger) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: config.Timeout}
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &HTTPProvider{
		config: config,
		client: client,
		logger: log.WithComponent("fxrate_provider"),
	}
}

// FetchRate implements Provider.
func (p *HTTPProvider) FetchRate(ctx context.Context, key RateKey) (Rate, error) {
	body, err := json.Marshal(providerRequest{Date: key.Date, FromCurrency: key.From, ToCurrency: key.To})
	if err != nil {
		return Rate{}, err
	}

	var (
		rate     Rate
		attempts int
	)
	operation := func() error {
		attempts++
		r, err := p.fetchOnce(ctx, body)
		if err != nil {
			return err
		}
		rate = r
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = p.config.RetryInterval
	b := backoff.WithContext(backoff.WithMaxRetries(policy, p.config.MaxRetries), ctx)

	if err := backoff.Retry(operation, b); err != nil {
		return Rate{}, errors.Wrapf(err, "rate provider failed after %d attempt(s)", attempts)
	}

	p.logger.WithFields(logger.Fields{
		"date":     key.Date,
		"from":     key.From,
		"to":       key.To,
		"source":   rate.Source,
		"attempts": attempts,
	}).Debug("Rate fetched from provider")

	return rate, nil
}

func (p *HTTPProvider) fetchOnce(ctx context.Context, body []byte) (Rate, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.config.URL, bytes.NewReader(body))
	if err != nil {
		return Rate{}, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Rate{}, backoff.Permanent(ctx.Err())
		}
		return Rate{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Rate{}, err
	}

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return Rate{}, fmt.Errorf("rate provider returned status %d", resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return Rate{}, backoff.Permanent(errors.Wrapf(ErrProviderRejected, "status %d", resp.StatusCode))
	}

	var decoded providerResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return Rate{}, backoff.Permanent(errors.Wrap(err, "decode rate provider response"))
	}

	if !decoded.Success {
		return Rate{}, backoff.Permanent(errors.Wrapf(ErrProviderRejected, "provider error: %s", decoded.Error))
	}
	if !decoded.Rate.IsPositive() {
		return Rate{}, backoff.Permanent(errors.Wrapf(ErrProviderRejected, "non-positive rate %s", decoded.Rate))
	}

	source := decoded.Source
	if source == "" {
		source = DefaultProviderSource
	}
	return Rate{Value: decoded.Rate, Source: source}, nil
}
