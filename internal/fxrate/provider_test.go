package fxrate

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const providerURL = "https://rates.example.test/v1/rate"

func newMockedProvider(t *testing.T, retries uint64) *HTTPProvider {
	t.Helper()
	client := &http.Client{}
	httpmock.ActivateNonDefault(client)
	t.Cleanup(httpmock.DeactivateAndReset)

	return NewHTTPProvider(HTTPProviderConfig{
		URL:           providerURL,
		MaxRetries:    retries,
		RetryInterval: time.Millisecond,
	}, client, nil)
}

func TestHTTPProviderSuccess(t *testing.T) {
	p := newMockedProvider(t, 2)

	httpmock.RegisterResponder(http.MethodPost, providerURL, func(req *http.Request) (*http.Response, error) {
		var body providerRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			return httpmock.NewStringResponse(http.StatusBadRequest, "bad body"), nil
		}
		assert.Equal(t, "2024-03-01", body.Date)
		assert.Equal(t, "USD", body.FromCurrency)
		assert.Equal(t, "CAD", body.ToCurrency)
		return httpmock.NewJsonResponse(http.StatusOK, map[string]interface{}{
			"success": true,
			"rate":    1.3512,
			"source":  "boc",
		})
	})

	rate, err := p.FetchRate(context.Background(), NewRateKey(march1, "usd", "cad"))
	require.NoError(t, err)
	assert.True(t, rate.Value.Equal(decimal.RequireFromString("1.3512")))
	assert.Equal(t, "boc", rate.Source)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestHTTPProviderDefaultsSource(t *testing.T) {
	p := newMockedProvider(t, 0)
	httpmock.RegisterResponder(http.MethodPost, providerURL,
		httpmock.NewStringResponder(http.StatusOK, `{"success":true,"rate":"0.74"}`))

	rate, err := p.FetchRate(context.Background(), NewRateKey(march1, "CAD", "USD"))
	require.NoError(t, err)
	assert.Equal(t, DefaultProviderSource, rate.Source)
}

func TestHTTPProviderRetriesServerErrors(t *testing.T) {
	p := newMockedProvider(t, 2)
	httpmock.RegisterResponder(http.MethodPost, providerURL,
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream down").
			Then(httpmock.NewStringResponder(http.StatusOK, `{"success":true,"rate":1.35,"source":"ecb"}`)))

	rate, err := p.FetchRate(context.Background(), NewRateKey(march1, "USD", "CAD"))
	require.NoError(t, err)
	assert.Equal(t, "ecb", rate.Source)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestHTTPProviderGivesUpAfterRetries(t *testing.T) {
	p := newMockedProvider(t, 2)
	httpmock.RegisterResponder(http.MethodPost, providerURL,
		httpmock.NewStringResponder(http.StatusServiceUnavailable, "maintenance"))

	_, err := p.FetchRate(context.Background(), NewRateKey(march1, "USD", "CAD"))
	require.Error(t, err)
	assert.Equal(t, 3, httpmock.GetTotalCallCount())
}

func TestHTTPProviderDoesNotRetryRejections(t *testing.T) {
	tests := []struct {
		name      string
		responder httpmock.Responder
	}{
		{"client error", httpmock.NewStringResponder(http.StatusNotFound, "no such pair")},
		{"success false", httpmock.NewStringResponder(http.StatusOK, `{"success":false,"error":"unsupported currency"}`)},
		{"zero rate", httpmock.NewStringResponder(http.StatusOK, `{"success":true,"rate":0}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newMockedProvider(t, 3)
			httpmock.RegisterResponder(http.MethodPost, providerURL, tt.responder)

			_, err := p.FetchRate(context.Background(), NewRateKey(march1, "USD", "XAU"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrProviderRejected), "got %v", err)
			assert.Equal(t, 1, httpmock.GetTotalCallCount())
		})
	}
}

func TestResolverWithHTTPProviderReportsNotFound(t *testing.T) {
	p := newMockedProvider(t, 0)
	httpmock.RegisterResponder(http.MethodPost, providerURL,
		httpmock.NewStringResponder(http.StatusOK, `{"success":false}`))

	_, err := NewResolver(nil, p, nil).Resolve(context.Background(), march1, "USD", "JPY")
	assert.True(t, errors.Is(err, ErrRateNotFound))
}
