package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/FluxPay/paycore-lib/common/types"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// defaultRequestTimeout bounds one provider HTTP call.
const defaultRequestTimeout = 30 * time.Second

// ClientConfig configures the HTTP provider client.
type ClientConfig struct {
	// BaseURL is the base URL of the provider API.
	BaseURL string

	// APIKey is sent as the x-api-key header on every request.
	APIKey string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *http.Client

	// Timeout for requests (optional, defaults to 30s).
	Timeout time.Duration
}

// HTTPProvider talks to the swap provider's REST API. All responses pass
// through the normalization boundary before anything downstream sees them.
type HTTPProvider struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewHTTPProvider creates a provider client.
//
// Parameters:
// - config: the client configuration.
// - logger: the logger for logging purposes.
//
// Returns:
// - *HTTPProvider: a new HTTPProvider instance.
func NewHTTPProvider(config *ClientConfig, logger *logrus.Logger) *HTTPProvider {
	httpClient := config.HTTPClient
	if httpClient == nil {
		timeout := config.Timeout
		if timeout == 0 {
			timeout = defaultRequestTimeout
		}
		httpClient = &http.Client{
			Timeout: timeout,
		}
	}

	return &HTTPProvider{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CreateDepositAddress opens a swap with the provider.
func (p *HTTPProvider) CreateDepositAddress(ctx context.Context, req *DepositAddressRequest) (*DepositAddress, error) {
	body := map[string]interface{}{
		"fromChain":     req.FromChain,
		"fromCurrency":  req.FromAsset,
		"toChain":       req.ToChain,
		"toCurrency":    req.ToAsset,
		"amount":        req.Amount.String(),
		"address":       req.Recipient,
		"refundAddress": req.RefundAddress,
	}

	raw, err := p.post(ctx, "/exchanges", body)
	if err != nil {
		return nil, err
	}

	result, err := NormalizeDepositAddress(raw)
	if err != nil {
		return nil, err
	}

	p.logger.WithFields(logrus.Fields{
		"exchangeId":     result.ExchangeID,
		"depositAddress": result.DepositAddress,
	}).Info("Swap created with provider")

	return result, nil
}

// GetStatusByReferenceID polls the provider for the current swap status.
func (p *HTTPProvider) GetStatusByReferenceID(ctx context.Context, referenceID string) (*Status, error) {
	raw, err := p.get(ctx, "/exchanges/"+url.PathEscape(referenceID), nil)
	if err != nil {
		return nil, err
	}

	return NormalizeStatus(raw)
}

// GetQuote requests a forward quote from the provider.
func (p *HTTPProvider) GetQuote(ctx context.Context, query *types.RateQuery) (*types.RateQuote, error) {
	params := url.Values{}
	params.Set("fromChain", query.FromChain)
	params.Set("fromCurrency", query.FromAsset)
	params.Set("toChain", query.ToChain)
	params.Set("toCurrency", query.ToAsset)
	params.Set("amount", query.Amount.String())

	raw, err := p.get(ctx, "/quotes", params)
	if err != nil {
		return nil, err
	}

	quote, err := NormalizeQuote(raw)
	if err != nil {
		return nil, err
	}
	quote.FromAmount = query.Amount

	return quote, nil
}

func (p *HTTPProvider) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	endpoint := p.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}

	return p.do(req)
}

func (p *HTTPProvider) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")

	return p.do(req)
}

func (p *HTTPProvider) do(req *http.Request) ([]byte, error) {
	if p.apiKey != "" {
		req.Header.Set("x-api-key", p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "provider request failed")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read provider response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("provider returned status %d: %s", resp.StatusCode, string(raw))
	}

	return raw, nil
}
