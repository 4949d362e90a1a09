package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"pricing-api/internal/cache"
	"pricing-api/internal/models"
)

// PriceProvider supplies current exchange rates. Provider failures are
// propagated to the caller untouched; the pricing core performs no retries
// and no fallback pricing.
type PriceProvider interface {
	GetPrice(ctx context.Context, from, to models.Currency) (*models.Price, error)
}

type MarketClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	priceCache *cache.PriceCache
}

type MarketClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

type priceResponse struct {
	Price     *priceData `json:"price"`
	Status    string     `json:"status"`
	Error     string     `json:"error,omitempty"`
	Timestamp string     `json:"timestamp"`
}

type priceData struct {
	Source string             `json:"source"`
	Target string             `json:"target"`
	Rate   json.Number        `json:"rate"`
	Steps  []models.PriceStep `json:"steps,omitempty"`
}

func NewMarketClient(config *MarketClientConfig, priceCache *cache.PriceCache) *MarketClient {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &MarketClient{
		baseURL:    config.BaseURL,
		apiKey:     config.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		priceCache: priceCache,
	}
}

// GetPrice returns the current rate for the pair. Identical pairs resolve
// to a unit price without a round trip. Results are cached briefly so one
// quote does not hit the market service four times for its EUR/CHF legs.
func (c *MarketClient) GetPrice(ctx context.Context, from, to models.Currency) (*models.Price, error) {
	if from.Symbol == to.Symbol {
		return models.NewPrice(from.Symbol, to.Symbol, decimalOne()), nil
	}

	if c.priceCache != nil {
		if price, ok := c.priceCache.Get(ctx, from.Symbol, to.Symbol); ok {
			return price, nil
		}
	}

	endpoint := fmt.Sprintf("%s/api/market/price?from=%s&to=%s",
		c.baseURL, url.QueryEscape(from.Symbol), url.QueryEscape(to.Symbol))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create price request: %w", err)
	}
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("price request %s/%s failed: %w", from.Symbol, to.Symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price request %s/%s failed with status %d", from.Symbol, to.Symbol, resp.StatusCode)
	}

	var body priceResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode price response: %w", err)
	}
	if body.Price == nil {
		return nil, fmt.Errorf("price response %s/%s missing price: %s", from.Symbol, to.Symbol, body.Error)
	}

	rate, err := decimalFromNumber(body.Price.Rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate in price response: %w", err)
	}

	price := &models.Price{
		Source: from.Symbol,
		Target: to.Symbol,
		Rate:   rate,
		Steps:  body.Price.Steps,
	}
	if len(price.Steps) == 0 {
		price.Steps = []models.PriceStep{{Source: from.Symbol, Target: to.Symbol, Rate: rate}}
	}
	if err := price.Validate(); err != nil {
		return nil, err
	}

	if c.priceCache != nil {
		c.priceCache.Set(ctx, price)
	}

	return price, nil
}
