package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// StaticRates is a fixed rate table, keyed by currency code, expressing how
// many base-currency units one unit of that currency is worth. Used for
// tests and pinned-rate imports.
type StaticRates map[string]float64

// Rate implements RateSource.
func (r StaticRates) Rate(ctx context.Context, code string) (float64, error) {
	rate, ok := r[code]
	if !ok {
		return 0, fmt.Errorf("StaticRates: no rate for %q", code)
	}
	return rate, nil
}

// APIRates fetches exchange rates from an HTTP rate API and caches the whole
// table for a TTL. The API is expected to answer GET <baseURL><base> with a
// JSON body carrying a "rates" object of code → base-per-unit rates.
type APIRates struct {
	baseURL string
	base    string
	client  *http.Client
	ttl     time.Duration

	mu        sync.Mutex
	rates     map[string]float64
	fetchedAt time.Time
}

// NewAPIRates creates an APIRates converting into base.
func NewAPIRates(baseURL, base string, ttl time.Duration) *APIRates {
	return &APIRates{
		baseURL: baseURL,
		base:    base,
		client:  &http.Client{Timeout: 10 * time.Second},
		ttl:     ttl,
	}
}

// Rate implements RateSource. The returned rate converts one unit of code
// into base currency.
func (r *APIRates) Rate(ctx context.Context, code string) (float64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rates == nil || time.Since(r.fetchedAt) >= r.ttl {
		if err := r.refresh(ctx); err != nil {
			// A stale table beats no table.
			if r.rates == nil {
				return 0, err
			}
		}
	}

	perBase, ok := r.rates[code]
	if !ok || perBase == 0 {
		return 0, fmt.Errorf("APIRates: no rate for %q", code)
	}
	// The API quotes code-per-base; invert to get base-per-code.
	return 1 / perBase, nil
}

func (r *APIRates) refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+r.base, nil)
	if err != nil {
		return fmt.Errorf("APIRates: building request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("APIRates: fetching rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("APIRates: rate API returned status %d", resp.StatusCode)
	}

	var body struct {
		Rates map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("APIRates: decoding response: %w", err)
	}
	if len(body.Rates) == 0 {
		return fmt.Errorf("APIRates: empty rate table")
	}

	r.rates = body.Rates
	r.fetchedAt = time.Now()
	return nil
}
