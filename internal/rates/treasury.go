// Package rates supplies the risk-free rate for requests that do not carry
// one.
package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jwaldner/optionkit/internal/config"
	"github.com/jwaldner/optionkit/internal/logger"
	"golang.org/x/sync/singleflight"
)

// retryInterval is the wait after any fetch attempt before the next one,
// capped at the ttl.
const retryInterval = time.Minute

// Source returns a continuously compounded risk-free rate.
type Source interface {
	RiskFreeRate(ctx context.Context) float64
}

// Fixed is a constant rate.
type Fixed float64

func (f Fixed) RiskFreeRate(context.Context) float64 { return float64(f) }

// TreasuryClient reads the average Treasury Bill rate from the fiscal data
// API and caches it. Fetch failures fall back to the last known rate and are
// not retried until retryInterval has passed. Concurrent callers share one
// request and never wait on the lock while it is in flight.
type TreasuryClient struct {
	httpClient *http.Client
	baseURL    string
	ttl        time.Duration
	retry      time.Duration
	flight     singleflight.Group

	mu            sync.Mutex
	lastKnownRate float64
	lastFetchTime time.Time
	lastAttempt   time.Time
}

type treasuryResponse struct {
	Data []treasuryRate `json:"data"`
	Meta struct {
		Count int `json:"count"`
	} `json:"meta"`
}

type treasuryRate struct {
	RecordDate            string `json:"record_date"`
	SecurityDesc          string `json:"security_desc"`
	AvgInterestRateAmount string `json:"avg_interest_rate_amt"`
}

// NewTreasuryClient creates a client. fallback is returned until the first
// successful fetch.
func NewTreasuryClient(baseURL string, ttl time.Duration, fallback float64) *TreasuryClient {
	retry := retryInterval
	if ttl < retry {
		retry = ttl
	}
	return &TreasuryClient{
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		baseURL:       baseURL,
		ttl:           ttl,
		retry:         retry,
		lastKnownRate: fallback,
	}
}

// Fetch calls the API and converts the percentage to a decimal rate.
func (tc *TreasuryClient) Fetch(ctx context.Context) (float64, error) {
	url := fmt.Sprintf("%s/v2/accounting/od/avg_interest_rates?fields=avg_interest_rate_amt,record_date&filter=security_desc:eq:Treasury%%20Bills&sort=-record_date&page[size]=1", tc.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build Treasury request: %w", err)
	}
	resp, err := tc.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch Treasury rate: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("Treasury API returned status %d", resp.StatusCode)
	}

	var tr treasuryResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return 0, fmt.Errorf("failed to decode Treasury response: %w", err)
	}
	if len(tr.Data) == 0 {
		return 0, fmt.Errorf("no Treasury rate data returned")
	}

	// "3.983" -> 0.03983
	rateStr := tr.Data[0].AvgInterestRateAmount
	rate, err := strconv.ParseFloat(rateStr, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse rate %s: %w", rateStr, err)
	}
	return rate / 100.0, nil
}

// RiskFreeRate returns the cached rate while it is fresh, otherwise fetches
// a new one. On failure it keeps serving the last known rate.
func (tc *TreasuryClient) RiskFreeRate(ctx context.Context) float64 {
	if rate, ok := tc.cached(); ok {
		return rate
	}
	v, _, _ := tc.flight.Do("rate", func() (interface{}, error) {
		// A flight that finished between the check above and Do has
		// already refreshed the cache.
		if rate, ok := tc.cached(); ok {
			return rate, nil
		}
		// Callers joining this flight must not lose it to the first
		// caller's cancellation; the client timeout bounds it.
		rate, err := tc.Fetch(context.WithoutCancel(ctx))

		tc.mu.Lock()
		tc.lastAttempt = time.Now()
		if err == nil {
			tc.lastKnownRate = rate
			tc.lastFetchTime = tc.lastAttempt
		}
		last := tc.lastKnownRate
		tc.mu.Unlock()

		if err != nil {
			logger.Warn.Printf("⚠️ Treasury API failed, using last known rate %.6f (next try in %s): %v", last, tc.retry, err)
			return last, nil
		}
		logger.Info.Printf("📈 Fetched Treasury Bill rate: %.3f%% (%.6f decimal)", rate*100, rate)
		return rate, nil
	})
	return v.(float64)
}

// cached returns the stored rate and whether it may be served without a
// fetch: either it is within the ttl or the last attempt was too recent to
// retry.
func (tc *TreasuryClient) cached() (float64, bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if !tc.lastFetchTime.IsZero() && time.Since(tc.lastFetchTime) < tc.ttl {
		return tc.lastKnownRate, true
	}
	if !tc.lastAttempt.IsZero() && time.Since(tc.lastAttempt) < tc.retry {
		return tc.lastKnownRate, true
	}
	return tc.lastKnownRate, false
}

// CacheInfo reports the cached rate, its age and whether a fetch has ever
// succeeded.
func (tc *TreasuryClient) CacheInfo() (rate float64, age time.Duration, fetched bool) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.lastFetchTime.IsZero() {
		return tc.lastKnownRate, 0, false
	}
	return tc.lastKnownRate, time.Since(tc.lastFetchTime), true
}

// FromConfig returns the configured source.
func FromConfig(c config.RatesConfig) Source {
	if c.Source == "treasury" {
		return NewTreasuryClient(c.TreasuryURL, time.Duration(c.CacheMinutes)*time.Minute, c.DefaultRate)
	}
	return Fixed(c.DefaultRate)
}
