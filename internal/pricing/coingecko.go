// Package pricing supplies current USD prices of the native assets.
package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/decred/slog"
	"golang.org/x/sync/singleflight"

	"arcade-pot/internal/domain"
	"arcade-pot/internal/observability"
)

const (
	// DefaultURL is the CoinGecko simple price endpoint for SOL and ETH.
	DefaultURL = "https://api.coingecko.com/api/v3/simple/price?ids=solana,ethereum&vs_currencies=usd"

	// DefaultTTL is how long fetched prices are served from cache.
	DefaultTTL = 5 * time.Minute

	// DefaultTimeout bounds each upstream request.
	DefaultTimeout = 8 * time.Second
)

// ErrUnavailable is returned when no price can be obtained.
var ErrUnavailable = errors.New("price feed unavailable")

// Oracle returns the current USD price of a network's native asset.
type Oracle interface {
	Price(ctx context.Context, network domain.Network) (float64, error)
}

// coinGeckoIDs maps networks to CoinGecko coin ids.
var coinGeckoIDs = map[domain.Network]string{
	domain.NetworkSolana: "solana",
	domain.NetworkBase:   "ethereum",
}

// CoinGeckoOptions configures CoinGecko.
type CoinGeckoOptions struct {
	URL        string
	TTL        time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client
	Now        func() time.Time
	Log        slog.Logger
}

// CoinGecko is an Oracle backed by the CoinGecko API with a TTL cache.
// One upstream request refreshes both assets.
type CoinGecko struct {
	url    string
	ttl    time.Duration
	client *http.Client
	now    func() time.Time
	log    slog.Logger

	group     singleflight.Group
	mu        sync.Mutex
	prices    map[domain.Network]float64
	fetchedAt time.Time
}

// Compile-time interface check.
var _ Oracle = (*CoinGecko)(nil)

// NewCoinGecko creates a new CoinGecko oracle.
func NewCoinGecko(opts CoinGeckoOptions) *CoinGecko {
	if opts.URL == "" {
		opts.URL = DefaultURL
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Log == nil {
		opts.Log = slog.Disabled
	}
	return &CoinGecko{
		url:    opts.URL,
		ttl:    opts.TTL,
		client: opts.HTTPClient,
		now:    opts.Now,
		log:    opts.Log,
	}
}

// Price returns the cached price if fresh, otherwise refreshes from upstream.
func (c *CoinGecko) Price(ctx context.Context, network domain.Network) (float64, error) {
	if _, ok := coinGeckoIDs[network]; !ok {
		return 0, fmt.Errorf("no price source for network %q", network)
	}

	c.mu.Lock()
	price, ok := c.prices[network]
	fresh := ok && c.now().Sub(c.fetchedAt) < c.ttl
	c.mu.Unlock()
	if fresh {
		observability.RecordPriceLookup(network.Asset(), "cache")
		return price, nil
	}

	// Concurrent misses share one upstream request. It is detached from the
	// first caller's cancellation and bounded by the client timeout.
	ch := c.group.DoChan("prices", func() (interface{}, error) {
		prices, err := c.fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.prices = prices
		c.fetchedAt = c.now()
		c.mu.Unlock()
		return prices, nil
	})

	select {
	case <-ctx.Done():
		observability.RecordPriceLookup(network.Asset(), "error")
		return 0, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			observability.RecordPriceLookup(network.Asset(), "error")
			return 0, fmt.Errorf("%w: %v", ErrUnavailable, res.Err)
		}
		observability.RecordPriceLookup(network.Asset(), "upstream")
		return res.Val.(map[domain.Network]float64)[network], nil
	}
}

func (c *CoinGecko) fetch(ctx context.Context) (map[domain.Network]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("coingecko responded %d", resp.StatusCode)
	}

	var body map[string]struct {
		USD float64 `json:"usd"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	prices := make(map[domain.Network]float64, len(coinGeckoIDs))
	for network, id := range coinGeckoIDs {
		entry, ok := body[id]
		if !ok || entry.USD <= 0 {
			return nil, fmt.Errorf("missing %s price", id)
		}
		prices[network] = entry.USD
	}
	c.log.Debugf("Fetched prices SOL=%.4f ETH=%.4f", prices[domain.NetworkSolana], prices[domain.NetworkBase])
	return prices, nil
}
