package rates

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// HTTPProvider pulls the whole rate table from an external endpoint and
// caches it for TTL. One fetch at a time; concurrent callers wait on the
// mutex and then hit the refreshed cache.
type HTTPProvider struct {
	BaseURL string
	Client  *http.Client
	TTL     time.Duration

	mu        sync.Mutex
	fetchedAt time.Time
	table     map[string]float64
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

func (p *HTTPProvider) Rate(ctx context.Context, currency string) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Client == nil {
		p.Client = &http.Client{Timeout: 10 * time.Second}
	}
	if p.TTL <= 0 {
		p.TTL = time.Hour
	}

	if p.table == nil || time.Since(p.fetchedAt) > p.TTL {
		table, err := p.fetch(ctx)
		if err != nil {
			return 0, err
		}
		p.table = table
		p.fetchedAt = time.Now()
	}

	if r, ok := p.table[currency]; ok && r > 0 {
		return r, nil
	}
	return 1, nil
}

func (p *HTTPProvider) fetch(ctx context.Context) (map[string]float64, error) {
	endpoint := strings.TrimRight(p.BaseURL, "/") + "/rates"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rates request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rates http error: %s", resp.Status)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	if len(body.Rates) == 0 {
		return nil, fmt.Errorf("rates response carries no rates")
	}
	return body.Rates, nil
}
