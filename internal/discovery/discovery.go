// Package discovery locates a reachable assistant backend by probing
// candidate addresses for an agent card.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"
)

// Backend is one probed endpoint.
type Backend struct {
	URL      string        `json:"url"`
	Name     string        `json:"name"`
	Version  string        `json:"version"`
	Online   bool          `json:"online"`
	Latency  time.Duration `json:"latency"`
	LastSeen time.Time     `json:"lastSeen"`
}

// agentCard is the subset of the backend's card we care about.
type agentCard struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Config holds probe settings.
type Config struct {
	Ports      []int
	CustomURLs []string
	Timeout    time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Ports:   []int{8080, 8081, 8082},
		Timeout: 2 * time.Second,
	}
}

// Service probes candidate backends.
type Service struct {
	cfg        *Config
	httpClient *http.Client
}

func NewService(cfg *Config) *Service {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Service{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

// Probe checks one base URL and returns its card details.
func (s *Service) Probe(ctx context.Context, baseURL string) (*Backend, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/.well-known/agent-card.json", nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("discovery: status %d from %s", resp.StatusCode, baseURL)
	}

	var card agentCard
	if err := json.NewDecoder(resp.Body).Decode(&card); err != nil {
		return nil, fmt.Errorf("discovery: bad agent card from %s: %w", baseURL, err)
	}

	return &Backend{
		URL:      baseURL,
		Name:     card.Name,
		Version:  card.Version,
		Online:   true,
		Latency:  time.Since(start),
		LastSeen: time.Now(),
	}, nil
}

// Scan probes all candidates concurrently and returns the online ones,
// fastest first.
func (s *Service) Scan(ctx context.Context) []*Backend {
	urls := make([]string, 0, len(s.cfg.Ports)+len(s.cfg.CustomURLs))
	for _, port := range s.cfg.Ports {
		urls = append(urls, fmt.Sprintf("http://localhost:%d", port))
	}
	urls = append(urls, s.cfg.CustomURLs...)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	var found []*Backend
	for _, url := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			backend, err := s.Probe(ctx, u)
			if err != nil {
				return
			}
			mu.Lock()
			found = append(found, backend)
			mu.Unlock()
		}(url)
	}
	wg.Wait()

	sort.Slice(found, func(i, j int) bool { return found[i].Latency < found[j].Latency })
	return found
}
