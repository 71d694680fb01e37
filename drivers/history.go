package drivers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"sensorboard/config"
	"sensorboard/metrics"
	"sensorboard/models"
	"sensorboard/store"
)

// HistoryPoller fetches the history endpoint on a fixed interval and applies each response to the dashboard. A
// tick doesn't wait for the previous fetch, so every fetch is tagged with a generation and late responses are
// dropped by the dashboard.
type HistoryPoller struct {
	*config.PollFlags
	client     *http.Client
	dashboard  *store.Dashboard
	metrics    *metrics.Metrics
	log        *zap.SugaredLogger
	generation atomic.Uint64
	inFlight   sync.WaitGroup
}

func NewHistoryPoller(pollFlags *config.PollFlags, dashboard *store.Dashboard, m *metrics.Metrics, log *zap.SugaredLogger) *HistoryPoller {
	return &HistoryPoller{
		PollFlags: pollFlags,
		client:    &http.Client{},
		dashboard: dashboard,
		metrics:   m,
		log:       log,
	}
}

func (p *HistoryPoller) Init() error {
	u, err := url.Parse(p.HistoryURL)
	if err != nil {
		return fmt.Errorf("bad history url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("bad history url %q: scheme must be http or https", p.HistoryURL)
	}
	if p.Interval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", p.Interval)
	}
	return nil
}

// Run polls straight away and then on every tick until ctx is done, then waits for in-flight fetches.
func (p *HistoryPoller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	p.spawn(ctx)
	for {
		select {
		case <-ctx.Done():
			p.inFlight.Wait()
			return nil
		case <-ticker.C:
			p.spawn(ctx)
		}
	}
}

// Poll does a single fetch and apply.
func (p *HistoryPoller) Poll(ctx context.Context) (*store.ApplyResult, error) {
	return p.poll(ctx, p.generation.Add(1))
}

func (p *HistoryPoller) spawn(ctx context.Context) {
	generation := p.generation.Add(1)
	p.inFlight.Add(1)
	go func() {
		defer p.inFlight.Done()
		if _, err := p.poll(ctx, generation); err != nil && ctx.Err() == nil {
			p.log.Warnf("poll %d: %v", generation, err)
		}
	}()
}

func (p *HistoryPoller) poll(ctx context.Context, generation uint64) (*store.ApplyResult, error) {
	start := time.Now()
	response, err := p.fetch(ctx)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		if errors.Is(err, models.ErrMalformed) {
			p.metrics.ObservePoll(metrics.PollMalformed, elapsed)
		} else {
			p.metrics.ObservePoll(metrics.PollNetwork, elapsed)
		}
		return nil, err
	}

	result, err := p.dashboard.Apply(generation, response)
	if err != nil {
		p.metrics.ObservePoll(metrics.PollStale, elapsed)
		return nil, err
	}
	p.metrics.ObservePoll(metrics.PollOK, elapsed)
	return result, nil
}

func (p *HistoryPoller) fetch(ctx context.Context) (models.HistoryResponse, error) {
	if p.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.FetchTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.HistoryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNetwork, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrNetwork, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", models.ErrNetwork, resp.Status)
	}

	return models.DecodeHistory(resp.Body)
}
