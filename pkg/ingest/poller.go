package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/lifecache/lifecache/pkg/metrics"
)

const defaultFetchTimeout = 10 * time.Second

// Mapping routes one exposition family to a signal name.
type Mapping struct {
	// Family is the Prometheus metric family name, e.g.
	// "http_request_duration_seconds".
	Family string

	// Signal is the registry signal the family feeds.
	Signal string
}

// Poller fetches one endpoint and records mapped families into a writer.
// Not safe for concurrent Poll calls; run it from a single loop.
type Poller struct {
	url      string
	client   *http.Client
	mappings []Mapping
	writer   metrics.Writer

	// prev holds the last counter totals so deltas survive across polls.
	prev map[string]float64
}

// NewPoller builds a poller for url. The default HTTP client carries a
// 10s timeout.
func NewPoller(url string, mappings []Mapping, w metrics.Writer) *Poller {
	return &Poller{
		url:      url,
		client:   &http.Client{Timeout: defaultFetchTimeout},
		mappings: mappings,
		writer:   w,
		prev:     make(map[string]float64),
	}
}

// Poll fetches the endpoint once and records every mapped family.
func (p *Poller) Poll(ctx context.Context) error {
	mfs, err := fetch(ctx, p.client, p.url)
	if err != nil {
		return fmt.Errorf("ingest: poll %s: %w", p.url, err)
	}
	p.record(mfs)
	return nil
}

// Run polls on a fixed interval until ctx is cancelled. Fetch failures
// are logged and the loop keeps going.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	slog.Info("ingest: polling", "url", p.url, "interval", interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Poll(ctx); err != nil {
				slog.Warn("ingest: poll failed", "url", p.url, "err", err)
			}
		}
	}
}

// record writes every mapped family present in the scrape.
func (p *Poller) record(mfs map[string]*dto.MetricFamily) {
	for _, m := range p.mappings {
		mf := mfs[m.Family]
		if mf == nil {
			continue
		}
		total := sumFamily(mf)

		if mf.GetType() == dto.MetricType_COUNTER {
			last, seen := p.prev[m.Family]
			p.prev[m.Family] = total

			// First sight establishes the baseline; a drop means the
			// target restarted and the total is the new delta.
			if !seen {
				continue
			}
			delta := total - last
			if delta < 0 {
				delta = total
			}
			p.writer.Record(metrics.Sample{Name: m.Signal, Value: delta})
			continue
		}

		p.writer.Record(metrics.Sample{Name: m.Signal, Value: total})
	}
}

// fetch performs an HTTP GET to url and returns parsed metric families.
func fetch(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return Parse(resp.Body)
}

// Parse decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned
// successfully.
func Parse(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// sumFamily adds up all counter, gauge, or untyped values in a family.
// Labeled series collapse into one total.
func sumFamily(mf *dto.MetricFamily) float64 {
	var total float64
	for _, m := range mf.GetMetric() {
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}
