package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lifecache/lifecache/pkg/metrics"
)

// captureWriter records samples for inspection.
type captureWriter struct {
	mu      sync.Mutex
	samples []metrics.Sample
}

func (w *captureWriter) Record(s metrics.Sample) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples = append(w.samples, s)
}

func (w *captureWriter) byName(name string) []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []float64
	for _, s := range w.samples {
		if s.Name == name {
			out = append(out, s.Value)
		}
	}
	return out
}

// serveText returns a test server whose /metrics body can be swapped.
func serveText(t *testing.T, body *string, mu *sync.Mutex) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		_, _ = w.Write([]byte(*body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestParse(t *testing.T) {
	text := `# TYPE queue_depth gauge
queue_depth 42
# TYPE requests_total counter
requests_total{code="200"} 90
requests_total{code="500"} 10
`
	mfs, err := Parse(strings.NewReader(text))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := sumFamily(mfs["queue_depth"]); got != 42 {
		t.Errorf("queue_depth sum = %.0f, want 42", got)
	}
	if got := sumFamily(mfs["requests_total"]); got != 100 {
		t.Errorf("requests_total sum = %.0f, want 100 (labels collapse)", got)
	}
}

func TestParse_Garbage(t *testing.T) {
	if _, err := Parse(strings.NewReader("{{{not an exposition")); err == nil {
		t.Fatal("Parse accepted garbage input")
	}
}

func TestPoll_GaugesAndCounterDeltas(t *testing.T) {
	var mu sync.Mutex
	body := `# TYPE queue_depth gauge
queue_depth 7
# TYPE requests_total counter
requests_total 100
`
	srv := serveText(t, &body, &mu)

	w := &captureWriter{}
	p := NewPoller(srv.URL, []Mapping{
		{Family: "queue_depth", Signal: "depth"},
		{Family: "requests_total", Signal: "requests"},
		{Family: "absent_family", Signal: "never"},
	}, w)

	ctx := context.Background()
	if err := p.Poll(ctx); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	// First poll: the gauge lands, the counter only sets the baseline.
	if got := w.byName("depth"); len(got) != 1 || got[0] != 7 {
		t.Errorf("depth samples = %v, want [7]", got)
	}
	if got := w.byName("requests"); len(got) != 0 {
		t.Errorf("requests samples after first poll = %v, want none", got)
	}
	if got := w.byName("never"); len(got) != 0 {
		t.Errorf("unmapped family produced samples: %v", got)
	}

	mu.Lock()
	body = `# TYPE queue_depth gauge
queue_depth 9
# TYPE requests_total counter
requests_total 130
`
	mu.Unlock()
	if err := p.Poll(ctx); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	if got := w.byName("depth"); len(got) != 2 || got[1] != 9 {
		t.Errorf("depth samples = %v, want [7 9]", got)
	}
	if got := w.byName("requests"); len(got) != 1 || got[0] != 30 {
		t.Errorf("requests samples = %v, want [30] (counter delta)", got)
	}
}

func TestPoll_CounterReset(t *testing.T) {
	var mu sync.Mutex
	body := `# TYPE requests_total counter
requests_total 100
`
	srv := serveText(t, &body, &mu)

	w := &captureWriter{}
	p := NewPoller(srv.URL, []Mapping{{Family: "requests_total", Signal: "requests"}}, w)

	ctx := context.Background()
	if err := p.Poll(ctx); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	// The target restarts: the total falls below the baseline and the new
	// total stands in for the delta.
	mu.Lock()
	body = `# TYPE requests_total counter
requests_total 5
`
	mu.Unlock()
	if err := p.Poll(ctx); err != nil {
		t.Fatalf("Poll: %v", err)
	}

	if got := w.byName("requests"); len(got) != 1 || got[0] != 5 {
		t.Errorf("requests samples = %v, want [5]", got)
	}
}

func TestPoll_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	p := NewPoller(srv.URL, nil, &captureWriter{})
	if err := p.Poll(context.Background()); err == nil {
		t.Fatal("Poll succeeded against a 500 endpoint")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	var mu sync.Mutex
	body := `# TYPE queue_depth gauge
queue_depth 1
`
	srv := serveText(t, &body, &mu)

	w := &captureWriter{}
	p := NewPoller(srv.URL, []Mapping{{Family: "queue_depth", Signal: "depth"}}, w)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if len(w.byName("depth")) == 0 {
		t.Error("Run recorded no samples before cancel")
	}
}
