package influxdb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/config"
)

// ─── Mock Dependencies ─────────────────────────────────────────────

type mockWriter struct {
	mu      sync.Mutex
	points  []*write.Point
	flushes int
}

func (m *mockWriter) WritePoint(p *write.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.points = append(m.points, p)
}

func (m *mockWriter) Flush() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushes++
}

type mockServer struct {
	healthy bool
	err     error
	closed  int
}

func (m *mockServer) Ping(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return m.healthy, m.err
}

func (m *mockServer) Close() { m.closed++ }

// fakeInflux serves /ping and records line protocol posted to /api/v2/write.
func fakeInflux(t *testing.T) (*httptest.Server, func() string) {
	t.Helper()
	var mu sync.Mutex
	var body strings.Builder

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ping":
			w.WriteHeader(http.StatusNoContent)
		case "/api/v2/write":
			b, _ := io.ReadAll(r.Body)
			mu.Lock()
			body.Write(b)
			mu.Unlock()
			w.WriteHeader(http.StatusNoContent)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	return srv, func() string {
		mu.Lock()
		defer mu.Unlock()
		return body.String()
	}
}

func testConfig(url string) config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           url,
		Token:         "test-token",
		Org:           "graylogic",
		Bucket:        "automata",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// ─── Connect ───────────────────────────────────────────────────────

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.Enabled = false

	_, err := Connect(cfg)
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := Connect(testConfig(url))
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestConnect_WritesRunsToServer(t *testing.T) {
	srv, written := fakeInflux(t)

	cfg := testConfig(srv.URL)
	cfg.BatchSize = 0
	cfg.FlushInterval = 0

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close()

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	client.WriteRun(RunMetric{
		Automation: "a1",
		Title:      "Forward",
		State:      "DONE",
		Duration:   12 * time.Millisecond,
		At:         time.Unix(1700000000, 0),
	})
	client.Flush()

	got := written()
	if !strings.Contains(got, "automation_runs,automation=a1,state=DONE") {
		t.Errorf("written line protocol = %q", got)
	}
	if !strings.Contains(got, "duration_ms=12i") {
		t.Errorf("written line protocol = %q, want duration_ms field", got)
	}
}

// ─── Client state ──────────────────────────────────────────────────

func TestClient_WriteRun(t *testing.T) {
	w := &mockWriter{}
	c := newClient(&mockServer{healthy: true}, w)

	c.WriteRun(RunMetric{Automation: "a1", State: "ERROR"})
	c.WriteRun(RunMetric{Automation: "a2", State: "DONE", Retry: true})

	if len(w.points) != 2 {
		t.Fatalf("points = %d, want 2", len(w.points))
	}
	if w.points[0].Name() != MeasurementRuns {
		t.Errorf("Name() = %q", w.points[0].Name())
	}
}

func TestClient_CloseFlushesOnce(t *testing.T) {
	w := &mockWriter{}
	srv := &mockServer{healthy: true}
	c := newClient(srv, w)

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}

	if w.flushes != 1 || srv.closed != 1 {
		t.Errorf("flushes = %d, closed = %d, want 1 and 1", w.flushes, srv.closed)
	}
	if c.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}

	c.WriteRun(RunMetric{Automation: "late"})
	c.Flush()
	if len(w.points) != 0 || w.flushes != 1 {
		t.Error("closed client still writes")
	}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() after Close = %v, want ErrNotConnected", err)
	}
}

func TestClient_NilSafe(t *testing.T) {
	var c *Client
	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
	c.WriteRun(RunMetric{})
	if err := c.Close(); err != nil {
		t.Errorf("nil Close() error = %v", err)
	}
}

func TestClient_HealthCheck(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		server  *mockServer
		wantErr bool
	}{
		{"healthy", &mockServer{healthy: true}, false},
		{"unhealthy", &mockServer{healthy: false}, true},
		{"ping error", &mockServer{err: boom}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(tt.server, &mockWriter{})
			err := c.HealthCheck(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("HealthCheck() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClient_WriteErrorsReachCallback(t *testing.T) {
	c := newClient(&mockServer{healthy: true}, &mockWriter{})

	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	errs := make(chan error, 1)
	done := make(chan struct{})
	go func() {
		c.handleWriteErrors(errs)
		close(done)
	}()

	errs <- errors.New("batch rejected")
	close(errs)

	select {
	case err := <-got:
		if err.Error() != "batch rejected" {
			t.Errorf("callback error = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("callback not invoked")
	}
	<-done
}

// ─── Points ────────────────────────────────────────────────────────

func TestRunPoint(t *testing.T) {
	at := time.Unix(1700000000, 0)
	p := RunPoint(RunMetric{
		Automation: "a1",
		Title:      "Forward SMS",
		State:      "SKIPPED",
		Duration:   1500 * time.Millisecond,
		Retry:      true,
		At:         at,
	})

	line := write.PointToLineProtocol(p, time.Second)
	want := `automation_runs,automation=a1,state=SKIPPED duration_ms=1500i,retry=true,title="Forward SMS" 1700000000`
	if strings.TrimSpace(line) != want {
		t.Errorf("line = %q\nwant   %q", line, want)
	}
}

func TestRunPoint_DefaultsTimestamp(t *testing.T) {
	before := time.Now()
	p := RunPoint(RunMetric{Automation: "a1", State: "DONE"})
	if p.Time().Before(before) {
		t.Errorf("Time() = %v, want >= %v", p.Time(), before)
	}
}
