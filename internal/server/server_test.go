package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/zephyrtronium/calculator"
	"github.com/zephyrtronium/calculator/internal/history"
	"github.com/zephyrtronium/calculator/internal/telemetry"
)

type failfn struct{}

func (failfn) Call([]float64) (float64, error) { return 0, errors.New("out of order") }
func (failfn) CanCall(n int) bool              { return n == 1 }

func newTestServer(t *testing.T, opts ...ServerOption) (*httptest.Server, *telemetry.Metrics) {
	t.Helper()
	m := telemetry.NewMetrics()
	syms := calculator.DefaultSymbols().AddFunc("fail", failfn{}).AddConstant("answer", 42)
	opts = append([]ServerOption{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(m),
		WithSymbols(syms),
	}, opts...)
	srv := httptest.NewServer(NewServer(opts...).Handler())
	t.Cleanup(srv.Close)
	return srv, m
}

func post(t *testing.T, srv *httptest.Server, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := srv.Client().Post(srv.URL+"/v1/eval", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, b
}

func TestEval(t *testing.T) {
	srv, _ := newTestServer(t)
	cases := []struct {
		name    string
		expr    string
		result  float64
		display string
	}{
		{"sum", "2+3*4", 14, "14"},
		{"rounded", "0.1+0.2", 0.1 + 0.2, "0.3"},
		{"pi", "2 pi", 2 * math.Pi, "6.2831853072"},
		{"given", "answer/2", 21, "21"},
		{"inf", "1/0", math.Inf(1), "Inf"},
		{"nan", "0/0", math.NaN(), "NaN"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			body, _ := json.Marshal(EvalRequest{Expr: c.expr})
			resp, b := post(t, srv, string(body))
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status %d: %s", resp.StatusCode, b)
			}
			if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("wrong content type %q", ct)
			}
			var r EvalResponse
			if err := json.Unmarshal(b, &r); err != nil {
				t.Fatalf("decoding %s: %v", b, err)
			}
			got := float64(r.Result)
			if got != c.result && !(math.IsNaN(got) && math.IsNaN(c.result)) {
				t.Errorf("want result %v, got %v", c.result, got)
			}
			if r.Display != c.display {
				t.Errorf("want display %q, got %q", c.display, r.Display)
			}
		})
	}
}

func TestEvalErrors(t *testing.T) {
	srv, _ := newTestServer(t, WithMaxBodyBytes(64))
	cases := []struct {
		name   string
		body   string
		status int
		kind   string
		pos    int
	}{
		{"trailing", `{"expr": "2+"}`, http.StatusUnprocessableEntity, "compile", 3},
		{"name", `{"expr": "1 + nope"}`, http.StatusUnprocessableEntity, "compile", 5},
		{"empty", `{"expr": ""}`, http.StatusUnprocessableEntity, "compile", 1},
		{"eval", `{"expr": "fail(1)"}`, http.StatusUnprocessableEntity, "eval", 0},
		{"json", `{"expr": `, http.StatusBadRequest, "request", 0},
		{"field", `{"expression": "1"}`, http.StatusBadRequest, "request", 0},
		{"large", `{"expr": "` + strings.Repeat("1+", 64) + `1"}`, http.StatusRequestEntityTooLarge, "request", 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			resp, b := post(t, srv, c.body)
			if resp.StatusCode != c.status {
				t.Errorf("want status %d, got %d: %s", c.status, resp.StatusCode, b)
			}
			var r ErrorResponse
			if err := json.Unmarshal(b, &r); err != nil {
				t.Fatalf("decoding %s: %v", b, err)
			}
			if r.Kind != c.kind {
				t.Errorf("want kind %q, got %q", c.kind, r.Kind)
			}
			if r.Pos != c.pos {
				t.Errorf("want pos %d, got %d", c.pos, r.Pos)
			}
			if r.Error == "" {
				t.Error("no error message")
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := srv.Client().Get(srv.URL + "/v1/eval")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("want 405, got %d", resp.StatusCode)
	}
}

var ulidRE = regexp.MustCompile(`^[0-9A-HJKMNP-TV-Z]{26}$`)

func TestRequestID(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if id := resp.Header.Get("X-Request-ID"); !ulidRE.MatchString(id) {
		t.Errorf("generated request id %q is not a ULID", id)
	}

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	req.Header.Set("X-Request-ID", "client-chosen")
	resp, err = srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if id := resp.Header.Get("X-Request-ID"); id != "client-chosen" {
		t.Errorf("request id should be echoed, got %q", id)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	resp, err := srv.Client().Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var r map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || r["status"] != "healthy" {
		t.Errorf("unhealthy: %d %v", resp.StatusCode, r)
	}
}

func TestMetrics(t *testing.T) {
	srv, _ := newTestServer(t)
	post(t, srv, `{"expr": "1+1"}`)
	post(t, srv, `{"expr": "1+"}`)
	post(t, srv, `{"expr": "fail 2"}`)
	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		`calc_evaluations_total{status="ok"} 1`,
		`calc_evaluations_total{status="compile_error"} 1`,
		`calc_evaluations_total{status="eval_error"} 1`,
		`calc_http_requests_total{code="200",path="POST /v1/eval"} 1`,
		`calc_http_requests_total{code="422",path="POST /v1/eval"} 2`,
	}
	for _, w := range want {
		if !bytes.Contains(b, []byte(w)) {
			t.Errorf("metrics lack %q", w)
		}
	}
}

func TestNoMetrics(t *testing.T) {
	srv := httptest.NewServer(NewServer(WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))).Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("metrics without WithMetrics: want 404, got %d", resp.StatusCode)
	}
}

func TestHistory(t *testing.T) {
	h, err := history.Open(filepath.Join(t.TempDir(), "history.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	srv, _ := newTestServer(t, WithHistory(h))
	post(t, srv, `{"expr": "6*7"}`)
	post(t, srv, `{"expr": "6*"}`)
	got, err := h.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("want 2 entries, got %v", got)
	}
	if got[0].Expr != "6*7" || got[0].Result != 42 || got[0].Display != "42" {
		t.Errorf("wrong success entry: %+v", got[0])
	}
	if got[1].Expr != "6*" || got[1].Error == "" {
		t.Errorf("wrong error entry: %+v", got[1])
	}
}

func TestParseOptions(t *testing.T) {
	srv, _ := newTestServer(t, WithParseOptions(calculator.MaxDepth(2)))
	resp, b := post(t, srv, `{"expr": "(((1)))"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity || !bytes.Contains(b, []byte(`"compile"`)) {
		t.Errorf("deep expression: want compile error, got %d %s", resp.StatusCode, b)
	}
}
