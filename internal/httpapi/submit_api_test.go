package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/openclassifieds/gatekeeper/internal/admission"
	"github.com/openclassifieds/gatekeeper/internal/queue"
	"github.com/openclassifieds/gatekeeper/internal/rules"
	"github.com/openclassifieds/gatekeeper/internal/scorer"
	"github.com/openclassifieds/gatekeeper/internal/testutil"
)

func identity(next http.HandlerFunc) http.HandlerFunc { return next }

func newSubmitMux(t *testing.T, cfg admission.Config) *http.ServeMux {
	t.Helper()
	logger := testutil.NullLogger()
	sc := scorer.New(rules.Default(), logger)
	controller := admission.NewController(cfg, admission.NewMemoryCounterStore(), queue.NewMemoryQueue(), queue.NewMemoryResultStore(), sc, logger)

	mux := http.NewServeMux()
	NewSubmitAPI(controller, logger).RegisterRoutes(mux, identity)
	return mux
}

func TestHandleSubmitImmediate(t *testing.T) {
	mux := newSubmitMux(t, admission.DefaultConfig())

	body := `{"owner_id":"o1","title":"Garden chair","description":"Sturdy wooden chair."}`
	req := httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}

	var outcome admission.Outcome
	if err := json.NewDecoder(rec.Body).Decode(&outcome); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if outcome.Status != admission.StatusImmediate {
		t.Errorf("status = %s, want %s", outcome.Status, admission.StatusImmediate)
	}
	if outcome.Result == nil || !outcome.Result.Safe {
		t.Errorf("result = %+v, want safe immediate score", outcome.Result)
	}
}

func TestHandleSubmitInvalid(t *testing.T) {
	mux := newSubmitMux(t, admission.DefaultConfig())

	tests := []struct {
		name string
		body string
	}{
		{"not json", "{{{"},
		{"missing owner", `{"title":"Chair"}`},
		{"missing title", `{"owner_id":"o1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleSubmitRateLimited(t *testing.T) {
	cfg := admission.DefaultConfig()
	cfg.OwnerPerMinute = 1
	mux := newSubmitMux(t, cfg)

	body := `{"owner_id":"o1","title":"Chair"}`
	first := httptest.NewRecorder()
	mux.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(body)))
	if first.Code != http.StatusOK {
		t.Fatalf("first submission status = %d, want 200", first.Code)
	}

	second := httptest.NewRecorder()
	mux.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(body)))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second submission status = %d, want 429", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Errorf("Retry-After header missing")
	}
}

func TestHandleSubmitMethodNotAllowed(t *testing.T) {
	mux := newSubmitMux(t, admission.DefaultConfig())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/submissions", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestHandleJobStatusUnknownJob(t *testing.T) {
	mux := newSubmitMux(t, admission.DefaultConfig())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/no-such-job", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if result.Status != "expired" {
		t.Errorf("status = %s, want expired", result.Status)
	}
}

func TestHandleStats(t *testing.T) {
	mux := newSubmitMux(t, admission.DefaultConfig())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/system/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var stats struct {
		Mode         string `json:"mode"`
		QueueDepth   int    `json:"queue_depth"`
		ImmediateMax int    `json:"immediate_max"`
		QueuedMax    int    `json:"queued_max"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Mode != admission.StatusImmediate {
		t.Errorf("mode = %s, want %s", stats.Mode, admission.StatusImmediate)
	}
	if stats.ImmediateMax != 100 || stats.QueuedMax != 1000 {
		t.Errorf("thresholds = %+v", stats)
	}
}

func TestClientAddr(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/submissions", nil)
	req.RemoteAddr = "10.0.0.5:4312"
	if got := clientAddr(req); got != "10.0.0.5" {
		t.Errorf("clientAddr = %s, want 10.0.0.5", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.5")
	if got := clientAddr(req); got != "203.0.113.7" {
		t.Errorf("clientAddr with forwarded header = %s, want 203.0.113.7", got)
	}
}
