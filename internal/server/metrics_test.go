package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Test_Metrics_EndpointReturns200(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	newServerMetrics(reg)

	srv := httptest.NewServer(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	t.Cleanup(srv.Close)

	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, srv.URL+"/metrics", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("want 200, got %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("want text/plain content-type, got %q", ct)
	}
}

func Test_Metrics_QuestionCounterIncremented(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := newServerMetrics(reg)

	m.questionsTotal.WithLabelValues("chat", "ok").Inc()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() != "askdoc_chat_questions_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["intent"] == "chat" && labels["outcome"] == "ok" {
				if metric.GetCounter().GetValue() != 1 {
					t.Errorf("want counter=1, got %v", metric.GetCounter().GetValue())
				}
				found = true
			}
		}
	}
	if !found {
		t.Error("askdoc_chat_questions_total{intent=\"chat\",outcome=\"ok\"} not found in gathered metrics")
	}
}

func Test_Metrics_ProcessingGauge(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m := newServerMetrics(reg)

	m.documentsProcessing.Inc()
	m.documentsProcessing.Inc()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	for _, mf := range mfs {
		if mf.GetName() == "askdoc_ingest_documents_processing" {
			v := mf.GetMetric()[0].GetGauge().GetValue()
			if v != 2 {
				t.Errorf("want documents_processing=2, got %v", v)
			}
			return
		}
	}
	t.Error("askdoc_ingest_documents_processing not found in gathered metrics")
}

// Test_Metrics_HTTPInstrumentation verifies the instrument middleware counts
// requests under the logical handler name with the final status code.
func Test_Metrics_HTTPInstrumentation(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := newTestServer()
	s.metrics = newServerMetrics(reg)

	h := s.instrument("documents_get", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/documents/x", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	found := false
	for _, mf := range mfs {
		if mf.GetName() != "askdoc_http_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["handler"] == "documents_get" && labels["code"] == "404" && labels["method"] == http.MethodGet {
				found = true
			}
		}
	}
	if !found {
		t.Error("askdoc_http_requests_total{handler=\"documents_get\",code=\"404\"} not found")
	}
}
