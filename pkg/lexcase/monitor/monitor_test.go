package monitor

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestObserveStage(t *testing.T) {
	m := New()
	m.ObserveStage("cleaning", 10*time.Millisecond, nil)
	m.ObserveStage("cleaning", 30*time.Millisecond, errors.New("boom"))

	s := m.Snapshot().Stages["cleaning"]
	if s.Count != 2 || s.Failures != 1 {
		t.Errorf("unexpected stage stats %+v", s)
	}
	if s.Average() != 20*time.Millisecond {
		t.Errorf("expected 20ms average, got %v", s.Average())
	}
}

func TestErrorRate(t *testing.T) {
	m := New()
	if m.ErrorRate() != 0 {
		t.Error("empty monitor should have zero error rate")
	}
	m.DocumentProcessed(true)
	m.DocumentProcessed(true)
	m.DocumentProcessed(true)
	m.DocumentProcessed(false)
	if got := m.ErrorRate(); got != 0.25 {
		t.Errorf("expected 0.25, got %f", got)
	}
}

func TestCountersAndReset(t *testing.T) {
	m := New()
	m.ValidationError("required_field")
	m.ValidationError("required_field")
	m.NERDegraded(errors.New("down"))

	s := m.Snapshot()
	if s.ValidationErrors["required_field"] != 2 || s.NERDegradations != 1 {
		t.Errorf("unexpected snapshot %+v", s)
	}
	s.ValidationErrors["required_field"] = 99
	if m.Snapshot().ValidationErrors["required_field"] != 2 {
		t.Error("snapshot should be a copy")
	}

	m.Reset()
	if s := m.Snapshot(); len(s.ValidationErrors) != 0 || s.NERDegradations != 0 {
		t.Errorf("reset did not clear: %+v", s)
	}
}

func TestNilMonitor(t *testing.T) {
	var m *Monitor
	m.ObserveStage("storage", time.Second, nil)
	m.DocumentProcessed(false)
	if m.ErrorRate() != 0 {
		t.Error("nil monitor should report zero")
	}
}

func TestConcurrentObserve(t *testing.T) {
	m := New()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.ObserveStage("storage", time.Millisecond, nil)
			m.DocumentProcessed(true)
		}()
	}
	wg.Wait()
	s := m.Snapshot()
	if s.Processed != 50 || s.Stages["storage"].Count != 50 {
		t.Errorf("unexpected snapshot %+v", s)
	}
}

func TestInFlight(t *testing.T) {
	m := New()
	m.DocumentStarted()
	m.DocumentStarted()
	m.DocumentProcessed(true)
	if got := m.Snapshot().InFlight; got != 1 {
		t.Errorf("expected 1 in flight, got %d", got)
	}

	m.Reset()
	if s := m.Snapshot(); s.InFlight != 1 || s.Processed != 0 {
		t.Errorf("reset should keep in-flight and clear counters: %+v", s)
	}
	m.DocumentProcessed(false)
	if s := m.Snapshot(); s.InFlight != 0 || s.Failed != 1 {
		t.Errorf("unexpected snapshot after finish %+v", s)
	}
}

func TestHandlerServesRegistry(t *testing.T) {
	m := New()
	reg := m.Registry()
	if reg == nil {
		t.Fatal("expected a registry")
	}
	h := m.Handler()

	m.DocumentProcessed(true)
	m.Reset()
	if m.Registry() != reg {
		t.Error("reset should keep the registry")
	}
	m.ObserveStage("chunking", time.Millisecond, nil)
	m.ValidationError("invalid_date")
	m.DocumentProcessed(true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	for _, want := range []string{
		`lexcase_documents_total{status="success"} 1`,
		`lexcase_stage_duration_seconds_count{stage="chunking"} 1`,
		`lexcase_validation_errors_total{rule="invalid_date"} 1`,
		"lexcase_documents_in_flight",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exposition missing %q:\n%s", want, out)
		}
	}
}

func TestNilMonitorHandler(t *testing.T) {
	var m *Monitor
	if m.Registry() != nil {
		t.Error("nil monitor has no registry")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}
