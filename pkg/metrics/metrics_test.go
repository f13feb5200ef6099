package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordBuild(t *testing.T) {
	before := testutil.ToFloat64(graphBuilds.WithLabelValues("ok"))
	skippedBefore := testutil.ToFloat64(malformedRecords)

	RecordBuild("ok", 5*time.Millisecond, 2)
	RecordBuild("ok", time.Millisecond, 0)

	if got := testutil.ToFloat64(graphBuilds.WithLabelValues("ok")) - before; got != 2 {
		t.Errorf("Expected 2 builds recorded, got %v", got)
	}
	if got := testutil.ToFloat64(malformedRecords) - skippedBefore; got != 2 {
		t.Errorf("Expected 2 malformed records, got %v", got)
	}
}

func TestRecordSearch(t *testing.T) {
	before := testutil.ToFloat64(searches.WithLabelValues(KindRanked, "no_route"))

	RecordSearch(KindRanked, "no_route", time.Millisecond)

	if got := testutil.ToFloat64(searches.WithLabelValues(KindRanked, "no_route")) - before; got != 1 {
		t.Errorf("Expected 1 search recorded, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	RecordSearch(KindShortest, "found", time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{"circulation_searches_total", "circulation_search_seconds", "go_goroutines"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("Expected %s in exposition output", name)
		}
	}
}
