package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDispatch(t *testing.T) {
	before := testutil.ToFloat64(ToolDispatchTotal.WithLabelValues("get_dashboard", "normal"))
	RecordDispatch("get_dashboard", "normal")
	after := testutil.ToFloat64(ToolDispatchTotal.WithLabelValues("get_dashboard", "normal"))
	if after-before != 1 {
		t.Fatalf("expected dispatch counter to increase by 1, got %v", after-before)
	}
}

func TestRecordUnrecognizedArgumentsIgnoresZero(t *testing.T) {
	before := testutil.ToFloat64(UnrecognizedArgumentsTotal.WithLabelValues("answer_logs"))
	RecordUnrecognizedArguments("answer_logs", 0)
	RecordUnrecognizedArguments("answer_logs", 2)
	after := testutil.ToFloat64(UnrecognizedArgumentsTotal.WithLabelValues("answer_logs"))
	if after-before != 2 {
		t.Fatalf("expected counter to increase by 2, got %v", after-before)
	}
}

func TestRecordError(t *testing.T) {
	before := testutil.ToFloat64(ErrorsTotal.WithLabelValues("internal"))
	RecordError("internal")
	after := testutil.ToFloat64(ErrorsTotal.WithLabelValues("internal"))
	if after-before != 1 {
		t.Fatalf("expected error counter to increase by 1, got %v", after-before)
	}
}

func TestObserveUpstreamAndContextItems(t *testing.T) {
	// Should not panic
	ObserveUpstream("Octopus", "get_spaces", time.Now().Add(-time.Second))
	RecordContextItems("deployments", 4)

	if n := testutil.CollectAndCount(UpstreamRequestDuration); n == 0 {
		t.Fatal("expected upstream histogram series")
	}
}
