package stock

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsCountOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	f := newFixture(t, WithMetrics(m))
	ctx := context.Background()

	f.receiveCable(t, f.warehouse, 2)
	f.e.Issue(ctx, f.actor, f.warehouse.ID, f.alice.ID, []Line{material(f.cable, 5)})
	f.e.Issue(ctx, f.actor, f.warehouse.ID, f.alice.ID, []Line{material(f.cable, 1)})
	f.e.ConfirmTransfer(ctx, f.actor, "missing")

	tests := []struct {
		op, result string
		want       float64
	}{
		{"receive", "ok", 1},
		{"issue", "ok", 1},
		{"issue", "insufficient_stock", 1},
		{"confirm", "not_found", 1},
		{"confirm", "ok", 0},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(m.ops.WithLabelValues(tt.op, tt.result))
		if got != tt.want {
			t.Errorf("%s/%s: expected %v, got %v", tt.op, tt.result, tt.want, got)
		}
	}

	if n := testutil.CollectAndCount(m.duration); n != 3 {
		t.Errorf("expected 3 duration series, got %d", n)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.observe("receive", nil, 0)
}
