package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vaultpos/internal/domain"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, label string, value string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, pair := range metric.GetLabel() {
				if pair.GetName() == label && pair.GetValue() == value {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := New(reg)

	rec.SaleFinalized(domain.SaleRecord{PaymentMode: domain.PaymentCash, TotalCents: 1500})
	rec.SaleFinalized(domain.SaleRecord{PaymentMode: domain.PaymentCash, TotalCents: 500})
	rec.SaleFailed("persist")
	rec.ScanEvent("rejected")
	rec.SnapshotRefresh(false)

	assert.Equal(t, 2.0, counterValue(t, reg, "vaultpos_sales_finalized_total", "mode", "cash"))
	assert.Equal(t, 2000.0, counterValue(t, reg, "vaultpos_sales_amount_minor_units_total", "mode", "cash"))
	assert.Equal(t, 1.0, counterValue(t, reg, "vaultpos_sale_failures_total", "reason", "persist"))
	assert.Equal(t, 1.0, counterValue(t, reg, "vaultpos_scan_events_total", "result", "rejected"))
	assert.Equal(t, 1.0, counterValue(t, reg, "vaultpos_snapshot_refresh_total", "result", "error"))
}

func TestNilRecorderIsNoop(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() {
		rec.SaleFinalized(domain.SaleRecord{PaymentMode: domain.PaymentOnline})
		rec.SaleFailed("partial_stock")
		rec.ScanEvent("added")
		rec.SnapshotRefresh(true)
	})
}
