// Package metrics exposes checkout and scanner counters to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"vaultpos/internal/domain"
)

// Recorder is safe to use as a nil pointer; every method is then a no-op.
type Recorder struct {
	salesFinalized   *prometheus.CounterVec
	saleFailures     *prometheus.CounterVec
	scanEvents       *prometheus.CounterVec
	snapshotRefresh  *prometheus.CounterVec
	saleAmountMinors *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		salesFinalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultpos_sales_finalized_total",
			Help: "Sales recorded, by payment mode.",
		}, []string{"mode"}),
		saleFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultpos_sale_failures_total",
			Help: "Checkout failures, by reason.",
		}, []string{"reason"}),
		scanEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultpos_scan_events_total",
			Help: "Decoded labels offered to a terminal, by result.",
		}, []string{"result"}),
		snapshotRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultpos_snapshot_refresh_total",
			Help: "Inventory snapshot loads, by result.",
		}, []string{"result"}),
		saleAmountMinors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "vaultpos_sales_amount_minor_units_total",
			Help: "Sum of recorded sale totals in minor currency units, by payment mode.",
		}, []string{"mode"}),
	}
	if reg != nil {
		reg.MustRegister(r.salesFinalized, r.saleFailures, r.scanEvents, r.snapshotRefresh, r.saleAmountMinors)
	}
	return r
}

func (r *Recorder) SaleFinalized(sale domain.SaleRecord) {
	if r == nil {
		return
	}
	r.salesFinalized.WithLabelValues(string(sale.PaymentMode)).Inc()
	r.saleAmountMinors.WithLabelValues(string(sale.PaymentMode)).Add(float64(sale.TotalCents))
}

// SaleFailed counts a failed checkout. reason is "persist" or "partial_stock".
func (r *Recorder) SaleFailed(reason string) {
	if r == nil {
		return
	}
	r.saleFailures.WithLabelValues(reason).Inc()
}

// ScanEvent counts one decoded label: "added", "rejected" or "ignored".
func (r *Recorder) ScanEvent(result string) {
	if r == nil {
		return
	}
	r.scanEvents.WithLabelValues(result).Inc()
}

func (r *Recorder) SnapshotRefresh(ok bool) {
	if r == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	r.snapshotRefresh.WithLabelValues(result).Inc()
}
