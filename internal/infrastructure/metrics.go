package infrastructure

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics. Row drops and file skips are deliberate policy in the
// extraction pipeline, so counters are the only place they remain visible
// once a request has completed.
var (
	// RowsRejected counts product-table body rows dropped during
	// extraction, labeled with the rejection reason.
	RowsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoicelens",
		Name:      "rows_rejected_total",
		Help:      "Product table rows dropped during extraction.",
	}, []string{"reason"})

	// FilesSkipped counts batch files that contributed nothing, labeled
	// with the skip reason.
	FilesSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoicelens",
		Name:      "files_skipped_total",
		Help:      "Batch files skipped without contributing rows.",
	}, []string{"reason"})

	// FilesProcessed counts files whose product table made it into a
	// combined dataset.
	FilesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "invoicelens",
		Name:      "files_processed_total",
		Help:      "Files that contributed rows to a combined dataset.",
	})
)
