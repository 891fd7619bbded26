// Package metrics holds the prometheus collectors of the table engine. They
// register with the default registry; cmd/server exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novats_rows_written_total",
			Help: "Number of rows committed to a table.",
		},
		[]string{"table"},
	)
	BatchesRolledBack = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novats_batches_rolled_back_total",
			Help: "Number of write batches discarded after a failure.",
		},
		[]string{"table"},
	)
	SchemaFieldsAdded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novats_schema_fields_added_total",
			Help: "Number of fields added implicitly by written records.",
		},
		[]string{"table"},
	)
	RecoveredBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novats_recovered_bytes_total",
			Help: "Bytes cut from a log at open because they were never committed.",
		},
		[]string{"table", "file"},
	)
	RowsScanned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "novats_rows_scanned_total",
			Help: "Rows decoded by cursors, before filtering.",
		},
		[]string{"table"},
	)
)
