package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Accepted SMS partitioned by direction
	smsIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_ingested_total",
			Help: "Total number of SMS payloads accepted by the receive and send endpoints",
		},
		[]string{"type"},
	)

	// Payloads whose declared structured body could not be decoded
	smsUnstructuredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sms_unstructured_payloads_total",
			Help: "Total number of payloads that fell back to raw or best-effort parsing",
		},
	)

	smsStoreFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sms_store_failures_total",
			Help: "Total number of SMS records that could not be written to the store",
		},
	)

	// Secondary index writes that failed, partitioned by index
	smsIndexFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_index_write_failures_total",
			Help: "Total number of failed secondary index writes",
		},
		[]string{"index"},
	)

	smsRepairFixedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sms_repair_fixed_total",
			Help: "Total number of records whose indexes or type were fixed by repair",
		},
	)
)
