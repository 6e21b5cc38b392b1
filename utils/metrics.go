// Prometheus counters for the transport and routing cores. Counts are
// incremented inline; no exposition endpoint is mounted, the default
// registry is still queryable from tests.
package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PacketsSent counts datagrams put on the wire, by packet kind.
	// Example usage:
	//    utils.PacketsSent.WithLabelValues("data").Inc()
	PacketsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netlab_packets_sent_total",
		Help: "Datagrams sent on the wire, including retransmissions.",
	}, []string{"kind"})

	// Retransmits counts timer driven retransmissions of DATA packets.
	Retransmits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netlab_retransmits_total",
		Help: "DATA packets resent after a retransmission timeout.",
	})

	// AcksReceived counts ACK packets accepted by the sender loop.
	AcksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netlab_acks_received_total",
		Help: "ACK packets received by the sender.",
	})

	// BytesDelivered counts payload bytes written in order by the receiver.
	BytesDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netlab_bytes_delivered_total",
		Help: "Payload bytes delivered in order to the output file.",
	})

	// LSAProcessed counts link-state advertisements by dedup outcome.
	// Example usage:
	//    utils.LSAProcessed.WithLabelValues("duplicate").Inc()
	LSAProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "netlab_lsa_processed_total",
		Help: "LSAs handled by the router, split into new and duplicate.",
	}, []string{"result"})

	// SPFRuns counts shortest path recomputations.
	SPFRuns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "netlab_spf_runs_total",
		Help: "Dijkstra runs over the topology database.",
	})
)
