package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MembershipOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_operations_total",
			Help: "Total number of membership operations",
		},
		[]string{"operation", "result"},
	)

	RevisionConflictsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_revision_conflicts_total",
			Help: "Total number of stale-revision writes retried by the coordinator",
		},
		[]string{"operation"},
	)

	IndexRepairsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membership_index_repairs_total",
			Help: "Total number of user index entries changed by repair",
		},
		[]string{"action"},
	)

	GroupStateTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "group_state_transitions_total",
			Help: "Total number of group watch-state transitions",
		},
		[]string{"to"},
	)
)

// Result returns the result label for an operation outcome
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
