package projectfiles

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// counterAdjustFailures counts swallowed project counter updates.
var counterAdjustFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "projectfiles_counter_adjust_failures_total",
		Help: "Project counter adjustments that failed and were skipped",
	},
	[]string{"op"},
)
