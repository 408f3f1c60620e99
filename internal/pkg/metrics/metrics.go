package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TreeRejections counts tree mutations declined by the validity rules.
	TreeRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "widgy",
		Name:      "tree_rejections_total",
		Help:      "Tree mutations declined because the content is not allowed at the position.",
	}, []string{"op"})

	// FormSubmissions counts stored submissions.
	FormSubmissions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "widgy",
		Name:      "form_submissions_total",
		Help:      "Form submissions persisted.",
	})

	// FormValidationFailures counts posts rejected by schema validation.
	FormValidationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "widgy",
		Name:      "form_validation_failures_total",
		Help:      "Form posts that failed validation.",
	})

	// HandlerRuns counts success/response handler executions by kind and outcome.
	HandlerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "widgy",
		Name:      "form_handler_runs_total",
		Help:      "Form handler executions.",
	}, []string{"kind", "outcome"})
)

// Handler exposes the default registry.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
