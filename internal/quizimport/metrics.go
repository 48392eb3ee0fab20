package quizimport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiz_import",
		Name:      "imports_total",
		Help:      "Import runs by mode and outcome.",
	}, []string{"mode", "outcome"})

	importDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quiz_import",
		Name:      "import_duration_seconds",
		Help:      "Wall time of an import run.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"mode"})

	rowErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "quiz_import",
		Name:      "row_errors_total",
		Help:      "Row and image errors found while validating.",
	})

	imageUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiz_import",
		Name:      "image_uploads_total",
		Help:      "Image uploads by result.",
	}, []string{"result"})

	rollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiz_import",
		Name:      "rollbacks_total",
		Help:      "Failed quiz writes by rollback result.",
	}, []string{"result"})

	previewCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quiz_import",
		Name:      "preview_cache_total",
		Help:      "Preview cache lookups by result.",
	}, []string{"result"})
)

func modeLabel(preview bool) string {
	if preview {
		return "preview"
	}
	return "commit"
}
