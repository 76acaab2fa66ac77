package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	imagesProcessedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "comictl_images_processed_total",
			Help: "Total number of images fully translated and exported",
		},
	)

	imagesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comictl_images_skipped_total",
			Help: "Total number of images skipped, by failing stage",
		},
		[]string{"stage"},
	)

	translationCallsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "comictl_translation_calls_total",
			Help: "Total number of batched translation calls",
		},
	)

	translationBatchFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "comictl_translation_batch_failures_total",
			Help: "Total number of failed translation batches",
		},
	)

	imageDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "comictl_image_duration_seconds",
			Help:    "Wall time spent per image through detection, OCR and inpainting",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 25, 50, 100},
		},
	)

	archivesPackedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "comictl_archives_packed_total",
			Help: "Total number of archive repack attempts",
		},
		[]string{"status"},
	)
)
