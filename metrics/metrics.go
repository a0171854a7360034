package metrics

import (
	"context"
	"time"

	"contrib.go.opencensus.io/exporter/stackdriver"
	log "github.com/sirupsen/logrus"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

// All tracked metrics are to be added here.
// UnitType of the metric i.e. Incr / Count / Latency must be prefixed with each metric name.
const (
	IncrAttributionConversionsProcessed = "attribution_conversions_processed"
	IncrAttributionConversionsSkipped   = "attribution_conversions_skipped"
	IncrAttributionConversionsFailed    = "attribution_conversions_failed"

	CountAttributionResultRowsWritten = "attribution_result_rows_written"
	CountAttributionRollupRowsUpdated = "attribution_rollup_rows_updated"

	LatencyAttributionRun        = "attribution_run_latency"
	LatencyAttributionConversion = "attribution_conversion_latency"
)

var (
	// The task latency in milliseconds.
	latencyStats  = stats.Float64("task_latency", "The task latency in milliseconds", stats.UnitMilliseconds)
	guageStatsInt = stats.Int64("int_counter", "The number of loop iterations", stats.UnitDimensionless)
)

var (
	// MetricNameTag Label for the metric to be updated. To be used in filter.
	MetricNameTag, _ = tag.NewKey("metric_name")
)

var (
	latencyView = &view.View{
		Name:        "latency_view",
		Measure:     latencyStats,
		Description: "The distribution of the task latencies",

		// Bucketing is not supported in stackdriver.
		// But retain this else it fails to export metrics.
		Aggregation: view.Distribution(0, 100, 200, 400, 1000, 2000, 4000),
		TagKeys:     []tag.Key{MetricNameTag},
	}

	countIntView = &view.View{
		Measure:     guageStatsInt,
		Name:        "count_int_view",
		Description: "Count int view",
		Aggregation: view.Sum(),
		TagKeys:     []tag.Key{MetricNameTag},
	}
)

// GenericTask Resource type for custom metrics.
// Implements interface for stackdriver's monitoredresource.
// https://cloud.google.com/monitoring/api/resources#tag_generic_task
type GenericTask struct {
	ProjectID string
	Location  string
	Namespace string
	Job       string
	TaskID    string
}

// MonitoredResource returns resource type and resource labels for GenericTask
func (gt *GenericTask) MonitoredResource() (resType string, labels map[string]string) {
	labels = map[string]string{
		"project_id": gt.ProjectID,
		"location":   gt.Location,
		"namespace":  gt.Namespace,
		"job":        gt.Job,
		"task_id":    gt.TaskID,
	}
	return "generic_task", labels
}

// InitMetrics Initializes metrics exporter to collect metrics. Returns nil
// in development, where nothing is exported.
func InitMetrics(env, appName, projectID, projectLocation string) *stackdriver.Exporter {
	if env == "development" {
		return nil
	}
	logCtx := log.WithField("Tag", "Metrics")
	logCtx.Info("Initializing metrics exporter ...")

	ctx := context.Background()

	if err := view.Register(latencyView, countIntView); err != nil {
		log.WithError(err).Error("Failed to register the view")
		return nil
	}

	monitoredResource := GenericTask{
		ProjectID: projectID,
		Location:  projectLocation,
		Namespace: env,
		Job:       appName,
		TaskID:    "generic_task",
	}

	exporter, err := stackdriver.NewExporter(stackdriver.Options{
		ProjectID:         projectID,
		MetricPrefix:      "custom.googleapis.com/" + appName + "/",
		ReportingInterval: time.Minute,
		MonitoredResource: &monitoredResource,
		Context:           ctx,
		Timeout:           30 * time.Second,
	})
	if err != nil {
		logCtx.WithError(err).Error("Error creating exporter")
		return nil
	}
	view.SetReportingPeriod(time.Minute)

	if err := exporter.StartMetricsExporter(); err != nil {
		logCtx.WithError(err).Error("Failed to start metrics exporter")
		return nil
	}

	return exporter
}

// Increment Increments the given metric by 1.
func Increment(metricName string) {
	CountInt(metricName, 1)
}

// CountInt Reports the count value for given int Metric.
func CountInt(metricName string, count int64) {
	ctx, err := tag.New(context.Background(), tag.Upsert(MetricNameTag, metricName))
	if err != nil {
		log.WithError(err).Error("Failed to record CountInt")
		return
	}
	stats.Record(ctx, guageStatsInt.M(count))
}

// RecordLatency Records latency as a metric in 'ms'.
func RecordLatency(metricName string, latency float64) {
	ctx, err := tag.New(context.Background(), tag.Upsert(MetricNameTag, metricName))
	if err != nil {
		log.WithError(err).Error("Failed to record Latency")
		return
	}
	stats.Record(ctx, latencyStats.M(latency))
}
