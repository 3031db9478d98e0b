// Package metrics exposes Prometheus counters for uploads, logins and HTTP traffic.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultRejected = "rejected"
	ResultUnparsed = "unparseable"
	ResultInvalid  = "invalid_credentials"
)

// Recorder is what the services and middleware report to.
type Recorder interface {
	RecordUpload(result string)
	RecordRowsScored(count int)
	RecordLogin(result string)
	RecordHTTPStatus(statusCode int)
	RecordUploadDuration(d time.Duration)
}

// Collector implements Recorder on top of Prometheus.
type Collector struct {
	uploads        *prometheus.CounterVec
	rowsScored     prometheus.Counter
	logins         *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	uploadDuration prometheus.Histogram
}

// NewCollector creates the metrics and registers them on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxfraud_uploads_total",
			Help: "Uploaded files by outcome.",
		}, []string{"result"}),
		rowsScored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taxfraud_rows_scored_total",
			Help: "Rows scored and stored.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxfraud_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taxfraud_http_requests_total",
			Help: "HTTP responses by status code.",
		}, []string{"status"}),
		uploadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taxfraud_upload_processing_seconds",
			Help:    "Time spent storing, parsing and scoring an upload.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.uploads,
		c.rowsScored,
		c.logins,
		c.httpRequests,
		c.uploadDuration,
	)
	return c
}

func (c *Collector) RecordUpload(result string) {
	c.uploads.WithLabelValues(result).Inc()
}

func (c *Collector) RecordRowsScored(count int) {
	c.rowsScored.Add(float64(count))
}

func (c *Collector) RecordLogin(result string) {
	c.logins.WithLabelValues(result).Inc()
}

func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

func (c *Collector) RecordUploadDuration(d time.Duration) {
	c.uploadDuration.Observe(d.Seconds())
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
