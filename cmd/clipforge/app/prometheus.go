// Copyright 2023, DASH-Industry Forum. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE.md file.

package app

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	defaultBuckets = []float64{5, 10, 20, 50, 100, 200, 500, 1000, 5000, 30000}
	prometheusMW   prometheusMiddleware

	llmCalls     *prometheus.CounterVec
	llmLatency   *prometheus.HistogramVec
	stageRuns    *prometheus.CounterVec
	stageLatency *prometheus.HistogramVec
	ffmpegRuns   *prometheus.CounterVec
)

const (
	apiReqsName    = "api_requests_total"
	apiLatencyName = "api_request_duration_milliseconds"
	llmCallsName   = "llm_calls_total"
	llmLatencyName = "llm_call_duration_milliseconds"
	stageRunsName  = "pipeline_stage_runs_total"
	stageLatName   = "pipeline_stage_duration_milliseconds"
	ffmpegRunsName = "ffmpeg_invocations_total"
	service        = "clipforge"
)

// prometheusMiddleware provides a handler that exposes prometheus metrics for API requests
type prometheusMiddleware struct {
	apiReqs    *prometheus.CounterVec
	apiLatency *prometheus.HistogramVec
}

func init() {
	prometheusMW.apiReqs = newCounter(apiReqsName,
		"Number of API requests processed, partitioned by status code.", service, "code")
	prometheusMW.apiLatency = newHistogram(apiLatencyName,
		"API response latency.", service, defaultBuckets, "code")
	llmCalls = newCounter(llmCallsName,
		"Number of LLM calls, partitioned by provider and outcome.", service, "provider", "outcome")
	llmLatency = newHistogram(llmLatencyName,
		"LLM call latency.", service, defaultBuckets, "provider", "outcome")
	stageRuns = newCounter(stageRunsName,
		"Number of pipeline stage runs, partitioned by stage and outcome.", service, "stage", "outcome")
	stageLatency = newHistogram(stageLatName,
		"Pipeline stage latency.", service, defaultBuckets, "stage", "outcome")
	ffmpegRuns = newCounter(ffmpegRunsName,
		"Number of ffmpeg/ffprobe invocations, partitioned by tool and outcome.", service, "tool", "outcome")
}

// NewPrometheusMiddleware returns a new prometheus Middleware handler.
func NewPrometheusMiddleware() func(next http.Handler) http.Handler {
	return prometheusMW.handler
}

func (mw prometheusMiddleware) handler(next http.Handler) http.Handler {
	fn := func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		if !strings.HasPrefix(path, "/api/") {
			return
		}
		status := strconv.Itoa(ww.Status())
		latencyMS := float64(time.Since(start).Nanoseconds()) * 1e-6
		mw.apiReqs.WithLabelValues(status).Inc()
		mw.apiLatency.WithLabelValues(status).Observe(latencyMS)
	}
	return http.HandlerFunc(fn)
}

// observeStage records one stage run with its latency.
func observeStage(stage int, outcome string, start time.Time) {
	s := strconv.Itoa(stage)
	stageRuns.WithLabelValues(s, outcome).Inc()
	stageLatency.WithLabelValues(s, outcome).Observe(float64(time.Since(start).Nanoseconds()) * 1e-6)
}

func newCounter(counterName, help, serviceName string, labels ...string) *prometheus.CounterVec {
	cv := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        counterName,
			Help:        help,
			ConstLabels: prometheus.Labels{"service": serviceName},
		},
		labels,
	)
	prometheus.MustRegister(cv)
	return cv
}

func newHistogram(histogramName, help, serviceName string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        histogramName,
		Help:        help,
		ConstLabels: prometheus.Labels{"service": serviceName},
		Buckets:     buckets,
	},
		labels,
	)
	prometheus.MustRegister(h)
	return h
}
