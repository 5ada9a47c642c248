/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package monitor

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
)

// JSONStats reports per-server health as JSON over http, counters on
// /counters, and Prometheus gauges on /metrics
type JSONStats struct {
	Stats

	registry       *prometheus.Registry
	offsetGauge    *prometheus.GaugeVec
	delayGauge     *prometheus.GaugeVec
	jitterGauge    *prometheus.GaugeVec
	stabilityGauge *prometheus.GaugeVec
	failuresGauge  *prometheus.GaugeVec
	cyclesCounter  *prometheus.CounterVec
}

// NewJSONStats returns a new JSONStats
func NewJSONStats() *JSONStats {
	s := &JSONStats{
		Stats:    *NewStats(),
		registry: prometheus.NewRegistry(),
		offsetGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntpmon_offset_ms",
			Help: "last measured clock offset in ms",
		}, []string{"server"}),
		delayGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntpmon_delay_ms",
			Help: "last measured round-trip delay in ms",
		}, []string{"server"}),
		jitterGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntpmon_stddev_offset_ms",
			Help: "sample standard deviation of offset over the window in ms",
		}, []string{"server"}),
		stabilityGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntpmon_stability",
			Help: "offset dispersion normalized by mean offset magnitude",
		}, []string{"server"}),
		failuresGauge: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ntpmon_consecutive_failures",
			Help: "consecutive failed cycles",
		}, []string{"server"}),
		cyclesCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ntpmon_cycles_total",
			Help: "completed poll cycles by outcome",
		}, []string{"server", "status"}),
	}
	s.registry.MustRegister(s.offsetGauge, s.delayGauge, s.jitterGauge, s.stabilityGauge, s.failuresGauge, s.cyclesCounter)
	return s
}

// SetStatus updates both the JSON snapshot and the Prometheus gauges
func (s *JSONStats) SetStatus(server string, status *ServerStatus) {
	s.Stats.SetStatus(server, status)
	if status.LastStatus == StatusOK.String() {
		s.offsetGauge.WithLabelValues(server).Set(status.OffsetMS)
		s.delayGauge.WithLabelValues(server).Set(status.DelayMS)
	}
	s.jitterGauge.WithLabelValues(server).Set(status.Aggregates.StddevOffset)
	s.stabilityGauge.WithLabelValues(server).Set(status.Aggregates.Stability)
	s.failuresGauge.WithLabelValues(server).Set(float64(status.ConsecutiveFailures))
}

// IncCycle counts one completed cycle by outcome
func (s *JSONStats) IncCycle(server string, status Status) {
	s.Stats.IncCycle(server, status)
	s.cyclesCounter.WithLabelValues(server, status.String()).Inc()
}

// handleRootRequest is a handler for the per-server health surface
func (s *JSONStats) handleRootRequest(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(s.GetStatuses())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

// handleCountersRequest is a handler for the flat counter map
func (s *JSONStats) handleCountersRequest(w http.ResponseWriter, _ *http.Request) {
	js, err := json.Marshal(s.GetCounters())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

// Start runs the monitoring http server and keeps process counters fresh
func (s *JSONStats) Start(monitoringPort int, interval time.Duration) {
	// collect process stats forever
	go func() {
		sysStats := &SysStats{}
		for range time.Tick(interval) {
			counters, err := sysStats.CollectRuntimeStats(interval)
			if err != nil {
				log.Warningf("failed to get system metrics: %v", err)
				continue
			}
			for k, v := range counters {
				s.SetCounter(k, v)
			}
		}
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRootRequest)
	mux.HandleFunc("/counters", s.handleCountersRequest)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	addr := fmt.Sprintf(":%d", monitoringPort)
	log.Infof("Starting http json server on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Failed to start listener: %v", err)
	}
}
