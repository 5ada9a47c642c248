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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
)

func testJSONStats() *JSONStats {
	s := NewJSONStats()
	s.IncCycle("time.example.com", StatusOK)
	s.SetStatus("time.example.com", &ServerStatus{
		State:      StateIdle.String(),
		LastStatus: "ok",
		OffsetMS:   1.5,
		DelayMS:    12.5,
		Aggregates: AggregateStats{
			StddevOffset:  0.25,
			Stability:     0.1,
			SampleCountOK: 1,
		},
	})
	return s
}

func TestJSONStatsRootHandler(t *testing.T) {
	s := testJSONStats()
	w := httptest.NewRecorder()
	s.handleRootRequest(w, httptest.NewRequest(http.MethodGet, "/", nil))

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	statuses := map[string]ServerStatus{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&statuses))
	require.Len(t, statuses, 1)
	require.Equal(t, 1.5, statuses["time.example.com"].OffsetMS)
}

func TestJSONStatsCountersHandler(t *testing.T) {
	s := testJSONStats()
	w := httptest.NewRecorder()
	s.handleCountersRequest(w, httptest.NewRequest(http.MethodGet, "/counters", nil))

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	counters := map[string]int64{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&counters))
	require.Equal(t, int64(1), counters["cycles"])
	require.Equal(t, int64(1), counters["cycles.ok"])
}

func TestJSONStatsPrometheus(t *testing.T) {
	s := testJSONStats()
	w := httptest.NewRecorder()
	promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := w.Body.String()
	require.Contains(t, body, `ntpmon_offset_ms{server="time.example.com"} 1.5`)
	require.Contains(t, body, `ntpmon_delay_ms{server="time.example.com"} 12.5`)
	require.Contains(t, body, `ntpmon_stddev_offset_ms{server="time.example.com"} 0.25`)
	require.Contains(t, body, `ntpmon_cycles_total{server="time.example.com",status="ok"} 1`)
}

func TestSysStatsCollect(t *testing.T) {
	s := &SysStats{}
	stats, err := s.CollectRuntimeStats(time.Minute)
	require.NoError(t, err)
	require.Contains(t, stats, "process.alive_since")
	require.Contains(t, stats, "runtime.cpu.goroutines")
	require.Greater(t, stats["runtime.mem.alloc"], int64(0))
}
