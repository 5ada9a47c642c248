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
	"math"
	"sort"

	"github.com/eclesh/welford"
)

// StabilityEpsilon keeps the stability ratio defined for all-zero-offset
// windows: 1µs expressed in ms
const StabilityEpsilon = 0.001

// AggregateStats are the derived metrics over one history window, all in
// milliseconds. Standard deviations are the sample (n-1) form; windows
// with fewer than 2 Ok samples report 0. A window with no Ok samples at
// all reports zero values with SampleCountOK 0, never NaN.
type AggregateStats struct {
	MeanOffset   float64 `json:"mean_offset_ms"`
	MedianOffset float64 `json:"median_offset_ms"`
	StddevOffset float64 `json:"stddev_offset_ms"`
	MinOffset    float64 `json:"min_offset_ms"`
	MaxOffset    float64 `json:"max_offset_ms"`
	P95Offset    float64 `json:"p95_offset_ms"`

	MeanDelay   float64 `json:"mean_delay_ms"`
	MedianDelay float64 `json:"median_delay_ms"`
	StddevDelay float64 `json:"stddev_delay_ms"`
	MinDelay    float64 `json:"min_delay_ms"`
	MaxDelay    float64 `json:"max_delay_ms"`
	P95Delay    float64 `json:"p95_delay_ms"`

	// Stability is stddev of offset normalized by its mean magnitude
	Stability float64 `json:"stability"`

	SampleCountOK     int `json:"sample_count_ok"`
	SampleCountFailed int `json:"sample_count_failed"`
}

// median of sorted values
func median(sorted []float64) float64 {
	l := len(sorted)
	if l == 0 {
		return 0
	}
	if l%2 == 0 {
		return (sorted[l/2-1] + sorted[l/2]) / 2
	}
	return sorted[l/2]
}

// percentile of sorted values via the nearest-rank method
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type summary struct {
	mean, median, stddev, min, max, p95 float64
}

func summarize(values []float64) summary {
	w := welford.New()
	for _, v := range values {
		w.Add(v)
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return summary{
		mean:   w.Mean(),
		median: median(sorted),
		stddev: w.Stddev(),
		min:    w.Min(),
		max:    w.Max(),
		p95:    percentile(sorted, 0.95),
	}
}

// Compute derives AggregateStats from a window of samples. Failed
// samples only contribute to SampleCountFailed. Compute is pure: the
// same window contents always produce the same result.
func Compute(window []Sample) AggregateStats {
	stats := AggregateStats{}
	offsets := make([]float64, 0, len(window))
	delays := make([]float64, 0, len(window))
	for i := range window {
		s := &window[i]
		if !s.OK() {
			stats.SampleCountFailed++
			continue
		}
		offsets = append(offsets, s.OffsetMilliseconds())
		delays = append(delays, s.DelayMilliseconds())
	}
	stats.SampleCountOK = len(offsets)
	if stats.SampleCountOK == 0 {
		return stats
	}

	o := summarize(offsets)
	stats.MeanOffset = o.mean
	stats.MedianOffset = o.median
	stats.StddevOffset = o.stddev
	stats.MinOffset = o.min
	stats.MaxOffset = o.max
	stats.P95Offset = o.p95

	d := summarize(delays)
	stats.MeanDelay = d.mean
	stats.MedianDelay = d.median
	stats.StddevDelay = d.stddev
	stats.MinDelay = d.min
	stats.MaxDelay = d.max
	stats.P95Delay = d.p95

	stats.Stability = stats.StddevOffset / (math.Abs(stats.MeanOffset) + StabilityEpsilon)
	return stats
}
