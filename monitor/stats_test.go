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
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func okSample(offsetMS, delayMS float64) Sample {
	return Sample{
		Server:    "time.example.com",
		Timestamp: time.Now(),
		Offset:    time.Duration(offsetMS * float64(time.Millisecond)),
		Delay:     time.Duration(delayMS * float64(time.Millisecond)),
		Stratum:   2,
		Status:    StatusOK,
	}
}

func failedSample(status Status) Sample {
	return Sample{
		Server:    "time.example.com",
		Timestamp: time.Now(),
		Status:    status,
	}
}

func TestComputeEmptyWindow(t *testing.T) {
	stats := Compute(nil)
	require.Equal(t, AggregateStats{}, stats)
}

func TestComputeAllFailed(t *testing.T) {
	window := []Sample{
		failedSample(StatusTimeout),
		failedSample(StatusNetworkError),
	}
	stats := Compute(window)
	// zero values, never NaN
	require.Equal(t, 0, stats.SampleCountOK)
	require.Equal(t, 2, stats.SampleCountFailed)
	require.Equal(t, 0.0, stats.MeanOffset)
	require.Equal(t, 0.0, stats.Stability)
}

func TestComputeKnownValues(t *testing.T) {
	window := []Sample{
		okSample(1, 10),
		okSample(2, 20),
		okSample(3, 30),
		okSample(4, 40),
	}
	stats := Compute(window)
	require.Equal(t, 4, stats.SampleCountOK)
	require.Equal(t, 0, stats.SampleCountFailed)

	require.InDelta(t, 2.5, stats.MeanOffset, 1e-9)
	require.InDelta(t, 2.5, stats.MedianOffset, 1e-9)
	// sample stddev of 1,2,3,4
	require.InDelta(t, 1.2909944487358056, stats.StddevOffset, 1e-9)
	require.InDelta(t, 1.0, stats.MinOffset, 1e-9)
	require.InDelta(t, 4.0, stats.MaxOffset, 1e-9)
	require.InDelta(t, 4.0, stats.P95Offset, 1e-9)

	require.InDelta(t, 25.0, stats.MeanDelay, 1e-9)
	require.InDelta(t, 40.0, stats.P95Delay, 1e-9)

	require.InDelta(t, stats.StddevOffset/(2.5+StabilityEpsilon), stats.Stability, 1e-9)
}

func TestComputeSingleSample(t *testing.T) {
	stats := Compute([]Sample{okSample(-5, 12)})
	require.Equal(t, 1, stats.SampleCountOK)
	require.InDelta(t, -5.0, stats.MeanOffset, 1e-9)
	require.InDelta(t, -5.0, stats.MedianOffset, 1e-9)
	require.Equal(t, 0.0, stats.StddevOffset)
	require.Equal(t, 0.0, stats.Stability)
}

func TestComputeSkipsFailed(t *testing.T) {
	window := []Sample{
		okSample(1, 10),
		failedSample(StatusTimeout),
		okSample(3, 30),
	}
	stats := Compute(window)
	require.Equal(t, 2, stats.SampleCountOK)
	require.Equal(t, 1, stats.SampleCountFailed)
	// the failed sample's zero offset must not drag the mean down
	require.InDelta(t, 2.0, stats.MeanOffset, 1e-9)
}

func TestComputeZeroMeanStability(t *testing.T) {
	window := []Sample{
		okSample(-1, 10),
		okSample(1, 10),
	}
	stats := Compute(window)
	require.InDelta(t, 0.0, stats.MeanOffset, 1e-9)
	// epsilon keeps the ratio finite
	require.InDelta(t, stats.StddevOffset/StabilityEpsilon, stats.Stability, 1e-9)
}

func TestComputePure(t *testing.T) {
	window := []Sample{
		okSample(1.5, 11),
		failedSample(StatusProtocolError),
		okSample(-2.25, 13),
	}
	first := Compute(window)
	second := Compute(window)
	require.Equal(t, first, second)
}

func TestMedian(t *testing.T) {
	require.Equal(t, 0.0, median(nil))
	require.Equal(t, 3.0, median([]float64{1, 3, 5}))
	require.Equal(t, 2.0, median([]float64{1, 3}))
}

func TestPercentile(t *testing.T) {
	require.Equal(t, 0.0, percentile(nil, 0.95))
	sorted := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	require.Equal(t, 10.0, percentile(sorted, 0.95))
	require.Equal(t, 5.0, percentile(sorted, 0.5))
	require.Equal(t, 1.0, percentile(sorted, 0))
}
