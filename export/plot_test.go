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

package export

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/timekeep/ntpmon/monitor"
)

func historyWith(samples ...monitor.Sample) *monitor.History {
	h := monitor.NewHistory(100)
	for _, s := range samples {
		h.Append(s)
	}
	return h
}

func plotSample(at time.Time, offset time.Duration, status monitor.Status) monitor.Sample {
	return monitor.Sample{
		Server:    "time.example.com",
		Timestamp: at,
		Offset:    offset,
		Delay:     10 * time.Millisecond,
		Status:    status,
	}
}

func TestPlotterRender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")
	now := time.Now()
	histories := map[string]*monitor.History{
		"time.example.com": historyWith(
			plotSample(now.Add(-2*time.Minute), 1*time.Millisecond, monitor.StatusOK),
			plotSample(now.Add(-1*time.Minute), 0, monitor.StatusTimeout),
			plotSample(now, 2*time.Millisecond, monitor.StatusOK),
		),
	}
	p := NewPlotter(monitor.PlotConfig{File: path, Interval: time.Minute}, histories)

	require.NoError(t, p.Render())

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(b), 8)
	// png magic
	require.Equal(t, []byte("\x89PNG\r\n\x1a\n"), b[:8])
}

func TestPlotterRenderNoData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.png")

	p := NewPlotter(monitor.PlotConfig{File: path, Interval: time.Minute}, map[string]*monitor.History{})
	require.Error(t, p.Render())

	// a single point is not a line either
	histories := map[string]*monitor.History{
		"time.example.com": historyWith(plotSample(time.Now(), time.Millisecond, monitor.StatusOK)),
	}
	p = NewPlotter(monitor.PlotConfig{File: path, Interval: time.Minute}, histories)
	require.Error(t, p.Render())

	_, err := os.Stat(path)
	require.True(t, os.IsNotExist(err))
}
