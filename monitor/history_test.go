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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sampleWithOffset(offset time.Duration) Sample {
	return Sample{
		Server:    "time.example.com",
		Timestamp: time.Now(),
		Offset:    offset,
		Delay:     10 * time.Millisecond,
		Stratum:   2,
		Status:    StatusOK,
	}
}

func TestHistoryAppend(t *testing.T) {
	h := NewHistory(3)
	require.Equal(t, 0, h.Len())

	h.Append(sampleWithOffset(1 * time.Millisecond))
	h.Append(sampleWithOffset(2 * time.Millisecond))
	require.Equal(t, 2, h.Len())

	window := h.Snapshot()
	require.Equal(t, 1*time.Millisecond, window[0].Offset)
	require.Equal(t, 2*time.Millisecond, window[1].Offset)
}

func TestHistoryEviction(t *testing.T) {
	h := NewHistory(3)
	for i := 1; i <= 5; i++ {
		h.Append(sampleWithOffset(time.Duration(i) * time.Millisecond))
	}
	// oldest two evicted, arrival order preserved
	require.Equal(t, 3, h.Len())
	window := h.Snapshot()
	require.Equal(t, 3*time.Millisecond, window[0].Offset)
	require.Equal(t, 4*time.Millisecond, window[1].Offset)
	require.Equal(t, 5*time.Millisecond, window[2].Offset)
}

func TestHistoryMinCapacity(t *testing.T) {
	h := NewHistory(0)
	h.Append(sampleWithOffset(1 * time.Millisecond))
	h.Append(sampleWithOffset(2 * time.Millisecond))
	require.Equal(t, 1, h.Len())
	require.Equal(t, 2*time.Millisecond, h.Snapshot()[0].Offset)
}

func TestHistorySnapshotIsolation(t *testing.T) {
	h := NewHistory(3)
	h.Append(sampleWithOffset(1 * time.Millisecond))
	window := h.Snapshot()
	window[0].Offset = 42 * time.Millisecond
	require.Equal(t, 1*time.Millisecond, h.Snapshot()[0].Offset)
}

func TestHistoryConcurrentReaders(t *testing.T) {
	h := NewHistory(100)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			h.Append(sampleWithOffset(time.Duration(i) * time.Microsecond))
		}
	}()
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				window := h.Snapshot()
				require.LessOrEqual(t, len(window), 100)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 100, h.Len())
}
