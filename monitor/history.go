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
)

// History is a per-server bounded FIFO of recent samples, oldest first.
// The poller is the only writer; statistics and exporters read through
// Snapshot, which never aliases internal storage.
type History struct {
	mux       sync.RWMutex
	samples   []Sample
	maxPoints int
}

// NewHistory creates a History bounded to maxPoints entries, at least 1
func NewHistory(maxPoints int) *History {
	if maxPoints < 1 {
		maxPoints = 1
	}
	return &History{
		samples:   make([]Sample, 0, maxPoints),
		maxPoints: maxPoints,
	}
}

// Append adds a sample, evicting the oldest entry first when full
func (h *History) Append(sample Sample) {
	h.mux.Lock()
	defer h.mux.Unlock()
	if len(h.samples) == h.maxPoints {
		copy(h.samples, h.samples[1:])
		h.samples = h.samples[:len(h.samples)-1]
	}
	h.samples = append(h.samples, sample)
}

// Snapshot returns a copy of the window in arrival order
func (h *History) Snapshot() []Sample {
	h.mux.RLock()
	defer h.mux.RUnlock()
	out := make([]Sample, len(h.samples))
	copy(out, h.samples)
	return out
}

// Len returns the current number of samples in the window
func (h *History) Len() int {
	h.mux.RLock()
	defer h.mux.RUnlock()
	return len(h.samples)
}
