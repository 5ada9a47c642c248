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
	"fmt"
	"sync"
)

// State of a per-server poller
type State uint8

// Poller states
const (
	StateIdle State = iota
	StateQuerying
	StateRecording
	StateBackoff
)

// String returns the state name exposed on the health surface
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateQuerying:
		return "Querying"
	case StateRecording:
		return "Recording"
	case StateBackoff:
		return "Backoff"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// ServerStatus is the per-server health snapshot polled over http
type ServerStatus struct {
	State               string         `json:"state"`
	LastOK              string         `json:"last_ok"`
	ConsecutiveFailures int            `json:"consecutive_failures"`
	IntervalSec         float64        `json:"interval_sec"`
	LastStatus          string         `json:"last_status"`
	OffsetMS            float64        `json:"offset_ms"`
	DelayMS             float64        `json:"delay_ms"`
	Stratum             uint8          `json:"stratum"`
	ReferenceID         string         `json:"reference_id"`
	Aggregates          AggregateStats `json:"aggregates"`
}

// StatsServer is a stats collection interface fed by the pollers
type StatsServer interface {
	SetState(server string, state State)
	SetStatus(server string, status *ServerStatus)
	IncCycle(server string, status Status)
	IncSinkFailures(server string, n int)
	IncSinkError(sink string)
	IncQualityFlagged(server string)
}

// Stats is a plain in-memory implementation of StatsServer
type Stats struct {
	mux      sync.Mutex
	counters map[string]int64
	states   map[string]State
	statuses map[string]*ServerStatus
}

// NewStats creates a new instance of Stats
func NewStats() *Stats {
	return &Stats{
		counters: map[string]int64{},
		states:   map[string]State{},
		statuses: map[string]*ServerStatus{},
	}
}

// SetState records the current scheduler state of a server
func (s *Stats) SetState(server string, state State) {
	s.mux.Lock()
	s.states[server] = state
	if st, ok := s.statuses[server]; ok {
		st.State = state.String()
	}
	s.mux.Unlock()
}

// SetStatus replaces the health snapshot of a server
func (s *Stats) SetStatus(server string, status *ServerStatus) {
	s.mux.Lock()
	s.statuses[server] = status
	s.mux.Unlock()
}

// IncCycle counts one completed cycle by outcome
func (s *Stats) IncCycle(server string, status Status) {
	s.mux.Lock()
	s.counters["cycles"]++
	s.counters["cycles."+status.String()]++
	s.counters[fmt.Sprintf("server.%s.cycles.%s", server, status)]++
	s.mux.Unlock()
}

// IncSinkFailures counts failed sink writes of one cycle
func (s *Stats) IncSinkFailures(server string, n int) {
	if n == 0 {
		return
	}
	s.mux.Lock()
	s.counters["sink_failures"] += int64(n)
	s.counters[fmt.Sprintf("server.%s.sink_failures", server)] += int64(n)
	s.mux.Unlock()
}

// IncSinkError counts one failed write of a named sink
func (s *Stats) IncSinkError(sink string) {
	s.mux.Lock()
	s.counters[fmt.Sprintf("sink.%s.write_errors", sink)]++
	s.mux.Unlock()
}

// IncQualityFlagged counts cycles where the quality expression fired
func (s *Stats) IncQualityFlagged(server string) {
	s.mux.Lock()
	s.counters["quality_flagged"]++
	s.counters[fmt.Sprintf("server.%s.quality_flagged", server)]++
	s.mux.Unlock()
}

// SetCounter sets a counter to the provided value
func (s *Stats) SetCounter(key string, val int64) {
	s.mux.Lock()
	s.counters[key] = val
	s.mux.Unlock()
}

// GetCounters returns a copy of all counters
func (s *Stats) GetCounters() map[string]int64 {
	ret := make(map[string]int64)
	s.mux.Lock()
	for key, val := range s.counters {
		ret[key] = val
	}
	s.mux.Unlock()
	return ret
}

// GetStatuses returns a copy of the per-server health snapshots
func (s *Stats) GetStatuses() map[string]ServerStatus {
	ret := make(map[string]ServerStatus)
	s.mux.Lock()
	for key, val := range s.statuses {
		st := *val
		if state, ok := s.states[key]; ok {
			st.State = state.String()
		}
		ret[key] = st
	}
	s.mux.Unlock()
	return ret
}

// GetState returns the current state of a server
func (s *Stats) GetState(server string) State {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.states[server]
}
