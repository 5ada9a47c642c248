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

/*
Package monitor implements the NTP polling and statistics engine: a
query client producing Samples, a bounded per-server history, pure
aggregate statistics over that history, and a per-server poller that
fans every cycle out to independently failing sinks.

Raw measurements are stored as time.Duration (nanoseconds); every
derived statistic and everything written to sinks is in milliseconds.
*/
package monitor

import (
	"fmt"
	"strconv"
	"time"
)

// Status describes the outcome of a single query attempt
type Status uint8

// Possible outcomes of one query
const (
	StatusOK Status = iota
	StatusTimeout
	StatusNetworkError
	StatusProtocolError
)

// String returns the status name used in logs, CSV rows and JSON
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusNetworkError:
		return "network_error"
	case StatusProtocolError:
		return "protocol_error"
	}
	return fmt.Sprintf("unknown(%d)", uint8(s))
}

// Sample is one completed or failed query attempt against one server.
// Offset and Delay are only meaningful when Status is StatusOK; readers
// must gate on Status rather than on the values, since a zero offset is
// a perfectly valid measurement.
type Sample struct {
	Server      string        `json:"server"`
	Timestamp   time.Time     `json:"timestamp"`
	Offset      time.Duration `json:"offset"`
	Delay       time.Duration `json:"delay"`
	Stratum     uint8         `json:"stratum"`
	ReferenceID string        `json:"reference_id"`
	Status      Status        `json:"status"`
}

// OK reports whether the sample carries a measurement
func (s *Sample) OK() bool {
	return s.Status == StatusOK
}

// OffsetMilliseconds returns the offset in the ms convention used by
// statistics and sinks
func (s *Sample) OffsetMilliseconds() float64 {
	return float64(s.Offset.Nanoseconds()) / float64(time.Millisecond.Nanoseconds())
}

// DelayMilliseconds returns the delay in ms
func (s *Sample) DelayMilliseconds() float64 {
	return float64(s.Delay.Nanoseconds()) / float64(time.Millisecond.Nanoseconds())
}

// Record is the pair handed to every sink each cycle: the triggering
// Sample and the aggregates over the history window that includes it.
type Record struct {
	Sample Sample
	Stats  AggregateStats
}

// RefidToString decodes a reference ID the way stratum 1 servers set it:
// up to four printable ASCII characters, hex otherwise
func RefidToString(refID uint32) string {
	result := []rune{}

	for i := 0; i < 4; i++ {
		c := rune((refID >> (24 - uint(i)*8)) & 0xff)
		if c == 0 {
			continue
		}
		if !strconv.IsPrint(c) {
			return fmt.Sprintf("%#x", refID)
		}
		result = append(result, c)
	}

	return string(result)
}
