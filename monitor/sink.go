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

	log "github.com/sirupsen/logrus"
)

// SinkErrorKind classifies a sink write failure
type SinkErrorKind uint8

// Sink failure kinds
const (
	SinkUnavailable SinkErrorKind = iota
	SinkAuthFailure
	SinkRejected
)

// String returns the kind name used in logs and counters
func (k SinkErrorKind) String() string {
	switch k {
	case SinkUnavailable:
		return "unavailable"
	case SinkAuthFailure:
		return "auth_failure"
	case SinkRejected:
		return "rejected"
	}
	return fmt.Sprintf("unknown(%d)", uint8(k))
}

// SinkError is a classified per-sink write failure
type SinkError struct {
	Sink string
	Kind SinkErrorKind
	Err  error
}

func (e *SinkError) Error() string {
	return fmt.Sprintf("sink %s %s: %v", e.Sink, e.Kind, e.Err)
}

// Unwrap exposes the underlying cause
func (e *SinkError) Unwrap() error {
	return e.Err
}

// NewSinkError wraps err as a classified sink failure
func NewSinkError(sink string, kind SinkErrorKind, err error) *SinkError {
	return &SinkError{Sink: sink, Kind: kind, Err: err}
}

// Sink is a persistence backend receiving one Record per poll cycle.
// Each Write call must be atomic from the caller's point of view; sinks
// are free to batch internally. Sinks never see each other's failures.
type Sink interface {
	Name() string
	Write(rec Record) error
}

// Broadcast hands the record to every sink in order. A failing sink is
// logged and never prevents the remaining sinks from being invoked.
// Returns the names of the sinks that failed.
func Broadcast(sinks []Sink, rec Record) []string {
	var failed []string
	for _, s := range sinks {
		if err := s.Write(rec); err != nil {
			failed = append(failed, s.Name())
			log.Errorf("sink %s failed for server %s: %v", s.Name(), rec.Sample.Server, err)
		}
	}
	return failed
}
