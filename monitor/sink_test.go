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
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mux     sync.Mutex
	name    string
	records []Record
	err     error
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(rec Record) error {
	s.mux.Lock()
	defer s.mux.Unlock()
	s.records = append(s.records, rec)
	return s.err
}

func (s *recordingSink) count() int {
	s.mux.Lock()
	defer s.mux.Unlock()
	return len(s.records)
}

func TestBroadcast(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	rec := Record{Sample: okSample(1, 10)}

	failed := Broadcast([]Sink{a, b}, rec)
	require.Empty(t, failed)
	require.Len(t, a.records, 1)
	require.Len(t, b.records, 1)
}

func TestBroadcastIsolation(t *testing.T) {
	failing := &recordingSink{name: "failing", err: NewSinkError("failing", SinkUnavailable, fmt.Errorf("connection refused"))}
	healthy := &recordingSink{name: "healthy"}
	rec := Record{Sample: okSample(1, 10)}

	// the failing sink comes first and must not stop the healthy one
	failed := Broadcast([]Sink{failing, healthy}, rec)
	require.Equal(t, []string{"failing"}, failed)
	require.Len(t, failing.records, 1)
	require.Len(t, healthy.records, 1)
	require.Equal(t, rec.Sample.Server, healthy.records[0].Sample.Server)
}

func TestBroadcastNoSinks(t *testing.T) {
	require.Empty(t, Broadcast(nil, Record{Sample: okSample(1, 10)}))
}

func TestSinkError(t *testing.T) {
	cause := fmt.Errorf("401 unauthorized")
	err := NewSinkError("influx", SinkAuthFailure, cause)
	require.Equal(t, "sink influx auth_failure: 401 unauthorized", err.Error())
	require.Equal(t, cause, errors.Unwrap(err))

	var sinkErr *SinkError
	require.True(t, errors.As(fmt.Errorf("cycle: %w", err), &sinkErr))
	require.Equal(t, SinkAuthFailure, sinkErr.Kind)
}

func TestSinkErrorKindString(t *testing.T) {
	require.Equal(t, "unavailable", SinkUnavailable.String())
	require.Equal(t, "auth_failure", SinkAuthFailure.String())
	require.Equal(t, "rejected", SinkRejected.String())
}
