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

	"github.com/stretchr/testify/require"
)

func TestNewQualityCheck(t *testing.T) {
	q, err := NewQualityCheck("abs(mean(offset)) > 10 || stddev(offset) > 5")
	require.NoError(t, err)
	require.Equal(t, "abs(mean(offset)) > 10 || stddev(offset) > 5", q.String())

	// bad syntax
	_, err = NewQualityCheck("mean(offset >")
	require.Error(t, err)

	// unknown variable
	_, err = NewQualityCheck("jitter > 10")
	require.Error(t, err)
}

func TestQualityEvaluate(t *testing.T) {
	window := []Sample{
		okSample(11, 10),
		okSample(13, 12),
		failedSample(StatusTimeout),
	}

	q, err := NewQualityCheck("abs(mean(offset)) > 10")
	require.NoError(t, err)
	flagged, err := q.Evaluate(window)
	require.NoError(t, err)
	require.True(t, flagged)

	q, err = NewQualityCheck("abs(mean(offset)) > 100")
	require.NoError(t, err)
	flagged, err = q.Evaluate(window)
	require.NoError(t, err)
	require.False(t, flagged)
}

func TestQualityEvaluateFunctions(t *testing.T) {
	window := []Sample{
		okSample(1, 10),
		okSample(2, 20),
		okSample(3, 30),
		okSample(4, 40),
	}
	testCases := []struct {
		expr    string
		flagged bool
	}{
		{"mean(offset) == 2.5", true},
		{"abs(mean(offset) - 2.5) < 0.001", true},
		{"stddev(offset) > 1 && stddev(offset) < 2", true},
		{"variance(offset) > 2", false},
		{"p95(delay) == 40", true},
		{"mean(delay) > 100", false},
	}
	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			q, err := NewQualityCheck(tc.expr)
			require.NoError(t, err)
			flagged, err := q.Evaluate(window)
			require.NoError(t, err)
			require.Equal(t, tc.flagged, flagged)
		})
	}
}

func TestQualityEvaluateEmptyWindow(t *testing.T) {
	q, err := NewQualityCheck("abs(mean(offset)) > 10")
	require.NoError(t, err)

	// no Ok samples at all: not flagged, no error
	flagged, err := q.Evaluate(nil)
	require.NoError(t, err)
	require.False(t, flagged)

	flagged, err = q.Evaluate([]Sample{failedSample(StatusNetworkError)})
	require.NoError(t, err)
	require.False(t, flagged)
}

func TestQualityEvaluateNonBoolean(t *testing.T) {
	q, err := NewQualityCheck("mean(offset)")
	require.NoError(t, err)
	_, err = q.Evaluate([]Sample{okSample(1, 10)})
	require.Error(t, err)
}
