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
	"math"
	"sort"

	"github.com/Knetic/govaluate"
	"github.com/eclesh/welford"
)

// QualityHelp is a help message used by flags in main
const QualityHelp = `The quality expression is evaluated against the history window after
every cycle; when it evaluates to true the server is flagged in logs and counters.
supported variables:
  offset (list of offsets over the window, in ms, most recent last)
  delay (list of round-trip delays over the window, in ms)
supported functions:
  abs(value) - absolute value of a single number
  mean(values) - mean of a list, for example mean(offset)
  variance(values) - sample variance of a list
  stddev(values) - sample standard deviation of a list
  p95(values) - 95th percentile of a list
example:
  'abs(mean(offset)) > 10 || stddev(offset) > 5'`

var supportedVariables = []string{
	"offset",
	"delay",
}

func isSupportedVar(varName string) bool {
	for _, v := range supportedVariables {
		if v == varName {
			return true
		}
	}
	return false
}

func listArg(name string, args []interface{}) ([]float64, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("%s: wrong number of arguments: want 1, got %d", name, len(args))
	}
	vals, ok := args[0].([]float64)
	if !ok {
		return nil, fmt.Errorf("%s: argument must be a value list", name)
	}
	return vals, nil
}

func welfordOf(vals []float64) *welford.Stats {
	w := welford.New()
	for _, v := range vals {
		w.Add(v)
	}
	return w
}

// all the functions we support in expressions
var functions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: wrong number of arguments: want 1, got %d", len(args))
		}
		val, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("abs: argument must be a number")
		}
		return math.Abs(val), nil
	},
	"mean": func(args ...interface{}) (interface{}, error) {
		vals, err := listArg("mean", args)
		if err != nil {
			return nil, err
		}
		return welfordOf(vals).Mean(), nil
	},
	"variance": func(args ...interface{}) (interface{}, error) {
		vals, err := listArg("variance", args)
		if err != nil {
			return nil, err
		}
		return welfordOf(vals).Variance(), nil
	},
	"stddev": func(args ...interface{}) (interface{}, error) {
		vals, err := listArg("stddev", args)
		if err != nil {
			return nil, err
		}
		return welfordOf(vals).Stddev(), nil
	},
	"p95": func(args ...interface{}) (interface{}, error) {
		vals, err := listArg("p95", args)
		if err != nil {
			return nil, err
		}
		sorted := make([]float64, len(vals))
		copy(sorted, vals)
		sort.Float64s(sorted)
		return percentile(sorted, 0.95), nil
	},
}

// QualityCheck evaluates a configured expression against the window
// after each cycle
type QualityCheck struct {
	expression string
	expr       *govaluate.EvaluableExpression
}

// NewQualityCheck parses and validates the expression
func NewQualityCheck(expression string) (*QualityCheck, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(expression, functions)
	if err != nil {
		return nil, fmt.Errorf("parsing quality expression: %w", err)
	}
	for _, v := range expr.Vars() {
		if !isSupportedVar(v) {
			return nil, fmt.Errorf("unsupported variable %q", v)
		}
	}
	return &QualityCheck{expression: expression, expr: expr}, nil
}

// String returns the configured expression
func (q *QualityCheck) String() string {
	return q.expression
}

// Evaluate runs the expression over the Ok samples of the window.
// Returns false without error for a window with no Ok samples.
func (q *QualityCheck) Evaluate(window []Sample) (bool, error) {
	offsets := []float64{}
	delays := []float64{}
	for i := range window {
		s := &window[i]
		if !s.OK() {
			continue
		}
		offsets = append(offsets, s.OffsetMilliseconds())
		delays = append(delays, s.DelayMilliseconds())
	}
	if len(offsets) == 0 {
		return false, nil
	}
	params := map[string]interface{}{
		"offset": offsets,
		"delay":  delays,
	}
	result, err := q.expr.Evaluate(params)
	if err != nil {
		return false, fmt.Errorf("evaluating quality expression: %w", err)
	}
	flagged, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("quality expression must evaluate to a boolean, got %T", result)
	}
	return flagged, nil
}
