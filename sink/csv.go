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
Package sink implements the persistence backends a poll cycle fans out
to: a gap-aware CSV appender and an InfluxDB writer. Every sink fails
independently; a write error is reported to the caller and affects
nothing but that sink.
*/
package sink

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/timekeep/ntpmon/monitor"
)

var csvHeader = []string{"timestamp", "server", "status", "offset", "delay"}

// CSV appends one row per cycle attempt. Failed cycles are recorded
// with empty offset/delay fields so the series keeps its gaps.
type CSV struct {
	mux  sync.Mutex
	path string
}

// NewCSV creates a CSV sink appending to path
func NewCSV(path string) *CSV {
	return &CSV{path: path}
}

// Name identifies the sink in logs
func (c *CSV) Name() string {
	return "csv"
}

func classifyFileError(err error) monitor.SinkErrorKind {
	if os.IsPermission(err) {
		return monitor.SinkAuthFailure
	}
	return monitor.SinkUnavailable
}

// Write appends one row, creating the file and writing the header first
// when the file is new or empty
func (c *CSV) Write(rec monitor.Record) error {
	c.mux.Lock()
	defer c.mux.Unlock()

	f, err := os.OpenFile(c.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return monitor.NewSinkError(c.Name(), classifyFileError(err), err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	fi, err := f.Stat()
	if err != nil {
		return monitor.NewSinkError(c.Name(), monitor.SinkUnavailable, err)
	}
	if fi.Size() == 0 {
		if err := writer.Write(csvHeader); err != nil {
			return monitor.NewSinkError(c.Name(), monitor.SinkUnavailable, err)
		}
	}

	s := &rec.Sample
	offset := ""
	delay := ""
	if s.OK() {
		offset = strconv.FormatFloat(s.OffsetMilliseconds(), 'f', 3, 64)
		delay = strconv.FormatFloat(s.DelayMilliseconds(), 'f', 3, 64)
	}
	row := []string{
		s.Timestamp.UTC().Format(time.RFC3339Nano),
		s.Server,
		s.Status.String(),
		offset,
		delay,
	}
	if err := writer.Write(row); err != nil {
		return monitor.NewSinkError(c.Name(), monitor.SinkUnavailable, err)
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return monitor.NewSinkError(c.Name(), monitor.SinkUnavailable, err)
	}
	return nil
}
