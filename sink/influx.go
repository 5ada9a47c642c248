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

package sink

import (
	"context"
	"errors"
	"net/http"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	influxhttp "github.com/influxdata/influxdb-client-go/v2/api/http"

	"github.com/timekeep/ntpmon/monitor"
)

// Measurement is the InfluxDB measurement every point is written to
const Measurement = "ntp_metrics"

const writeTimeout = 10 * time.Second

// Influx writes one point per poll cycle, tagged by server. It never
// retries within a cycle; a failed write is reported and the next
// scheduled cycle tries again.
type Influx struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInflux creates the sink from a validated config
func NewInflux(cfg monitor.InfluxConfig) *Influx {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Influx{
		client:   client,
		writeAPI: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
}

// Name identifies the sink in logs
func (i *Influx) Name() string {
	return "influx"
}

func classifyInfluxError(err error) monitor.SinkErrorKind {
	var serverErr *influxhttp.Error
	if errors.As(err, &serverErr) {
		switch serverErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return monitor.SinkAuthFailure
		case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
			return monitor.SinkRejected
		}
	}
	return monitor.SinkUnavailable
}

// Write sends one point for the cycle. Aggregates always go along; the
// raw offset/delay fields are only present for an Ok sample so a gap in
// the series stays a gap.
func (i *Influx) Write(rec monitor.Record) error {
	s := &rec.Sample
	fields := map[string]interface{}{
		"up":                  boolToInt(s.OK()),
		"mean_offset_ms":      rec.Stats.MeanOffset,
		"median_offset_ms":    rec.Stats.MedianOffset,
		"stddev_offset_ms":    rec.Stats.StddevOffset,
		"min_offset_ms":       rec.Stats.MinOffset,
		"max_offset_ms":       rec.Stats.MaxOffset,
		"p95_offset_ms":       rec.Stats.P95Offset,
		"mean_delay_ms":       rec.Stats.MeanDelay,
		"stddev_delay_ms":     rec.Stats.StddevDelay,
		"stability":           rec.Stats.Stability,
		"sample_count_ok":     rec.Stats.SampleCountOK,
		"sample_count_failed": rec.Stats.SampleCountFailed,
	}
	if s.OK() {
		fields["offset_ms"] = s.OffsetMilliseconds()
		fields["delay_ms"] = s.DelayMilliseconds()
		fields["stratum"] = int(s.Stratum)
	}
	tags := map[string]string{
		"server": s.Server,
		"status": s.Status.String(),
	}
	point := influxdb2.NewPoint(Measurement, tags, fields, s.Timestamp)

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := i.writeAPI.WritePoint(ctx, point); err != nil {
		return monitor.NewSinkError(i.Name(), classifyInfluxError(err), err)
	}
	return nil
}

// Close releases the underlying http client
func (i *Influx) Close() {
	i.client.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
