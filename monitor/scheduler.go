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
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Poller drives the query -> record -> fan-out cycle for one server.
// Its cycle is strictly sequential; a new cycle never starts before the
// previous one, including all sink writes, has completed.
type Poller struct {
	server  ServerConfig
	cfg     *Config
	querier Querier
	history *History
	sinks   []Sink
	quality *QualityCheck
	stats   StatsServer
	backoff *backoff

	// owned by the polling goroutine
	consecutiveFailures int
	lastOK              time.Time
}

// NewPoller creates a poller for one server with its own history window
func NewPoller(server ServerConfig, cfg *Config, querier Querier, history *History, sinks []Sink, quality *QualityCheck, stats StatsServer) *Poller {
	return &Poller{
		server:  server,
		cfg:     cfg,
		querier: querier,
		history: history,
		sinks:   sinks,
		quality: quality,
		stats:   stats,
		backoff: newBackoff(cfg.Backoff, cfg.Interval),
	}
}

func (p *Poller) setState(state State) {
	p.stats.SetState(p.server.Host, state)
}

// cycle runs one full poll cycle: query, append, compute, fan out.
// Failed queries are recorded too, so sinks see a gap-aware series.
func (p *Poller) cycle(ctx context.Context) {
	host := p.server.Host
	p.setState(StateQuerying)
	// the query is bounded by its own timeout; shutdown waits for the
	// cycle rather than poisoning it with a cancelled context
	sample := p.querier.Query(context.WithoutCancel(ctx), host)

	p.setState(StateRecording)
	p.history.Append(sample)
	window := p.history.Snapshot()
	aggregates := Compute(window)
	failedSinks := Broadcast(p.sinks, Record{Sample: sample, Stats: aggregates})

	p.stats.IncCycle(host, sample.Status)
	p.stats.IncSinkFailures(host, len(failedSinks))
	for _, name := range failedSinks {
		p.stats.IncSinkError(name)
	}

	if sample.OK() {
		p.consecutiveFailures = 0
		p.lastOK = sample.Timestamp
		if p.backoff.active() {
			p.backoff.reset()
			log.Infof("%s: recovered, polling interval back to %v", host, p.backoff.interval())
		}
		log.Infof("%s: offset %8.3fms delay %8.3fms stratum %d (mean %.3f stddev %.3f stability %.3f over %d samples)",
			host, sample.OffsetMilliseconds(), sample.DelayMilliseconds(), sample.Stratum,
			aggregates.MeanOffset, aggregates.StddevOffset, aggregates.Stability, aggregates.SampleCountOK)
		p.checkQuality(window)
	} else {
		p.consecutiveFailures++
		log.Warningf("%s: query failed: %s (%d consecutive)", host, sample.Status, p.consecutiveFailures)
		if p.consecutiveFailures >= p.cfg.FailureThreshold {
			next := p.backoff.bump()
			log.Warningf("%s: backing off, next poll in %v", host, next)
		}
	}

	state := StateIdle
	if p.backoff.active() {
		state = StateBackoff
	}
	p.setState(state)

	lastOK := ""
	if !p.lastOK.IsZero() {
		lastOK = p.lastOK.Format(time.RFC3339Nano)
	}
	p.stats.SetStatus(host, &ServerStatus{
		State:               state.String(),
		LastOK:              lastOK,
		ConsecutiveFailures: p.consecutiveFailures,
		IntervalSec:         p.backoff.interval().Seconds(),
		LastStatus:          sample.Status.String(),
		OffsetMS:            sample.OffsetMilliseconds(),
		DelayMS:             sample.DelayMilliseconds(),
		Stratum:             sample.Stratum,
		ReferenceID:         sample.ReferenceID,
		Aggregates:          aggregates,
	})
}

func (p *Poller) checkQuality(window []Sample) {
	if p.quality == nil {
		return
	}
	flagged, err := p.quality.Evaluate(window)
	if err != nil {
		log.Errorf("%s: %v", p.server.Host, err)
		return
	}
	if flagged {
		p.stats.IncQualityFlagged(p.server.Host)
		log.Warningf("%s: sync quality check %q fired", p.server.Host, p.quality.String())
	}
}

// Run polls until the context is cancelled. Cancellation is observed at
// the top of each iteration; an in-flight cycle always completes its
// sink fan-out before Run returns.
func (p *Poller) Run(ctx context.Context) error {
	log.Debugf("starting poller for %s every %v", p.server.Host, p.cfg.Interval)
	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debugf("%s: cancelled poll loop", p.server.Host)
			return ctx.Err()
		case <-timer.C:
			p.cycle(ctx)
			timer.Reset(p.backoff.interval())
		}
	}
}

// Monitor owns one poller per configured server and the shared query
// client. Servers poll concurrently and never block each other.
type Monitor struct {
	cfg       *Config
	stats     StatsServer
	pollers   []*Poller
	histories map[string]*History
}

// New creates a Monitor from a validated config
func New(cfg *Config, stats StatsServer, sinks []Sink) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var quality *QualityCheck
	if cfg.Quality.Expression != "" {
		var err error
		quality, err = NewQualityCheck(cfg.Quality.Expression)
		if err != nil {
			return nil, err
		}
	}
	client := NewClient(cfg.Timeout)
	m := &Monitor{
		cfg:       cfg,
		stats:     stats,
		histories: map[string]*History{},
	}
	for _, server := range cfg.Servers {
		history := NewHistory(cfg.MaxPoints)
		m.histories[server.Host] = history
		m.pollers = append(m.pollers, NewPoller(server, cfg, client, history, sinks, quality, stats))
	}
	return m, nil
}

// History returns the history window of one server, nil if unknown
func (m *Monitor) History(server string) *History {
	return m.histories[server]
}

// Histories returns the per-server history windows, for exporters
func (m *Monitor) Histories() map[string]*History {
	return m.histories
}

// Run starts all pollers and blocks until the context is cancelled and
// every in-flight cycle has wound down
func (m *Monitor) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	for _, p := range m.pollers {
		p := p
		eg.Go(func() error {
			err := p.Run(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("poller %s: %w", p.server.Host, err)
			}
			return err
		})
	}
	return eg.Wait()
}
