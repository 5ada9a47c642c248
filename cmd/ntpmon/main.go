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

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/timekeep/ntpmon/export"
	"github.com/timekeep/ntpmon/monitor"
	"github.com/timekeep/ntpmon/sink"

	_ "net/http/pprof"
)

func doWork(cfg *monitor.Config) error {
	stats := monitor.NewJSONStats()
	go stats.Start(cfg.MonitoringPort, time.Minute)

	sinks := []monitor.Sink{}
	if cfg.CSV.File != "" {
		sinks = append(sinks, sink.NewCSV(cfg.CSV.File))
	}
	if cfg.Influx.Enabled() {
		influx := sink.NewInflux(cfg.Influx)
		defer influx.Close()
		sinks = append(sinks, influx)
	}

	m, err := monitor.New(cfg, stats, sinks)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return m.Run(ctx)
	})
	if cfg.Plot.File != "" {
		plotter := export.NewPlotter(cfg.Plot, m.Histories())
		eg.Go(func() error {
			return plotter.Run(ctx)
		})
	}
	return eg.Wait()
}

func main() {
	var (
		verboseFlag        bool
		configFlag         string
		intervalFlag       time.Duration
		timeoutFlag        time.Duration
		monitoringPortFlag int
		pprofFlag          string
		qualityFlag        string
	)
	defaults := monitor.DefaultConfig()

	flag.BoolVar(&verboseFlag, "verbose", false, "verbose output")
	flag.StringVar(&configFlag, "config", "", "path to the config")
	flag.DurationVar(&intervalFlag, "interval", defaults.Interval, "how often to poll each server")
	flag.DurationVar(&timeoutFlag, "timeout", defaults.Timeout, "per-query timeout")
	flag.IntVar(&monitoringPortFlag, "monitoringport", defaults.MonitoringPort, "port to start monitoring http server on")
	flag.StringVar(&pprofFlag, "pprof", "", "Address to have the profiler listen on, disabled if empty.")
	flag.StringVar(&qualityFlag, "quality", "", "sync quality expression, empty to disable. "+monitor.QualityHelp)

	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	log.SetLevel(log.InfoLevel)
	if verboseFlag {
		log.SetLevel(log.DebugLevel)
	}
	cfg, err := monitor.PrepareConfig(configFlag, flag.Args(), intervalFlag, timeoutFlag, monitoringPortFlag, setFlags)
	if err != nil {
		log.Fatal(err)
	}
	if setFlags["quality"] {
		cfg.Quality.Expression = qualityFlag
	}
	if pprofFlag != "" {
		go func() {
			if err := http.ListenAndServe(pprofFlag, nil); err != nil {
				log.Errorf("Failed to start pprof. Err: %v", err)
			}
		}()
	}
	if err := doWork(cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal(err)
	}
}
