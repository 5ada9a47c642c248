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
Package export renders offset/delay charts from history snapshots.
It only ever reads copies of the windows, off the polling path; a
rendering failure is logged and can never fail or delay a poll cycle.
*/
package export

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"sort"
	"time"

	"github.com/eclesh/welford"
	log "github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/timekeep/ntpmon/monitor"
)

// Plotter periodically renders the history windows to a PNG file
type Plotter struct {
	path      string
	interval  time.Duration
	histories map[string]*monitor.History
}

// NewPlotter creates a Plotter writing to cfg.File every cfg.Interval
func NewPlotter(cfg monitor.PlotConfig, histories map[string]*monitor.History) *Plotter {
	return &Plotter{
		path:      cfg.File,
		interval:  cfg.Interval,
		histories: histories,
	}
}

// Run renders on every tick until the context is cancelled
func (p *Plotter) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := p.Render(); err != nil {
				log.Warningf("rendering %s: %v", p.path, err)
			}
		}
	}
}

func series(window []monitor.Sample, value func(*monitor.Sample) float64) plotter.XYs {
	xys := make(plotter.XYs, 0, len(window))
	for i := range window {
		s := &window[i]
		if !s.OK() {
			continue
		}
		xys = append(xys, plotter.XY{
			X: float64(s.Timestamp.Unix()),
			Y: value(s),
		})
	}
	return xys
}

func newChart(title, yLabel string) *plot.Plot {
	ch := plot.New()
	ch.Title.Text = title
	ch.Y.Label.Text = yLabel
	ch.X.Tick.Marker = plot.TimeTicks{Format: "15:04:05"}
	ch.Add(plotter.NewGrid())
	return ch
}

func (p *Plotter) addSeries(ch *plot.Plot, value func(*monitor.Sample) float64) (int, error) {
	servers := make([]string, 0, len(p.histories))
	for server := range p.histories {
		servers = append(servers, server)
	}
	sort.Strings(servers)

	points := 0
	w := welford.New()
	var minX, maxX float64
	lines := []interface{}{}
	for _, server := range servers {
		window := p.histories[server].Snapshot()
		xys := series(window, value)
		if len(xys) < 2 {
			continue
		}
		for _, xy := range xys {
			if points == 0 {
				minX, maxX = xy.X, xy.X
			}
			w.Add(xy.Y)
			points++
			if xy.X < minX {
				minX = xy.X
			}
			if xy.X > maxX {
				maxX = xy.X
			}
		}
		lines = append(lines, server, xys)
	}
	if err := plotutil.AddLines(ch, lines...); err != nil {
		return 0, err
	}
	if points >= 2 {
		addRules(ch, w, minX, maxX)
	}
	return points, nil
}

// addRules draws dashed horizontal lines at the mean and one standard
// deviation either side, over all servers combined
func addRules(ch *plot.Plot, w *welford.Stats, minX, maxX float64) {
	mean := w.Mean()
	stddev := w.Stddev()
	for _, y := range []float64{mean - stddev, mean, mean + stddev} {
		rule, err := plotter.NewLine(plotter.XYs{{X: minX, Y: y}, {X: maxX, Y: y}})
		if err != nil {
			continue
		}
		rule.LineStyle.Color = color.Gray{Y: 128}
		rule.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		ch.Add(rule)
	}
}

// Render writes the current offset and delay charts to the target file.
// Windows with fewer than 2 Ok samples are skipped.
func (p *Plotter) Render() error {
	offsetChart := newChart("NTP offset", "offset (ms)")
	delayChart := newChart("NTP round-trip delay", "delay (ms)")

	n, err := p.addSeries(offsetChart, (*monitor.Sample).OffsetMilliseconds)
	if err != nil {
		return err
	}
	if _, err := p.addSeries(delayChart, (*monitor.Sample).DelayMilliseconds); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("not enough data to plot")
	}

	img := vgimg.New(8*vg.Inch, 6*vg.Inch)
	dc := draw.New(img)
	tiles := draw.Tiles{Rows: 2, Cols: 1}
	plots := [][]*plot.Plot{{offsetChart}, {delayChart}}
	canvases := plot.Align(plots, tiles, dc)
	offsetChart.Draw(canvases[0][0])
	delayChart.Draw(canvases[1][0])

	f, err := os.Create(p.path)
	if err != nil {
		return err
	}
	defer f.Close()
	png := vgimg.PngCanvas{Canvas: img}
	if _, err := png.WriteTo(f); err != nil {
		return err
	}
	return nil
}
