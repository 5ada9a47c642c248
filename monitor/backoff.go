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
	"time"
)

// BackoffConfig describes how the polling cadence stretches while a
// server keeps failing
type BackoffConfig struct {
	Factor      float64       `yaml:"factor"`
	MaxInterval time.Duration `yaml:"maxinterval"`
}

// Validate BackoffConfig is sane
func (c *BackoffConfig) Validate() error {
	if c.Factor < 1 {
		return fmt.Errorf("backoff factor must be at least 1")
	}
	if c.MaxInterval <= 0 {
		return fmt.Errorf("backoff maxinterval must be positive")
	}
	return nil
}

// backoff stretches a base interval multiplicatively. Every bump
// multiplies the current interval by the factor, capped at MaxInterval;
// reset returns to the base interval. Whether the backoff is engaged is
// tracked explicitly: the cap may equal the base interval, and the
// stretched value would then be indistinguishable from it.
type backoff struct {
	cfg  BackoffConfig
	base time.Duration
	// state
	value   time.Duration
	engaged bool
}

func newBackoff(cfg BackoffConfig, base time.Duration) *backoff {
	return &backoff{cfg: cfg, base: base, value: base}
}

func (b *backoff) active() bool {
	return b.engaged
}

func (b *backoff) interval() time.Duration {
	return b.value
}

func (b *backoff) bump() time.Duration {
	next := time.Duration(float64(b.value) * b.cfg.Factor)
	if next > b.cfg.MaxInterval {
		next = b.cfg.MaxInterval
	}
	if next < b.base {
		next = b.base
	}
	b.value = next
	b.engaged = true
	return b.value
}

func (b *backoff) reset() {
	b.value = b.base
	b.engaged = false
}
