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
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const fetchTimeout = 2 * time.Second

// FetchStatuses returns the per-server health snapshots from a running
// daemon's monitoring url
func FetchStatuses(url string) (map[string]ServerStatus, error) {
	c := http.Client{
		Timeout: fetchTimeout,
	}

	resp, err := c.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]ServerStatus)
	err = json.Unmarshal(b, &statuses)
	return statuses, err
}

// FetchCounters returns the counters map fetched from the url
func FetchCounters(url string) (map[string]int64, error) {
	counters := make(map[string]int64)
	url = fmt.Sprintf("%s/counters", url)
	c := http.Client{
		Timeout: fetchTimeout,
	}

	resp, err := c.Get(url)
	if err != nil {
		return counters, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return counters, err
	}
	err = json.Unmarshal(b, &counters)
	return counters, err
}
