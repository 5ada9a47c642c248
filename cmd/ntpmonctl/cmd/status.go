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

package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/timekeep/ntpmon/monitor"
)

var statusAddrFlag string

func init() {
	RootCmd.AddCommand(statusCmd)
	RootCmd.AddCommand(countersCmd)
	statusCmd.Flags().StringVarP(&statusAddrFlag, "address", "a", "http://localhost:8889", "monitoring url of the running daemon")
	countersCmd.Flags().StringVarP(&statusAddrFlag, "address", "a", "http://localhost:8889", "monitoring url of the running daemon")
}

func colorState(state string) string {
	switch state {
	case "Backoff":
		return color.RedString(state)
	case "Idle":
		return color.GreenString(state)
	}
	return color.YellowString(state)
}

func colorStatus(status string) string {
	if status == "ok" {
		return color.GreenString(status)
	}
	return color.RedString(status)
}

func runStatus(address string) error {
	statuses, err := monitor.FetchStatuses(address)
	if err != nil {
		return fmt.Errorf("fetching data: %w", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetColWidth(20)
	table.SetHeader([]string{
		"server", "state", "last", "offset(ms)", "delay(ms)", "stddev(ms)", "stability", "stratum", "refid", "failures", "last ok",
	})
	servers := []string{}
	for server := range statuses {
		servers = append(servers, server)
	}
	sort.Strings(servers)
	for _, server := range servers {
		st := statuses[server]
		val := []string{
			server,
			colorState(st.State),
			colorStatus(st.LastStatus),
		}
		if st.LastStatus == "ok" {
			val = append(val, []string{
				fmt.Sprintf("%.3f", st.OffsetMS),
				fmt.Sprintf("%.3f", st.DelayMS),
				fmt.Sprintf("%.3f", st.Aggregates.StddevOffset),
				fmt.Sprintf("%.3f", st.Aggregates.Stability),
				fmt.Sprintf("%d", st.Stratum),
				st.ReferenceID,
			}...)
		} else {
			val = append(val, []string{"", "", "", "", "", ""}...)
		}
		val = append(val, []string{
			fmt.Sprintf("%d", st.ConsecutiveFailures),
			st.LastOK,
		}...)
		table.Append(val)
	}
	table.Render()
	return nil
}

func runCounters(address string) error {
	counters, err := monitor.FetchCounters(address)
	if err != nil {
		return fmt.Errorf("fetching data: %w", err)
	}
	keys := []string{}
	for key := range counters {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Printf("%s: %d\n", key, counters[key])
	}
	return nil
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Print per-server health of a running daemon as a table",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := runStatus(statusAddrFlag); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}

var countersCmd = &cobra.Command{
	Use:   "counters",
	Short: "Print the counters of a running daemon",
	Run: func(_ *cobra.Command, _ []string) {
		ConfigureVerbosity()
		if err := runCounters(statusAddrFlag); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}
