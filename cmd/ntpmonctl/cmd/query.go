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
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/timekeep/ntpmon/monitor"
)

var queryTimeoutFlag time.Duration

func init() {
	RootCmd.AddCommand(queryCmd)
	queryCmd.Flags().DurationVarP(&queryTimeoutFlag, "timeout", "t", 5*time.Second, "response timeout")
}

func runQuery(server string, timeout time.Duration) error {
	client := monitor.NewClient(timeout)
	sample := client.Query(context.Background(), server)
	if !sample.OK() {
		return fmt.Errorf("%s: query failed: %s", server, sample.Status)
	}
	fmt.Printf("server: %s\n", color.BlueString(sample.Server))
	fmt.Printf("stratum: %d\n", sample.Stratum)
	fmt.Printf("referenceID: %s\n", sample.ReferenceID)
	fmt.Printf("offset: %s\n", color.GreenString("%.3fms", sample.OffsetMilliseconds()))
	fmt.Printf("delay: %.3fms\n", sample.DelayMilliseconds())
	return nil
}

var queryCmd = &cobra.Command{
	Use:   "query <server>",
	Short: "Send one NTP query to a server and print the measured offset and delay",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		ConfigureVerbosity()
		if err := runQuery(args[0], queryTimeoutFlag); err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
	},
}
