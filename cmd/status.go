/*
Copyright 2017 The GoStor Authors All rights reserved.

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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gostor/gobridge/pkg/api/client"
)

func newStatusCommand(cli *client.Client) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "status",
		Short: "Show the running bridge status",
		Long:  `Show the session, counters and in-flight command slots of the running bridge`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := NoArgs(cmd, args); err != nil {
				return err
			}
			return showStatus(cli)
		},
	}
	return cmd
}

func showStatus(cli *client.Client) error {
	status, err := cli.BridgeStatus()
	if err != nil {
		return err
	}

	fmt.Printf("Session: %s (%s)\n", status.Session.Name, status.Session.ID)
	fmt.Printf("Portal:  %s\n", status.Session.Portal)
	fmt.Printf("Version: %s\n", status.Session.Version)
	fmt.Printf("Slots:   %d\n\n", status.SlotCount)

	w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(w, "COMMANDS\tREAD\tWRITE\tFAILURES\tPHASE ERR\tTIMEOUTS\tREJECTS")
	fmt.Fprintf(w, "%d\t%d\t%d\t%d\t%d\t%d\t%d\n",
		status.Stats.Commands, status.Stats.ReadBytes, status.Stats.WriteBytes,
		status.Stats.Failures, status.Stats.PhaseErrors,
		status.Stats.SlotTimeouts, status.Stats.SlotRejects)
	w.Flush()

	if len(status.Slots) > 0 {
		fmt.Println()
		w = tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "TAG\tLBA\tBLOCKS\tDIRECTION\tSTATE")
		for _, s := range status.Slots {
			fmt.Fprintf(w, "%d\t%#x\t%d\t%d\t%s\n", s.SlotTag, s.LBA, s.Length, s.Direction, s.State)
		}
		w.Flush()
	}
	return nil
}

func newResetCommand(cli *client.Client) *cobra.Command {
	var cmd = &cobra.Command{
		Use:   "reset",
		Short: "Reset the hardware command engine",
		Long:  `Clear the command engine after a fatal command failure`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := NoArgs(cmd, args); err != nil {
				return err
			}
			return cli.EngineReset()
		},
	}
	return cmd
}
