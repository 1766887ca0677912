// Copyright 2024 Chainguard, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Command rbuild renders and builds a recipe into one or more relocatable
// packages.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/chainguard-dev/clog"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

func main() {
	handler := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
	})
	logger := clog.New(handler)
	ctx := clog.WithLogger(context.Background(), logger)

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd(handler).ExecuteContext(ctx); err != nil {
		clog.FromContext(ctx).Errorf("%v", err)
		os.Exit(1)
	}
}

func rootCmd(handler *log.Logger) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:           "rbuild",
		Short:         "Build conda-style relocatable packages from a recipe",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				handler.SetLevel(log.DebugLevel)
			}
		},
	}
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging of the build pipeline")
	cmd.AddCommand(buildCmd())
	return cmd
}
