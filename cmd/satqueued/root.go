/*
 * Copyright © 2024 Kaleido, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
 * the License. You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
 * an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
 * specific language governing permissions and limitations under the License.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package main

import (
	"github.com/spf13/cobra"

	"github.com/Blockstream/satellite-api/internal/config"
	"github.com/Blockstream/satellite-api/internal/logging"
)

var (
	configFile string
	logLevel   string
	logFile    string
	payloadDir string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "satqueued",
		Short: "Satellite broadcast queue control plane",
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&logFile, "log-file", "", "path to a rotating log file (stderr only if unset)")
	root.PersistentFlags().StringVar(&payloadDir, "payload-dir", "./payloads", "directory payload blobs are stored under")

	root.AddCommand(newServeCmd())
	root.AddCommand(newMigrateCmd())
	return root
}

// loadConfig binds the persistent flags to a resolved *config.Config
// and configures the root logger, shared by every subcommand.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if err := logging.Configure(logging.Options{Env: cfg.Env, Level: logLevel, FilePath: logFile}); err != nil {
		return nil, err
	}
	return cfg, nil
}
