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

// Package logging configures the process-wide logrus root logger that
// github.com/hyperledger/firefly-common/pkg/log's log.L(ctx) reads
// from: a prefixed text formatter in development, JSON in production,
// and optional file rotation, mirroring how the teacher's daemon
// entrypoints set up logging once at start-up rather than per-package.
package logging

import (
	"io"
	"os"

	prefixed "github.com/x-cray/logrus-prefixed-formatter"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/sirupsen/logrus"

	"github.com/Blockstream/satellite-api/internal/config"
)

// Options configures the root logger.
type Options struct {
	Env      config.Env
	Level    string
	FilePath string
}

// Configure sets the logrus standard logger's formatter, level, and
// output according to opts. It is called once from the CLI entrypoint
// before the engine starts.
func Configure(opts Options) error {
	level, err := logrus.ParseLevel(config.StringOrDefault(opts.Level, "info"))
	if err != nil {
		return err
	}
	logrus.SetLevel(level)

	if opts.Env == config.EnvProduction {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&prefixed.TextFormatter{
			FullTimestamp:   true,
			ForceColors:     true,
			ForceFormatting: true,
		})
	}

	var out io.Writer = os.Stderr
	if opts.FilePath != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		})
	}
	logrus.SetOutput(out)
	return nil
}
