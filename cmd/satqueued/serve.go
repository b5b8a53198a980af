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
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/spf13/cobra"

	"github.com/Blockstream/satellite-api/internal/api"
	"github.com/Blockstream/satellite-api/internal/engine"
)

const shutdownGrace = 10 * time.Second

// newServeCmd wires the engine and both HTTP listeners together and
// runs until SIGINT/SIGTERM, then drains in-flight requests and
// background workers before exiting — the daemon-supervision shape
// the teacher uses for its long-lived processes.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			eng, err := engine.New(ctx, cfg, payloadDir)
			if err != nil {
				return err
			}
			eng.Start(ctx)
			defer eng.Stop()

			deps := api.Deps{
				Orders:  eng.Orders,
				Charge:  eng.Charge,
				Payload: eng.Payload,
				Cfg:     cfg,
			}

			publicSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: api.NewRouter(deps)}
			adminSrv := &http.Server{Addr: cfg.AdminAddr, Handler: api.NewAdminRouter(deps)}

			errs := make(chan error, 2)
			go func() { errs <- serve(publicSrv, "public") }()
			go func() { errs <- serve(adminSrv, "admin") }()

			select {
			case <-ctx.Done():
				log.L(ctx).Infof("shutdown signal received")
			case err := <-errs:
				if err != nil {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			_ = publicSrv.Shutdown(shutdownCtx)
			_ = adminSrv.Shutdown(shutdownCtx)
			return nil
		},
	}
}

func serve(srv *http.Server, name string) error {
	log.L(context.Background()).Infof("%s listener starting on %s", name, srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
