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

// Package engine wires the process together at start-up: the store,
// broker publisher, payload store, invoice client, order controller,
// scheduler, the two periodic workers and the metrics sampler, mirroring the way the
// teacher's root Orchestrator constructs and starts its managers.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/hyperledger/firefly-common/pkg/log"

	"github.com/Blockstream/satellite-api/internal/broker"
	"github.com/Blockstream/satellite-api/internal/config"
	"github.com/Blockstream/satellite-api/internal/housekeeper"
	"github.com/Blockstream/satellite-api/internal/invoices"
	"github.com/Blockstream/satellite-api/internal/metrics"
	"github.com/Blockstream/satellite-api/internal/orders"
	"github.com/Blockstream/satellite-api/internal/payload"
	"github.com/Blockstream/satellite-api/internal/retransmit"
	"github.com/Blockstream/satellite-api/internal/scheduler"
	"github.com/Blockstream/satellite-api/internal/store"
)

// metricsSampleInterval is how often the gauge sampler re-reads queue
// depth from the store; these are dashboard gauges, not transactional
// reads, so a coarse interval is fine.
const metricsSampleInterval = 15 * time.Second

// Engine owns every long-lived component of the process.
type Engine struct {
	Store      *store.Store
	Payload    *payload.Store
	Charge     *invoices.ChargeClient
	Broker     broker.Publisher
	Scheduler  *scheduler.Engine
	Orders     *orders.Controller
	Retransmit *retransmit.Controller
	Housekeeper *housekeeper.Housekeeper
	Metrics    *metrics.Sampler

	cfg *config.Config

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New opens the store and constructs every component, wiring the
// orders.Controller's scheduler dependency to the concrete scheduler.Engine.
func New(ctx context.Context, cfg *config.Config, payloadDir string) (*Engine, error) {
	s, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	pl, err := payload.New(payloadDir)
	if err != nil {
		return nil, err
	}

	var pub broker.Publisher
	if cfg.RedisURI != "" {
		rp, err := broker.NewRedisPublisher(cfg.RedisURI)
		if err != nil {
			return nil, err
		}
		pub = rp
	}

	charge := invoices.NewChargeClient(cfg)
	sched := scheduler.New(s, pub)
	ordersCtrl := orders.NewController(s, charge, sched, pl, cfg)
	retransmitCtrl := retransmit.New(s, sched, cfg.RetransmitPollInterval)
	hk := housekeeper.New(s, ordersCtrl, pl, cfg.HousekeeperInterval, cfg.OrderRetentionDays)
	sampler := metrics.NewSampler(s, metricsSampleInterval)

	return &Engine{
		Store:       s,
		Payload:     pl,
		Charge:      charge,
		Broker:      pub,
		Scheduler:   sched,
		Orders:      ordersCtrl,
		Retransmit:  retransmitCtrl,
		Housekeeper: hk,
		Metrics:     sampler,
		cfg:         cfg,
	}, nil
}

// Start runs tx_start once for every channel (§4.7's "on service
// start" trigger, picking up any order left paid but never dispatched
// by a prior process) and then launches the periodic workers and the
// metrics sampler in their own goroutines, under a context that Stop
// cancels to shut them down.
func (e *Engine) Start(ctx context.Context) {
	e.Scheduler.TxStartAll(ctx)

	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	e.wg.Add(3)
	go func() {
		defer e.wg.Done()
		e.Retransmit.Run(runCtx)
	}()
	go func() {
		defer e.wg.Done()
		e.Housekeeper.Run(runCtx)
	}()
	go func() {
		defer e.wg.Done()
		e.Metrics.Run(runCtx)
	}()

	log.L(ctx).Infof("engine started: retransmit poll %s, housekeeper interval %s", e.cfg.RetransmitPollInterval, e.cfg.HousekeeperInterval)
}

// Stop cancels the periodic workers and waits for them to exit.
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()
	if closer, ok := e.Broker.(interface{ Close() error }); ok {
		_ = closer.Close()
	}
}
