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

// Package metrics is the scheduler/retransmission Prometheus
// instrumentation referenced in SPEC_FULL.md §B, in the style of
// op-service/txmgr/metrics: a handful of gauges/counters registered
// once against the default Prometheus registerer, refreshed by a periodic sampler
// rather than on every request.
package metrics

import (
	"context"
	"strconv"
	"time"

	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Blockstream/satellite-api/internal/channels"
	"github.com/Blockstream/satellite-api/internal/store"
)

// These register against prometheus.DefaultRegisterer, the same
// registry gitlab.com/hfuss/mux-prometheus's middleware registers its
// own request-count/latency series to, so a single promhttp.Handler()
// serves both (api.NewRouter wires that handler at /metrics).
var (
	ordersQueuedGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "satqueue_orders_queued",
		Help: "Paid orders awaiting transmission, by channel.",
	}, []string{"channel"})

	ordersTransmittingGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "satqueue_orders_transmitting",
		Help: "Orders currently in the transmitting or confirming state, by channel.",
	}, []string{"channel"})

	retransmitPendingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "satqueue_retransmits_pending",
		Help: "Count of TxRetry rows currently pending dispatch.",
	})

	webhookLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "satqueue_invoice_webhook_seconds",
		Help:    "Latency of invoice-issuer webhook round trips.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(ordersQueuedGauge, ordersTransmittingGauge, retransmitPendingGauge, webhookLatency)
}

// ObserveWebhook records the duration of an invoice-issuer round trip.
func ObserveWebhook(outcome string, d time.Duration) {
	webhookLatency.WithLabelValues(outcome).Observe(d.Seconds())
}

// Sampler periodically refreshes the queue-depth gauges from the
// store, since they are cheap per-channel counts rather than
// per-request instrumentation.
type Sampler struct {
	store    *store.Store
	interval time.Duration
}

// NewSampler builds a Sampler. interval defaults to 15s when zero.
func NewSampler(s *store.Store, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Sampler{store: s, interval: interval}
}

// Run blocks, refreshing the gauges on every tick until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) {
	ctx = log.WithLogField(ctx, "role", "metrics_sampler")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.sampleOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce(ctx)
		}
	}
}

func (s *Sampler) sampleOnce(ctx context.Context) {
	for _, id := range channels.IDs() {
		label := strconv.Itoa(id)
		channel := id

		queued, err := s.store.ListOrders(ctx, store.StatePaid, store.ListParams{Channel: &channel, Limit: 100})
		if err == nil {
			ordersQueuedGauge.WithLabelValues(label).Set(float64(len(queued)))
		}

		inFlight, err := s.store.ListOrders(ctx, store.StateQueued, store.ListParams{Channel: &channel, Limit: 100})
		if err == nil {
			transmitting := 0
			for _, o := range inFlight {
				if o.Status == store.StatusTransmitting || o.Status == store.StatusConfirming {
					transmitting++
				}
			}
			ordersTransmittingGauge.WithLabelValues(label).Set(float64(transmitting))
		}
	}

	pending, err := s.store.CountPendingTxRetries(ctx)
	if err == nil {
		retransmitPendingGauge.Set(float64(pending))
	}
}
