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

// Package housekeeper is the periodic janitor (C9): expiring unpaid
// invoices, expiring stale pending orders, and purging payload files
// past the configured retention window (§4.9).
package housekeeper

import (
	"context"
	"time"

	"github.com/hyperledger/firefly-common/pkg/log"

	"github.com/Blockstream/satellite-api/internal/store"
)

// OrderExpirer is the subset of the orders.Controller the housekeeper
// drives.
type OrderExpirer interface {
	ExpireUnpaidInvoices(ctx context.Context) (int, error)
	ExpireStalePendingOrders(ctx context.Context, olderThan time.Duration) (int, error)
}

// PayloadDeleter removes an order's stored message payload.
type PayloadDeleter interface {
	Delete(ctx context.Context, uuid string) error
}

// Housekeeper runs the three periodic sweeps described in §4.9.
type Housekeeper struct {
	store          *store.Store
	orders         OrderExpirer
	payload        PayloadDeleter
	interval       time.Duration
	pendingMaxAge  time.Duration
	retentionDays  int
}

// New builds a Housekeeper. interval defaults to 5 minutes, pendingMaxAge
// to 24 hours, and retentionDays to 31 when zero, matching §4.9's
// defaults.
func New(s *store.Store, orders OrderExpirer, payload PayloadDeleter, interval time.Duration, retentionDays int) *Housekeeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if retentionDays <= 0 {
		retentionDays = 31
	}
	return &Housekeeper{
		store:         s,
		orders:        orders,
		payload:       payload,
		interval:      interval,
		pendingMaxAge: 24 * time.Hour,
		retentionDays: retentionDays,
	}
}

// Run blocks, running Sweep on every tick until ctx is cancelled.
func (h *Housekeeper) Run(ctx context.Context) {
	ctx = log.WithLogField(ctx, "role", "housekeeper")
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Sweep(ctx)
		}
	}
}

// Sweep runs all three housekeeping passes once, logging (but not
// propagating) any failure so one bad pass doesn't block the others
// (§7's "periodic workers swallow and log individual-order errors").
func (h *Housekeeper) Sweep(ctx context.Context) {
	if _, err := h.orders.ExpireUnpaidInvoices(ctx); err != nil {
		log.L(ctx).Errorf("housekeeper: expiring unpaid invoices failed: %s", err)
	}
	if _, err := h.orders.ExpireStalePendingOrders(ctx, h.pendingMaxAge); err != nil {
		log.L(ctx).Errorf("housekeeper: expiring stale pending orders failed: %s", err)
	}
	h.purgeRetainedPayloads(ctx)
}

// purgeRetainedPayloads deletes stored payload files for orders whose
// transmission ended more than retentionDays ago.
func (h *Housekeeper) purgeRetainedPayloads(ctx context.Context) {
	if h.payload == nil {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -h.retentionDays)
	candidates, err := h.store.PayloadRetentionCandidates(ctx, cutoff)
	if err != nil {
		log.L(ctx).Errorf("housekeeper: listing payload retention candidates failed: %s", err)
		return
	}
	for _, o := range candidates {
		if err := h.payload.Delete(ctx, o.UUID); err != nil {
			log.L(ctx).Errorf("housekeeper: failed to purge payload for order %s: %s", o.UUID, err)
		}
	}
}
