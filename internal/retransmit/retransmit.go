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

// Package retransmit is the periodic retransmission controller (C8):
// it scans every order in transmitting or confirming, evaluates the
// three timeout rules of §4.8, and upserts TxRetry rows for whatever
// is still missing its confirmations.
package retransmit

import (
	"context"
	"math"
	"time"

	"github.com/hyperledger/firefly-common/pkg/log"
	"gorm.io/gorm"

	"github.com/Blockstream/satellite-api/internal/bidding"
	"github.com/Blockstream/satellite-api/internal/channels"
	"github.com/Blockstream/satellite-api/internal/regions"
	"github.com/Blockstream/satellite-api/internal/store"
)

// TxStarter is the subset of the scheduler the controller drives once
// its scan is done.
type TxStarter interface {
	TxStartAll(ctx context.Context)
}

// Controller runs the periodic scan described in §4.8.
type Controller struct {
	store *store.Store
	sched TxStarter
	period time.Duration
}

// New builds a Controller. period defaults to 10s, the spec's
// suggested cadence, when zero.
func New(s *store.Store, sched TxStarter, period time.Duration) *Controller {
	if period <= 0 {
		period = 10 * time.Second
	}
	return &Controller{store: s, sched: sched, period: period}
}

// Run blocks, evaluating the scan on every tick until ctx is
// cancelled.
func (c *Controller) Run(ctx context.Context) {
	ctx = log.WithLogField(ctx, "role", "retransmit")
	ticker := time.NewTicker(c.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Scan(ctx)
		}
	}
}

// Scan evaluates every in-flight order once, per §4.8. Individual
// order failures are logged and do not abort the rest of the scan.
func (c *Controller) Scan(ctx context.Context) {
	orders, err := c.store.InFlightOrders(ctx)
	if err != nil {
		log.L(ctx).Errorf("retransmission scan: listing in-flight orders failed: %s", err)
		return
	}

	var anyRetry bool
	for _, o := range orders {
		retried, err := c.evaluateOne(ctx, o)
		if err != nil {
			log.L(ctx).Errorf("retransmission scan: order %s: %s", o.UUID, err)
			continue
		}
		if retried {
			anyRetry = true
		}
	}

	if !anyRetry {
		// A TxRetry row left from an earlier scan also warrants a
		// tx_start pass.
		exists, err := c.store.AnyPendingTxRetry(ctx)
		if err != nil {
			log.L(ctx).Errorf("retransmission scan: checking for TxRetry rows failed: %s", err)
			return
		}
		anyRetry = exists
	}
	if anyRetry && c.sched != nil {
		c.sched.TxStartAll(ctx)
	}
}

// evaluateOne applies the three mutually exclusive timeout rules to a
// single order and upserts a TxRetry if one fires.
func (c *Controller) evaluateOne(ctx context.Context, o *store.Order) (bool, error) {
	ch, err := channels.Get(ctx, o.Channel)
	if err != nil {
		return false, err
	}

	delaySecs := math.Ceil(float64(bidding.OTALen(o.MessageSize)) / float64(ch.RateBytesPerSec))
	total := time.Duration(delaySecs)*time.Second + ch.AckTimeout

	lastConf, err := c.store.LatestConfirmationAt(ctx, nil, store.KindTx, o.ID)
	if err != nil {
		return false, err
	}

	now := time.Now()
	fires := false

	switch {
	case o.Status == store.StatusConfirming && lastConf != nil && now.After(lastConf.Add(ch.AckTimeout)):
		// Rule 1: confirming, but the last Tx confirmation is stale.
		fires = true
	case o.TxRetry != nil && o.TxRetry.RetryCount > 0 && o.TxRetry.LastAttempt != nil &&
		now.After(o.TxRetry.LastAttempt.Add(total)):
		// Rule 2: a dispatched retransmission itself timed out.
		fires = true
	case o.Status == store.StatusTransmitting && lastConf == nil && now.After(o.StartedTransmissionAt.Add(total)):
		// Rule 3: never confirmed at all. lastConf == nil here rules out
		// rule 1 firing for the same order on the same pass.
		fires = true
	}

	if !fires {
		return false, nil
	}

	return c.upsertRetry(ctx, o)
}

// upsertRetry rereads the order, forces transmitting->confirming,
// computes the still-missing regions, and upserts a TxRetry covering
// them, all inside one transaction (§4.8).
func (c *Controller) upsertRetry(ctx context.Context, o *store.Order) (bool, error) {
	var retried bool
	err := c.store.Transaction(ctx, func(dbTX *gorm.DB) error {
		fresh, err := c.store.GetByID(ctx, dbTX, o.ID)
		if err != nil {
			return err
		}
		if fresh.Status != store.StatusTransmitting && fresh.Status != store.StatusConfirming {
			return nil
		}
		if fresh.Status == store.StatusTransmitting {
			fresh.Status = store.StatusConfirming
			if err := c.store.SaveOrder(ctx, dbTX, fresh); err != nil {
				return err
			}
		}

		confirmed, err := c.store.ConfirmedRegions(ctx, dbTX, store.KindTx, fresh.ID)
		if err != nil {
			return err
		}
		missing := regions.Subtract(fresh.RegionCode, confirmed)
		if len(missing) == 0 {
			return nil
		}

		code, err := regions.Encode(ctx, missing)
		if err != nil {
			return err
		}
		if err := c.store.UpsertTxRetry(ctx, dbTX, fresh.ID, code); err != nil {
			return err
		}
		retried = true
		return nil
	})
	return retried, err
}
