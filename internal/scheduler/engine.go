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

// Package scheduler is the per-channel single-flight transmitter
// selection (C7): tx_start picks the next order to broadcast on a
// channel (paid orders first by bid_per_byte, then pending
// retransmissions), assigns tx_seq_num, and publishes it; tx_end
// releases the channel once an order reaches a terminal transmission
// state.
package scheduler

import (
	"context"
	"time"

	"github.com/hyperledger/firefly-common/pkg/log"
	"gorm.io/gorm"

	"github.com/Blockstream/satellite-api/internal/broker"
	"github.com/Blockstream/satellite-api/internal/channels"
	"github.com/Blockstream/satellite-api/internal/orders"
	"github.com/Blockstream/satellite-api/internal/store"
)

// Engine is the scheduler. It satisfies orders.Scheduler and is also
// driven directly by the retransmission controller and at service
// start.
type Engine struct {
	store *store.Store
	pub   broker.Publisher
}

// New wires an Engine from its store and broker publisher.
func New(s *store.Store, pub broker.Publisher) *Engine {
	return &Engine{store: s, pub: pub}
}

// TxStart selects and transmits the next order for one channel, or
// does nothing if the channel already has an order in flight (§4.7).
func (e *Engine) TxStart(ctx context.Context, channel int) error {
	var published *orders.PublishView
	var topic string

	err := e.store.Transaction(ctx, func(dbTX *gorm.DB) error {
		has, err := e.store.HasTransmittingOrder(ctx, dbTX, channel)
		if err != nil {
			return err
		}
		if has {
			return nil
		}

		ch, err := channels.Get(ctx, channel)
		if err != nil {
			return err
		}
		topic = ch.Name

		order, err := e.store.LockForTxStart(ctx, dbTX, channel)
		if err != nil {
			return err
		}
		if order != nil {
			seq, err := e.store.NextTxSeqNum(ctx, dbTX)
			if err != nil {
				return err
			}
			now := time.Now()
			order.TxSeqNum = &seq
			order.Status = store.StatusTransmitting
			order.StartedTransmissionAt = &now
			if err := e.store.SaveOrder(ctx, dbTX, order); err != nil {
				return err
			}
			view := orders.NewPublishView(order, order.RegionCode)
			published = &view
			return nil
		}

		retryOrder, retry, err := e.store.LockRetryForTxStart(ctx, dbTX, channel)
		if err != nil {
			return err
		}
		if retryOrder == nil {
			return nil
		}
		retryOrder.Status = store.StatusTransmitting
		if err := e.store.SaveOrder(ctx, dbTX, retryOrder); err != nil {
			return err
		}
		if err := e.store.MarkRetryDispatched(ctx, dbTX, retry.ID); err != nil {
			return err
		}
		view := orders.NewPublishView(retryOrder, retry.RegionCode)
		published = &view
		return nil
	})
	if err != nil {
		return err
	}

	if published != nil && e.pub != nil {
		if err := e.pub.Publish(ctx, topic, published); err != nil {
			log.L(ctx).Errorf("publish failed for channel %d, tx_seq_num %v: %s", channel, published.TxSeqNum, err)
		}
	}
	return nil
}

// TxStartAll runs tx_start for every configured channel, the
// no-argument form the retransmission controller calls after its scan
// (§4.7, §4.8).
func (e *Engine) TxStartAll(ctx context.Context) {
	for _, id := range channels.IDs() {
		if err := e.TxStart(ctx, id); err != nil {
			log.L(ctx).Errorf("tx_start failed for channel %d: %s", id, err)
		}
	}
}

// TxEnd releases a channel once an order reaches sent or received.
// Only the ended_transmission_at stamp and the TxRetry deletion are
// idempotent (§4.7 documents the timestamp write as a one-time effect,
// set on the first of the two terminal transitions to call tx_end);
// the publish and the tx_start re-run fire on every distinct terminal
// transition, since *sent* and *received* are each their own state the
// broker's subscribers need to see.
func (e *Engine) TxEnd(ctx context.Context, order *store.Order) error {
	var fresh *store.Order

	err := e.store.Transaction(ctx, func(dbTX *gorm.DB) error {
		o, err := e.store.GetByID(ctx, dbTX, order.ID)
		if err != nil {
			return err
		}
		fresh = o
		if o.EndedTransmissionAt != nil {
			return nil
		}
		now := time.Now()
		o.EndedTransmissionAt = &now
		if err := e.store.SaveOrder(ctx, dbTX, o); err != nil {
			return err
		}
		return e.store.DeleteTxRetry(ctx, dbTX, o.ID)
	})
	if err != nil {
		return err
	}

	if e.pub != nil {
		if ch, cerr := channels.Get(ctx, fresh.Channel); cerr == nil {
			view := orders.NewView(fresh)
			if perr := e.pub.Publish(ctx, ch.Name, view); perr != nil {
				log.L(ctx).Errorf("publish of terminal state failed for order %s: %s", fresh.UUID, perr)
			}
		}
	}

	return e.TxStart(ctx, fresh.Channel)
}
