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

package store

import (
	"context"
	"errors"
	"time"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Blockstream/satellite-api/internal/msgs"
)

// InsertOrder creates a new Order row.
func (s *Store) InsertOrder(ctx context.Context, o *Order) error {
	return s.db.WithContext(ctx).Create(o).Error
}

// GetByUUID looks up an order by its opaque uuid.
func (s *Store) GetByUUID(ctx context.Context, dbTX *gorm.DB, uuid string) (*Order, error) {
	if dbTX == nil {
		dbTX = s.db
	}
	var o Order
	err := dbTX.WithContext(ctx).
		Preload("Invoices").
		Preload("TxConfirmations").
		Preload("RxConfirmations").
		Preload("TxRetry").
		Where("uuid = ?", uuid).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, i18n.NewError(ctx, msgs.MsgOrderNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByTxSeqNum looks up an order by its assigned broadcast sequence number.
func (s *Store) GetByTxSeqNum(ctx context.Context, txSeqNum int64) (*Order, error) {
	var o Order
	err := s.db.WithContext(ctx).
		Preload("TxConfirmations").
		Preload("RxConfirmations").
		Preload("TxRetry").
		Where("tx_seq_num = ?", txSeqNum).
		First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, i18n.NewError(ctx, msgs.MsgSequenceNumberNotFound, txSeqNum)
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GetByID loads an order by its internal primary key, within an
// existing transaction, re-reading its status immediately before a
// caller mutates it (§4.4's "must reread the order status immediately
// before mutation").
func (s *Store) GetByID(ctx context.Context, dbTX *gorm.DB, id uint) (*Order, error) {
	var o Order
	err := dbTX.WithContext(ctx).Where("id = ?", id).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, i18n.NewError(ctx, msgs.MsgOrderNotFound)
	}
	return &o, err
}

// NextTxSeqNum returns (max tx_seq_num in store) + 1, read inside the
// caller's transaction so it observes a consistent snapshot alongside
// the row lock on the order being promoted to transmitting.
func (s *Store) NextTxSeqNum(ctx context.Context, dbTX *gorm.DB) (int64, error) {
	var max *int64
	if err := dbTX.WithContext(ctx).Model(&Order{}).Select("MAX(tx_seq_num)").Scan(&max).Error; err != nil {
		return 0, err
	}
	if max == nil {
		return 1, nil
	}
	return *max + 1, nil
}

// LockForTxStart loads, with a row lock (SELECT ... FOR UPDATE), the
// best candidate order on a channel to promote to transmitting: the
// paid order with the largest bid_per_byte. Returns nil if there is
// none. This is the "paid orders" arm of tx_start (§4.7).
func (s *Store) LockForTxStart(ctx context.Context, dbTX *gorm.DB, channel int) (*Order, error) {
	var o Order
	err := dbTX.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("channel = ? AND status = ?", channel, StatusPaid).
		Order("bid_per_byte DESC").
		Limit(1).
		Find(&o).Error
	if err != nil {
		return nil, err
	}
	if o.ID == 0 {
		return nil, nil
	}
	return &o, nil
}

// HasTransmittingOrder reports whether a channel already has an order
// in the transmitting state, the precondition check that enforces the
// at-most-one-in-flight invariant (§5).
func (s *Store) HasTransmittingOrder(ctx context.Context, dbTX *gorm.DB, channel int) (bool, error) {
	var count int64
	err := dbTX.WithContext(ctx).Model(&Order{}).
		Where("channel = ? AND status = ?", channel, StatusTransmitting).
		Count(&count).Error
	return count > 0, err
}

// LockRetryForTxStart loads, with a row lock on both the order and its
// retry row, the best pending TxRetry candidate: the one whose owning
// Order has the largest bid_per_byte. This is the "retransmission" arm
// of tx_start (§4.7).
func (s *Store) LockRetryForTxStart(ctx context.Context, dbTX *gorm.DB, channel int) (*Order, *TxRetry, error) {
	var rows []struct {
		Order
		RetryID          uint
		RetryRegionCode  int
		RetryRetryCount  int
		RetryLastAttempt *time.Time
		RetryPending     bool
		RetryCreatedAt   time.Time
	}
	err := dbTX.WithContext(ctx).
		Table("orders").
		Select("orders.*, tx_retries.id as retry_id, tx_retries.region_code as retry_region_code, "+
			"tx_retries.retry_count as retry_retry_count, tx_retries.last_attempt as retry_last_attempt, "+
			"tx_retries.pending as retry_pending, tx_retries.created_at as retry_created_at").
		Joins("JOIN tx_retries ON tx_retries.order_id = orders.id").
		Where("orders.channel = ? AND tx_retries.pending = ?", channel, true).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Order("orders.bid_per_byte DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}
	row := rows[0]
	order := row.Order
	retry := &TxRetry{
		ID:          row.RetryID,
		OrderID:     order.ID,
		RegionCode:  row.RetryRegionCode,
		RetryCount:  row.RetryRetryCount,
		LastAttempt: row.RetryLastAttempt,
		Pending:     row.RetryPending,
		CreatedAt:   row.RetryCreatedAt,
	}
	return &order, retry, nil
}

// SaveOrder persists all mutable fields of an order within dbTX.
func (s *Store) SaveOrder(ctx context.Context, dbTX *gorm.DB, o *Order) error {
	if dbTX == nil {
		dbTX = s.db
	}
	return dbTX.WithContext(ctx).Save(o).Error
}

// Transaction runs fn inside a GORM transaction at the database's
// default isolation level; callers reread status inside it immediately
// before mutating, and the row locks come from the queries that use
// clause.Locking (LockForTxStart, LockRetryForTxStart, GetInvoiceByLid).
func (s *Store) Transaction(ctx context.Context, fn func(dbTX *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// OrderFetchState is one of the accepted /orders/<state> filters (§6).
type OrderFetchState string

const (
	StatePending        OrderFetchState = "pending"
	StatePaid           OrderFetchState = "paid"
	StateTransmitting   OrderFetchState = "transmitting"
	StateConfirming     OrderFetchState = "confirming"
	StateQueued         OrderFetchState = "queued"
	StateSentLegacy     OrderFetchState = "sent"
	StateRxPending      OrderFetchState = "rx-pending"
	StateReceived       OrderFetchState = "received"
	StateRetransmitting OrderFetchState = "retransmitting"
)

// ListParams carries the mutually-exclusive before/after pagination
// pairs and limit described in §6 and §9.
type ListParams struct {
	Channel     *int
	Before      *time.Time
	BeforeDelta *time.Duration
	After       *time.Time
	AfterDelta  *time.Duration
	Limit       int
}

// ListOrders returns orders matching the requested fetch state, sorted
// per the table in §6.
func (s *Store) ListOrders(ctx context.Context, state OrderFetchState, p ListParams) ([]*Order, error) {
	q := s.db.WithContext(ctx).Model(&Order{})
	if p.Channel != nil {
		q = q.Where("channel = ?", *p.Channel)
	}

	sortCol := "created_at"
	switch state {
	case StatePending:
		q = q.Where("status = ?", StatusPending)
	case StatePaid:
		q = q.Where("status = ?", StatusPaid)
	case StateTransmitting:
		q = q.Where("status = ?", StatusTransmitting)
		sortCol = "started_transmission_at"
	case StateConfirming:
		q = q.Where("status = ?", StatusConfirming)
		sortCol = "started_transmission_at"
	case StateRetransmitting:
		q = q.Joins("JOIN tx_retries ON tx_retries.order_id = orders.id").
			Where("tx_retries.retry_count > 0")
		sortCol = "started_transmission_at"
	case StateQueued:
		q = q.Where("status IN ?", []OrderStatus{StatusPaid, StatusTransmitting, StatusConfirming})
		sortCol = "bid_per_byte"
	case StateSentLegacy:
		// Legacy alias: any order that has ever finished transmitting,
		// kept for backward compatibility alongside rx-pending (open
		// question E.1 in SPEC_FULL.md).
		q = q.Where("ended_transmission_at IS NOT NULL")
		sortCol = "ended_transmission_at"
	case StateRxPending:
		q = q.Where("status = ?", StatusSent)
		sortCol = "ended_transmission_at"
	case StateReceived:
		q = q.Where("status = ?", StatusReceived)
		sortCol = "ended_transmission_at"
	default:
		return nil, i18n.NewError(ctx, msgs.MsgParamInvalidState, string(state))
	}

	q = applyCursor(q, sortCol, p)

	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	q = q.Order(sortCol + " DESC").Limit(limit)

	var orders []*Order
	if err := q.Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// PayloadRetentionCandidates returns orders whose transmission ended
// before cutoff, the housekeeper's payload-retention sweep (§4.9).
// Deletion is idempotent, so this is safe to return the same order
// across multiple housekeeper runs.
func (s *Store) PayloadRetentionCandidates(ctx context.Context, cutoff time.Time) ([]*Order, error) {
	var orders []*Order
	err := s.db.WithContext(ctx).
		Where("ended_transmission_at IS NOT NULL AND ended_transmission_at < ?", cutoff).
		Find(&orders).Error
	return orders, err
}

func applyCursor(q *gorm.DB, col string, p ListParams) *gorm.DB {
	if p.Before != nil {
		q = q.Where(col+" < ?", *p.Before)
	} else if p.BeforeDelta != nil {
		q = q.Where(col+" < ?", time.Now().Add(-*p.BeforeDelta))
	}
	if p.After != nil {
		q = q.Where(col+" > ?", *p.After)
	} else if p.AfterDelta != nil {
		q = q.Where(col+" > ?", time.Now().Add(-*p.AfterDelta))
	}
	return q
}
