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

	"gorm.io/gorm"
)

// UpsertTxRetry inserts or updates the 1:1 TxRetry row for an order,
// per §4.8's "insert or update a TxRetry with region_code :=
// encode(missing), pending := true".
func (s *Store) UpsertTxRetry(ctx context.Context, dbTX *gorm.DB, orderID uint, regionCode int) error {
	if dbTX == nil {
		dbTX = s.db
	}
	var existing TxRetry
	err := dbTX.WithContext(ctx).Where("order_id = ?", orderID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return dbTX.WithContext(ctx).Create(&TxRetry{
			OrderID:    orderID,
			RegionCode: regionCode,
			Pending:    true,
			CreatedAt:  time.Now(),
		}).Error
	}
	if err != nil {
		return err
	}
	existing.RegionCode = regionCode
	existing.Pending = true
	return dbTX.WithContext(ctx).Save(&existing).Error
}

// MarkRetryDispatched increments retry_count, stamps last_attempt, and
// clears pending — the update tx_start performs when it picks a
// retransmission candidate (§4.7).
func (s *Store) MarkRetryDispatched(ctx context.Context, dbTX *gorm.DB, retryID uint) error {
	now := time.Now()
	return dbTX.WithContext(ctx).Model(&TxRetry{}).
		Where("id = ?", retryID).
		Updates(map[string]interface{}{
			"retry_count":  gorm.Expr("retry_count + 1"),
			"last_attempt": now,
			"pending":      false,
		}).Error
}

// DeleteTxRetry removes the retry row for an order, the cleanup
// tx_end performs once a retransmission finally reaches sent/received
// (§4.7's lifecycle note).
func (s *Store) DeleteTxRetry(ctx context.Context, dbTX *gorm.DB, orderID uint) error {
	if dbTX == nil {
		dbTX = s.db
	}
	return dbTX.WithContext(ctx).Where("order_id = ?", orderID).Delete(&TxRetry{}).Error
}

// GetTxRetry returns the TxRetry row for an order, or nil if none.
func (s *Store) GetTxRetry(ctx context.Context, dbTX *gorm.DB, orderID uint) (*TxRetry, error) {
	if dbTX == nil {
		dbTX = s.db
	}
	var retry TxRetry
	err := dbTX.WithContext(ctx).Where("order_id = ?", orderID).First(&retry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &retry, err
}

// InFlightOrders returns all orders in transmitting or confirming
// state, for the retransmission controller's periodic scan (§4.8).
func (s *Store) InFlightOrders(ctx context.Context) ([]*Order, error) {
	var orders []*Order
	err := s.db.WithContext(ctx).
		Preload("TxRetry").
		Where("status IN ?", []OrderStatus{StatusTransmitting, StatusConfirming}).
		Find(&orders).Error
	return orders, err
}

// AnyPendingTxRetry reports whether any TxRetry row currently exists,
// the condition under which the retransmission controller calls
// tx_start() for every channel after its scan (§4.8).
func (s *Store) AnyPendingTxRetry(ctx context.Context) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&TxRetry{}).Count(&count).Error
	return count > 0, err
}

// CountPendingTxRetries returns the number of TxRetry rows awaiting
// dispatch (pending = true), the metrics sampler's retransmission
// backlog gauge.
func (s *Store) CountPendingTxRetries(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&TxRetry{}).Where("pending = ?", true).Count(&count).Error
	return count, err
}
