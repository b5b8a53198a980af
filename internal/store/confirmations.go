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
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfirmationKind distinguishes the two append-only confirmation
// tables, which share an identical shape (order_id, region_id,
// created_at, presumed). Generic operations parameterized by kind
// avoid duplicating the Tx/Rx confirmation logic (design note §9).
type ConfirmationKind string

const (
	KindTx ConfirmationKind = "tx"
	KindRx ConfirmationKind = "rx"
)

func (k ConfirmationKind) table() string {
	if k == KindTx {
		return "tx_confirmations"
	}
	return "rx_confirmations"
}

// AppendConfirmation inserts a confirmation row for (orderID, regionID)
// if one does not already exist. A confirmation for an
// already-confirmed pair is a no-op (invariant 4, §3; testable
// property in §8), implemented with an ON CONFLICT DO NOTHING upsert
// so the check-then-insert is atomic under concurrent submissions.
func (s *Store) AppendConfirmation(ctx context.Context, dbTX *gorm.DB, kind ConfirmationKind, orderID uint, regionID int, presumed bool) (inserted bool, err error) {
	if dbTX == nil {
		dbTX = s.db
	}
	now := time.Now()
	result := dbTX.WithContext(ctx).
		Table(kind.table()).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "region_id"}},
			DoNothing: true,
		}).
		Create(map[string]interface{}{
			"order_id":   orderID,
			"region_id":  regionID,
			"created_at": now,
			"presumed":   presumed,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ConfirmedRegions returns the set of region ids that have a
// confirmation row for orderID.
func (s *Store) ConfirmedRegions(ctx context.Context, dbTX *gorm.DB, kind ConfirmationKind, orderID uint) (map[int]bool, error) {
	if dbTX == nil {
		dbTX = s.db
	}
	var regionIDs []int
	err := dbTX.WithContext(ctx).
		Table(kind.table()).
		Where("order_id = ?", orderID).
		Pluck("region_id", &regionIDs).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int]bool, len(regionIDs))
	for _, id := range regionIDs {
		out[id] = true
	}
	return out, nil
}

// LatestConfirmationAt returns the most recent TxConfirmation's
// created_at for an order, or nil if there are none (t_last_conf in
// §4.8).
func (s *Store) LatestConfirmationAt(ctx context.Context, dbTX *gorm.DB, kind ConfirmationKind, orderID uint) (*time.Time, error) {
	if dbTX == nil {
		dbTX = s.db
	}
	var t *time.Time
	err := dbTX.WithContext(ctx).
		Table(kind.table()).
		Where("order_id = ?", orderID).
		Select("MAX(created_at)").
		Scan(&t).Error
	return t, err
}
