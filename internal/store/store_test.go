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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestStore(t *testing.T) (context.Context, *Store) {
	ctx := context.Background()
	s, err := Open(ctx, "sqlite::memory:")
	require.NoError(t, err)
	return ctx, s
}

func TestInsertAndGetOrderByUUID(t *testing.T) {
	ctx, s := newTestStore(t)
	o := &Order{UUID: "order-1", Channel: 1, Status: StatusPending, CreatedAt: time.Now()}
	require.NoError(t, s.InsertOrder(ctx, o))

	got, err := s.GetByUUID(ctx, nil, "order-1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)
}

func TestGetByUUIDNotFound(t *testing.T) {
	ctx, s := newTestStore(t)
	_, err := s.GetByUUID(ctx, nil, "missing")
	assert.Error(t, err)
}

func TestAppendConfirmationIsIdempotent(t *testing.T) {
	ctx, s := newTestStore(t)
	o := &Order{UUID: "order-2", Channel: 1, Status: StatusTransmitting, CreatedAt: time.Now()}
	require.NoError(t, s.InsertOrder(ctx, o))

	inserted, err := s.AppendConfirmation(ctx, nil, KindTx, o.ID, 1, false)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Confirmation for an already-confirmed (order, region) pair is a no-op.
	inserted, err = s.AppendConfirmation(ctx, nil, KindTx, o.ID, 1, false)
	require.NoError(t, err)
	assert.False(t, inserted)

	regions, err := s.ConfirmedRegions(ctx, nil, KindTx, o.ID)
	require.NoError(t, err)
	assert.Len(t, regions, 1)
}

func TestInvoiceTotals(t *testing.T) {
	ctx, s := newTestStore(t)
	o := &Order{UUID: "order-3", Channel: 1, Status: StatusPending, CreatedAt: time.Now()}
	require.NoError(t, s.InsertOrder(ctx, o))

	require.NoError(t, s.InsertInvoice(ctx, nil, &Invoice{OrderID: o.ID, Lid: "lid-1", Amount: 500, Status: InvoiceStatusPaid, ExpiresAt: time.Now().Add(time.Hour)}))
	require.NoError(t, s.InsertInvoice(ctx, nil, &Invoice{OrderID: o.ID, Lid: "lid-2", Amount: 300, Status: InvoiceStatusPending, ExpiresAt: time.Now().Add(time.Hour)}))

	paid, pending, err := s.InvoiceTotals(ctx, nil, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), paid)
	assert.Equal(t, int64(300), pending)
}

func TestNextTxSeqNumMonotonic(t *testing.T) {
	ctx, s := newTestStore(t)
	var first, second int64

	err := s.Transaction(ctx, func(dbTX *gorm.DB) error {
		var e error
		first, e = s.NextTxSeqNum(ctx, dbTX)
		return e
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), first)

	o := &Order{UUID: "order-seq", Channel: 1, Status: StatusTransmitting, CreatedAt: time.Now(), TxSeqNum: &first}
	require.NoError(t, s.InsertOrder(ctx, o))

	err = s.Transaction(ctx, func(dbTX *gorm.DB) error {
		var e error
		second, e = s.NextTxSeqNum(ctx, dbTX)
		return e
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), second)
}

func TestLockForTxStartPicksHighestBidPerByte(t *testing.T) {
	ctx, s := newTestStore(t)
	low := &Order{UUID: "order-low", Channel: 1, Status: StatusPaid, BidPerByte: 1.0, CreatedAt: time.Now()}
	high := &Order{UUID: "order-high", Channel: 1, Status: StatusPaid, BidPerByte: 5.0, CreatedAt: time.Now()}
	require.NoError(t, s.InsertOrder(ctx, low))
	require.NoError(t, s.InsertOrder(ctx, high))

	var picked *Order
	err := s.Transaction(ctx, func(dbTX *gorm.DB) error {
		var e error
		picked, e = s.LockForTxStart(ctx, dbTX, 1)
		return e
	})
	require.NoError(t, err)
	require.NotNil(t, picked)
	assert.Equal(t, "order-high", picked.UUID)
}

func TestHasTransmittingOrder(t *testing.T) {
	ctx, s := newTestStore(t)
	has, err := s.HasTransmittingOrder(ctx, s.DB(), 1)
	require.NoError(t, err)
	assert.False(t, has)

	o := &Order{UUID: "order-tx", Channel: 1, Status: StatusTransmitting, CreatedAt: time.Now()}
	require.NoError(t, s.InsertOrder(ctx, o))

	has, err = s.HasTransmittingOrder(ctx, s.DB(), 1)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestUpsertAndDeleteTxRetry(t *testing.T) {
	ctx, s := newTestStore(t)
	o := &Order{UUID: "order-4", Channel: 1, Status: StatusConfirming, CreatedAt: time.Now()}
	require.NoError(t, s.InsertOrder(ctx, o))

	require.NoError(t, s.UpsertTxRetry(ctx, nil, o.ID, 7))
	retry, err := s.GetTxRetry(ctx, nil, o.ID)
	require.NoError(t, err)
	require.NotNil(t, retry)
	assert.Equal(t, 7, retry.RegionCode)
	assert.True(t, retry.Pending)

	require.NoError(t, s.MarkRetryDispatched(ctx, s.DB(), retry.ID))
	retry2, err := s.GetTxRetry(ctx, nil, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, retry2.RetryCount)
	assert.False(t, retry2.Pending)

	require.NoError(t, s.DeleteTxRetry(ctx, nil, o.ID))
	retry3, err := s.GetTxRetry(ctx, nil, o.ID)
	require.NoError(t, err)
	assert.Nil(t, retry3)
}

func TestListOrdersQueuedSortsByBidPerByte(t *testing.T) {
	ctx, s := newTestStore(t)
	chan1 := 1
	low := &Order{UUID: "q-low", Channel: 1, Status: StatusPaid, BidPerByte: 1.0, CreatedAt: time.Now()}
	high := &Order{UUID: "q-high", Channel: 1, Status: StatusPaid, BidPerByte: 9.0, CreatedAt: time.Now()}
	require.NoError(t, s.InsertOrder(ctx, low))
	require.NoError(t, s.InsertOrder(ctx, high))

	orders, err := s.ListOrders(ctx, StateQueued, ListParams{Channel: &chan1})
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.Equal(t, "q-high", orders[0].UUID)
}
