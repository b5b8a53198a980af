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

package housekeeper

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blockstream/satellite-api/internal/store"
)

type fakeOrders struct {
	unpaidCalls  int
	staleCalls   int
	staleMaxAge  time.Duration
}

func (f *fakeOrders) ExpireUnpaidInvoices(ctx context.Context) (int, error) {
	f.unpaidCalls++
	return 0, nil
}

func (f *fakeOrders) ExpireStalePendingOrders(ctx context.Context, olderThan time.Duration) (int, error) {
	f.staleCalls++
	f.staleMaxAge = olderThan
	return 0, nil
}

type fakePayload struct {
	mu      sync.Mutex
	deleted []string
}

func (f *fakePayload) Delete(ctx context.Context, uuid string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, uuid)
	return nil
}

func TestSweepRunsAllThreePasses(t *testing.T) {
	s, err := store.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)

	old := time.Now().AddDate(0, 0, -40)
	o := &store.Order{
		UUID:                "uuid-retained",
		Channel:             1,
		Status:              store.StatusReceived,
		EndedTransmissionAt: &old,
	}
	require.NoError(t, s.InsertOrder(context.Background(), o))

	recent := time.Now().AddDate(0, 0, -1)
	o2 := &store.Order{
		UUID:                "uuid-recent",
		Channel:             1,
		Status:              store.StatusReceived,
		EndedTransmissionAt: &recent,
	}
	require.NoError(t, s.InsertOrder(context.Background(), o2))

	orders := &fakeOrders{}
	payload := &fakePayload{}
	hk := New(s, orders, payload, time.Hour, 31)

	hk.Sweep(context.Background())

	assert.Equal(t, 1, orders.unpaidCalls)
	assert.Equal(t, 1, orders.staleCalls)
	assert.Equal(t, 24*time.Hour, orders.staleMaxAge)

	payload.mu.Lock()
	defer payload.mu.Unlock()
	assert.Contains(t, payload.deleted, "uuid-retained")
	assert.NotContains(t, payload.deleted, "uuid-recent")
}

func TestDefaultsApplyWhenZero(t *testing.T) {
	s, err := store.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)
	hk := New(s, &fakeOrders{}, &fakePayload{}, 0, 0)
	assert.Equal(t, 5*time.Minute, hk.interval)
	assert.Equal(t, 31, hk.retentionDays)
}
