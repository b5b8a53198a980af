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

package orders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blockstream/satellite-api/internal/bidding"
	"github.com/Blockstream/satellite-api/internal/config"
	"github.com/Blockstream/satellite-api/internal/invoices"
	"github.com/Blockstream/satellite-api/internal/store"
)

type fakeScheduler struct {
	mu        sync.Mutex
	starts    []int
	ends      []*store.Order
	startErr  error
}

func (f *fakeScheduler) TxStart(ctx context.Context, channel int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, channel)
	return f.startErr
}

func (f *fakeScheduler) TxEnd(ctx context.Context, order *store.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ends = append(f.ends, order)
	return nil
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

var chargeSeq int

func newTestChargeServer(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/invoice", func(w http.ResponseWriter, r *http.Request) {
		chargeSeq++
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":              fmtLid(chargeSeq),
			"payment_request": "lnbc...",
			"amount_msat":     2000,
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(mux)
}

func fmtLid(n int) string {
	return "lid-" + time.Now().Format("150405") + "-" + string(rune('a'+n))
}

func newTestController(t *testing.T, forcePayment bool) (*Controller, *store.Store, *fakeScheduler, *fakePayload) {
	srv := newTestChargeServer(t)
	t.Cleanup(srv.Close)

	s, err := store.Open(context.Background(), "sqlite::memory:")
	require.NoError(t, err)

	charge := invoices.NewChargeClient(&config.Config{
		ChargeRoot:          srv.URL,
		ChargeAPIToken:      "t",
		CallbackURIRoot:     "https://cb.example.com",
		LightningWebhookKey: []byte("k"),
		ConnectionTimeout:   time.Second,
		ResponseTimeout:     time.Second,
	})

	sched := &fakeScheduler{}
	pl := &fakePayload{}
	cfg := &config.Config{
		Bidding:      bidding.Params{MinBidFloor: 1000, MinPerByteBid: 1},
		USERAuthKey:  []byte("user-auth-key"),
		ForcePayment: forcePayment,
	}
	return NewController(s, charge, sched, pl, cfg), s, sched, pl
}

func TestCreateOrderBidTooSmall(t *testing.T) {
	ctrl, _, _, _ := newTestController(t, false)
	_, _, err := ctrl.CreateOrder(context.Background(), CreateOrderParams{
		Channel: 1, MessageSize: 1000, MessageDigest: "abc", Bid: 1051,
	})
	assert.Error(t, err)
}

func TestCreateOrderHappyPath(t *testing.T) {
	ctrl, s, sched, _ := newTestController(t, false)
	ctx := context.Background()

	order, inv, err := ctrl.CreateOrder(ctx, CreateOrderParams{
		Channel: 1, MessageSize: 500, MessageDigest: "abc", Bid: 1000,
	})
	require.NoError(t, err)
	require.NotNil(t, inv)
	assert.Equal(t, store.StatusPending, order.Status)

	require.NoError(t, ctrl.PayInvoice(ctx, inv.Lid))

	got, err := s.GetByUUID(ctx, nil, order.UUID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusPaid, got.Status)
	assert.Equal(t, int64(1000), got.Bid)

	sched.mu.Lock()
	assert.Contains(t, sched.starts, 1)
	sched.mu.Unlock()
}

func TestCreateOrderNonPaidChannelStartsPaidAndTriggersTxStart(t *testing.T) {
	ctrl, _, sched, _ := newTestController(t, false)
	order, inv, err := ctrl.CreateOrder(context.Background(), CreateOrderParams{
		Channel: 4, MessageSize: 1000, MessageDigest: "abc", IsAdmin: true,
	})
	require.NoError(t, err)
	assert.Nil(t, inv)
	assert.Equal(t, store.StatusPaid, order.Status)

	sched.mu.Lock()
	assert.Contains(t, sched.starts, 4)
	sched.mu.Unlock()
}

func TestPayInvoiceRejectsDoublePay(t *testing.T) {
	ctrl, _, _, _ := newTestController(t, false)
	ctx := context.Background()

	_, inv, err := ctrl.CreateOrder(ctx, CreateOrderParams{Channel: 1, MessageSize: 500, MessageDigest: "x", Bid: 1000})
	require.NoError(t, err)

	require.NoError(t, ctrl.PayInvoice(ctx, inv.Lid))
	assert.Error(t, ctrl.PayInvoice(ctx, inv.Lid))
}

func TestCancelOrderDeletesPayloadIdempotently(t *testing.T) {
	ctrl, _, _, pl := newTestController(t, false)
	ctx := context.Background()

	order, _, err := ctrl.CreateOrder(ctx, CreateOrderParams{Channel: 1, MessageSize: 500, MessageDigest: "x", Bid: 1000})
	require.NoError(t, err)

	token := ctrl.AuthToken(order.UUID)
	require.NoError(t, ctrl.CancelOrder(ctx, order.UUID, token, false))

	pl.mu.Lock()
	assert.Contains(t, pl.deleted, order.UUID)
	pl.mu.Unlock()

	// Cancelling again fails because the order is already cancelled.
	assert.Error(t, ctrl.CancelOrder(ctx, order.UUID, token, false))
}

func TestTxThenRxConfirmationsReachReceived(t *testing.T) {
	ctrl, s, sched, _ := newTestController(t, false)
	ctx := context.Background()

	order, inv, err := ctrl.CreateOrder(ctx, CreateOrderParams{
		Channel: 1, MessageSize: 500, MessageDigest: "x", Bid: 1000,
	})
	require.NoError(t, err)
	require.NoError(t, ctrl.PayInvoice(ctx, inv.Lid))

	txSeq := int64(1)
	order.TxSeqNum = &txSeq
	require.NoError(t, s.SaveOrder(ctx, nil, order))
	order.Status = store.StatusTransmitting
	require.NoError(t, s.SaveOrder(ctx, nil, order))

	require.NoError(t, ctrl.HandleTxConfirmation(ctx, txSeq, []int{0, 1, 2, 3, 4, 5}))

	got, err := s.GetByTxSeqNum(ctx, txSeq)
	require.NoError(t, err)
	assert.Equal(t, store.StatusSent, got.Status)

	require.NoError(t, ctrl.HandleRxConfirmation(ctx, txSeq, 0))
	require.NoError(t, ctrl.HandleRxConfirmation(ctx, txSeq, 1))
	require.NoError(t, ctrl.HandleRxConfirmation(ctx, txSeq, 4))
	require.NoError(t, ctrl.HandleRxConfirmation(ctx, txSeq, 5))

	got, err = s.GetByTxSeqNum(ctx, txSeq)
	require.NoError(t, err)
	assert.Equal(t, store.StatusReceived, got.Status)

	rx, err := s.ConfirmedRegions(ctx, nil, store.KindRx, got.ID)
	require.NoError(t, err)
	assert.Len(t, rx, 6) // 4 real + 2 presumed for t11n_afr/t11n_eu

	sched.mu.Lock()
	require.Len(t, sched.ends, 2) // tx_end on reaching sent, then on reaching received
	assert.Equal(t, order.UUID, sched.ends[0].UUID)
	assert.Equal(t, order.UUID, sched.ends[1].UUID)
	sched.mu.Unlock()
}

func TestForcePaymentShortCircuitsInvoice(t *testing.T) {
	ctrl, _, sched, _ := newTestController(t, true)
	ctx := context.Background()

	order, inv, err := ctrl.CreateOrder(ctx, CreateOrderParams{
		Channel: 1, MessageSize: 500, MessageDigest: "x", Bid: 1000,
	})
	require.NoError(t, err)
	assert.Equal(t, store.InvoiceStatusPaid, inv.Status)
	assert.Equal(t, store.StatusPaid, order.Status)

	sched.mu.Lock()
	assert.Contains(t, sched.starts, 1)
	sched.mu.Unlock()
}
