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

package invoices

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Blockstream/satellite-api/internal/config"
)

func newTestChargeServer(t *testing.T, webhookFails bool) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/invoice", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":              "lid-123",
			"payment_request": "lnbc...",
			"amount_msat":     2000,
		})
	})
	mux.HandleFunc("/invoice/lid-123/webhook", func(w http.ResponseWriter, r *http.Request) {
		if webhookFails {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	return httptest.NewServer(mux)
}

func testClient(t *testing.T, srv *httptest.Server) *ChargeClient {
	return NewChargeClient(&config.Config{
		ChargeRoot:          srv.URL,
		ChargeAPIToken:      "test-token",
		CallbackURIRoot:     "https://callback.example.com",
		LightningWebhookKey: []byte("webhook-key"),
		ConnectionTimeout:   time.Second,
		ResponseTimeout:     time.Second,
	})
}

func TestIssueInvoiceSuccess(t *testing.T) {
	srv := newTestChargeServer(t, false)
	t.Cleanup(srv.Close)

	c := testClient(t, srv)
	lid, blob, expiresAt, err := c.IssueInvoice(context.Background(), "order-uuid", "digest", 2000)
	require.NoError(t, err)
	assert.Equal(t, "lid-123", lid)
	assert.Equal(t, "lnbc...", blob)
	assert.True(t, expiresAt.After(time.Now()))
}

func TestIssueInvoiceWebhookFailure(t *testing.T) {
	srv := newTestChargeServer(t, true)
	t.Cleanup(srv.Close)

	c := testClient(t, srv)
	_, _, _, err := c.IssueInvoice(context.Background(), "order-uuid", "digest", 2000)
	assert.Error(t, err)
}

func TestVerifyWebhookTokenRoundTrip(t *testing.T) {
	srv := newTestChargeServer(t, false)
	t.Cleanup(srv.Close)
	c := testClient(t, srv)

	token := c.webhookToken("lid-123")
	assert.NoError(t, c.VerifyWebhookToken(context.Background(), "lid-123", token))
	assert.Error(t, c.VerifyWebhookToken(context.Background(), "lid-123", "wrong-token"))
}
