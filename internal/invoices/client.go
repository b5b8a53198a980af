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

// Package invoices is the external client half of the invoice
// controller (C5): it issues Lightning invoices against the charge API
// and registers/authenticates their webhooks. Persisting invoice rows
// and driving the order's pending->paid/expired transitions is owned
// by the orders package (C6), which is where the state machine and its
// invariants live.
package invoices

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hyperledger/firefly-common/pkg/i18n"

	"github.com/Blockstream/satellite-api/internal/config"
	"github.com/Blockstream/satellite-api/internal/metrics"
	"github.com/Blockstream/satellite-api/internal/msgs"
)

// ChargeClient is a thin resty wrapper over the external Lightning
// charge API, configured the way the teacher's connectors bind resty
// clients off a *config.Config (connection/response timeouts, a fixed
// root URL and bearer token).
type ChargeClient struct {
	rc           *resty.Client
	chargeRoot   string
	callbackRoot string
	webhookKey   []byte
}

// NewChargeClient builds a ChargeClient from process configuration.
func NewChargeClient(cfg *config.Config) *ChargeClient {
	rc := resty.New().
		SetBaseURL(cfg.ChargeRoot).
		SetAuthToken(cfg.ChargeAPIToken).
		SetTimeout(cfg.ConnectionTimeout + cfg.ResponseTimeout)
	return &ChargeClient{
		rc:           rc,
		chargeRoot:   cfg.ChargeRoot,
		callbackRoot: cfg.CallbackURIRoot,
		webhookKey:   cfg.LightningWebhookKey,
	}
}

// chargeInvoiceRequest is the POST body sent to the external issuer.
type chargeInvoiceRequest struct {
	AmountMsat int64                  `json:"amount_msat"`
	Metadata   map[string]interface{} `json:"metadata"`
	WebhookURL string                 `json:"webhook_url"`
}

// chargeInvoiceResponse is the subset of the issuer's response this
// controller needs.
type chargeInvoiceResponse struct {
	ID     string `json:"id"`
	Blob   string `json:"payment_request"`
	Amount int64  `json:"amount_msat"`
}

// IssueInvoice requests a new invoice of amountMsat for an order
// identified by uuid/messageDigest, registering its webhook at
// CALLBACK_URI_ROOT/callback/<lid>/<hmac> per §4.5. A failed invoice
// request returns msgs.MsgLightningChargeInvoiceError; a failed webhook
// registration returns msgs.MsgLightningChargeWebhookError.
func (c *ChargeClient) IssueInvoice(ctx context.Context, uuid, messageDigest string, amountMsat int64) (lid, blob string, expiresAt time.Time, err error) {
	req := chargeInvoiceRequest{
		AmountMsat: amountMsat,
		Metadata: map[string]interface{}{
			"uuid":                  uuid,
			"sha256_message_digest": messageDigest,
		},
	}

	var out chargeInvoiceResponse
	start := time.Now()
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(&req).
		SetResult(&out).
		Post("/invoice")
	if err != nil {
		metrics.ObserveWebhook("invoice_error", time.Since(start))
		return "", "", time.Time{}, i18n.NewError(ctx, msgs.MsgLightningChargeInvoiceError, err)
	}
	if resp.IsError() {
		metrics.ObserveWebhook("invoice_error", time.Since(start))
		return "", "", time.Time{}, i18n.NewError(ctx, msgs.MsgLightningChargeInvoiceError, resp.String())
	}
	metrics.ObserveWebhook("invoice_ok", time.Since(start))

	webhookURL := fmt.Sprintf("%s/callback/%s/%s", c.callbackRoot, out.ID, c.webhookToken(out.ID))
	webhookStart := time.Now()
	webhookResp, err := c.rc.R().
		SetContext(ctx).
		SetBody(map[string]string{"webhook_url": webhookURL}).
		Post(fmt.Sprintf("/invoice/%s/webhook", out.ID))
	if err != nil {
		metrics.ObserveWebhook("webhook_error", time.Since(webhookStart))
		return "", "", time.Time{}, i18n.NewError(ctx, msgs.MsgLightningChargeWebhookError, err)
	}
	if webhookResp.IsError() {
		metrics.ObserveWebhook("webhook_error", time.Since(webhookStart))
		return "", "", time.Time{}, i18n.NewError(ctx, msgs.MsgLightningChargeWebhookError, webhookResp.String())
	}
	metrics.ObserveWebhook("webhook_ok", time.Since(webhookStart))

	return out.ID, out.Blob, time.Now().Add(60 * time.Minute), nil
}

// webhookToken computes hmac = HMAC-SHA256(LIGHTNING_WEBHOOK_KEY, lid).
func (c *ChargeClient) webhookToken(lid string) string {
	mac := hmac.New(sha256.New, c.webhookKey)
	mac.Write([]byte(lid))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyWebhookToken checks a callback's token against lid, returning
// an error rather than a bool so callers get a consistent typed-error
// response path.
func (c *ChargeClient) VerifyWebhookToken(ctx context.Context, lid, token string) error {
	expected := c.webhookToken(lid)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return i18n.NewError(ctx, msgs.MsgInvalidAuthToken)
	}
	return nil
}
