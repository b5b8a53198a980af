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

package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/hyperledger/firefly-common/pkg/i18n"

	"github.com/Blockstream/satellite-api/internal/msgs"
)

// handleTxConfirm implements POST /order/tx/<tx_seq_num>, the
// transmitter fleet's acknowledgement that a fragment went out over
// the named regions (§6, §4.6).
func (d Deps) handleTxConfirm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		n, err := parseTxSeqNum(ctx, mux.Vars(r)["txSeqNum"])
		if err != nil {
			writeError(w, err)
			return
		}
		if err := r.ParseForm(); err != nil {
			writeError(w, err)
			return
		}
		numbers, err := regionNumbersFromBody(ctx, r.FormValue("regions"))
		if err != nil {
			writeError(w, err)
			return
		}
		if err := d.Orders.HandleTxConfirmation(ctx, n, numbers); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}

// handleRxConfirm implements POST /order/rx/<tx_seq_num>, a single
// region reporting it received the fragment (§6, §4.6).
func (d Deps) handleRxConfirm() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		n, err := parseTxSeqNum(ctx, mux.Vars(r)["txSeqNum"])
		if err != nil {
			writeError(w, err)
			return
		}
		if err := r.ParseForm(); err != nil {
			writeError(w, err)
			return
		}
		region, err := strconv.Atoi(r.FormValue("region"))
		if err != nil {
			writeError(w, i18n.NewError(ctx, msgs.MsgParamInvalidRegions))
			return
		}
		if err := d.Orders.HandleRxConfirmation(ctx, n, region); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}

// handleCallback implements POST /callback/<lid>/<token>, the invoice
// issuer's webhook notifying us a Lightning charge was paid (§4.5).
// The token is checked before the payment is applied so a guessed lid
// without its HMAC companion never reaches the order state machine.
func (d Deps) handleCallback() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		vars := mux.Vars(r)
		lid, token := vars["lid"], vars["token"]

		if err := d.Charge.VerifyWebhookToken(ctx, lid, token); err != nil {
			writeError(w, err)
			return
		}
		if err := d.Orders.PayInvoice(ctx, lid); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}
