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
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hyperledger/firefly-common/pkg/log"

	"github.com/Blockstream/satellite-api/internal/orders"
	"github.com/Blockstream/satellite-api/internal/store"
)

type createOrderResponse struct {
	UUID             string `json:"uuid"`
	AuthToken        string `json:"auth_token"`
	LightningInvoice string `json:"lightning_invoice,omitempty"`
}

// handleCreateOrder implements POST /order and /admin/order (§6): it
// parses the multipart upload, saves the payload under a freshly
// generated uuid, and hands the rest to orders.Controller.CreateOrder.
// A failed CreateOrder call rolls back the just-saved payload file so
// no orphaned bytes are left behind (mirroring §7's "no partial state
// is persisted" for the invoice path).
func (d Deps) handleCreateOrder(isAdmin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		form, err := parseUploadForm(ctx, r, isAdmin)
		if err != nil {
			writeError(w, err)
			return
		}

		orderUUID := uuid.NewString()
		digest := sha256.Sum256(form.Body)
		digestHex := hex.EncodeToString(digest[:])

		if err := d.Payload.Save(ctx, orderUUID, bytes.NewReader(form.Body)); err != nil {
			log.L(ctx).Errorf("failed to save payload for new order %s: %s", orderUUID, err)
			writeError(w, err)
			return
		}

		order, inv, err := d.Orders.CreateOrder(ctx, orders.CreateOrderParams{
			UUID:          orderUUID,
			Channel:       form.Channel,
			MessageSize:   int64(len(form.Body)),
			MessageDigest: digestHex,
			Bid:           form.Bid,
			RegionCode:    form.RegionCode,
			IsAdmin:       isAdmin,
			AutoPay:       form.AutoPay,
		})
		if err != nil {
			if derr := d.Payload.Delete(ctx, orderUUID); derr != nil {
				log.L(ctx).Errorf("failed to roll back payload for rejected order %s: %s", orderUUID, derr)
			}
			writeError(w, err)
			return
		}

		resp := createOrderResponse{
			UUID:      order.UUID,
			AuthToken: d.Orders.AuthToken(order.UUID),
		}
		if inv != nil {
			resp.LightningInvoice = inv.Blob
		}
		writeJSON(w, resp)
	}
}

// handleGetOrder implements GET /order/<uuid> and its admin twin (§6).
func (d Deps) handleGetOrder(isAdmin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderUUID := mux.Vars(r)["uuid"]
		order, err := d.Orders.GetOrder(ctx, orderUUID, authToken(r), isAdmin)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, orders.NewView(order))
	}
}

// handleDeleteOrder implements DELETE /order/<uuid> and its admin twin (§6).
func (d Deps) handleDeleteOrder(isAdmin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderUUID := mux.Vars(r)["uuid"]
		if err := d.Orders.CancelOrder(ctx, orderUUID, authToken(r), isAdmin); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, map[string]bool{"ok": true})
	}
}

type bumpOrderResponse struct {
	AuthToken        string `json:"auth_token"`
	LightningInvoice string `json:"lightning_invoice"`
}

// handleBumpOrder implements POST /order/<uuid>/bump and its admin
// twin (§6).
func (d Deps) handleBumpOrder(isAdmin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		orderUUID := mux.Vars(r)["uuid"]
		token := authToken(r)

		increase, err := strconv.ParseInt(r.FormValue("bid_increase"), 10, 64)
		if err != nil {
			writeError(w, err)
			return
		}

		inv, err := d.Orders.BumpOrder(ctx, orderUUID, increase, token, isAdmin)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, bumpOrderResponse{
			AuthToken:        d.Orders.AuthToken(orderUUID),
			LightningInvoice: inv.Blob,
		})
	}
}

// handleListOrders implements GET /orders/<state> and its admin twin (§6).
func (d Deps) handleListOrders(isAdmin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		state := mux.Vars(r)["state"]

		p, err := parseListParams(ctx, r)
		if err != nil {
			writeError(w, err)
			return
		}

		list, err := d.Orders.ListOrders(ctx, store.OrderFetchState(state), p, isAdmin)
		if err != nil {
			writeError(w, err)
			return
		}

		views := make([]orders.View, 0, len(list))
		for _, o := range list {
			views = append(views, orders.NewView(o))
		}
		writeJSON(w, views)
	}
}

// handleDownloadMessage implements GET /message/<tx_seq_num> and its
// admin twin (§6): a raw payload byte stream, not a JSON envelope.
func (d Deps) handleDownloadMessage(isAdmin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		n, err := parseTxSeqNum(ctx, mux.Vars(r)["txSeqNum"])
		if err != nil {
			writeError(w, err)
			return
		}

		order, err := d.Orders.OrderForDownload(ctx, n, isAdmin)
		if err != nil {
			writeError(w, err)
			return
		}

		rc, err := d.Payload.Open(ctx, order.UUID)
		if err != nil {
			writeError(w, err)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Length", strconv.FormatInt(order.MessageSize, 10))
		if _, err := io.Copy(w, rc); err != nil {
			log.L(ctx).Errorf("failed to stream payload for tx_seq_num %d: %s", n, err)
		}
	}
}
