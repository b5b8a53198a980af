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

	"github.com/Blockstream/satellite-api/internal/channels"
)

type channelInfo struct {
	ID              int      `json:"channel"`
	Name            string   `json:"name"`
	Permissions     []string `json:"permissions"`
	RateBytesPerSec int64    `json:"rate_bytes_per_sec"`
	MaxPayloadBytes int64    `json:"max_payload_bytes"`
	RequiresPayment bool     `json:"requires_payment"`
}

type infoResponse struct {
	Channels      []channelInfo `json:"channels"`
	MinBid        int64         `json:"min_bid"`
	MinPerByteBid float64       `json:"min_per_byte_bid"`
	ForcePayment  bool          `json:"force_payment,omitempty"`
}

// handleInfo implements GET /info and GET /admin/info (§6, SPEC_FULL.md
// §C.2): a read-only snapshot of the static channel registry and
// bidding constants a client needs to construct a valid order. The
// admin variant additionally surfaces FORCE_PAYMENT (§C.2a), a
// debug-only knob operators use to sanity-check the paid-order path
// without a real Lightning balance.
func (d Deps) handleInfo(isAdmin bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := infoResponse{
			MinBid:        d.Cfg.Bidding.MinBidFloor,
			MinPerByteBid: d.Cfg.Bidding.MinPerByteBid,
		}
		for _, id := range channels.IDs() {
			ch := channels.Registry[id]
			var perms []string
			for _, op := range []channels.Permission{channels.PermGet, channels.PermPost, channels.PermDelete} {
				if ch.Allows(op) {
					perms = append(perms, string(op))
				}
			}
			resp.Channels = append(resp.Channels, channelInfo{
				ID:              ch.ID,
				Name:            ch.Name,
				Permissions:     perms,
				RateBytesPerSec: ch.RateBytesPerSec,
				MaxPayloadBytes: ch.MaxPayloadBytes,
				RequiresPayment: ch.RequiresPayment,
			})
		}
		if isAdmin {
			resp.ForcePayment = d.Cfg.ForcePayment
		}
		writeJSON(w, resp)
	}
}
