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
	"time"

	"github.com/Blockstream/satellite-api/internal/regions"
	"github.com/Blockstream/satellite-api/internal/store"
)

// View is the public JSON projection of an Order, returned by the HTTP
// surface and embedded in broker publications (§6).
type View struct {
	UUID                  string      `json:"uuid"`
	TxSeqNum              *int64      `json:"tx_seq_num,omitempty"`
	Channel               int         `json:"channel"`
	Status                string      `json:"status"`
	Bid                   int64       `json:"bid"`
	UnpaidBid             int64       `json:"unpaid_bid"`
	BidPerByte            float64     `json:"bid_per_byte"`
	MessageSize           int64       `json:"message_size"`
	MessageDigest         string      `json:"message_digest"`
	RegionCode            int         `json:"region_code"`
	CreatedAt             time.Time   `json:"created_at"`
	CancelledAt           *time.Time  `json:"cancelled_at,omitempty"`
	StartedTransmissionAt *time.Time  `json:"started_transmission_at,omitempty"`
	EndedTransmissionAt   *time.Time  `json:"ended_transmission_at,omitempty"`
}

// NewView projects an Order to its public view.
func NewView(o *store.Order) View {
	return View{
		UUID:                  o.UUID,
		TxSeqNum:              o.TxSeqNum,
		Channel:               o.Channel,
		Status:                string(o.Status),
		Bid:                   o.Bid,
		UnpaidBid:             o.UnpaidBid,
		BidPerByte:            o.BidPerByte,
		MessageSize:           o.MessageSize,
		MessageDigest:         o.MessageDigest,
		RegionCode:            o.RegionCode,
		CreatedAt:             o.CreatedAt,
		CancelledAt:           o.CancelledAt,
		StartedTransmissionAt: o.StartedTransmissionAt,
		EndedTransmissionAt:   o.EndedTransmissionAt,
	}
}

// PublishView is the payload published to a channel's broker topic:
// the order's public view plus the decoded set of regions this
// transmission targets. A retransmission substitutes the TxRetry's
// region_code for the order's own (§4.7).
type PublishView struct {
	View
	Regions []int `json:"regions"`
}

// NewPublishView builds a PublishView, using regionCode in place of
// the order's own region_code when this is a retransmission.
func NewPublishView(o *store.Order, regionCode int) PublishView {
	return PublishView{
		View:    NewView(o),
		Regions: regions.Decode(regionCode),
	}
}
