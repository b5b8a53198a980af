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

// Package bidding computes the over-the-air length of a payload and
// the minimum acceptable bid for it, per §4.2 of the spec.
package bidding

import (
	"context"
	"math"

	"github.com/hyperledger/firefly-common/pkg/i18n"

	"github.com/Blockstream/satellite-api/internal/msgs"
)

const (
	packetMTU        = 1500
	udpIPHeader      = 28
	envelopeHeader   = 8
	outerFrameHeader = 16
	maxFragmentBody  = packetMTU - udpIPHeader - envelopeHeader // 1464
	perFragmentOverhead = outerFrameHeader + udpIPHeader + envelopeHeader // 52
)

// Params are the configured bidding constants (MIN_BID, MIN_PER_BYTE_BID).
type Params struct {
	MinBidFloor   int64
	MinPerByteBid float64
}

// OTALen computes the over-the-air length of an L-byte payload: the
// payload plus a (16+28+8)-byte frame/header overhead per fragment,
// where fragments are capped at 1464 bytes of payload each.
func OTALen(l int64) int64 {
	if l <= 0 {
		return 0
	}
	n := int64(math.Ceil(float64(l) / float64(maxFragmentBody)))
	return l + n*perFragmentOverhead
}

// MinBid returns the minimum acceptable bid, in millisatoshis, for a
// payload of size L bytes.
func (p Params) MinBid(l int64) int64 {
	ota := OTALen(l)
	min := int64(math.Ceil(float64(ota) * p.MinPerByteBid))
	if min < p.MinBidFloor {
		return p.MinBidFloor
	}
	return min
}

// Validate returns an error unless bid >= MinBid(messageSize).
func (p Params) Validate(ctx context.Context, bid int64, messageSize int64) error {
	min := p.MinBid(messageSize)
	if bid < min {
		return i18n.NewError(ctx, msgs.MsgBidTooSmall, bid, min)
	}
	return nil
}

// BidPerByte divides a total bid by the over-the-air length of the
// message it is paying for. Returns 0 if messageSize is 0 to avoid a
// division by zero (an order with no payload never reaches this path
// in practice, since upload validation rejects it first).
func BidPerByte(bid int64, messageSize int64) float64 {
	ota := OTALen(messageSize)
	if ota == 0 {
		return 0
	}
	return float64(bid) / float64(ota)
}
