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

package bidding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOTALenSmallPayload(t *testing.T) {
	// 1 <= L <= 1464 must equal L + 52 exactly; an empty payload has no
	// fragments and so no overhead
	assert.Equal(t, int64(1052), OTALen(1000))
	assert.Equal(t, int64(0), OTALen(0))
	assert.Equal(t, int64(1464+52), OTALen(1464))
}

func TestOTALenMultiFragment(t *testing.T) {
	// 1465 bytes needs 2 fragments
	got := OTALen(1465)
	assert.Equal(t, int64(1465+2*52), got)
}

func TestOTALenLowerBound(t *testing.T) {
	for _, l := range []int64{1, 100, 1464, 1465, 5000, 16_200_000} {
		assert.GreaterOrEqual(t, OTALen(l), l+52)
	}
}

func TestMinBidScenario(t *testing.T) {
	// Scenario 1 from the spec's end-to-end scenarios.
	p := Params{MinBidFloor: 1000, MinPerByteBid: 1}
	assert.Equal(t, int64(1052), p.MinBid(1000))

	err := p.Validate(context.Background(), 1051, 1000)
	assert.Error(t, err)

	err = p.Validate(context.Background(), 1052, 1000)
	assert.NoError(t, err)
}

func TestMinBidFloorsAtMinBid(t *testing.T) {
	p := Params{MinBidFloor: 5000, MinPerByteBid: 1}
	// ota_len(10) = 62, but MIN_BID floors it to 5000
	assert.Equal(t, int64(5000), p.MinBid(10))
}

func TestBidPerByte(t *testing.T) {
	bpb := BidPerByte(1052, 1000)
	assert.InDelta(t, 1.0, bpb, 0.0001)
}
