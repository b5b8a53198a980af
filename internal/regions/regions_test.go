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

package regions

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	ctx := context.Background()
	subset := []int{1, 2, 5, 6} // g18, e113, t18v_c, t18v_ku
	code, err := Encode(ctx, subset)
	require.NoError(t, err)

	decoded := Decode(code)
	assert.ElementsMatch(t, subset, decoded)
}

func TestDecodeZeroMeansAllRegions(t *testing.T) {
	decoded := Decode(0)
	assert.Len(t, decoded, len(All))
	for _, r := range All {
		assert.Contains(t, decoded, r.ID)
	}
}

func TestMonitoredRxRegionIDsExcludesNonReceivers(t *testing.T) {
	monitored := MonitoredRxRegionIDs()
	afr, _ := ByNumber(context.Background(), 2)
	eu, _ := ByNumber(context.Background(), 3)
	assert.False(t, monitored[afr.ID])
	assert.False(t, monitored[eu.ID])
	assert.True(t, monitored[1])
	assert.True(t, monitored[6])
}

func TestEncodeInvalidID(t *testing.T) {
	_, err := Encode(context.Background(), []int{99})
	assert.Error(t, err)
}

func TestSubtractHonorsZeroAsAllRegions(t *testing.T) {
	confirmed := map[int]bool{1: true, 2: true}
	missing := Subtract(0, confirmed)
	assert.Len(t, missing, len(All)-2)
}

func TestSuperset(t *testing.T) {
	code, err := EncodeNumbers(context.Background(), []int{0, 1})
	require.NoError(t, err)
	assert.True(t, Superset(code, map[int]bool{1: true, 2: true, 3: true}))
	assert.False(t, Superset(code, map[int]bool{1: true}))
}
