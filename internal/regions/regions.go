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

// Package regions maps between the region enum, its stable numeric id,
// and the bitmask region code that packs a subset of regions into one
// integer.
package regions

import (
	"context"

	"github.com/hyperledger/firefly-common/pkg/i18n"

	"github.com/Blockstream/satellite-api/internal/msgs"
)

// Name is one of the six satellite regions.
type Name string

const (
	G18     Name = "g18"
	E113    Name = "e113"
	T11NAfr Name = "t11n_afr"
	T11NEu  Name = "t11n_eu"
	T18VC   Name = "t18v_c"
	T18VKu  Name = "t18v_ku"
)

// Region describes one of the six satellite regions.
type Region struct {
	Name          Name
	Number        int // stable wire form used on HTTP requests, 0..5
	ID            int // externally persisted identifier, Number+1
	HasReceiver   bool
}

// All is the canonical, order-stable list of regions. Index i has
// Number == i.
var All = []Region{
	{Name: G18, Number: 0, ID: 1, HasReceiver: true},
	{Name: E113, Number: 1, ID: 2, HasReceiver: true},
	{Name: T11NAfr, Number: 2, ID: 3, HasReceiver: false},
	{Name: T11NEu, Number: 3, ID: 4, HasReceiver: false},
	{Name: T18VC, Number: 4, ID: 5, HasReceiver: true},
	{Name: T18VKu, Number: 5, ID: 6, HasReceiver: true},
}

var byNumber = func() map[int]Region {
	m := make(map[int]Region, len(All))
	for _, r := range All {
		m[r.Number] = r
	}
	return m
}()

var byID = func() map[int]Region {
	m := make(map[int]Region, len(All))
	for _, r := range All {
		m[r.ID] = r
	}
	return m
}()

// MonitoredRxRegionIDs is the set of region ids with a receiving
// station (i.e. HasReceiver == true).
func MonitoredRxRegionIDs() map[int]bool {
	out := make(map[int]bool, len(All))
	for _, r := range All {
		if r.HasReceiver {
			out[r.ID] = true
		}
	}
	return out
}

// ByNumber looks up a region by its wire-form number (0..5).
func ByNumber(ctx context.Context, number int) (Region, error) {
	r, ok := byNumber[number]
	if !ok {
		return Region{}, i18n.NewError(ctx, msgs.MsgInvalidRegionNumber, number)
	}
	return r, nil
}

// ByID looks up a region by its persisted id (1..6).
func ByID(ctx context.Context, id int) (Region, error) {
	r, ok := byID[id]
	if !ok {
		return Region{}, i18n.NewError(ctx, msgs.MsgInvalidRegionCode, id)
	}
	return r, nil
}

// Encode packs a subset of region ids into a region_code bitmask.
// A nil/empty subset preserves the "all regions" convention and
// returns 0, per §4.1/§9 of the spec.
func Encode(ctx context.Context, ids []int) (int, error) {
	code := 0
	for _, id := range ids {
		r, ok := byID[id]
		if !ok {
			return 0, i18n.NewError(ctx, msgs.MsgInvalidRegionCode, id)
		}
		code |= 1 << uint(r.Number)
	}
	return code, nil
}

// EncodeNumbers packs a subset of region numbers (the HTTP wire form)
// into a region_code bitmask.
func EncodeNumbers(ctx context.Context, numbers []int) (int, error) {
	code := 0
	for _, n := range numbers {
		if _, ok := byNumber[n]; !ok {
			return 0, i18n.NewError(ctx, msgs.MsgInvalidRegionNumber, n)
		}
		code |= 1 << uint(n)
	}
	return code, nil
}

// Decode unpacks a region_code bitmask into the set of region ids it
// represents. A code of 0 means "all regions" (§4.1).
func Decode(code int) []int {
	if code == 0 {
		ids := make([]int, 0, len(All))
		for _, r := range All {
			ids = append(ids, r.ID)
		}
		return ids
	}
	ids := make([]int, 0, len(All))
	for _, r := range All {
		if code&(1<<uint(r.Number)) != 0 {
			ids = append(ids, r.ID)
		}
	}
	return ids
}

// Subtract returns the region ids present in `code` but absent from
// `confirmed` (i.e. code \ confirmed), honoring the "0 means all
// regions" convention for `code`.
func Subtract(code int, confirmed map[int]bool) []int {
	present := Decode(code)
	missing := make([]int, 0, len(present))
	for _, id := range present {
		if !confirmed[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// Intersect returns the region ids common to both a region_code
// bitmask and an explicit id set (used for region_code ∩
// monitored_rx_regions in §4.6).
func Intersect(code int, ids map[int]bool) []int {
	present := Decode(code)
	out := make([]int, 0, len(present))
	for _, id := range present {
		if ids[id] {
			out = append(out, id)
		}
	}
	return out
}

// Superset reports whether `have` (a set of region ids) is a superset
// of the regions represented by `code`.
func Superset(code int, have map[int]bool) bool {
	for _, id := range Decode(code) {
		if !have[id] {
			return false
		}
	}
	return true
}

