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

// Package channels is the static registry of logical broadcast
// channels described in §4.3 of the spec: each channel has a human
// name, a user permission set, a byte rate, a maximum payload, an
// acknowledgement timeout, and whether it requires payment.
package channels

import (
	"context"
	"sort"
	"time"

	"github.com/docker/go-units"
	"github.com/hyperledger/firefly-common/pkg/i18n"

	"github.com/Blockstream/satellite-api/internal/msgs"
)

// Permission is one of the three user-facing operations a channel may
// allow: get (read order status), post (create/bump), delete (cancel).
type Permission string

const (
	PermGet    Permission = "get"
	PermPost   Permission = "post"
	PermDelete Permission = "delete"
)

// Channel is one row of the static channel registry.
type Channel struct {
	ID               int
	Name             string
	Permissions      map[Permission]bool
	RateBytesPerSec  int64
	MaxPayloadBytes  int64
	AckTimeout       time.Duration
	RequiresPayment  bool // derived: true iff Permissions[PermPost]
}

// Allows reports whether the channel's user permission set includes op.
func (c Channel) Allows(op Permission) bool {
	return c.Permissions[op]
}

func perms(ops ...Permission) map[Permission]bool {
	m := make(map[Permission]bool, len(ops))
	for _, op := range ops {
		m[op] = true
	}
	return m
}

// Registry is the default, compiled-in channel table from §4.3. It is
// computed once at start-up and is read-only thereafter, per §5.
var Registry = buildRegistry()

func buildRegistry() map[int]Channel {
	reg := map[int]Channel{
		1: {
			ID:              1,
			Name:            "transmissions",
			Permissions:     perms(PermGet, PermPost, PermDelete),
			RateBytesPerSec: 1000,
			MaxPayloadBytes: units.MiB,
			AckTimeout:      60 * time.Second,
		},
		3: {
			ID:              3,
			Name:            "auth",
			Permissions:     perms(),
			RateBytesPerSec: 125,
			MaxPayloadBytes: units.MiB,
			AckTimeout:      60 * time.Second,
		},
		4: {
			ID:              4,
			Name:            "gossip",
			Permissions:     perms(PermGet),
			RateBytesPerSec: 500,
			MaxPayloadBytes: 1_800_000,
			AckTimeout:      300 * time.Second,
		},
		5: {
			ID:              5,
			Name:            "btc-src",
			Permissions:     perms(PermGet),
			RateBytesPerSec: 500,
			MaxPayloadBytes: 16_200_000,
			AckTimeout:      300 * time.Second,
		},
	}
	for id, ch := range reg {
		ch.RequiresPayment = ch.Allows(PermPost)
		reg[id] = ch
	}
	return reg
}

// Get looks up a channel by id.
func Get(ctx context.Context, id int) (Channel, error) {
	ch, ok := Registry[id]
	if !ok {
		return Channel{}, i18n.NewError(ctx, msgs.MsgUnknownChannel, id)
	}
	return ch, nil
}

// IDs returns the sorted set of configured channel ids.
func IDs() []int {
	ids := make([]int, 0, len(Registry))
	for id := range Registry {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// CheckOp returns ORDER_CHANNEL_UNAUTHORIZED_OP unless the channel's
// user permissions (bypassed entirely for admin callers) allow op.
func CheckOp(ctx context.Context, ch Channel, op Permission, isAdmin bool) error {
	if isAdmin {
		return nil
	}
	if !ch.Allows(op) {
		return i18n.NewError(ctx, msgs.MsgOrderChannelUnauthorizedOp, ch.Name, op)
	}
	return nil
}
