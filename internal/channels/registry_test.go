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

package channels

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryMatchesSpecTable(t *testing.T) {
	ch, err := Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "transmissions", ch.Name)
	assert.True(t, ch.Allows(PermGet))
	assert.True(t, ch.Allows(PermPost))
	assert.True(t, ch.Allows(PermDelete))
	assert.True(t, ch.RequiresPayment)

	auth, err := Get(context.Background(), 3)
	require.NoError(t, err)
	assert.False(t, auth.Allows(PermGet))
	assert.False(t, auth.RequiresPayment)

	gossip, err := Get(context.Background(), 4)
	require.NoError(t, err)
	assert.True(t, gossip.Allows(PermGet))
	assert.False(t, gossip.Allows(PermPost))
	assert.False(t, gossip.RequiresPayment)
}

func TestUnknownChannel(t *testing.T) {
	_, err := Get(context.Background(), 99)
	assert.Error(t, err)
}

func TestCheckOpAdminBypassesPermissions(t *testing.T) {
	auth, _ := Get(context.Background(), 3)
	assert.Error(t, CheckOp(context.Background(), auth, PermPost, false))
	assert.NoError(t, CheckOp(context.Background(), auth, PermPost, true))
}

func TestRequiresPaymentIffPost(t *testing.T) {
	for _, ch := range Registry {
		assert.Equal(t, ch.Allows(PermPost), ch.RequiresPayment)
	}
}
