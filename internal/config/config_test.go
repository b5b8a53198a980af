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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithNoConfigFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, ":8081", cfg.AdminAddr)
	assert.False(t, cfg.ForcePayment)
	assert.Equal(t, int64(1000), cfg.Bidding.MinBidFloor)
	assert.Equal(t, 1.0, cfg.Bidding.MinPerByteBid)
	assert.Equal(t, 2*time.Second, cfg.ConnectionTimeout)
	assert.Equal(t, 2*time.Second, cfg.ResponseTimeout)
	assert.Equal(t, 10*time.Second, cfg.RetransmitPollInterval)
	assert.Equal(t, 5*time.Minute, cfg.HousekeeperInterval)
	assert.Equal(t, 31, cfg.OrderRetentionDays)
}

func TestLoadClampsSubFloorValuesInsteadOfAccepting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "satqueue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"connection_timeout_ms: 10\n"+
			"response_timeout_ms: 10\n"+
			"retransmit_poll_interval_s: 0\n"+
			"housekeeper_interval_s: 0\n"+
			"order_retention_days: 0\n",
	), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	// Below-floor knobs clamp to the floor rather than spinning the
	// retransmission/housekeeper loops or hammering the charge issuer.
	assert.Equal(t, 500*time.Millisecond, cfg.ConnectionTimeout)
	assert.Equal(t, 500*time.Millisecond, cfg.ResponseTimeout)
	assert.Equal(t, time.Second, cfg.RetransmitPollInterval)
	assert.Equal(t, time.Second, cfg.HousekeeperInterval)
	assert.Equal(t, 1, cfg.OrderRetentionDays)
}

func TestLoadHonorsConfiguredValuesAboveFloor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "satqueue.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"min_bid: 2500\n"+
			"retransmit_poll_interval_s: 5\n"+
			"order_retention_days: 14\n",
	), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, int64(2500), cfg.Bidding.MinBidFloor)
	assert.Equal(t, 5*time.Second, cfg.RetransmitPollInterval)
	assert.Equal(t, 14, cfg.OrderRetentionDays)
}

func TestDeriveWebhookKeyIsDeterministicPerToken(t *testing.T) {
	cfgA, err := Load("")
	require.NoError(t, err)
	cfgB, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, cfgA.LightningWebhookKey, cfgB.LightningWebhookKey)
}

func TestDurationMinFloorsAndDefaults(t *testing.T) {
	assert.Equal(t, 2*time.Second, DurationMin(nil, time.Second, 2*time.Second))
	tiny := 10 * time.Millisecond
	assert.Equal(t, time.Second, DurationMin(&tiny, time.Second, 2*time.Second))
	ample := 3 * time.Second
	assert.Equal(t, ample, DurationMin(&ample, time.Second, 2*time.Second))
}

func TestIntMinFloorsAndDefaults(t *testing.T) {
	assert.Equal(t, 31, IntMin(nil, 1, 31))
	zero := 0
	assert.Equal(t, 1, IntMin(&zero, 1, 31))
	fourteen := 14
	assert.Equal(t, 14, IntMin(&fourteen, 1, 31))
}

func TestInt64OrDefault(t *testing.T) {
	assert.Equal(t, int64(1000), Int64OrDefault(nil, 1000))
	v := int64(42)
	assert.Equal(t, int64(42), Int64OrDefault(&v, 1000))
}
