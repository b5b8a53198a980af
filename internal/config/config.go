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
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/Blockstream/satellite-api/internal/bidding"
)

// Env is the deployment environment (ENV).
type Env string

const (
	EnvDevelopment Env = "development"
	EnvTest        Env = "test"
	EnvProduction  Env = "production"
)

// Config is the fully resolved, immutable process configuration,
// bound once at start-up per §5 ("computed once at start-up and are
// read-only thereafter").
type Config struct {
	Env Env

	HTTPAddr  string
	AdminAddr string

	DatabaseURL string
	RedisURI    string

	CallbackURIRoot    string
	ChargeAPIToken     string
	ChargeRoot         string
	LightningWebhookKey []byte

	USERAuthKey []byte

	Bidding bidding.Params

	ForcePayment bool

	ConnectionTimeout time.Duration
	ResponseTimeout   time.Duration

	RetransmitPollInterval time.Duration
	HousekeeperInterval    time.Duration
	OrderRetentionDays     int
}

// Load binds viper to the environment (with a SATQUEUE_ prefix) and an
// optional config file, then resolves defaults, mirroring the
// teacher's reliance on spf13/viper beneath firefly-common's config
// loader.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SATQUEUE")
	v.AutomaticEnv()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	}

	v.SetDefault("env", string(EnvDevelopment))
	v.SetDefault("http_addr", ":8080")
	v.SetDefault("admin_addr", ":8081")
	v.SetDefault("force_payment", false)

	chargeAPIToken := v.GetString("charge_api_token")

	cfg := &Config{
		Env:                 Env(v.GetString("env")),
		HTTPAddr:            v.GetString("http_addr"),
		AdminAddr:           v.GetString("admin_addr"),
		DatabaseURL:         v.GetString("database_url"),
		RedisURI:            v.GetString("redis_uri"),
		CallbackURIRoot:     v.GetString("callback_uri_root"),
		ChargeAPIToken:      chargeAPIToken,
		ChargeRoot:          v.GetString("charge_root"),
		LightningWebhookKey: deriveWebhookKey(chargeAPIToken),
		USERAuthKey:         []byte(v.GetString("user_auth_key")),
		Bidding: bidding.Params{
			MinBidFloor:   Int64OrDefault(optionalInt64(v, "min_bid"), 1000),
			MinPerByteBid: v.GetFloat64("min_per_byte_bid"),
		},
		ForcePayment: v.GetBool("force_payment"),
		// Millisecond/second knobs go through DurationMin/IntMin rather
		// than a bare viper default: a misconfigured 0 or negative value
		// in a config file is clamped to the floor instead of silently
		// hammering the issuer or the DB in a tight loop.
		ConnectionTimeout:      DurationMin(optionalMillis(v, "connection_timeout_ms"), 500*time.Millisecond, 2*time.Second),
		ResponseTimeout:        DurationMin(optionalMillis(v, "response_timeout_ms"), 500*time.Millisecond, 2*time.Second),
		RetransmitPollInterval: DurationMin(optionalSeconds(v, "retransmit_poll_interval_s"), time.Second, 10*time.Second),
		HousekeeperInterval:    DurationMin(optionalSeconds(v, "housekeeper_interval_s"), time.Second, 5*time.Minute),
		OrderRetentionDays:     IntMin(optionalInt(v, "order_retention_days"), 1, 31),
	}
	if v.GetFloat64("min_per_byte_bid") == 0 {
		cfg.Bidding.MinPerByteBid = 1
	}
	return cfg, nil
}

func optionalInt(v *viper.Viper, key string) *int {
	if !v.IsSet(key) {
		return nil
	}
	return P(v.GetInt(key))
}

func optionalInt64(v *viper.Viper, key string) *int64 {
	if !v.IsSet(key) {
		return nil
	}
	return P(v.GetInt64(key))
}

func optionalMillis(v *viper.Viper, key string) *time.Duration {
	if !v.IsSet(key) {
		return nil
	}
	return P(time.Duration(v.GetInt(key)) * time.Millisecond)
}

func optionalSeconds(v *viper.Viper, key string) *time.Duration {
	if !v.IsSet(key) {
		return nil
	}
	return P(time.Duration(v.GetInt(key)) * time.Second)
}

// deriveWebhookKey computes LIGHTNING_WEBHOOK_KEY =
// HMAC-SHA256("charged-token", CHARGE_API_TOKEN), per §6.
func deriveWebhookKey(chargeAPIToken string) []byte {
	mac := hmac.New(sha256.New, []byte("charged-token"))
	mac.Write([]byte(chargeAPIToken))
	return mac.Sum(nil)
}
