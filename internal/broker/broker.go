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

// Package broker is the pub/sub publication contract (part of C7): it
// publishes an order's transmission-start view on its channel's named
// topic for the downstream transmitter fleet to consume. Publication
// is fire-and-forget — a failure is logged and left to the
// retransmission controller to heal (§5).
package broker

import (
	"context"
	"encoding/json"

	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/redis/go-redis/v9"
)

// Publisher publishes JSON messages to named topics.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload interface{}) error
}

// RedisPublisher publishes via Redis PUBLISH, one channel per logical
// broadcast channel name (e.g. "transmissions", "gossip").
type RedisPublisher struct {
	rdb *redis.Client
}

// NewRedisPublisher builds a RedisPublisher from a connection URI.
func NewRedisPublisher(uri string) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(uri)
	if err != nil {
		return nil, err
	}
	return &RedisPublisher{rdb: redis.NewClient(opts)}, nil
}

// Publish marshals payload to JSON and publishes it to topic.
func (p *RedisPublisher) Publish(ctx context.Context, topic string, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if err := p.rdb.Publish(ctx, topic, b).Err(); err != nil {
		log.L(ctx).Errorf("broker publish to %s failed: %s", topic, err)
		return err
	}
	return nil
}

// Close releases the underlying Redis connection pool.
func (p *RedisPublisher) Close() error {
	return p.rdb.Close()
}
