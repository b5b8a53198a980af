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

package store

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/hyperledger/firefly-common/pkg/log"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Store wraps a *gorm.DB, the way the teacher's pkg/persistence wraps
// the database handle passed to every manager.
type Store struct {
	db *gorm.DB
}

// DB returns the underlying *gorm.DB, for callers (like the scheduler)
// that need to open their own transactions.
func (s *Store) DB() *gorm.DB { return s.db }

// memDBSeq numbers the in-memory SQLite databases Open creates.
var memDBSeq atomic.Int64

// Open connects to Postgres in production and runs AutoMigrate. A
// "sqlite::memory:" URL (used by tests) opens an in-memory SQLite DB
// instead, mirroring the swappable driver pattern other repos in the
// retrieval pack use for persistence tests. Each such Open gets its own
// empty database, shared only by the connections of that Store's pool.
func Open(ctx context.Context, url string) (*Store, error) {
	gormCfg := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	}

	var dialector gorm.Dialector
	if url == "" || url == "sqlite::memory:" {
		dialector = sqlite.Open(fmt.Sprintf("file:satqueue-mem-%d?mode=memory&cache=shared", memDBSeq.Add(1)))
	} else {
		dialector = postgres.Open(url)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, err
	}
	if err := db.WithContext(ctx).AutoMigrate(AllModels...); err != nil {
		return nil, err
	}
	log.L(ctx).Infof("store opened and migrated")
	return &Store{db: db}, nil
}

// WithStore is a convenience for tests and engine wiring that already
// hold an open *gorm.DB (e.g. a shared in-memory SQLite handle).
func WithStore(db *gorm.DB) *Store {
	return &Store{db: db}
}
