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

// Package payload is the on-disk store for uploaded message bodies.
// Multipart parsing and the upload path itself are out of scope (§1);
// this package only owns the save/read/delete primitives that the
// upload handler, the order lifecycle and the housekeeper call.
package payload

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Store is a flat directory of payload files named by order uuid.
type Store struct {
	root string
}

// New returns a Store rooted at dir, creating it if necessary.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Store{root: dir}, nil
}

func (s *Store) path(uuid string) string {
	return filepath.Join(s.root, uuid)
}

// Save writes r to the payload file for uuid.
func (s *Store) Save(ctx context.Context, uuid string, r io.Reader) error {
	f, err := os.Create(s.path(uuid))
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = io.Copy(f, r)
	return err
}

// Open returns a reader for the payload file belonging to uuid.
func (s *Store) Open(ctx context.Context, uuid string) (io.ReadCloser, error) {
	return os.Open(s.path(uuid))
}

// Delete removes the payload file for uuid. Deleting an already-deleted
// (or never-written, e.g. admin non-paid-channel) order is a no-op, the
// idempotency cancellation and the housekeeper's retention sweep both
// depend on.
func (s *Store) Delete(ctx context.Context, uuid string) error {
	err := os.Remove(s.path(uuid))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
