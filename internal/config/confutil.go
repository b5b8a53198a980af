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

// Package config loads service configuration from YAML plus
// environment overrides, and provides small defaulting helpers in the
// style of the teacher's `confutil` package (e.g.
// confutil.DurationMin in core/go/internal/publictxmgr).
package config

import "time"

// DurationMin returns def if v is nil, floor if *v is below floor, and
// *v otherwise.
func DurationMin(v *time.Duration, floor time.Duration, def time.Duration) time.Duration {
	if v == nil {
		return def
	}
	if *v < floor {
		return floor
	}
	return *v
}

// IntMin returns def if v is nil, floor if *v is below floor, and *v
// otherwise.
func IntMin(v *int, floor int, def int) int {
	if v == nil {
		return def
	}
	if *v < floor {
		return floor
	}
	return *v
}

// Int64OrDefault returns *v if v is non-nil, otherwise def.
func Int64OrDefault(v *int64, def int64) int64 {
	if v == nil {
		return def
	}
	return *v
}

// StringOrDefault returns v if non-empty, otherwise def.
func StringOrDefault(v string, def string) string {
	if v == "" {
		return def
	}
	return v
}

// P returns a pointer to a copy of v, for constructing literal default
// config structs (mirrors the teacher's confutil.P helper).
func P[T any](v T) *T {
	return &v
}
