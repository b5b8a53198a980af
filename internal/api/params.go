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

package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/hyperledger/firefly-common/pkg/i18n"

	"github.com/Blockstream/satellite-api/internal/msgs"
	"github.com/Blockstream/satellite-api/internal/store"
)

const defaultListLimit = 20
const maxListLimit = 100

// authToken reads the caller's auth token from the request body, then
// the query string, then the X-Auth-Token header, in that search
// order (§4.5).
func authToken(r *http.Request) string {
	_ = r.ParseForm()
	if v := r.PostForm.Get("auth_token"); v != "" {
		return v
	}
	if v := r.URL.Query().Get("auth_token"); v != "" {
		return v
	}
	return r.Header.Get("X-Auth-Token")
}

// parseListParams decodes the pagination/filter query parameters of
// GET /orders/<state> (§6), rejecting a before/before_delta or
// after/after_delta pair supplied together (design note §9).
func parseListParams(ctx context.Context, r *http.Request) (store.ListParams, error) {
	q := r.URL.Query()
	var p store.ListParams

	if v := q.Get("channel"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, i18n.NewError(ctx, msgs.MsgUnknownChannel, v)
		}
		p.Channel = &n
	}

	before, beforeDelta := q.Get("before"), q.Get("before_delta")
	if before != "" && beforeDelta != "" {
		return p, i18n.NewError(ctx, msgs.MsgParamInvalidDateRange, "before", "before_delta")
	}
	if before != "" {
		t, err := time.Parse(time.RFC3339, before)
		if err != nil {
			return p, i18n.NewError(ctx, msgs.MsgParamInvalidDateRange, "before", "before_delta")
		}
		p.Before = &t
	}
	if beforeDelta != "" {
		d, err := time.ParseDuration(beforeDelta)
		if err != nil {
			return p, i18n.NewError(ctx, msgs.MsgParamInvalidDateRange, "before", "before_delta")
		}
		p.BeforeDelta = &d
	}

	after, afterDelta := q.Get("after"), q.Get("after_delta")
	if after != "" && afterDelta != "" {
		return p, i18n.NewError(ctx, msgs.MsgParamInvalidDateRange, "after", "after_delta")
	}
	if after != "" {
		t, err := time.Parse(time.RFC3339, after)
		if err != nil {
			return p, i18n.NewError(ctx, msgs.MsgParamInvalidDateRange, "after", "after_delta")
		}
		p.After = &t
	}
	if afterDelta != "" {
		d, err := time.ParseDuration(afterDelta)
		if err != nil {
			return p, i18n.NewError(ctx, msgs.MsgParamInvalidDateRange, "after", "after_delta")
		}
		p.AfterDelta = &d
	}

	p.Limit = defaultListLimit
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			return p, i18n.NewError(ctx, msgs.MsgParamInvalidLimit, maxListLimit)
		}
		p.Limit = n
	}

	return p, nil
}

// parseTxSeqNum decodes a {txSeqNum} path variable, mapping a
// malformed value onto the same SEQUENCE_NUMBER_NOT_FOUND error an
// unknown-but-well-formed one would produce (§6).
func parseTxSeqNum(ctx context.Context, raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, i18n.NewError(ctx, msgs.MsgSequenceNumberNotFound, raw)
	}
	return n, nil
}
