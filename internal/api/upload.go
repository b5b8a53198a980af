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
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/hyperledger/firefly-common/pkg/i18n"

	"github.com/Blockstream/satellite-api/internal/channels"
	"github.com/Blockstream/satellite-api/internal/msgs"
	"github.com/Blockstream/satellite-api/internal/regions"
)

// maxUploadMemory bounds how much of a multipart body gorilla/net-http
// buffers in memory before spilling to temp files; larger channel
// payloads (btc-src tops out at 16.2 MB) still round-trip correctly,
// just via disk-backed parts.
const maxUploadMemory = 8 << 20

// defaultUploadChannel is the channel assumed when the multipart form
// omits one (§6 marks `channel` optional).
const defaultUploadChannel = 1

// uploadForm is the decoded POST /order multipart body (§6): `bid?`,
// `message?` or `file?`, `regions?` (a JSON array of region numbers),
// `channel?`, plus the admin-only `auto_pay` flag from SPEC_FULL.md §C.5.
type uploadForm struct {
	Channel    int
	Bid        int64
	RegionCode int
	AutoPay    bool
	Body       []byte
}

// parseUploadForm decodes the multipart order-creation body. File
// storage itself (beyond handing the bytes to internal/payload) is
// out of scope per §1; this is the thin parsing contract the core
// consumes.
func parseUploadForm(ctx context.Context, r *http.Request, isAdmin bool) (*uploadForm, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, i18n.NewError(ctx, msgs.MsgMessageMissing)
	}

	f := &uploadForm{Channel: defaultUploadChannel}

	if v := r.FormValue("channel"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, i18n.NewError(ctx, msgs.MsgUnknownChannel, v)
		}
		f.Channel = n
	}

	if v := r.FormValue("bid"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, i18n.NewError(ctx, msgs.MsgBidTooSmall, v, 0)
		}
		f.Bid = n
	}

	if v := r.FormValue("regions"); v != "" {
		var numbers []int
		if err := json.Unmarshal([]byte(v), &numbers); err != nil {
			return nil, i18n.NewError(ctx, msgs.MsgParamInvalidRegions)
		}
		code, err := regions.EncodeNumbers(ctx, numbers)
		if err != nil {
			return nil, err
		}
		f.RegionCode = code
	}

	if isAdmin {
		f.AutoPay = r.FormValue("auto_pay") == "true"
	}

	if file, _, err := r.FormFile("file"); err == nil {
		defer file.Close()
		body, err := io.ReadAll(file)
		if err != nil {
			return nil, i18n.NewError(ctx, msgs.MsgMessageMissing)
		}
		f.Body = body
	} else if msg := r.FormValue("message"); msg != "" {
		f.Body = []byte(msg)
	} else {
		return nil, i18n.NewError(ctx, msgs.MsgMessageMissing)
	}

	ch, err := channels.Get(ctx, f.Channel)
	if err != nil {
		return nil, err
	}
	if len(f.Body) == 0 {
		return nil, i18n.NewError(ctx, msgs.MsgMessageFileTooSmall)
	}
	if int64(len(f.Body)) > ch.MaxPayloadBytes {
		return nil, i18n.NewError(ctx, msgs.MsgMessageFileTooLarge, ch.MaxPayloadBytes)
	}

	return f, nil
}

// regionNumbersFromBody decodes the `regions` field of the tx
// confirmation POST body into wire-form region numbers.
func regionNumbersFromBody(ctx context.Context, raw string) ([]int, error) {
	var numbers []int
	if strings.TrimSpace(raw) == "" {
		return nil, i18n.NewError(ctx, msgs.MsgParamInvalidRegions)
	}
	if err := json.Unmarshal([]byte(raw), &numbers); err != nil {
		return nil, i18n.NewError(ctx, msgs.MsgParamInvalidRegions)
	}
	return numbers, nil
}
