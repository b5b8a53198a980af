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
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/hyperledger/firefly-common/pkg/i18n"
)

// errorDetail and errorResponse are the catalogued JSON error envelope
// of §6: {"message": <title>, "errors":[{"title","detail","code"}]}.
type errorDetail struct {
	Title  string `json:"title"`
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

type errorResponse struct {
	Message string        `json:"message"`
	Errors  []errorDetail `json:"errors"`
}

// ffErrorPattern extracts the registered i18n code (e.g. "SQ010003")
// from an error built with i18n.NewError/WrapError's "<code>: <text>"
// formatting.
var ffErrorPattern = regexp.MustCompile(`^([A-Z]{2}\d+):\s*(.*)$`)

// writeError renders err as the §6 error envelope, mapping it to the
// HTTP status registered against its i18n code via the statusHint
// passed to msgs.ffe, and defaulting to 500 for anything without one
// (a catalog entry registered without a hint, or a bare store/driver
// error, for instance).
func writeError(w http.ResponseWriter, err error) {
	text := err.Error()
	code := "SQ019999"
	detail := text
	status := http.StatusInternalServerError
	if m := ffErrorPattern.FindStringSubmatch(text); m != nil {
		code = m[1]
		detail = m[2]
		if hint, ok := i18n.GetStatusHint(code); ok {
			status = hint
		}
	}
	writeJSONStatus(w, status, errorResponse{
		Message: detail,
		Errors:  []errorDetail{{Title: detail, Detail: detail, Code: code}},
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
