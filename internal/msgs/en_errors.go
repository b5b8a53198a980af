// Copyright © 2024 Kaleido, Inc.
//
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package msgs

import (
	"net/http"
	"sync"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"golang.org/x/text/language"
)

var registered sync.Once
var ffe = func(key, translation string, statusHint ...int) i18n.ErrorMessageKey {
	registered.Do(func() {
		i18n.RegisterPrefix("SQ01", "Satellite Queue")
	})
	return i18n.FFE(language.AmericanEnglish, key, translation, statusHint...)
}

var (
	// Validation family SQ0100xx
	MsgMessageMissing        = ffe("SQ010000", "A message payload or file is required", http.StatusBadRequest)
	MsgMessageFileTooSmall   = ffe("SQ010001", "Message payload is smaller than the channel minimum", http.StatusBadRequest)
	MsgMessageFileTooLarge   = ffe("SQ010002", "Message payload exceeds the channel's maximum payload of %d bytes", http.StatusBadRequest)
	MsgBidTooSmall           = ffe("SQ010003", "Bid of %d msat is below the minimum acceptable bid of %d msat", http.StatusBadRequest)
	MsgParamInvalidRegions   = ffe("SQ010004", "regions must be a JSON array of region numbers", http.StatusBadRequest)
	MsgParamInvalidDateRange = ffe("SQ010005", "only one of '%s'/'%s' may be supplied", http.StatusBadRequest)
	MsgParamInvalidLimit     = ffe("SQ010006", "limit must be between 1 and %d", http.StatusBadRequest)
	MsgParamInvalidState     = ffe("SQ010007", "unknown order state '%s'", http.StatusNotFound)

	// Authorization family SQ0101xx
	MsgInvalidAuthToken            = ffe("SQ010100", "Invalid authentication token", http.StatusUnauthorized)
	MsgOrderChannelUnauthorizedOp  = ffe("SQ010101", "Channel '%s' does not permit the '%s' operation", http.StatusForbidden)

	// State family SQ0102xx
	MsgOrderNotFound             = ffe("SQ010200", "Order not found", http.StatusNotFound)
	MsgOrderCancellationError    = ffe("SQ010201", "Order cannot be cancelled from state '%s'", http.StatusConflict)
	MsgOrderBumpError            = ffe("SQ010202", "Order cannot be bumped from state '%s'", http.StatusConflict)
	MsgSequenceNumberNotFound    = ffe("SQ010203", "No order found for tx_seq_num %d", http.StatusNotFound)
	MsgInvoiceAlreadyPaid        = ffe("SQ010204", "Invoice is already paid", http.StatusConflict)
	MsgInvoiceAlreadyExpired     = ffe("SQ010205", "Invoice has already expired", http.StatusConflict)
	MsgInvoiceIDNotFoundError    = ffe("SQ010206", "No invoice found for lid '%s'", http.StatusNotFound)
	MsgOrphanedInvoice           = ffe("SQ010207", "Invoice '%s' has no owning order", http.StatusConflict)

	// External-service family SQ0103xx
	MsgLightningChargeInvoiceError = ffe("SQ010300", "Failed to create Lightning invoice: %s", http.StatusBadGateway)
	MsgLightningChargeWebhookError = ffe("SQ010301", "Failed to register invoice webhook: %s", http.StatusBadGateway)

	// Internal/engine family SQ0104xx
	MsgContextCanceled     = ffe("SQ010400", "Context cancelled")
	MsgInvalidRegionCode   = ffe("SQ010401", "Invalid region code %d")
	MsgInvalidRegionNumber = ffe("SQ010402", "Invalid region number %d")
	MsgUnknownChannel      = ffe("SQ010403", "Unknown channel %d")
)
