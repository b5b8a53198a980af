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

// Package store is the persistent order/invoice/confirmation/retry
// model (C4) and its queries, backed by GORM the way the teacher's
// persistedPubTx/persistedTxSubmission models are.
package store

import "time"

// OrderStatus is one of the states in the order lifecycle state
// machine (§4.6).
type OrderStatus string

const (
	StatusPending      OrderStatus = "pending"
	StatusPaid         OrderStatus = "paid"
	StatusTransmitting OrderStatus = "transmitting"
	StatusConfirming   OrderStatus = "confirming"
	StatusSent         OrderStatus = "sent"
	StatusReceived     OrderStatus = "received"
	StatusCancelled    OrderStatus = "cancelled"
	StatusExpired      OrderStatus = "expired"
)

// InvoiceStatus is one of the three states an Invoice passes through.
type InvoiceStatus string

const (
	InvoiceStatusPending InvoiceStatus = "pending"
	InvoiceStatusPaid    InvoiceStatus = "paid"
	InvoiceStatusExpired InvoiceStatus = "expired"
)

// Order is the central entity of the system: a paid
// message-transmission request, per §3.
type Order struct {
	ID        uint   `gorm:"primarykey"`
	UUID      string `gorm:"uniqueIndex;size:36"`
	TxSeqNum  *int64 `gorm:"uniqueIndex"`
	Channel   int    `gorm:"index"`
	Status    OrderStatus `gorm:"index;size:16"`

	Bid         int64   // sum of paid invoice amounts, msat
	UnpaidBid   int64   // sum of pending invoice amounts, msat
	BidPerByte  float64 `gorm:"index"` // bid / ota_len(message_size), the scheduler's sort key

	MessageSize   int64
	MessageDigest string `gorm:"size:64"` // hex SHA-256
	RegionCode    int    // 0 means "all regions"

	CreatedAt             time.Time `gorm:"index"`
	CancelledAt           *time.Time
	StartedTransmissionAt *time.Time `gorm:"index"`
	EndedTransmissionAt   *time.Time `gorm:"index"`

	Invoices         []Invoice         `gorm:"constraint:OnDelete:CASCADE"`
	TxConfirmations  []TxConfirmation  `gorm:"constraint:OnDelete:CASCADE"`
	RxConfirmations  []RxConfirmation  `gorm:"constraint:OnDelete:CASCADE"`
	TxRetry          *TxRetry          `gorm:"constraint:OnDelete:CASCADE"`
}

// Invoice is a Lightning invoice issued against an Order, per §3/§4.5.
type Invoice struct {
	ID        uint   `gorm:"primarykey"`
	OrderID   uint    `gorm:"index"`
	Lid       string `gorm:"uniqueIndex;size:128"` // external invoice id
	Blob      string // serialized external invoice (e.g. BOLT11 + metadata)
	Amount    int64  // msat
	Status    InvoiceStatus `gorm:"index;size:16"`
	ExpiresAt time.Time
	PaidAt    *time.Time
	CreatedAt time.Time
}

// TxConfirmation is an append-only acknowledgement that a given
// region's transmitter emitted the order's payload.
type TxConfirmation struct {
	ID        uint `gorm:"primarykey"`
	OrderID   uint `gorm:"uniqueIndex:idx_tx_order_region"`
	RegionID  int  `gorm:"uniqueIndex:idx_tx_order_region"`
	CreatedAt time.Time
	Presumed  bool
}

// RxConfirmation is an append-only acknowledgement that a given
// region's ground station received the order's payload. A Presumed
// row is synthesized for regions without a receiving station.
type RxConfirmation struct {
	ID        uint `gorm:"primarykey"`
	OrderID   uint `gorm:"uniqueIndex:idx_rx_order_region"`
	RegionID  int  `gorm:"uniqueIndex:idx_rx_order_region"`
	CreatedAt time.Time
	Presumed  bool
}

// TxRetry is bookkeeping, 1:1 with an Order, describing the subset of
// regions still awaiting a Tx confirmation after a timeout, and the
// retry state the scheduler consumes.
type TxRetry struct {
	ID          uint `gorm:"primarykey"`
	OrderID     uint `gorm:"uniqueIndex"`
	RegionCode  int
	RetryCount  int
	LastAttempt *time.Time
	Pending     bool
	CreatedAt   time.Time
}

// AllModels is the set of tables AutoMigrate creates.
var AllModels = []interface{}{
	&Order{},
	&Invoice{},
	&TxConfirmation{},
	&RxConfirmation{},
	&TxRetry{},
}
