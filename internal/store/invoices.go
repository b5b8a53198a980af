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
	"errors"
	"time"

	"github.com/hyperledger/firefly-common/pkg/i18n"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Blockstream/satellite-api/internal/msgs"
)

// InsertInvoice creates a new Invoice row against dbTX.
func (s *Store) InsertInvoice(ctx context.Context, dbTX *gorm.DB, inv *Invoice) error {
	if dbTX == nil {
		dbTX = s.db
	}
	return dbTX.WithContext(ctx).Create(inv).Error
}

// GetInvoiceByLid looks up an invoice by its external id, locking the
// row for update so pay_invoice/expire can atomically check-then-set
// its status (§4.5).
func (s *Store) GetInvoiceByLid(ctx context.Context, dbTX *gorm.DB, lid string) (*Invoice, error) {
	if dbTX == nil {
		dbTX = s.db
	}
	var inv Invoice
	err := dbTX.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("lid = ?", lid).
		First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, i18n.NewError(ctx, msgs.MsgInvoiceIDNotFoundError, lid)
	}
	return &inv, err
}

// SaveInvoice persists an invoice's mutable fields.
func (s *Store) SaveInvoice(ctx context.Context, dbTX *gorm.DB, inv *Invoice) error {
	if dbTX == nil {
		dbTX = s.db
	}
	return dbTX.WithContext(ctx).Save(inv).Error
}

// InvoiceTotals sums paid and pending invoice amounts for an order,
// the source of truth recomputed into Order.Bid/UnpaidBid on every
// invoice status change (invariant 3, §3).
func (s *Store) InvoiceTotals(ctx context.Context, dbTX *gorm.DB, orderID uint) (paid int64, pending int64, err error) {
	if dbTX == nil {
		dbTX = s.db
	}
	var invoices []Invoice
	if err := dbTX.WithContext(ctx).Where("order_id = ?", orderID).Find(&invoices).Error; err != nil {
		return 0, 0, err
	}
	for _, inv := range invoices {
		switch inv.Status {
		case InvoiceStatusPaid:
			paid += inv.Amount
		case InvoiceStatusPending:
			pending += inv.Amount
		}
	}
	return paid, pending, nil
}

// ExpiredPendingInvoices returns pending invoices whose expiry has
// passed, for the housekeeper's expire_unpaid_invoices (§4.5/§4.9).
func (s *Store) ExpiredPendingInvoices(ctx context.Context, now time.Time) ([]*Invoice, error) {
	var invoices []*Invoice
	err := s.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", InvoiceStatusPending, now).
		Find(&invoices).Error
	return invoices, err
}

// HasPendingInvoice reports whether an order has any invoice still
// pending, used by maybe_mark_order_as_expired (§4.6).
func (s *Store) HasPendingInvoice(ctx context.Context, dbTX *gorm.DB, orderID uint) (bool, error) {
	if dbTX == nil {
		dbTX = s.db
	}
	var count int64
	err := dbTX.WithContext(ctx).Model(&Invoice{}).
		Where("order_id = ? AND status = ?", orderID, InvoiceStatusPending).
		Count(&count).Error
	return count > 0, err
}
