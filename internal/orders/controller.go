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

// Package orders is the order lifecycle engine (C6): the state
// machine in §4.6, invoice issuance/payment/expiry bookkeeping that
// feeds it, and the Tx/Rx confirmation handlers that advance an order
// to sent/received.
package orders

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"github.com/hyperledger/firefly-common/pkg/i18n"
	"github.com/hyperledger/firefly-common/pkg/log"
	"gorm.io/gorm"

	"github.com/Blockstream/satellite-api/internal/bidding"
	"github.com/Blockstream/satellite-api/internal/channels"
	"github.com/Blockstream/satellite-api/internal/config"
	"github.com/Blockstream/satellite-api/internal/invoices"
	"github.com/Blockstream/satellite-api/internal/msgs"
	"github.com/Blockstream/satellite-api/internal/regions"
	"github.com/Blockstream/satellite-api/internal/store"
)

// Scheduler is the subset of the C7 scheduler this controller drives:
// tx_start after a payment or non-paid upload, tx_end when an order
// reaches a terminal transmission state. Declared here rather than
// imported from the scheduler package to keep the dependency pointed
// one way.
type Scheduler interface {
	TxStart(ctx context.Context, channel int) error
	TxEnd(ctx context.Context, order *store.Order) error
}

// PayloadDeleter removes an order's stored message payload. Upload
// storage itself is out of scope (§1); only deletion is needed here.
type PayloadDeleter interface {
	Delete(ctx context.Context, uuid string) error
}

// Controller orchestrates order creation, payment, cancellation,
// bumping, and confirmation handling.
type Controller struct {
	store        *store.Store
	charge       *invoices.ChargeClient
	sched        Scheduler
	payload      PayloadDeleter
	bidding      bidding.Params
	userAuthKey  []byte
	forcePayment bool
}

// NewController wires a Controller from process configuration.
func NewController(s *store.Store, charge *invoices.ChargeClient, sched Scheduler, payload PayloadDeleter, cfg *config.Config) *Controller {
	return &Controller{
		store:        s,
		charge:       charge,
		sched:        sched,
		payload:      payload,
		bidding:      cfg.Bidding,
		userAuthKey:  cfg.USERAuthKey,
		forcePayment: cfg.ForcePayment,
	}
}

// AuthToken computes the user-visible order token, HMAC-SHA256(USER_AUTH_KEY, uuid) (§4.5).
func (c *Controller) AuthToken(orderUUID string) string {
	mac := hmac.New(sha256.New, c.userAuthKey)
	mac.Write([]byte(orderUUID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyAuthToken checks a caller-supplied token against an order's uuid.
func (c *Controller) VerifyAuthToken(ctx context.Context, orderUUID, token string) error {
	expected := c.AuthToken(orderUUID)
	if !hmac.Equal([]byte(expected), []byte(token)) {
		return i18n.NewError(ctx, msgs.MsgInvalidAuthToken)
	}
	return nil
}

// CreateOrderParams is the input to CreateOrder, already validated/
// decoded by the HTTP layer (multipart parsing is out of scope, §1).
type CreateOrderParams struct {
	// UUID, when set, is used as the order's identifier instead of a
	// freshly generated one — the HTTP layer generates it up front so
	// the payload can be saved under the same name before the order
	// row exists.
	UUID          string
	Channel       int
	MessageSize   int64
	MessageDigest string
	Bid           int64
	RegionCode    int
	IsAdmin       bool
	// AutoPay, admin-only, synthesizes a server-side paid invoice of
	// exactly min_bid(message_size) instead of waiting on a real
	// Lightning payment (SPEC_FULL.md §C.5's "force confirm" affordance).
	AutoPay bool
}

// CreateOrder inserts a new order and, on a paid channel, issues its
// first invoice — both within one transaction, so an invoice-issuer
// failure leaves no row behind at all (§7's "no partial state is
// persisted"). Admin uploads on a non-paid channel start in *paid*
// with bid 0 and immediately trigger tx_start (§4.6).
func (c *Controller) CreateOrder(ctx context.Context, p CreateOrderParams) (*store.Order, *store.Invoice, error) {
	ch, err := channels.Get(ctx, p.Channel)
	if err != nil {
		return nil, nil, err
	}
	if err := channels.CheckOp(ctx, ch, channels.PermPost, p.IsAdmin); err != nil {
		return nil, nil, err
	}
	autoPay := p.IsAdmin && p.AutoPay && ch.RequiresPayment

	status := store.StatusPending
	if !ch.RequiresPayment {
		status = store.StatusPaid
	} else if !autoPay {
		if err := c.bidding.Validate(ctx, p.Bid, p.MessageSize); err != nil {
			return nil, nil, err
		}
	}

	orderUUID := p.UUID
	if orderUUID == "" {
		orderUUID = uuid.NewString()
	}
	order := &store.Order{
		UUID:          orderUUID,
		Channel:       p.Channel,
		Status:        status,
		MessageSize:   p.MessageSize,
		MessageDigest: p.MessageDigest,
		RegionCode:    p.RegionCode,
		CreatedAt:     time.Now(),
	}

	var inv *store.Invoice
	var promoted bool
	err = c.store.Transaction(ctx, func(dbTX *gorm.DB) error {
		if err := dbTX.WithContext(ctx).Create(order).Error; err != nil {
			return err
		}
		if !ch.RequiresPayment {
			return nil
		}
		var ierr error
		if autoPay {
			inv, ierr = c.issuePaidInvoice(ctx, dbTX, order, c.bidding.MinBid(order.MessageSize))
		} else {
			inv, ierr = c.issueInvoice(ctx, dbTX, order, p.Bid)
		}
		if ierr != nil {
			return ierr
		}
		if err := c.adjustBids(ctx, dbTX, order); err != nil {
			return err
		}
		promoted, err = c.maybeMarkOrderAsPaid(ctx, dbTX, order)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if !ch.RequiresPayment || promoted {
		c.triggerTxStart(ctx, order.Channel)
	}
	return order, inv, nil
}

// issueInvoice requests an invoice from the external issuer and
// persists it. When FORCE_PAYMENT is set it is persisted already paid,
// short-circuiting the webhook round-trip for local/dev use (§6).
func (c *Controller) issueInvoice(ctx context.Context, dbTX *gorm.DB, order *store.Order, amountMsat int64) (*store.Invoice, error) {
	lid, blob, expiresAt, err := c.charge.IssueInvoice(ctx, order.UUID, order.MessageDigest, amountMsat)
	if err != nil {
		return nil, err
	}
	inv := &store.Invoice{
		OrderID:   order.ID,
		Lid:       lid,
		Blob:      blob,
		Amount:    amountMsat,
		Status:    store.InvoiceStatusPending,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now(),
	}
	if c.forcePayment {
		now := time.Now()
		inv.Status = store.InvoiceStatusPaid
		inv.PaidAt = &now
	}
	if err := c.store.InsertInvoice(ctx, dbTX, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// issuePaidInvoice is the admin auto_pay path (SPEC_FULL.md §C.5): it
// still rounds-trips through the external issuer so the invoice has a
// real lid and blob, but persists it already paid, bypassing the
// webhook entirely.
func (c *Controller) issuePaidInvoice(ctx context.Context, dbTX *gorm.DB, order *store.Order, amountMsat int64) (*store.Invoice, error) {
	inv, err := c.issueInvoice(ctx, dbTX, order, amountMsat)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	inv.Status = store.InvoiceStatusPaid
	inv.PaidAt = &now
	if err := c.store.SaveInvoice(ctx, dbTX, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// adjustBids recomputes bid/unpaid_bid/bid_per_byte from the order's
// invoice rows, the step required on every invoice status change
// (invariant 3, §3).
func (c *Controller) adjustBids(ctx context.Context, dbTX *gorm.DB, order *store.Order) error {
	paid, pending, err := c.store.InvoiceTotals(ctx, dbTX, order.ID)
	if err != nil {
		return err
	}
	order.Bid = paid
	order.UnpaidBid = pending
	order.BidPerByte = bidding.BidPerByte(paid, order.MessageSize)
	return c.store.SaveOrder(ctx, dbTX, order)
}

// maybeMarkOrderAsPaid promotes a pending order to paid once its bid
// meets bidding.MinBid for its message size (§4.6).
func (c *Controller) maybeMarkOrderAsPaid(ctx context.Context, dbTX *gorm.DB, order *store.Order) (bool, error) {
	if order.Status != store.StatusPending {
		return false, nil
	}
	if order.Bid < c.bidding.MinBid(order.MessageSize) {
		return false, nil
	}
	order.Status = store.StatusPaid
	if err := c.store.SaveOrder(ctx, dbTX, order); err != nil {
		return false, err
	}
	return true, nil
}

// maybeMarkOrderAsExpired expires a pending order once it has no
// remaining pending invoice, deleting its payload file (§4.6).
func (c *Controller) maybeMarkOrderAsExpired(ctx context.Context, dbTX *gorm.DB, order *store.Order) error {
	if order.Status != store.StatusPending {
		return nil
	}
	hasPending, err := c.store.HasPendingInvoice(ctx, dbTX, order.ID)
	if err != nil {
		return err
	}
	if hasPending {
		return nil
	}
	order.Status = store.StatusExpired
	if err := c.store.SaveOrder(ctx, dbTX, order); err != nil {
		return err
	}
	if c.payload != nil {
		if err := c.payload.Delete(ctx, order.UUID); err != nil {
			log.L(ctx).Errorf("failed to delete payload for expired order %s: %s", order.UUID, err)
		}
	}
	return nil
}

// triggerTxStart fires tx_start for a channel, logging rather than
// failing the caller on error — publication/scheduling failures are
// healed by the retransmission controller (§5, §7).
func (c *Controller) triggerTxStart(ctx context.Context, channel int) {
	if c.sched == nil {
		return
	}
	if err := c.sched.TxStart(ctx, channel); err != nil {
		log.L(ctx).Errorf("tx_start failed for channel %d: %s", channel, err)
	}
}

// PayInvoice handles a charge webhook notification that lid has been
// paid: an idempotent pending->paid transition, after which the owning
// order's bid totals are recomputed and it may be promoted to paid
// (§4.5).
func (c *Controller) PayInvoice(ctx context.Context, lid string) error {
	var channel int
	var promoted bool
	err := c.store.Transaction(ctx, func(dbTX *gorm.DB) error {
		inv, err := c.store.GetInvoiceByLid(ctx, dbTX, lid)
		if err != nil {
			return err
		}
		switch inv.Status {
		case store.InvoiceStatusPaid:
			return i18n.NewError(ctx, msgs.MsgInvoiceAlreadyPaid)
		case store.InvoiceStatusExpired:
			return i18n.NewError(ctx, msgs.MsgInvoiceAlreadyExpired)
		}

		now := time.Now()
		inv.Status = store.InvoiceStatusPaid
		inv.PaidAt = &now
		if err := c.store.SaveInvoice(ctx, dbTX, inv); err != nil {
			return err
		}

		order, err := c.store.GetByID(ctx, dbTX, inv.OrderID)
		if err != nil {
			return i18n.NewError(ctx, msgs.MsgOrphanedInvoice, lid)
		}
		channel = order.Channel

		if err := c.adjustBids(ctx, dbTX, order); err != nil {
			return err
		}
		promoted, err = c.maybeMarkOrderAsPaid(ctx, dbTX, order)
		return err
	})
	if err != nil {
		return err
	}
	if promoted {
		c.triggerTxStart(ctx, channel)
	}
	return nil
}

// ExpireUnpaidInvoices transitions pending invoices past their expiry
// to expired and attempts to expire their owning orders, swallowing
// and logging per-row errors (§4.5, §4.9, §7).
func (c *Controller) ExpireUnpaidInvoices(ctx context.Context) (int, error) {
	expired, err := c.store.ExpiredPendingInvoices(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	count := 0
	for _, inv := range expired {
		err := c.store.Transaction(ctx, func(dbTX *gorm.DB) error {
			fresh, err := c.store.GetInvoiceByLid(ctx, dbTX, inv.Lid)
			if err != nil {
				return err
			}
			if fresh.Status != store.InvoiceStatusPending {
				return nil
			}
			fresh.Status = store.InvoiceStatusExpired
			if err := c.store.SaveInvoice(ctx, dbTX, fresh); err != nil {
				return err
			}
			order, err := c.store.GetByID(ctx, dbTX, fresh.OrderID)
			if err != nil {
				return nil
			}
			return c.maybeMarkOrderAsExpired(ctx, dbTX, order)
		})
		if err != nil {
			log.L(ctx).Errorf("failed to expire invoice %s: %s", inv.Lid, err)
			continue
		}
		count++
	}
	return count, nil
}

// ExpireStalePendingOrders expires pending orders older than
// olderThan, deleting their payload files (§4.9's "expire pending
// orders older than 1 day").
func (c *Controller) ExpireStalePendingOrders(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	var stale []*store.Order
	if err := c.store.DB().WithContext(ctx).
		Where("status = ? AND created_at < ?", store.StatusPending, cutoff).
		Find(&stale).Error; err != nil {
		return 0, err
	}
	count := 0
	for _, o := range stale {
		err := c.store.Transaction(ctx, func(dbTX *gorm.DB) error {
			fresh, err := c.store.GetByID(ctx, dbTX, o.ID)
			if err != nil {
				return err
			}
			if fresh.Status != store.StatusPending {
				return nil
			}
			fresh.Status = store.StatusExpired
			return c.store.SaveOrder(ctx, dbTX, fresh)
		})
		if err != nil {
			log.L(ctx).Errorf("failed to expire stale order %s: %s", o.UUID, err)
			continue
		}
		if c.payload != nil {
			if err := c.payload.Delete(ctx, o.UUID); err != nil {
				log.L(ctx).Errorf("failed to delete payload for order %s: %s", o.UUID, err)
			}
		}
		count++
	}
	return count, nil
}

// GetOrder fetches an order by uuid, enforcing channel read permission
// and (unless isAdmin) the caller's auth token (§6).
func (c *Controller) GetOrder(ctx context.Context, orderUUID, token string, isAdmin bool) (*store.Order, error) {
	order, err := c.store.GetByUUID(ctx, nil, orderUUID)
	if err != nil {
		return nil, err
	}
	ch, err := channels.Get(ctx, order.Channel)
	if err != nil {
		return nil, err
	}
	if err := channels.CheckOp(ctx, ch, channels.PermGet, isAdmin); err != nil {
		return nil, err
	}
	if !isAdmin {
		if err := c.VerifyAuthToken(ctx, orderUUID, token); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// ListOrders returns orders in the given fetch state, enforcing the
// channel's read permission when a specific channel is requested and
// the caller is not an admin (§6).
func (c *Controller) ListOrders(ctx context.Context, state store.OrderFetchState, p store.ListParams, isAdmin bool) ([]*store.Order, error) {
	if p.Channel != nil && !isAdmin {
		ch, err := channels.Get(ctx, *p.Channel)
		if err != nil {
			return nil, err
		}
		if err := channels.CheckOp(ctx, ch, channels.PermGet, isAdmin); err != nil {
			return nil, err
		}
	}
	return c.store.ListOrders(ctx, state, p)
}

// OrderForDownload resolves the order publishing tx_seq_num, enforcing
// its channel's read permission, for the GET /message/<tx_seq_num>
// payload-stream route (§6).
func (c *Controller) OrderForDownload(ctx context.Context, txSeqNum int64, isAdmin bool) (*store.Order, error) {
	order, err := c.store.GetByTxSeqNum(ctx, txSeqNum)
	if err != nil {
		return nil, err
	}
	ch, err := channels.Get(ctx, order.Channel)
	if err != nil {
		return nil, err
	}
	if err := channels.CheckOp(ctx, ch, channels.PermGet, isAdmin); err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder cancels a pending or paid order and deletes its payload
// file, per §4.6. Cancelling an already-terminal order returns
// ORDER_CANCELLATION_ERROR.
func (c *Controller) CancelOrder(ctx context.Context, orderUUID, token string, isAdmin bool) error {
	if !isAdmin {
		if err := c.VerifyAuthToken(ctx, orderUUID, token); err != nil {
			return err
		}
	}
	return c.store.Transaction(ctx, func(dbTX *gorm.DB) error {
		order, err := c.store.GetByUUID(ctx, dbTX, orderUUID)
		if err != nil {
			return err
		}
		if err := channels.CheckOp(ctx, mustChannel(ctx, order.Channel), channels.PermDelete, isAdmin); err != nil {
			return err
		}
		if order.Status != store.StatusPending && order.Status != store.StatusPaid {
			return i18n.NewError(ctx, msgs.MsgOrderCancellationError, order.Status)
		}
		now := time.Now()
		order.Status = store.StatusCancelled
		order.CancelledAt = &now
		if err := c.store.SaveOrder(ctx, dbTX, order); err != nil {
			return err
		}
		if c.payload != nil {
			return c.payload.Delete(ctx, order.UUID)
		}
		return nil
	})
}

// BumpOrder issues an additional invoice against a pending or paid
// order, per §4.6's bid-bump rule.
func (c *Controller) BumpOrder(ctx context.Context, orderUUID string, bidIncrease int64, token string, isAdmin bool) (*store.Invoice, error) {
	if !isAdmin {
		if err := c.VerifyAuthToken(ctx, orderUUID, token); err != nil {
			return nil, err
		}
	}

	var inv *store.Invoice
	var promoted bool
	var channel int
	err := c.store.Transaction(ctx, func(dbTX *gorm.DB) error {
		order, err := c.store.GetByUUID(ctx, dbTX, orderUUID)
		if err != nil {
			return err
		}
		if order.Status != store.StatusPending && order.Status != store.StatusPaid {
			return i18n.NewError(ctx, msgs.MsgOrderBumpError, order.Status)
		}
		channel = order.Channel

		inv, err = c.issueInvoice(ctx, dbTX, order, bidIncrease)
		if err != nil {
			return err
		}
		if err := c.adjustBids(ctx, dbTX, order); err != nil {
			return err
		}
		promoted, err = c.maybeMarkOrderAsPaid(ctx, dbTX, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	if promoted {
		c.triggerTxStart(ctx, channel)
	}
	return inv, nil
}

func mustChannel(ctx context.Context, id int) channels.Channel {
	ch, _ := channels.Get(ctx, id)
	return ch
}

// HandleTxConfirmation appends Tx confirmations for the given region
// numbers against the order identified by txSeqNum, demoting
// *transmitting* to *confirming* at once and re-evaluating the
// sent/received criteria (§4.6).
func (c *Controller) HandleTxConfirmation(ctx context.Context, txSeqNum int64, regionNumbers []int) error {
	order, err := c.store.GetByTxSeqNum(ctx, txSeqNum)
	if err != nil {
		return err
	}

	var reachedTerminal, demoted bool
	err = c.store.Transaction(ctx, func(dbTX *gorm.DB) error {
		fresh, err := c.store.GetByID(ctx, dbTX, order.ID)
		if err != nil {
			return err
		}
		for _, num := range regionNumbers {
			region, err := regions.ByNumber(ctx, num)
			if err != nil {
				return err
			}
			if _, err := c.store.AppendConfirmation(ctx, dbTX, store.KindTx, fresh.ID, region.ID, false); err != nil {
				return err
			}
		}
		if fresh.Status == store.StatusTransmitting {
			fresh.Status = store.StatusConfirming
			if err := c.store.SaveOrder(ctx, dbTX, fresh); err != nil {
				return err
			}
			demoted = true
		}
		reachedTerminal, err = c.evaluateSentReceived(ctx, dbTX, fresh)
		return err
	})
	if err != nil {
		return err
	}
	if reachedTerminal {
		c.endTransmission(ctx, order)
	} else if demoted {
		// The transmitting->confirming demotion itself releases the
		// channel for the next order (§4.7's "a Tx confirmation that
		// releases a channel" trigger), even though this order hasn't
		// reached a terminal transmission state yet. Skipped above
		// when reachedTerminal, since endTransmission's tx_end already
		// re-runs tx_start for this channel.
		c.triggerTxStart(ctx, order.Channel)
	}
	return nil
}

// HandleRxConfirmation appends a single Rx confirmation against the
// order identified by txSeqNum and re-evaluates sent/received (§4.6).
func (c *Controller) HandleRxConfirmation(ctx context.Context, txSeqNum int64, regionNumber int) error {
	order, err := c.store.GetByTxSeqNum(ctx, txSeqNum)
	if err != nil {
		return err
	}
	region, err := regions.ByNumber(ctx, regionNumber)
	if err != nil {
		return err
	}

	var reachedTerminal bool
	err = c.store.Transaction(ctx, func(dbTX *gorm.DB) error {
		fresh, err := c.store.GetByID(ctx, dbTX, order.ID)
		if err != nil {
			return err
		}
		if _, err := c.store.AppendConfirmation(ctx, dbTX, store.KindRx, fresh.ID, region.ID, false); err != nil {
			return err
		}
		reachedTerminal, err = c.evaluateSentReceived(ctx, dbTX, fresh)
		return err
	})
	if err != nil {
		return err
	}
	if reachedTerminal {
		c.endTransmission(ctx, order)
	}
	return nil
}

// evaluateSentReceived re-checks the sent/received criteria against an
// order's current confirmation rows, synthesizing presumed Rx rows for
// non-receiver regions the moment received is reached (§4.6). Both
// criteria are idempotent: re-evaluating an order already in the target
// state is a no-op. Returns true the moment this call newly drives the
// order into *sent* or into *received* — §4.7 calls tx_end on either
// transition, and a single call (e.g. all Tx confirmations arriving at
// once) can legitimately reach *sent* without yet reaching *received*.
func (c *Controller) evaluateSentReceived(ctx context.Context, dbTX *gorm.DB, order *store.Order) (bool, error) {
	if order.Status == store.StatusReceived {
		return false, nil
	}
	if order.Status != store.StatusTransmitting && order.Status != store.StatusConfirming && order.Status != store.StatusSent {
		return false, nil
	}

	var newlySent bool
	if order.Status != store.StatusSent {
		txConfirmed, err := c.store.ConfirmedRegions(ctx, dbTX, store.KindTx, order.ID)
		if err != nil {
			return false, err
		}
		if regions.Superset(order.RegionCode, txConfirmed) {
			order.Status = store.StatusSent
			if err := c.store.SaveOrder(ctx, dbTX, order); err != nil {
				return false, err
			}
			newlySent = true
		}
	}

	if order.Status != store.StatusSent {
		return false, nil
	}

	monitored := regions.MonitoredRxRegionIDs()
	rxConfirmed, err := c.store.ConfirmedRegions(ctx, dbTX, store.KindRx, order.ID)
	if err != nil {
		return false, err
	}
	required := regions.Intersect(order.RegionCode, monitored)
	requiredSet := make(map[int]bool, len(required))
	for _, id := range required {
		requiredSet[id] = true
	}
	if !supersetOf(requiredSet, rxConfirmed) {
		return newlySent, nil
	}

	for _, id := range regions.Decode(order.RegionCode) {
		if monitored[id] {
			continue
		}
		if _, err := c.store.AppendConfirmation(ctx, dbTX, store.KindRx, order.ID, id, true); err != nil {
			return false, err
		}
	}

	order.Status = store.StatusReceived
	if err := c.store.SaveOrder(ctx, dbTX, order); err != nil {
		return false, err
	}
	return true, nil
}

func supersetOf(required, have map[int]bool) bool {
	for id := range required {
		if !have[id] {
			return false
		}
	}
	return true
}

// endTransmission notifies the scheduler that an order reached a
// terminal transmission state, outside the confirmation transaction so
// tx_end's own transaction (releasing the channel, assigning the next
// order) doesn't nest inside it.
func (c *Controller) endTransmission(ctx context.Context, order *store.Order) {
	if c.sched == nil {
		return
	}
	if err := c.sched.TxEnd(ctx, order); err != nil {
		log.L(ctx).Errorf("tx_end failed for order %s: %s", order.UUID, err)
	}
}
