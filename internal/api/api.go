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

// Package api is the HTTP request surface of §6: route registration,
// request decoding, and response envelopes over the order lifecycle
// engine. Multipart parsing and file storage live here only as a thin
// pass-through to internal/payload — the spec calls that surface out
// of scope beyond the contract the core consumes from it.
package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/hyperledger/firefly-common/pkg/log"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	prommiddleware "gitlab.com/hfuss/mux-prometheus/pkg/middleware"

	"github.com/Blockstream/satellite-api/internal/config"
	"github.com/Blockstream/satellite-api/internal/invoices"
	"github.com/Blockstream/satellite-api/internal/orders"
	"github.com/Blockstream/satellite-api/internal/payload"
)

// Deps is everything a handler needs, deliberately narrower than
// *engine.Engine so handlers stay testable against fakes (design note
// §9's "explicit request structs" extended to the dependency set).
type Deps struct {
	Orders  *orders.Controller
	Charge  *invoices.ChargeClient
	Payload *payload.Store
	Cfg     *config.Config
}

// NewRouter builds the public-facing gorilla/mux router: every route
// in §6's table, plus its /admin/ twin that bypasses channel
// permission checks, instrumented with mux-prometheus and wrapped in
// CORS the way the teacher's own HTTP surfaces are.
func NewRouter(d Deps) http.Handler {
	r := mux.NewRouter()

	instrumentation := prommiddleware.NewDefaultInstrumentation("satqueue", "api", nil)
	r.Use(instrumentation.Middleware)

	registerOrderRoutes(r, d, false)
	admin := r.PathPrefix("/admin").Subrouter()
	registerOrderRoutes(admin, d, true)

	// Transmitter-fleet-facing and issuer-facing routes have no /admin/
	// twin — they are not user/admin operations, they're the contract
	// the downstream transmitters and the invoice issuer consume (§6).
	r.HandleFunc("/order/tx/{txSeqNum}", d.handleTxConfirm()).Methods(http.MethodPost)
	r.HandleFunc("/order/rx/{txSeqNum}", d.handleRxConfirm()).Methods(http.MethodPost)
	r.HandleFunc("/callback/{lid}/{token}", d.handleCallback()).Methods(http.MethodPost)

	r.HandleFunc("/info", d.handleInfo(false)).Methods(http.MethodGet)
	r.HandleFunc("/admin/info", d.handleInfo(true)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type", "X-Auth-Token"},
	})
	return withRequestLogging(c.Handler(r))
}

// NewAdminRouter builds the router bound to cfg.AdminAddr: the same
// admin operations NewRouter exposes under /admin/ on the public
// listener, served here at the path root for operators reaching the
// control plane over an internal-only network rather than through the
// public-facing prefix.
func NewAdminRouter(d Deps) http.Handler {
	r := mux.NewRouter()
	instrumentation := prommiddleware.NewDefaultInstrumentation("satqueue", "admin", nil)
	r.Use(instrumentation.Middleware)

	registerOrderRoutes(r, d, true)
	r.HandleFunc("/info", d.handleInfo(true)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return withRequestLogging(r)
}

// registerOrderRoutes binds the user/admin order routes in §6's table
// onto r, closing over isAdmin so the /admin/ subrouter bypasses
// channel permission checks without duplicating handler bodies.
func registerOrderRoutes(r *mux.Router, d Deps, isAdmin bool) {
	r.HandleFunc("/order", d.handleCreateOrder(isAdmin)).Methods(http.MethodPost)
	r.HandleFunc("/order/{uuid}", d.handleGetOrder(isAdmin)).Methods(http.MethodGet)
	r.HandleFunc("/order/{uuid}", d.handleDeleteOrder(isAdmin)).Methods(http.MethodDelete)
	r.HandleFunc("/order/{uuid}/bump", d.handleBumpOrder(isAdmin)).Methods(http.MethodPost)
	r.HandleFunc("/orders/{state}", d.handleListOrders(isAdmin)).Methods(http.MethodGet)
	r.HandleFunc("/message/{txSeqNum}", d.handleDownloadMessage(isAdmin)).Methods(http.MethodGet)
}

// withRequestLogging wraps h with a request-scoped logger bound via
// firefly-common's log.WithLogField (a "route" field), the way the teacher binds a "role"
// field onto its long-lived goroutines.
func withRequestLogging(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := log.WithLogField(r.Context(), "route", r.URL.Path)
		h.ServeHTTP(w, r.WithContext(ctx))
		log.L(ctx).Debugf("%s %s completed in %s", r.Method, r.URL.Path, time.Since(start))
	})
}
