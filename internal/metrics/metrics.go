/*******************************************************************************
* Copyright 2024 Stefan Majewsky <majewsky@gmx.net>
* SPDX-License-Identifier: GPL-3.0-only
* Refer to the file "LICENSE" for details.
*******************************************************************************/

// Package metrics owns the Prometheus counters and the HTTP endpoint that
// exposes them.
package metrics

import (
	"context"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sapcc/go-bits/httpext"
)

var (
	// ConnectionsTotal counts accepted connections by protocol (LDAP or LDAPS).
	ConnectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "femtoldap_connections_total",
		Help: "Total number of connections.",
	}, []string{"protocol"})

	// SuccessfulBindsTotal counts bind requests that authenticated.
	SuccessfulBindsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "femtoldap_successful_binds_total",
		Help: "Total number of successful bind requests.",
	})

	// FailedBindsTotal counts bind requests that did not authenticate.
	FailedBindsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "femtoldap_failed_binds_total",
		Help: "Total number of failed bind requests.",
	})

	// RequestsTotal counts requests by kind (bind, unbind, search, unsupported).
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "femtoldap_requests_total",
		Help: "Total number of requests.",
	}, []string{"kind"})
)

// ListenAndServe runs the metrics endpoint until ctx expires.
func ListenAndServe(ctx context.Context, addr string) error {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler())
	return httpext.ListenAndServeContext(ctx, addr, router)
}
