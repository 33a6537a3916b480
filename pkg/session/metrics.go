// Copyright (c) 2023 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package session

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/open-source-firmware/sedmgr/pkg/operation"
)

const outcomeSuccess = "success"

type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	timeouts   *prometheus.CounterVec
}

// NewMetrics creates the session metrics and registers them with reg when
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sedmgr_operations_total",
			Help: "Number of finished drive operations by outcome",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sedmgr_operation_duration_seconds",
			Help:    "Wall time of drive operations, including late completions",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}, []string{"operation"}),
		timeouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sedmgr_operation_timeouts_total",
			Help: "Number of drive operations that exceeded their timeout while still running",
		}, []string{"operation"}),
	}
	if reg != nil {
		reg.MustRegister(m.operations, m.duration, m.timeouts)
	}
	return m
}

func (m *Metrics) observe(res *operation.Result, seconds float64) {
	if m == nil {
		return
	}
	outcome := outcomeSuccess
	if res.Err != nil {
		outcome = strings.ToLower(string(operation.KindOf(res.Err)))
		if outcome == "" {
			outcome = "error"
		}
	}
	op := res.Op.String()
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) timedOut(op operation.Op) {
	if m == nil {
		return
	}
	m.timeouts.WithLabelValues(op.String()).Inc()
}
