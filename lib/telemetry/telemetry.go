// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package telemetry

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector receives instrument I/O events from the controller.
//
// Hooks run inline with instrument commands and must not block.
type Collector interface {
	IncCommand(op string)
	IncFailure(op string)
	SetConnected(connected bool)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncCommand(string)  {}
func (noopCollector) IncFailure(string)  {}
func (noopCollector) SetConnected(bool) {}

// PrometheusCollector exposes instrument I/O counters via Prometheus.
type PrometheusCollector struct {
	commands  *prometheus.CounterVec
	failures  *prometheus.CounterVec
	connected prometheus.Gauge
}

var (
	metricsLock    sync.Mutex
	commandCounter *prometheus.CounterVec
	failureCounter *prometheus.CounterVec
	connectedGauge prometheus.Gauge
)

// NewPrometheusCollector registers the metrics with reg, or with the default
// registerer when reg is nil. Metrics already registered are reused.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	metricsLock.Lock()
	defer metricsLock.Unlock()

	if commandCounter == nil {
		c, err := registerCounter(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freqsynth_instrument_commands_total",
			Help: "Number of instrument writes and queries issued.",
		}, []string{"op"}))
		if err != nil {
			return nil, err
		}
		commandCounter = c
	}
	if failureCounter == nil {
		c, err := registerCounter(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "freqsynth_instrument_failures_total",
			Help: "Number of failed instrument operations.",
		}, []string{"op"}))
		if err != nil {
			return nil, err
		}
		failureCounter = c
	}
	if connectedGauge == nil {
		g := prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "freqsynth_instrument_connected",
			Help: "1 while an instrument session is open.",
		})
		if err := reg.Register(g); err != nil {
			var already prometheus.AlreadyRegisteredError
			if !errors.As(err, &already) {
				return nil, err
			}
			existing, ok := already.ExistingCollector.(prometheus.Gauge)
			if !ok {
				return nil, err
			}
			g = existing
		}
		connectedGauge = g
	}

	return &PrometheusCollector{
		commands:  commandCounter,
		failures:  failureCounter,
		connected: connectedGauge,
	}, nil
}

func registerCounter(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		return existing, nil
	}
	return c, nil
}

// IncCommand counts an issued write or query.
func (p *PrometheusCollector) IncCommand(op string) {
	if p == nil || p.commands == nil {
		return
	}
	p.commands.WithLabelValues(op).Inc()
}

// IncFailure counts a failed operation.
func (p *PrometheusCollector) IncFailure(op string) {
	if p == nil || p.failures == nil {
		return
	}
	p.failures.WithLabelValues(op).Inc()
}

// SetConnected records whether a session is open.
func (p *PrometheusCollector) SetConnected(connected bool) {
	if p == nil || p.connected == nil {
		return
	}
	if connected {
		p.connected.Set(1)
	} else {
		p.connected.Set(0)
	}
}
