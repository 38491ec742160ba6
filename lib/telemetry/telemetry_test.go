// Copyright (c) 2024–2026 The freqsynth developers. All rights reserved.
// Project site: https://github.com/gotmc/freqsynth
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func resetMetrics() {
	metricsLock.Lock()
	defer metricsLock.Unlock()
	commandCounter = nil
	failureCounter = nil
	connectedGauge = nil
}

func TestNoopCollector(t *testing.T) {
	collector := Noop()
	require.NotNil(t, collector)
	collector.IncCommand("write")
	collector.IncFailure("query")
	collector.SetConnected(true)
}

func TestPrometheusCollectorCountsAndReuses(t *testing.T) {
	resetMetrics()
	reg := prometheus.NewRegistry()
	collector, err := NewPrometheusCollector(reg)
	require.NoError(t, err)

	collector.IncCommand("write")
	collector.IncCommand("write")
	collector.IncCommand("query")
	collector.IncFailure("query")
	collector.SetConnected(true)

	families := gather(t, reg)
	require.Equal(t, 2.0, counterValue(t, families["freqsynth_instrument_commands_total"], "write"))
	require.Equal(t, 1.0, counterValue(t, families["freqsynth_instrument_commands_total"], "query"))
	require.Equal(t, 1.0, counterValue(t, families["freqsynth_instrument_failures_total"], "query"))
	require.Equal(t, 1.0, families["freqsynth_instrument_connected"].Metric[0].GetGauge().GetValue())

	again, err := NewPrometheusCollector(reg)
	require.NoError(t, err)
	require.Same(t, collector.commands, again.commands)
	again.SetConnected(false)

	families = gather(t, reg)
	require.Equal(t, 0.0, families["freqsynth_instrument_connected"].Metric[0].GetGauge().GetValue())
}

func TestNilPrometheusCollector(t *testing.T) {
	var p *PrometheusCollector
	p.IncCommand("write")
	p.IncFailure("write")
	p.SetConnected(true)
}

func gather(t *testing.T, reg *prometheus.Registry) map[string]*dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string]*dto.MetricFamily, len(mfs))
	for _, mf := range mfs {
		out[mf.GetName()] = mf
	}
	return out
}

func counterValue(t *testing.T, mf *dto.MetricFamily, op string) float64 {
	t.Helper()
	require.NotNil(t, mf)
	for _, m := range mf.Metric {
		for _, l := range m.GetLabel() {
			if l.GetName() == "op" && l.GetValue() == op {
				return m.GetCounter().GetValue()
			}
		}
	}
	t.Fatalf("no %s sample for op=%s", mf.GetName(), op)
	return 0
}
