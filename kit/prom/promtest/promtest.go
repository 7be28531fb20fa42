// Package promtest provides helpers for extracting prometheus metrics in
// tests. Collectors are registered on a registry and read back with
// Gather; nothing goes over HTTP.
package promtest

import (
	"fmt"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// MustGather calls g.Gather and calls tb.Fatal if there was an error.
func MustGather(tb testing.TB, g prometheus.Gatherer) []*dto.MetricFamily {
	tb.Helper()

	mfs, err := g.Gather()
	if err != nil {
		tb.Fatalf("error while gathering metrics: %v", err)
		return nil
	}
	return mfs
}

// FindMetric returns the first metric of the family called name whose
// labels equal labels, or nil.
func FindMetric(mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	_, m := findMetric(mfs, name, labels)
	return m
}

// MustFindMetric is FindMetric that fails tb, listing what was available,
// when nothing matches.
func MustFindMetric(tb testing.TB, mfs []*dto.MetricFamily, name string, labels map[string]string) *dto.Metric {
	tb.Helper()

	fam, m := findMetric(mfs, name, labels)
	if fam == nil {
		names := make([]string, 0, len(mfs))
		for _, mf := range mfs {
			names = append(names, mf.GetName())
		}
		tb.Fatalf("metric family %q not found; have %s", name, strings.Join(names, ", "))
		return nil
	}
	if m == nil {
		var sets []string
		for _, m := range fam.Metric {
			pairs := make([]string, len(m.Label))
			for i, l := range m.Label {
				pairs[i] = fmt.Sprintf("%s=%q", l.GetName(), l.GetValue())
			}
			sets = append(sets, "{"+strings.Join(pairs, ",")+"}")
		}
		tb.Fatalf("metric family %q has no metric with labels %v; have %s", name, labels, strings.Join(sets, " "))
		return nil
	}
	return m
}

// MustValue gathers g and returns the value of the matching counter or
// gauge.
func MustValue(tb testing.TB, g prometheus.Gatherer, name string, labels map[string]string) float64 {
	tb.Helper()

	m := MustFindMetric(tb, MustGather(tb, g), name, labels)
	switch {
	case m.Counter != nil:
		return m.Counter.GetValue()
	case m.Gauge != nil:
		return m.Gauge.GetValue()
	case m.Untyped != nil:
		return m.Untyped.GetValue()
	}
	tb.Fatalf("metric %q is neither a counter nor a gauge", name)
	return 0
}

func findMetric(mfs []*dto.MetricFamily, name string, labels map[string]string) (*dto.MetricFamily, *dto.Metric) {
	var fam *dto.MetricFamily
	for _, mf := range mfs {
		if mf.GetName() == name {
			fam = mf
			break
		}
	}
	if fam == nil {
		return nil, nil
	}

	for _, m := range fam.Metric {
		if len(m.Label) != len(labels) {
			continue
		}
		match := true
		for _, l := range m.Label {
			if labels[l.GetName()] != l.GetValue() {
				match = false
				break
			}
		}
		if match {
			return fam, m
		}
	}
	return fam, nil
}
