package metrics

import (
	"encoding/json"

	"github.com/prometheus/client_golang/prometheus"
	gocl "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// MetricFamiliesChecker searches a gathered registry in tests.
type MetricFamiliesChecker struct {
	families []*gocl.MetricFamily
	t        require.TestingT
}

// NewMetricChecker gathers the registry, failing the test if gathering fails.
func NewMetricChecker(t require.TestingT, reg *prometheus.Registry) *MetricFamiliesChecker {
	families, err := reg.Gather()
	require.NoError(t, err, "must gather metrics")
	return &MetricFamiliesChecker{families: families, t: t}
}

// FindByName returns the family with the given full name, failing the test if there is none.
func (m *MetricFamiliesChecker) FindByName(name string) *MetricFamilyChecker {
	for _, f := range m.families {
		if f.GetName() == name {
			return &MetricFamilyChecker{fam: f, t: m.t}
		}
	}
	require.FailNow(m.t, "cannot find metric family", "name: %s", name)
	return nil
}

// Has reports whether a family with the given name was gathered.
func (m *MetricFamiliesChecker) Has(name string) bool {
	for _, f := range m.families {
		if f.GetName() == name {
			return true
		}
	}
	return false
}

// Dump prints indented json-formatted metrics info, for easy debugging
func (m *MetricFamiliesChecker) Dump() string {
	outStr, _ := json.MarshalIndent(m.families, "  ", "  ")
	return string(outStr)
}

type MetricFamilyChecker struct {
	fam *gocl.MetricFamily
	t   require.TestingT
}

// FindByLabels returns the single metric carrying all the given labels.
// It fails the test if none or more than one match.
func (f *MetricFamilyChecker) FindByLabels(labels map[string]string) *gocl.Metric {
	var found *gocl.Metric
	for _, m := range f.fam.Metric {
		if hasAllLabels(m, labels) {
			require.Nil(f.t, found, "must not have found another metric with the same labels")
			found = m
		}
	}
	require.NotNil(f.t, found, "cannot find metric with labels %v", labels)
	return found
}

func hasAllLabels(m *gocl.Metric, labels map[string]string) bool {
	for k, v := range labels {
		found := false
		for _, lab := range m.Label {
			if lab.GetName() == k && lab.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
