package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/benchrig/benchrig/pkg/bench"
	"github.com/benchrig/benchrig/pkg/config"
	"github.com/benchrig/benchrig/pkg/domain"
)

func noop(*bench.Context, Params) error { return nil }

func benchWith(values map[string]any) *bench.Context {
	return bench.New(context.Background(), config.FromMap(values))
}

func TestExpand_StackedIterations(t *testing.T) {
	reg := New()
	reg.Suite("rf").
		Case("tx%d_band%v", noop).
		Iterate("tx", FromConfig("transceivers")).
		Iterate("band", Values(1, 3))

	plan, err := reg.Expand(benchWith(map[string]any{"transceivers": "2"}))
	require.NoError(t, err)

	assert.Equal(t, []string{
		"rf/tx0_band1", "rf/tx0_band3",
		"rf/tx1_band1", "rf/tx1_band3",
	}, plan.Keys())

	p := plan.Instances[2].Params
	assert.Equal(t, Params{{Name: "tx", Value: 1}, {Name: "band", Value: 1}}, p)
	assert.Equal(t, 1, p.Int("tx"))
	assert.Equal(t, "1", p.String("band"))
	assert.Equal(t, []any{1, 1}, p.Values())
	assert.Equal(t, map[string]any{"tx": 1, "band": 1}, p.Map())
}

func TestExpand_TwoInstancesFromStackedSingletons(t *testing.T) {
	reg := New()
	reg.Suite("s").
		Case("tx%d_%s", noop).
		Iterate("tx", Values(0, 1)).
		Iterate("mode", Values("cw"))

	plan, err := reg.Expand(benchWith(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"s/tx0_cw", "s/tx1_cw"}, plan.Keys())
}

func TestExpand_OrderAndAnnotations(t *testing.T) {
	reg := New()
	boot := reg.Suite("boot").SuiteCritical().Criteria(map[string]string{"voltage": "value > 3.0"})
	boot.Case("power_on", noop).Criteria(map[string]string{"voltage": "value > 3.2", "current": "value < 1"})
	boot.Case("uboot", noop).Critical()

	rf := reg.Suite("rf").Describe("RF calibration")
	rf.Case("tpm_check", nil).NotImplemented()
	rf.Case("spectrum", noop).Describe("sweep")

	plan, err := reg.Expand(benchWith(nil))
	require.NoError(t, err)
	require.Equal(t, []string{"boot/power_on", "boot/uboot", "rf/tpm_check", "rf/spectrum"}, plan.Keys())

	powerOn := plan.Instances[0]
	assert.Equal(t, domain.SuiteCritical, powerOn.Criticality, "suite criticality is inherited")
	assert.Equal(t, map[string]string{"voltage": "value > 3.2", "current": "value < 1"}, powerOn.Criteria)

	assert.Equal(t, domain.Critical, plan.Instances[1].Criticality)
	assert.Equal(t, map[string]string{"voltage": "value > 3.0"}, plan.Instances[1].Criteria)

	skipped := plan.Instances[2]
	assert.True(t, skipped.Skip)
	assert.Empty(t, skipped.Criteria)
	assert.Equal(t, domain.NotCritical, skipped.Criticality)

	assert.Equal(t, "sweep", plan.Instances[3].Description)
	assert.Equal(t, []string{"boot", "rf"}, reg.Suites())
	assert.Same(t, rf, reg.Suite("rf"))
}

func TestExpand_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(r *Registry)
		cfg   map[string]any
		is    error
	}{
		{
			name: "duplicate identifiers",
			build: func(r *Registry) {
				r.Suite("s").Case("tx%d", noop).Iterate("i", Values(1, 1))
			},
			is: domain.ErrConfiguration,
		},
		{
			name: "template missing verb arguments",
			build: func(r *Registry) {
				r.Suite("s").Case("tx%d_%d", noop).Iterate("i", Values(1))
			},
			is: domain.ErrConfiguration,
		},
		{
			name: "template with extra arguments",
			build: func(r *Registry) {
				r.Suite("s").Case("tx", noop).Iterate("i", Values(1))
			},
			is: domain.ErrConfiguration,
		},
		{
			name: "identifier with slash",
			build: func(r *Registry) {
				r.Suite("s").Case("a/%d", noop).Iterate("i", Values(1))
			},
			is: domain.ErrConfiguration,
		},
		{
			name: "missing required key",
			build: func(r *Registry) {
				r.Suite("s").RequireConfig("serial_port").Case("c", noop)
			},
			is: domain.ErrConfiguration,
		},
		{
			name: "iteration key missing",
			build: func(r *Registry) {
				r.Suite("s").Case("tx%d", noop).Iterate("tx", FromConfig("transceivers"))
			},
			is: domain.ErrConfiguration,
		},
		{
			name: "negative count",
			build: func(r *Registry) {
				r.Suite("s").Case("tx%d", noop).Iterate("tx", FromConfig("transceivers"))
			},
			cfg: map[string]any{"transceivers": -1},
			is:  domain.ErrConfiguration,
		},
		{
			name: "malformed criterion",
			build: func(r *Registry) {
				r.Suite("s").Case("c", noop).Criteria(map[string]string{"x": "value <"})
			},
			is: domain.ErrPredicate,
		},
		{
			name: "missing body",
			build: func(r *Registry) {
				r.Suite("s").Case("c", nil)
			},
			is: domain.ErrConfiguration,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := New()
			tt.build(reg)
			_, err := reg.Expand(benchWith(tt.cfg))
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.is)
		})
	}
}

func TestExpand_SameIDInDifferentSuites(t *testing.T) {
	reg := New()
	reg.Suite("a").Case("init", noop)
	reg.Suite("b").Case("init", noop)

	plan, err := reg.Expand(benchWith(nil))
	require.NoError(t, err)
	assert.Equal(t, 2, plan.Len())
}

func TestFromConfig(t *testing.T) {
	c := benchWith(map[string]any{
		"count":  3,
		"whole":  2.0,
		"list":   "(\"lo\", \"hi\")",
		"plain":  "a, b",
		"yaml":   []any{"x", "y"},
		"ratio":  1.5,
		"nested": map[string]any{},
	})

	tests := []struct {
		key  string
		want []any
	}{
		{"count", []any{0, 1, 2}},
		{"whole", []any{0, 1}},
		{"list", []any{"lo", "hi"}},
		{"plain", []any{"a", "b"}},
		{"yaml", []any{"x", "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := FromConfig(tt.key).Values(c)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := FromConfig("ratio").Values(c)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	_, err = FromConfig("nested").Values(c)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestExpand_EmptySourceYieldsNothing(t *testing.T) {
	reg := New()
	reg.Suite("s").Case("tx%d", noop).Iterate("tx", Range(0))
	reg.Suite("s").Case("after", noop)

	plan, err := reg.Expand(benchWith(nil))
	require.NoError(t, err)
	assert.Equal(t, []string{"s/after"}, plan.Keys())
}

func TestExpand_FuncSource(t *testing.T) {
	reg := New()
	reg.Suite("s").Case("ch%v", noop).Iterate("ch", Func(func(c *bench.Context) ([]any, error) {
		if c.Product == "" {
			return nil, errors.New("no product")
		}
		return []any{c.Product + "-1"}, nil
	}))

	_, err := reg.Expand(benchWith(nil))
	assert.ErrorContains(t, err, "no product")

	plan, err := reg.Expand(benchWith(map[string]any{"product": "boardA"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"s/chboardA-1"}, plan.Keys())
}

func TestPlan_Filter(t *testing.T) {
	reg := New()
	reg.Suite("rf").Case("tx%d", noop).Iterate("tx", Range(3))
	reg.Suite("boot").Case("power_on", noop)

	plan, err := reg.Expand(benchWith(nil))
	require.NoError(t, err)

	sub, err := plan.Filter("rf/tx[02]", "boot/*")
	require.NoError(t, err)
	assert.Equal(t, []string{"rf/tx0", "rf/tx2", "boot/power_on"}, sub.Keys())

	all, err := plan.Filter()
	require.NoError(t, err)
	assert.Equal(t, plan.Keys(), all.Keys())

	_, err = plan.Filter("rf/[")
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
