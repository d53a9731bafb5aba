package jxl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsForLossless(t *testing.T) {
	s := settingsFor(LosslessOptions(7))
	assert.True(t, s.lossless)
	assert.Equal(t, []frameOption{
		{settingModular, 1},
		{settingResponsive, 0},
		{settingEffort, 7},
	}, s.options)
	_, ok := s.option(settingGroupOrder)
	assert.False(t, ok)
}

func TestSettingsForProgressiveLossless(t *testing.T) {
	s := settingsFor(ProgressiveLosslessOptions(9, 256, 128))
	assert.True(t, s.lossless)
	assert.Equal(t, []frameOption{
		{settingModular, 1},
		{settingResponsive, 1},
		{settingGroupOrder, 1},
		{settingGroupOrderCenterX, 256},
		{settingGroupOrderCenterY, 128},
		{settingEffort, 9},
	}, s.options)
}

func TestSettingsForVarDCT(t *testing.T) {
	tests := []struct {
		name     string
		opts     EncodeOptions
		lossless bool
		ac       bool
	}{
		{"lossy", ProgressiveVarDCTOptions(7, 1.0, -1, -1, 2, false), false, false},
		{"lossy with ac", ProgressiveVarDCTOptions(7, 1.5, -1, -1, 1, true), false, true},
		{"distance zero", ProgressiveVarDCTOptions(7, 0, -1, -1, 0, false), true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := settingsFor(tt.opts)
			assert.Equal(t, tt.lossless, s.lossless)
			assert.Equal(t, tt.opts.Distance, s.distance)

			modular, ok := s.option(settingModular)
			require.True(t, ok)
			assert.Equal(t, int64(0), modular)

			dc, ok := s.option(settingProgressiveDC)
			require.True(t, ok)
			assert.Equal(t, int64(tt.opts.ProgressiveDC), dc)

			_, ok = s.option(settingProgressiveAC)
			assert.Equal(t, tt.ac, ok)

			cx, _ := s.option(settingGroupOrderCenterX)
			assert.Equal(t, int64(-1), cx)
		})
	}
}

func TestSettingsEffortIsLast(t *testing.T) {
	for _, opts := range []EncodeOptions{
		LosslessOptions(3),
		ProgressiveLosslessOptions(3, -1, -1),
		ProgressiveVarDCTOptions(3, 1, -1, -1, 2, true),
		{Mode: EncodeMode(42), Effort: 3},
	} {
		s := settingsFor(opts)
		require.NotEmpty(t, s.options, opts.Mode.String())
		assert.Equal(t, frameOption{settingEffort, 3}, s.options[len(s.options)-1], opts.Mode.String())
	}
}

func TestSettingsUnknownModeIsLossless(t *testing.T) {
	s := settingsFor(EncodeOptions{Mode: EncodeMode(42), Effort: 5, Distance: 3})
	assert.True(t, s.lossless)
	assert.Zero(t, s.distance)
	assert.Len(t, s.options, 1)
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, ProgressiveLossless, o.Mode)
	assert.Equal(t, 7, o.Effort)
	assert.Equal(t, -1, o.CenterX)
	assert.Equal(t, -1, o.CenterY)
	assert.True(t, o.IsLossless())
	assert.False(t, ProgressiveVarDCTOptions(7, 1, -1, -1, 2, false).IsLossless())
}

func TestParseEncodeMode(t *testing.T) {
	for _, m := range []EncodeMode{Lossless, ProgressiveLossless, ProgressiveVarDCT} {
		got, err := ParseEncodeMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
	_, err := ParseEncodeMode("lossless")
	assert.Error(t, err)
	_, err = ParseEncodeMode("")
	assert.Error(t, err)
	assert.Equal(t, "EncodeMode(9)", EncodeMode(9).String())
}
