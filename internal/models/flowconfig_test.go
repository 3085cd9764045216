package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlowConfig(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "sequential only",
			raw:  `{"sequence":[2,5,7],"rules":{}}`,
		},
		{
			name: "all rule kinds",
			raw:  `{"sequence":[2,5],"rules":{"specific":7,"percentage":0.5}}`,
		},
		{
			name: "empty config",
			raw:  `{}`,
		},
		{
			name:    "malformed json",
			raw:     `{"sequence":[2,`,
			wantErr: true,
		},
		{
			name:    "percentage above one",
			raw:     `{"rules":{"percentage":1.5}}`,
			wantErr: true,
		},
		{
			name:    "negative percentage",
			raw:     `{"rules":{"percentage":-0.1}}`,
			wantErr: true,
		},
		{
			name:    "duplicate sequence approver",
			raw:     `{"sequence":[2,5,2]}`,
			wantErr: true,
		},
		{
			name:    "non-positive sequence approver",
			raw:     `{"sequence":[0]}`,
			wantErr: true,
		},
		{
			name:    "non-positive specific approver",
			raw:     `{"rules":{"specific":-1}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseFlowConfig(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidConfig)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, cfg)
		})
	}
}

func TestFlowConfigBoundaryPercentages(t *testing.T) {
	// 0 and 1 are both valid thresholds
	for _, raw := range []string{`{"rules":{"percentage":0}}`, `{"rules":{"percentage":1}}`} {
		cfg, err := ParseFlowConfig(raw)
		require.NoError(t, err)
		assert.True(t, cfg.HasPercentageRule())
	}
}

func TestFlowConfigRulePresence(t *testing.T) {
	cfg, err := ParseFlowConfig(`{"sequence":[3],"rules":{"specific":3}}`)
	require.NoError(t, err)

	assert.True(t, cfg.HasSpecificRule())
	assert.False(t, cfg.HasPercentageRule())
	assert.Equal(t, []int64{3}, cfg.Sequence)
}
