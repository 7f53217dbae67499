package app

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/segyhp/collections-engine/internal/config"
)

func TestDefaultSettings(t *testing.T) {
	tests := []struct {
		name            string
		cfg             config.CollectionsConfig
		expectedMinDays int
		expectedHigh    decimal.Decimal
	}{
		{
			name:            "configured fallbacks",
			cfg:             config.CollectionsConfig{DefaultMinDaysOverdue: 5, DefaultHighValueThreshold: "2500", DefaultCurrency: "COP"},
			expectedMinDays: 5,
			expectedHigh:    decimal.NewFromInt(2500),
		},
		{
			name:            "zero min days keeps built-in value",
			cfg:             config.CollectionsConfig{DefaultHighValueThreshold: "not-a-number"},
			expectedMinDays: 1,
			expectedHigh:    decimal.Zero,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings(tt.cfg)

			assert.Equal(t, tt.expectedMinDays, s.MinDaysOverdue)
			assert.True(t, tt.expectedHigh.Equal(s.HighValueThreshold))
			assert.Equal(t, tt.cfg.DefaultCurrency, s.Currency)
			assert.True(t, s.AutoResolvePaid)
		})
	}
}
