package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProvider_ParsesBothRates(t *testing.T) {
	p, err := NewProvider("12.60", "12.40")
	require.NoError(t, err)

	assert.Equal(t, "12.6", p.DepositRate().BobPerUsdc.String())
	assert.Equal(t, "12.4", p.WithdrawalRate().BobPerUsdc.String())
	assert.Equal(t, DirectionDeposit, p.DepositRate().Direction)
	assert.Equal(t, DirectionWithdrawal, p.WithdrawalRate().Direction)
}

func TestNewProvider_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name       string
		deposit    string
		withdrawal string
	}{
		{name: "non-numeric deposit", deposit: "abc", withdrawal: "12.40"},
		{name: "non-numeric withdrawal", deposit: "12.60", withdrawal: "12,40"},
		{name: "zero deposit", deposit: "0", withdrawal: "12.40"},
		{name: "negative withdrawal", deposit: "12.60", withdrawal: "-1"},
		{name: "empty deposit", deposit: "", withdrawal: "12.40"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewProvider(tt.deposit, tt.withdrawal)
			assert.Error(t, err)
		})
	}
}

func TestRateDisplay(t *testing.T) {
	p, err := NewProvider("12.60", "12.40")
	require.NoError(t, err)

	assert.Equal(t, "1 USDC = 12.6 BOB", p.DepositRate().Display())
	assert.Equal(t, "1 USDC = 12.4 BOB", p.WithdrawalRate().Display())
}
