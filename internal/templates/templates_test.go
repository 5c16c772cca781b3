package templates

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatFee(t *testing.T) {
	r := New(nil)
	cases := map[int]string{
		0:       "0",
		999:     "999",
		35000:   "35,000",
		1250000: "1,250,000",
	}
	for fee, want := range cases {
		require.Equal(t, want, r.FormatFee(fee))
	}
}

func TestFeeAmount_EveryVariantCarriesFee(t *testing.T) {
	for i := range feeAmountVariants {
		r := New(func(int) int { return i })
		got := r.FeeAmount(35000)
		require.Contains(t, got, "35,000đ")
		require.NotContains(t, got, "%!")
	}
}

func TestFeeAmount_FirstVariant(t *testing.T) {
	r := New(func(int) int { return 0 })
	require.Equal(t, "Dạ phí ship đơn hiện tại của mình là 35,000đ ạ.", r.FeeAmount(35000))
}

func TestFeeAmount_OutOfRangePickFallsBack(t *testing.T) {
	r := New(func(n int) int { return n + 5 })
	require.Equal(t, "Dạ phí ship đơn hiện tại của mình là 0đ ạ.", r.FeeAmount(0))
}

func TestFeeAmount_RandomPickStaysInCatalog(t *testing.T) {
	r := New(nil)
	for i := 0; i < 50; i++ {
		got := r.FeeAmount(42000)
		require.True(t, strings.Contains(got, "42,000đ"), got)
	}
}

func TestEscalation(t *testing.T) {
	require.Equal(t, EscalateFreeshipLoyal, Escalation(true))
	require.Equal(t, EscalateFreeshipNew, Escalation(false))
	require.NotEqual(t, Escalation(true), Escalation(false))
}
