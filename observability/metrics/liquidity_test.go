package metrics

import (
	"math/big"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLiquidityMetrics(t *testing.T) {
	m := Liquidity()
	require.Same(t, m, Liquidity())

	before := testutil.ToFloat64(m.rejections.WithLabelValues("limit_exceeded"))
	m.ObserveOperation("withdraw", "limit_exceeded")
	m.ObserveOperation("withdraw", "")
	require.Equal(t, before+1, testutil.ToFloat64(m.rejections.WithLabelValues("limit_exceeded")))
	require.GreaterOrEqual(t, testutil.ToFloat64(m.operations.WithLabelValues("withdraw", "success")), 1.0)

	minted := testutil.ToFloat64(m.rewardsMinted)
	m.ObserveBatch(7, 2, big.NewInt(40), time.Millisecond)
	require.Equal(t, minted+40, testutil.ToFloat64(m.rewardsMinted))
	require.Equal(t, 7.0, testutil.ToFloat64(m.currentEpoch))

	m.ObserveHTTP("/v1/totals", 404)
	require.GreaterOrEqual(t, testutil.ToFloat64(m.httpRequests.WithLabelValues("/v1/totals", "4xx")), 1.0)

	var nilMetrics *LiquidityMetrics
	nilMetrics.ObserveOperation("deposit", "")
}
