package ratelimit

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLimiter_DisabledAlwaysAllows(t *testing.T) {
	l := New(Config{})
	for range 100 {
		require.True(t, l.Allow("https://example.com/a"))
	}
}

func TestLimiter_BurstThenReject(t *testing.T) {
	l := New(Config{PerHostRPS: 0.001, Burst: 2})

	require.True(t, l.Allow("https://example.com/1"))
	require.True(t, l.Allow("https://EXAMPLE.com/2"))
	require.False(t, l.Allow("https://example.com:443/3"))
}

func TestLimiter_DifferentHosts(t *testing.T) {
	l := New(Config{PerHostRPS: 0.001, Burst: 1})

	require.True(t, l.Allow("https://a.com/1"))
	require.False(t, l.Allow("https://a.com/2"))
	require.True(t, l.Allow("https://b.com/1"))
}

func TestLimiter_Refills(t *testing.T) {
	l := New(Config{PerHostRPS: 20, Burst: 1})

	require.True(t, l.Allow("https://test.com"))
	require.False(t, l.Allow("https://test.com"))
	require.Eventually(t, func() bool {
		return l.Allow("https://test.com")
	}, time.Second, 10*time.Millisecond)
}

func TestLimiter_ResetsWhenHostTableFull(t *testing.T) {
	l := New(Config{PerHostRPS: 0.001, Burst: 1, MaxHosts: 2})

	require.True(t, l.Allow("https://a.com"))
	require.True(t, l.Allow("https://b.com"))
	require.True(t, l.Allow("https://c.com"))
	// a.com was evicted with the reset, so its bucket starts full again.
	require.True(t, l.Allow("https://a.com"))
}

func TestLimiter_RejectionsDoNotAddSeriesPerHost(t *testing.T) {
	l := New(Config{PerHostRPS: 0.001, Burst: 1, MaxHosts: 10000})

	for i := range 5000 {
		target := fmt.Sprintf("https://h%d.attacker.example/", i)
		require.True(t, l.Allow(target))
		require.False(t, l.Allow(target))
	}

	series, err := testutil.GatherAndCount(prometheus.DefaultGatherer, "unfurl_rate_limited_total")
	require.NoError(t, err)
	require.Equal(t, 1, series)
}

func TestHostOf(t *testing.T) {
	require.Equal(t, "example.com", hostOf("https://Example.COM:8443/x"))
	require.Equal(t, "unknown", hostOf("not a url"))
	require.Equal(t, "unknown", hostOf("http://[::1"))
}
