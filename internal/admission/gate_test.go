package admission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testConfig() Config {
	return Config{
		MaxConnectionsPerIP:  2,
		MaxAttemptsPerWindow: 3,
		RateWindow:           time.Minute,
		MaxFailuresBeforeBan: 2,
		ShardCount:           4,
	}
}

func TestCanConnectAllowsUpToConnectionLimit(t *testing.T) {
	g := New(testConfig())
	const ip = "10.0.0.1"

	assert.True(t, g.CanConnect(ip))
	g.AddConnection(ip)
	assert.True(t, g.CanConnect(ip))
	g.AddConnection(ip)
	assert.False(t, g.CanConnect(ip))
}

func TestRemoveConnectionFreesSlot(t *testing.T) {
	g := New(testConfig())
	const ip = "10.0.0.2"

	g.AddConnection(ip)
	g.AddConnection(ip)
	assert.Equal(t, 2, g.ConnectionCount(ip))

	g.RemoveConnection(ip)
	assert.Equal(t, 1, g.ConnectionCount(ip))
}

func TestRemoveConnectionNeverGoesNegative(t *testing.T) {
	g := New(testConfig())
	const ip = "10.0.0.3"

	g.RemoveConnection(ip)
	assert.Equal(t, 0, g.ConnectionCount(ip))
}

func TestCanConnectEnforcesRateWindow(t *testing.T) {
	g := New(testConfig())
	const ip = "10.0.0.4"

	assert.True(t, g.CanConnect(ip))
	assert.True(t, g.CanConnect(ip))
	assert.True(t, g.CanConnect(ip))
	assert.False(t, g.CanConnect(ip)) // 4th attempt within window exceeds MaxAttemptsPerWindow=3
}

func TestRecordFailureBansAfterThreshold(t *testing.T) {
	g := New(testConfig())
	const ip = "10.0.0.5"

	g.RecordFailure(ip)
	assert.False(t, g.IsBanned(ip))
	g.RecordFailure(ip)
	assert.True(t, g.IsBanned(ip))
	assert.False(t, g.CanConnect(ip))
}

func TestUnbanClearsBanAndFailures(t *testing.T) {
	g := New(testConfig())
	const ip = "10.0.0.6"

	g.RecordFailure(ip)
	g.RecordFailure(ip)
	require := assert.New(t)
	require.True(g.IsBanned(ip))

	g.Unban(ip)
	require.False(g.IsBanned(ip))
	require.True(g.CanConnect(ip))
}

func TestBanCountAggregatesAcrossShards(t *testing.T) {
	g := New(testConfig())
	ips := []string{"10.0.1.1", "10.0.1.2", "10.0.1.3", "10.0.1.4"}
	for _, ip := range ips {
		g.RecordFailure(ip)
		g.RecordFailure(ip)
	}

	assert.Equal(t, len(ips), g.BanCount())
}

func TestShardingIsStableForSameIP(t *testing.T) {
	g := New(testConfig())
	const ip = "10.0.2.1"

	sh1 := g.shardFor(ip)
	sh2 := g.shardFor(ip)
	assert.Same(t, sh1, sh2)
}
