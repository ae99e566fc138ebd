package power

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubSource struct {
	onBattery bool
	level     int
	hasLevel  bool
}

func (s stubSource) OnBattery() bool           { return s.onBattery }
func (s stubSource) BatteryLevel() (int, bool) { return s.level, s.hasLevel }

func TestProfileCriticalBattery(t *testing.T) {
	p := ProfileFor(stubSource{onBattery: true, level: 15, hasLevel: true})
	require.Equal(t, 1, p.CompressionLevel)
	require.Equal(t, 5000*time.Millisecond, p.Debounce)
	require.False(t, p.AllowGC)
	require.Equal(t, 1, p.ScanParallelism)
}

func TestProfileNormalBattery(t *testing.T) {
	p := ProfileFor(stubSource{onBattery: true, level: 80, hasLevel: true})
	require.Equal(t, 3, p.CompressionLevel)
	require.Equal(t, 2000*time.Millisecond, p.Debounce)
	require.False(t, p.AllowGC)
	require.Equal(t, 2, p.ScanParallelism)
}

func TestProfileBatteryUnknownLevelTreatedNonCritical(t *testing.T) {
	p := ProfileFor(stubSource{onBattery: true, hasLevel: false})
	require.Equal(t, 3, p.CompressionLevel)
	require.False(t, p.AllowGC)
}

func TestProfileACPower(t *testing.T) {
	p := ProfileFor(stubSource{onBattery: false})
	require.Equal(t, 6, p.CompressionLevel)
	require.Equal(t, 500*time.Millisecond, p.Debounce)
	require.True(t, p.AllowGC)
	require.GreaterOrEqual(t, p.ScanParallelism, 1)
}
