package levels

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradewatch/internal/models"
)

// rangeBars builds a ranging series that repeatedly rejects a top and a
// bottom, so swing detection has clear clusters to find.
func rangeBars(n int, top, bottom float64) []models.Bar {
	bars := make([]models.Bar, n)
	mid := (top + bottom) / 2
	span := (top - bottom) / 2
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range bars {
		// Oscillate: peak every 8 bars, trough four bars later.
		var high, low float64
		switch i % 8 {
		case 0:
			high, low = top, mid
		case 4:
			high, low = mid, bottom
		default:
			high, low = mid+span/4, mid-span/4
		}
		bars[i] = models.Bar{
			Time:  start.Add(time.Duration(i) * time.Hour),
			Open:  mid,
			High:  high,
			Low:   low,
			Close: mid,
		}
	}
	return bars
}

func TestDetectLevelsFindsRangeExtremes(t *testing.T) {
	bars := rangeBars(80, 1.1200, 1.0800)

	lvls := DetectLevels("EURUSD", bars)
	require.NotEmpty(t, lvls)

	var foundRes, foundSup bool
	for _, l := range lvls {
		require.True(t, l.Dynamic)
		require.NoError(t, l.Validate())
		if l.Direction == models.LevelAbove && l.Price > 1.115 {
			foundRes = true
		}
		if l.Direction == models.LevelBelow && l.Price < 1.085 {
			foundSup = true
		}
	}
	assert.True(t, foundRes, "expected a resistance near the range top")
	assert.True(t, foundSup, "expected a support near the range bottom")
}

func TestDetectLevelsCapsCount(t *testing.T) {
	bars := rangeBars(200, 1.2500, 1.2000)
	lvls := DetectLevels("GBPUSD", bars)
	assert.LessOrEqual(t, len(lvls), 2*maxPerSide)
}

func TestDetectLevelsTooFewBars(t *testing.T) {
	bars := rangeBars(10, 1.1200, 1.0800)
	assert.Nil(t, DetectLevels("EURUSD", bars))
}
