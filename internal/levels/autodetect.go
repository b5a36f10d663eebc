package levels

import (
	"fmt"
	"sort"

	talib "github.com/markcheno/go-talib"

	"tradewatch/internal/models"
)

const (
	// swingWindow bars on each side must be lower (higher) for a bar
	// to count as a swing high (low).
	swingWindow = 2
	atrPeriod   = 14
	// clusterBand scales the ATR into the merge distance for nearby
	// swing points.
	clusterBand = 0.5
	// maxPerSide caps how many auto levels are kept above and below.
	maxPerSide = 3
)

// cluster is a merged set of swing points. Strength is how many swings
// landed inside the band.
type cluster struct {
	price    float64
	strength int
}

// DetectLevels derives support and resistance levels from recent bars.
// Swing highs become resistance (trigger above), swing lows become
// support (trigger below). Nearby swings are merged within an
// ATR-scaled band and only the most-touched clusters survive.
func DetectLevels(symbol string, bars []models.Bar) []models.PriceLevel {
	if len(bars) < atrPeriod+2*swingWindow+1 {
		return nil
	}

	highs := make([]float64, len(bars))
	lows := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}

	atr := talib.Atr(highs, lows, closes, atrPeriod)
	band := atr[len(atr)-1] * clusterBand
	if band <= 0 {
		return nil
	}

	var swingHighs, swingLows []float64
	for i := swingWindow; i < len(bars)-swingWindow; i++ {
		isHigh, isLow := true, true
		for j := 1; j <= swingWindow; j++ {
			if highs[i] <= highs[i-j] || highs[i] <= highs[i+j] {
				isHigh = false
			}
			if lows[i] >= lows[i-j] || lows[i] >= lows[i+j] {
				isLow = false
			}
		}
		if isHigh {
			swingHighs = append(swingHighs, highs[i])
		}
		if isLow {
			swingLows = append(swingLows, lows[i])
		}
	}

	var out []models.PriceLevel
	for _, c := range strongest(clusterSwings(swingHighs, band)) {
		out = append(out, models.PriceLevel{
			ID:          fmt.Sprintf("auto_res_%.5f", c.price),
			Price:       c.price,
			Direction:   models.LevelAbove,
			Description: fmt.Sprintf("Auto resistance (%d touches)", c.strength),
			Dynamic:     true,
		})
	}
	for _, c := range strongest(clusterSwings(swingLows, band)) {
		out = append(out, models.PriceLevel{
			ID:          fmt.Sprintf("auto_sup_%.5f", c.price),
			Price:       c.price,
			Direction:   models.LevelBelow,
			Description: fmt.Sprintf("Auto support (%d touches)", c.strength),
			Dynamic:     true,
		})
	}
	return out
}

// clusterSwings merges sorted swing prices whose gap stays within band.
// Cluster price is the mean of its members.
func clusterSwings(swings []float64, band float64) []cluster {
	if len(swings) == 0 {
		return nil
	}
	sorted := append([]float64(nil), swings...)
	sort.Float64s(sorted)

	var out []cluster
	sum, count := sorted[0], 1
	for _, p := range sorted[1:] {
		if p-sum/float64(count) <= band {
			sum += p
			count++
			continue
		}
		out = append(out, cluster{price: sum / float64(count), strength: count})
		sum, count = p, 1
	}
	out = append(out, cluster{price: sum / float64(count), strength: count})
	return out
}

// strongest keeps the most-touched clusters, at most maxPerSide.
func strongest(clusters []cluster) []cluster {
	sort.Slice(clusters, func(i, j int) bool {
		if clusters[i].strength != clusters[j].strength {
			return clusters[i].strength > clusters[j].strength
		}
		return clusters[i].price < clusters[j].price
	})
	if len(clusters) > maxPerSide {
		clusters = clusters[:maxPerSide]
	}
	return clusters
}
