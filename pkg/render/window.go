package render

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"

	"ctvolume/pkg/volume"
)

// AutoWindow derives a grayscale threshold window from the volume's
// intensity distribution: the returned window spans the loPct..hiPct
// quantiles of the non-zero voxels. Zero voxels are excluded because CT
// exports pad the scan with empty space that would otherwise dominate the
// histogram.
//
// The volume is subsampled on a fixed stride, so the cost is bounded and
// the result deterministic.
func AutoWindow(acc volume.Accessor, loPct, hiPct float64) (byte, byte, error) {
	if loPct < 0 || hiPct > 1 || loPct >= hiPct {
		return 0, 0, fmt.Errorf("invalid quantile window [%g,%g]", loPct, hiPct)
	}

	const targetSamples = 1 << 20
	total := acc.Width() * acc.Height() * acc.Depth()
	stride := 1
	if total > targetSamples {
		stride = total / targetSamples
	}

	var samples []float64
	i := 0
	for z := 0; z < acc.Depth(); z++ {
		slice, err := acc.ReadSlice(z)
		if err != nil {
			return 0, 0, fmt.Errorf("reading slice %d: %w", z, err)
		}
		for _, v := range slice {
			if i%stride == 0 && v != 0 {
				samples = append(samples, float64(v))
			}
			i++
		}
	}
	if len(samples) == 0 {
		return 0, 255, nil
	}

	sort.Float64s(samples)
	lo := stat.Quantile(loPct, stat.Empirical, samples, nil)
	hi := stat.Quantile(hiPct, stat.Empirical, samples, nil)
	return byte(clamp32(float32(lo), 0, 255)), byte(clamp32(float32(hi), 0, 255)), nil
}
