package screen

import "github.com/thea-remote/hostd/internal/wire"

// profileParams is the encoder parameter bundle named by a
// wire.QualityProfile.
type profileParams struct {
	maxBitrate      int
	keyframeSeconds int
	fps             int
}

var profiles = map[wire.QualityProfile]profileParams{
	wire.ProfilePerformance: {maxBitrate: 3_000_000, keyframeSeconds: 5, fps: 15},
	wire.ProfileBalanced:    {maxBitrate: 8_000_000, keyframeSeconds: 3, fps: 30},
	wire.ProfileQuality:     {maxBitrate: 20_000_000, keyframeSeconds: 2, fps: 60},
}

func paramsFor(p wire.QualityProfile) profileParams {
	if params, ok := profiles[p]; ok {
		return params
	}
	return profiles[wire.ProfileBalanced]
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
