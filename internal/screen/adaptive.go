package screen

// AdaptiveBitrate tracks the last-applied bitrate for a stream and
// decides when a bandwidth sample warrants reconfiguring the encoder.
// Simpler than a full EWMA/AIMD controller: the specification only
// calls for a direct clamp of the latest bandwidth estimate, re-applied
// only once it has moved more than 10% from the current setting, to
// avoid reconfiguring the encoder on every sample.
type AdaptiveBitrate struct {
	current  int
	profile  profileParams
}

const minBitrate = 500_000

// NewAdaptiveBitrate starts a controller at the profile's max bitrate,
// the natural starting point before any bandwidth sample arrives.
func NewAdaptiveBitrate(p profileParams) *AdaptiveBitrate {
	return &AdaptiveBitrate{current: p.maxBitrate, profile: p}
}

// SetProfile updates the ceiling used by future adjustments and
// reclamps the current bitrate if it now exceeds the new ceiling.
func (a *AdaptiveBitrate) SetProfile(p profileParams) {
	a.profile = p
	if a.current > p.maxBitrate {
		a.current = p.maxBitrate
	}
}

// Adjust computes clamp(minBitrate, 0.8*bandwidthBps, profile max) and
// reports whether the encoder should be reconfigured: only when the
// new target differs from the current setting by more than 10%.
func (a *AdaptiveBitrate) Adjust(bandwidthBps int) (target int, changed bool) {
	target = int(0.8 * float64(bandwidthBps))
	target = clampInt(target, minBitrate, a.profile.maxBitrate)

	if a.current == 0 {
		a.current = target
		return target, true
	}

	delta := target - a.current
	if delta < 0 {
		delta = -delta
	}
	threshold := a.current / 10
	if delta <= threshold {
		return a.current, false
	}
	a.current = target
	return target, true
}

// Current returns the last applied bitrate without sampling.
func (a *AdaptiveBitrate) Current() int { return a.current }
