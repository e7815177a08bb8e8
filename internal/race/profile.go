package race

import (
	"math"
	"time"
)

// Segment is one constant-speed stretch of a speed profile.
type Segment struct {
	Speed  float64 `json:"speed"`
	Length float64 `json:"length"`
}

// SpeedProfile is a piecewise-constant velocity function of distance.
// Segment lengths sum to the track length.
type SpeedProfile []Segment

// GenerateProfile draws a fresh profile: a segment count in
// [MinSegments, MaxSegments], equal-length segments, one uniform speed each.
func GenerateProfile(cfg Config, src Source) SpeedProfile {
	n := cfg.MinSegments + src.IntN(cfg.MaxSegments-cfg.MinSegments+1)
	length := cfg.TrackLength / float64(n)

	p := make(SpeedProfile, n)
	var sum float64
	for i := range p {
		p[i] = Segment{
			Speed:  cfg.MinSpeed + src.Float64()*(cfg.MaxSpeed-cfg.MinSpeed),
			Length: length,
		}
		if i < n-1 {
			sum += length
		}
	}
	// last segment absorbs rounding so the total is exact
	p[n-1].Length = cfg.TrackLength - sum
	return p
}

// Total returns the summed segment length.
func (p SpeedProfile) Total() float64 {
	var total float64
	for _, s := range p {
		total += s.Length
	}
	return total
}

// DistanceAt integrates the profile over the given number of seconds. Past the
// last segment boundary the racer keeps its final speed, so the result keeps
// growing beyond Total.
func (p SpeedProfile) DistanceAt(seconds float64) float64 {
	if seconds <= 0 || len(p) == 0 {
		return 0
	}

	remaining := seconds
	var dist float64
	for _, seg := range p {
		t := seg.Length / seg.Speed
		if remaining <= t {
			return dist + seg.Speed*remaining
		}
		dist += seg.Length
		remaining -= t
	}
	return dist + p[len(p)-1].Speed*remaining
}

// SpeedAt returns the speed of the segment containing distance.
func (p SpeedProfile) SpeedAt(distance float64) float64 {
	if len(p) == 0 {
		return 0
	}
	var end float64
	for _, seg := range p {
		end += seg.Length
		if distance < end {
			return seg.Speed
		}
	}
	return p[len(p)-1].Speed
}

// FinishTime returns how long the profile takes to cover its total length.
func (p SpeedProfile) FinishTime() time.Duration {
	var secs float64
	for _, seg := range p {
		secs += seg.Length / seg.Speed
	}
	return time.Duration(math.Round(secs * float64(time.Second)))
}
