package propagate

import (
	"math"

	"github.com/orcatree/treesupport/oracle"
	"github.com/orcatree/treesupport/scalar"
)

// Settings are the propagator's geometric tunables.
type Settings struct {
	MinRadius float64 // mm, tip radius
	BranchRadius float64 // mm, radius a mature trunk grows to
	DiameterAngleScaleHeight float64 // mm of height over which radius ramps from MinRadius to BranchRadius
	MaxMoveSlow scalar.Coord
	MaxMoveFast scalar.Coord
	TinyAreaThreshold float64 // mm², areas below this are treated as "nothing survived"
	MaxModelRadiusCap scalar.Coord
	ElephantFootIncreasePerLayer float64 // mm of widening applied per layer near the plate
	ElephantFootMaxLayers int
	SafeStepSize scalar.Coord // safe-offset-inc subroutine step
	MinAmountOffset int // minimum number of safe-offset-inc steps
	MinDttToModel int // min distance-to-top to keep a non-gracious model anchor
	MergeCadenceBase int // merge every Base*CapDivisor layers (see ShouldMergeAt)
	MergeCadenceCapDivisor int // multiplier applied to MergeCadenceBase
}

// DefaultSettings returns representative millimetre-scale defaults.
func DefaultSettings() Settings {
	return Settings{
		MinRadius: 0.4,
		BranchRadius: 1.5,
		DiameterAngleScaleHeight: 10.0,
		MaxMoveSlow: scalar.FromMM(0.2),
		MaxMoveFast: scalar.FromMM(1.0),
		TinyAreaThreshold: 0.01,
		MaxModelRadiusCap: scalar.FromMM(5.0),
		ElephantFootIncreasePerLayer: 0.04,
		ElephantFootMaxLayers: 10,
		SafeStepSize: scalar.FromMM(0.1),
		MinAmountOffset: 2,
		MinDttToModel: 6,
		MergeCadenceBase: 1,
		MergeCadenceCapDivisor: 2,
	}
}

// RadiusFor returns the branch radius in mm at accumulated radius-growth
// height h, following a smoothstep ramp from MinRadius to BranchRadius
// over DiameterAngleScaleHeight (SPEC_FULL.md supplemented feature #4:
// the original uses a smoothstep, not a linear ramp, between tip radius
// and branch radius).
func RadiusFor(h float64, settings Settings) float64 {
	if settings.DiameterAngleScaleHeight <= 0 {
		return settings.BranchRadius
	}
	t := h / settings.DiameterAngleScaleHeight
	if t <= 0 {
		return settings.MinRadius
	}
	if t >= 1 {
		return settings.BranchRadius
	}
	smooth := t * t * (3 - 2*t)
	return settings.MinRadius + smooth*(settings.BranchRadius-settings.MinRadius)
}

// ElephantFootRadius returns the extra base-widening radius contribution
// for an element that has accumulated n elephant-foot increases.
func (s Settings) ElephantFootRadius(n float64) float64 {
	if n <= 0 {
		return 0
	}
	if n > float64(s.ElephantFootMaxLayers) {
		n = float64(s.ElephantFootMaxLayers)
	}
	return n * s.ElephantFootIncreasePerLayer
}

// areaIncreaseSetting is one entry of the ordered, data-driven fallback
// policy list the increase stage walks.
type areaIncreaseSetting struct {
	speed oracle.Speed
	increaseRadius bool
	move bool
	useMinXY bool
	errorCase bool
}

// defaultIncreaseOrder is the baseline ordered attempt sequence: slow
// before fast (slow is more conservative and should be preferred),
// geometry-preserving attempts before radius-increasing ones, and the
// error-case catch-all last.
func defaultIncreaseOrder() []areaIncreaseSetting {
	return []areaIncreaseSetting{
		{speed: oracle.Slow, increaseRadius: false, move: true, useMinXY: false},
		{speed: oracle.Slow, increaseRadius: true, move: true, useMinXY: false},
		{speed: oracle.Fast, increaseRadius: false, move: true, useMinXY: false},
		{speed: oracle.Fast, increaseRadius: true, move: true, useMinXY: false},
		{speed: oracle.Fast, increaseRadius: true, move: true, useMinXY: true},
		{speed: oracle.Fast, increaseRadius: true, move: true, useMinXY: false, errorCase: true},
	}
}

// orderForParent reorders the base sequence so the setting matching the
// parent's LastAreaIncrease is tried first; the error-case entry always
// stays last.
func orderForParent(base []areaIncreaseSetting, last AreaIncreaseRecord) []areaIncreaseSetting {
	if last == (AreaIncreaseRecord{}) {
		return base
	}
	out := make([]areaIncreaseSetting, 0, len(base))
	var preferred []areaIncreaseSetting
	for _, s := range base {
		if !s.errorCase && s.speed == last.Speed && s.increaseRadius == last.DidIncreaseRadius && s.useMinXY == last.UsedMinDist {
			preferred = append(preferred, s)
			continue
		}
		out = append(out, s)
	}
	return append(preferred, out...)
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
