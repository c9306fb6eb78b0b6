package strategy

import "fmt"

const (
	// MinTick and MaxTick bound the protocol's tick space.
	MinTick int32 = -887272
	MaxTick int32 = 887272

	DefaultHalfWidth int32 = 2
)

// SelectRange returns a symmetric range of halfWidth spacings on each side of
// currentTick snapped down to tickSpacing. Bounds are clamped into the usable
// tick space for that spacing.
func SelectRange(currentTick, tickSpacing, halfWidth int32) (int32, int32, error) {
	if tickSpacing <= 0 {
		return 0, 0, fmt.Errorf("tick spacing must be positive: %d", tickSpacing)
	}
	if halfWidth <= 0 {
		return 0, 0, fmt.Errorf("half width must be positive: %d", halfWidth)
	}
	if currentTick < MinTick || currentTick > MaxTick {
		return 0, 0, fmt.Errorf("tick %d outside [%d, %d]", currentTick, MinTick, MaxTick)
	}

	spacing := int64(tickSpacing)
	minUsable, maxUsable := UsableTickBounds(tickSpacing)

	center := floorToSpacing(int64(currentTick), spacing)
	if center < int64(minUsable) {
		center = int64(minUsable)
	}
	if center > int64(maxUsable) {
		center = int64(maxUsable)
	}

	lower := center - spacing*int64(halfWidth)
	upper := center + spacing*int64(halfWidth)
	if lower < int64(minUsable) {
		lower = int64(minUsable)
	}
	if upper > int64(maxUsable) {
		upper = int64(maxUsable)
	}
	if lower >= upper {
		return 0, 0, fmt.Errorf("spacing %d leaves no usable range around tick %d", tickSpacing, currentTick)
	}
	return int32(lower), int32(upper), nil
}

// UsableTickBounds returns the lowest and highest ticks that are multiples of spacing.
func UsableTickBounds(tickSpacing int32) (int32, int32) {
	spacing := int64(tickSpacing)
	maxUsable := (int64(MaxTick) / spacing) * spacing
	return int32(-maxUsable), int32(maxUsable)
}

func floorToSpacing(tick, spacing int64) int64 {
	q := tick / spacing
	if tick%spacing != 0 && tick < 0 {
		q--
	}
	return q * spacing
}
