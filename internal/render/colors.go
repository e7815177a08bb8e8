package render

import (
	"github.com/gdamore/tcell/v2"

	"github.com/racedraw/racedraw/internal/race"
)

var (
	RgbBackground   = tcell.NewRGBColor(16, 16, 24)
	RgbTrack        = tcell.NewRGBColor(70, 70, 80)    // lane dots
	RgbFinishLine   = tcell.NewRGBColor(255, 255, 255) // checkered column
	RgbName         = tcell.NewRGBColor(180, 180, 180)
	RgbRacer        = tcell.NewRGBColor(100, 150, 255)
	RgbAccelerating = tcell.NewRGBColor(50, 255, 50)
	RgbDecelerating = tcell.NewRGBColor(255, 160, 0)
	RgbKnockedOut   = tcell.NewRGBColor(180, 50, 50)
	RgbFinished     = tcell.NewRGBColor(255, 255, 0)
	RgbHazard       = tcell.NewRGBColor(255, 80, 80)
	RgbStatus       = tcell.NewRGBColor(255, 255, 255)
)

func racerColor(v race.VisualState) tcell.Color {
	switch v {
	case race.VisualAccelerating:
		return RgbAccelerating
	case race.VisualDecelerating:
		return RgbDecelerating
	case race.VisualKnockedOut:
		return RgbKnockedOut
	case race.VisualFinished:
		return RgbFinished
	}
	return RgbRacer
}
