package render

import (
	"fmt"

	"github.com/fogleman/gg"

	"go-beats/widgets"
)

const (
	padSize = 40
	padGap  = 8
	margin  = 16
)

// SnapshotSize is the pixel size of a snapshot: 9 pads square plus margins
const SnapshotSize = 2*margin + 9*padSize + 8*padGap

// Snapshot paints a launch-pad layout the way the hardware shows it: the
// top row of round buttons, the 8x8 grid and the round scene column
func Snapshot(layout widgets.LaunchpadLayout) *gg.Context {
	dc := gg.NewContext(SnapshotSize, SnapshotSize)
	dc.SetRGB(0.08, 0.08, 0.08)
	dc.Clear()

	for col, pad := range layout.TopRow {
		x, y := padOrigin(0, col)
		drawButton(dc, x, y, pad.Color)
	}
	for row := 0; row < 8; row++ {
		for col := 0; col < 8; col++ {
			x, y := padOrigin(8-row, col)
			drawPad(dc, x, y, layout.Grid[row][col].Color)
		}
		x, y := padOrigin(8-row, 8)
		drawButton(dc, x, y, layout.RightCol[row].Color)
	}
	return dc
}

// SnapshotPNG writes Snapshot(layout) to path
func SnapshotPNG(layout widgets.LaunchpadLayout, path string) error {
	if err := Snapshot(layout).SavePNG(path); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// padOrigin returns the top-left pixel of the pad at display line, col
func padOrigin(line, col int) (float64, float64) {
	x := margin + col*(padSize+padGap)
	y := margin + line*(padSize+padGap)
	return float64(x), float64(y)
}

func drawPad(dc *gg.Context, x, y float64, c [3]uint8) {
	dc.DrawRoundedRectangle(x, y, padSize, padSize, 4)
	fillPad(dc, c)
}

func drawButton(dc *gg.Context, x, y float64, c [3]uint8) {
	dc.DrawCircle(x+padSize/2, y+padSize/2, padSize/2-4)
	fillPad(dc, c)
}

// fillPad fills the current path; unlit pads get a dark outline only
func fillPad(dc *gg.Context, c [3]uint8) {
	if c == ([3]uint8{}) {
		dc.SetRGB(0.2, 0.2, 0.2)
		dc.SetLineWidth(1)
		dc.Stroke()
		return
	}
	dc.SetRGB255(int(c[0]), int(c[1]), int(c[2]))
	dc.FillPreserve()
	dc.SetRGBA(0, 0, 0, 1)
	dc.SetLineWidth(1)
	dc.Stroke()
}
