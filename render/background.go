// Package render paints raster art for the terminal: the background behind
// the panels and PNG snapshots of the launch-pad layout.
package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fogleman/gg"

	"go-beats/debug"
	"go-beats/theme"
)

// upper half block: foreground paints the top pixel, background the bottom
const halfBlock = "▀"

// Background renders the image at path scaled to cols x rows terminal cells.
// Each cell holds two vertically stacked pixels. When the image can't be
// loaded it paints a gradient from the theme palette instead.
func Background(path string, cols, rows int, th *theme.Theme) string {
	if cols <= 0 || rows <= 0 {
		return ""
	}
	img := Raster(path, cols, rows*2, th)
	return Cells(img)
}

// Raster returns the scaled image (or the gradient) at w x h pixels
func Raster(path string, w, h int, th *theme.Theme) image.Image {
	dc := gg.NewContext(w, h)

	if path != "" {
		src, err := gg.LoadImage(path)
		if err == nil && src.Bounds().Empty() {
			err = fmt.Errorf("empty image")
		}
		if err == nil {
			b := src.Bounds()
			dc.Scale(float64(w)/float64(b.Dx()), float64(h)/float64(b.Dy()))
			dc.DrawImage(src, -b.Min.X, -b.Min.Y)
			return dc.Image()
		}
		debug.Warn("render", err, "path", path, "fallback", "gradient")
	}

	paintGradient(dc, w, h, th)
	return dc.Image()
}

// paintGradient runs the dark end of the palette top to bottom, so text on
// top stays readable
func paintGradient(dc *gg.Context, w, h int, th *theme.Theme) {
	grad := gg.NewLinearGradient(0, 0, 0, float64(h))
	stops := []float64{theme.RoleBG, theme.RoleSurface, theme.RoleMuted}
	for i, role := range stops {
		c := th.RGB(role).Scale(0.6)
		grad.AddColorStop(float64(i)/float64(len(stops)-1), color.RGBA{c[0], c[1], c[2], 255})
	}
	dc.SetFillStyle(grad)
	dc.DrawRectangle(0, 0, float64(w), float64(h))
	dc.Fill()
}

// Cells converts an image to half-block terminal cells, two pixel rows per
// line
func Cells(img image.Image) string {
	b := img.Bounds()
	lines := make([]string, 0, (b.Dy()+1)/2)
	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		var line strings.Builder
		for x := b.Min.X; x < b.Max.X; x++ {
			top := hexOf(img.At(x, y))
			bottom := top
			if y+1 < b.Max.Y {
				bottom = hexOf(img.At(x, y+1))
			}
			line.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(top)).
				Background(lipgloss.Color(bottom)).
				Render(halfBlock))
		}
		lines = append(lines, line.String())
	}
	return strings.Join(lines, "\n")
}

func hexOf(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return theme.Hex(theme.RGB{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)})
}
