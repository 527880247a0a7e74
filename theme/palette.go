package theme

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go-beats/debug"
)

type RGB [3]uint8

type Palette struct {
	Name   string
	Colors []RGB
}

// LoadGPL reads a GIMP palette file
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open palette: %w", err)
	}
	defer f.Close()

	p, err := ParseGPL(f)
	if err != nil {
		return nil, fmt.Errorf("palette %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return p, nil
}

// ParseGPL parses GIMP palette text. Only the first three fields of each
// color line are used.
func ParseGPL(r io.Reader) (*Palette, error) {
	p := &Palette{}
	scanner := bufio.NewScanner(r)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, "Name:") {
			p.Name = strings.TrimSpace(strings.TrimPrefix(line, "Name:"))
			continue
		}

		// Skip headers and comments
		if line == "" || line[0] == '#' || strings.HasPrefix(line, "GIMP") || strings.HasPrefix(line, "Columns") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		var c RGB
		ok := true
		for i := range c {
			v, err := strconv.Atoi(fields[i])
			if err != nil || v < 0 || v > 255 {
				ok = false
				break
			}
			c[i] = uint8(v)
		}
		if ok {
			p.Colors = append(p.Colors, c)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(p.Colors) == 0 {
		return nil, fmt.Errorf("no colors found")
	}
	return p, nil
}

// Built-in palettes, dark to bright. Used when no .gpl file is configured
// or the file can't be read.
var builtin = map[string]*Palette{
	"plasma": {Name: "plasma", Colors: []RGB{
		{13, 8, 135}, {71, 3, 159}, {114, 1, 168}, {156, 23, 158},
		{189, 55, 134}, {216, 87, 107}, {237, 121, 83}, {251, 159, 58},
		{253, 202, 38}, {240, 249, 33},
	}},
	"ocean": {Name: "ocean", Colors: []RGB{
		{8, 16, 32}, {12, 36, 64}, {16, 62, 98}, {22, 92, 128},
		{30, 124, 150}, {52, 156, 164}, {96, 186, 172}, {150, 212, 180},
		{204, 234, 196}, {246, 250, 228},
	}},
	"mono": {Name: "mono", Colors: []RGB{
		{16, 16, 16}, {40, 40, 40}, {64, 64, 64}, {96, 96, 96},
		{128, 128, 128}, {160, 160, 160}, {192, 192, 192}, {224, 224, 224},
		{255, 255, 255},
	}},
}

// DefaultPalette is the built-in used when nothing else loads
const DefaultPalette = "plasma"

// Builtin returns a built-in palette by name
func Builtin(name string) (*Palette, bool) {
	p, ok := builtin[name]
	return p, ok
}

// BuiltinNames returns the built-in palette names, sorted
func BuiltinNames() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LoadPalette resolves a built-in name or a .gpl path. Anything that fails
// to load is logged and replaced by the default built-in.
func LoadPalette(nameOrPath string) *Palette {
	if nameOrPath == "" {
		return builtin[DefaultPalette]
	}
	if p, ok := builtin[nameOrPath]; ok {
		return p
	}
	p, err := LoadGPL(nameOrPath)
	if err != nil {
		debug.Warn("theme", err, "fallback", DefaultPalette)
		return builtin[DefaultPalette]
	}
	return p
}

// Lookup returns interpolated color for normalized value 0-1
func (p *Palette) Lookup(norm float64) RGB {
	if len(p.Colors) == 1 || norm <= 0 {
		return p.Colors[0]
	}
	if norm >= 1 {
		return p.Colors[len(p.Colors)-1]
	}

	// Find the two colors to interpolate between
	pos := norm * float64(len(p.Colors)-1)
	i := int(pos)
	frac := pos - float64(i)

	c0 := p.Colors[i]
	c1 := p.Colors[i+1]

	return RGB{
		lerp(c0[0], c1[0], frac),
		lerp(c0[1], c1[1], frac),
		lerp(c0[2], c1[2], frac),
	}
}

func lerp(a, b uint8, t float64) uint8 {
	return uint8(float64(a)*(1-t) + float64(b)*t)
}

// Index returns color at specific index (no interpolation)
func (p *Palette) Index(i int) RGB {
	if i < 0 {
		return p.Colors[0]
	}
	if i >= len(p.Colors) {
		return p.Colors[len(p.Colors)-1]
	}
	return p.Colors[i]
}

// Scale returns c with each channel multiplied by f (0-1), for dim LEDs
func (c RGB) Scale(f float64) RGB {
	f = max(0, min(f, 1))
	return RGB{uint8(float64(c[0]) * f), uint8(float64(c[1]) * f), uint8(float64(c[2]) * f)}
}
