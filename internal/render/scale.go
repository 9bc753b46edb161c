package render

import (
	"fmt"
	"image"
	"strings"

	"golang.org/x/image/draw"
)

// Interpolation selects the scaling kernel.
type Interpolation int

const (
	NearestNeighbor Interpolation = iota
	ApproxBiLinear
	BiLinear
	CatmullRom
)

var interpolationNames = map[Interpolation]string{
	NearestNeighbor: "nearest",
	ApproxBiLinear:  "approx-bilinear",
	BiLinear:        "bilinear",
	CatmullRom:      "catmull-rom",
}

func (i Interpolation) String() string {
	if name, ok := interpolationNames[i]; ok {
		return name
	}
	return fmt.Sprintf("Interpolation(%d)", int(i))
}

// ParseInterpolation maps a config name to an Interpolation.
func ParseInterpolation(name string) (Interpolation, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for mode, n := range interpolationNames {
		if n == name {
			return mode, nil
		}
	}
	return BiLinear, fmt.Errorf("unknown interpolation %q", name)
}

func (i Interpolation) kernel() draw.Interpolator {
	switch i {
	case NearestNeighbor:
		return draw.NearestNeighbor
	case ApproxBiLinear:
		return draw.ApproxBiLinear
	case CatmullRom:
		return draw.CatmullRom
	default:
		return draw.BiLinear
	}
}

// Scaler resizes a bitmap to exactly w×h.
type Scaler interface {
	Scale(src image.Image, w, h int, mode Interpolation) image.Image
}

// DrawScaler scales with golang.org/x/image/draw.
type DrawScaler struct{}

func (DrawScaler) Scale(src image.Image, w, h int, mode Interpolation) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	mode.kernel().Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
