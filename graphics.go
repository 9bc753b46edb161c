package main

import (
	"bytes"
	"image"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"golang.org/x/image/font/gofont/goregular"

	"filmstrip/internal/navigation"
)

// newFontSource loads the embedded goregular face.
func newFontSource() (*text.GoTextFaceSource, error) {
	return text.NewGoTextFaceSource(bytes.NewReader(goregular.TTF))
}

// DrawText draws text with specified position and color
func DrawText(screen *ebiten.Image, textString string, font *text.GoTextFace, x, y float64, textColor color.RGBA) {
	op := &text.DrawOptions{}
	op.GeoM.Translate(x, y)
	op.ColorScale.ScaleWithColor(textColor)
	text.Draw(screen, textString, font, op)
}

// DrawFilledRect draws filled rectangles with float64 coordinates
func DrawFilledRect(screen *ebiten.Image, x, y, w, h float64, bgColor color.RGBA) {
	vector.DrawFilledRect(screen, float32(x), float32(y), float32(w), float32(h), bgColor, false)
}

// DrawPlacement draws one laid out image. Rotated placements hold an image
// in its original orientation that is turned 90° clockwise into the
// placement rectangle.
func DrawPlacement(screen *ebiten.Image, img *ebiten.Image, p navigation.Placement) {
	op := &ebiten.DrawImageOptions{}
	if p.Rotated {
		op.GeoM.Rotate(math.Pi / 2)
		op.GeoM.Translate(float64(img.Bounds().Dy()), 0)
	}
	op.GeoM.Translate(float64(p.X), float64(p.Y))
	screen.DrawImage(img, op)
}

// textureCache keeps GPU copies of the bitmaps drawn in the last frame.
// Entries not drawn in a frame are released at the end of it.
type textureCache struct {
	current map[image.Image]*ebiten.Image
	next    map[image.Image]*ebiten.Image
}

func newTextureCache() *textureCache {
	return &textureCache{
		current: make(map[image.Image]*ebiten.Image),
		next:    make(map[image.Image]*ebiten.Image),
	}
}

func (c *textureCache) get(img image.Image) *ebiten.Image {
	if tex, ok := c.next[img]; ok {
		return tex
	}
	tex, ok := c.current[img]
	if !ok {
		tex = ebiten.NewImageFromImage(img)
	}
	c.next[img] = tex
	return tex
}

// endFrame releases textures that were not used since the last call.
func (c *textureCache) endFrame() {
	for img, tex := range c.current {
		if _, kept := c.next[img]; !kept {
			tex.Deallocate()
		}
	}
	c.current, c.next = c.next, c.current
	clear(c.next)
}
