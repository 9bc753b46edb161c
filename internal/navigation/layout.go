package navigation

import (
	"image"
	"math"

	"github.com/rs/zerolog/log"
)

// Placement is one entry drawn on screen. X, Y, W and H are the on-screen
// rectangle. Image is scaled but not rotated: when Rotated is set the
// caller rotates it 90° clockwise to fill the rectangle.
type Placement struct {
	Index   int
	Key     string
	X, Y    int
	W, H    int
	Image   image.Image
	Rotated bool
}

type sized struct {
	index int
	key   string
	raw   image.Rectangle
}

// Layout places the visible window in a vw×vh viewport and remembers the
// viewport for panning and preloading. Entries that fail to decode are
// left out.
func (e *Engine) Layout(vw, vh int) []Placement {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.viewW, e.viewH = vw, vh
	out, stripW, stripH := layout(e.images, e.seq, e.state, e.opts.Spacing, vw, vh, nil)

	e.overflowX = math.Max(0, float64(stripW-vw))
	e.overflowY = math.Max(0, float64(stripH-vh))
	e.applyAnchor()
	e.state.PanX = clampPan(e.state.PanX, e.overflowX)
	e.state.PanY = clampPan(e.state.PanY, e.overflowY)

	dx, dy := int(math.Round(e.state.PanX)), int(math.Round(e.state.PanY))
	for i := range out {
		out[i].X -= dx
		out[i].Y -= dy
	}
	return out
}

func (e *Engine) applyAnchor() {
	if e.anchor == anchorNone {
		return
	}
	sx, sy := -e.overflowX/2, -e.overflowY/2
	if e.state.RightToLeft {
		sx = -sx
	}
	if e.anchor == anchorTrailing {
		sx, sy = -sx, -sy
	}
	e.state.PanX, e.state.PanY = sx, sy
	e.anchor = anchorNone
}

// layout computes placements for s without pan applied and returns the
// size of the whole strip. It reads only its arguments, so preloading can
// run it on a snapshot. A non-nil keep restricts it to entries already
// cached and gives up on the first one missing or once keep fails.
func layout(images Images, seq Sequence, s State, spacing, vw, vh int, keep func() bool) ([]Placement, int, int) {
	get := images.Get
	getScaled := images.GetScaled
	if keep != nil {
		get = func(key string) (image.Image, error) { return images.GetIf(key, keep) }
		getScaled = func(key string, w, h int) (image.Image, error) { return images.GetScaledIf(key, w, h, keep) }
	}

	var items []sized
	for _, i := range window(s, seq.Len()) {
		key := seq.Key(i)
		raw, err := get(key)
		if keep != nil && err != nil {
			return nil, 0, 0
		}
		if err != nil {
			log.Debug().Err(err).Int("index", i).Msg("dropping entry from layout")
			continue
		}
		if raw.Bounds().Empty() {
			continue
		}
		items = append(items, sized{index: i, key: key, raw: raw.Bounds()})
	}
	if len(items) == 0 || vw <= 0 || vh <= 0 {
		return nil, 0, 0
	}

	// A rotated image stands on its side and the strip runs top to bottom,
	// so in both orientations raw widths lie along the strip and raw heights
	// across it.
	var total, crossMax float64
	for _, it := range items {
		total += float64(it.raw.Dx())
		crossMax = math.Max(crossMax, float64(it.raw.Dy()))
	}

	viewAlong, viewCross := vw, vh
	if s.Rotated {
		viewAlong, viewCross = vh, vw
	}
	gaps := spacing * (len(items) - 1)
	availAlong := float64(viewAlong - gaps)
	ratio := math.Min(availAlong/total, float64(viewCross)/crossMax) * s.Zoom()
	if ratio <= 0 {
		return nil, 0, 0
	}

	out := make([]Placement, 0, len(items))
	strip := gaps
	stripCross := 0
	for _, it := range items {
		w := int(math.Round(float64(it.raw.Dx()) * ratio))
		h := int(math.Round(float64(it.raw.Dy()) * ratio))
		p := Placement{Index: it.index, Key: it.key, W: w, H: h, Rotated: s.Rotated}
		if s.Rotated {
			p.W, p.H = h, w
		}
		out = append(out, p)
		if s.Rotated {
			strip += p.H
			stripCross = max(stripCross, p.W)
		} else {
			strip += p.W
			stripCross = max(stripCross, p.H)
		}
	}

	pos := (viewAlong - strip) / 2
	kept := out[:0]
	for _, p := range out {
		w, h := p.W, p.H
		if s.Rotated {
			w, h = h, w
		}
		img, err := getScaled(p.Key, w, h)
		if s.Rotated {
			p.Y = pos
			p.X = (viewCross - p.W) / 2
			pos += p.H + spacing
		} else {
			p.X = pos
			p.Y = (viewCross - p.H) / 2
			pos += p.W + spacing
		}
		if keep != nil && err != nil {
			return nil, 0, 0
		}
		if err != nil {
			log.Debug().Err(err).Int("index", p.Index).Msg("dropping entry from layout")
			continue
		}
		p.Image = img
		kept = append(kept, p)
	}

	if s.Rotated {
		return kept, stripCross, strip
	}
	return kept, strip, stripCross
}
