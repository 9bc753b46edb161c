package main

import (
	"fmt"
	"image/color"
	"sort"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"

	"filmstrip/internal/config"
)

// Common colors used in rendering
var (
	colorWhite     = color.RGBA{255, 255, 255, 255}
	colorGray      = color.RGBA{180, 180, 180, 255}
	colorYellow    = color.RGBA{255, 255, 100, 255}
	colorCyan      = color.RGBA{100, 255, 255, 255}
	colorLightBlue = color.RGBA{200, 200, 255, 255}
	colorGreen     = color.RGBA{100, 255, 100, 255}
	colorOrange    = color.RGBA{255, 200, 100, 255}
	colorLightRed  = color.RGBA{255, 150, 150, 255}

	// Background colors for semi-transparent overlays
	bgColorLight  = color.RGBA{0, 0, 0, 128} // Light semi-transparent
	bgColorMedium = color.RGBA{0, 0, 0, 160} // Medium semi-transparent
	bgColorDark   = color.RGBA{0, 0, 0, 200} // Dark semi-transparent
)

// Renderer handles all drawing operations
type Renderer struct {
	renderState    RenderState
	helpFontSource *text.GoTextFaceSource
	textures       *textureCache
}

// NewRenderer creates a new Renderer
func NewRenderer(renderState RenderState) (*Renderer, error) {
	s, err := newFontSource()
	if err != nil {
		return nil, fmt.Errorf("loading font: %w", err)
	}

	return &Renderer{
		renderState:    renderState,
		helpFontSource: s,
		textures:       newTextureCache(),
	}, nil
}

// getActionDescriptions returns descriptions for each action
func getActionDescriptions() map[string]string {
	return config.ActionDescriptions()
}

// getActionsList returns the actions that have bindings, in help order
func (r *Renderer) getActionsList() []string {
	keybindings := r.renderState.GetKeybindings()
	mousebindings := r.renderState.GetMousebindings()

	order := make(map[string]int, len(config.Actions))
	for i, a := range config.Actions {
		order[a.Name] = i
	}

	actionSet := make(map[string]bool)
	for action := range keybindings {
		actionSet[action] = true
	}
	for action := range mousebindings {
		actionSet[action] = true
	}

	actions := make([]string, 0, len(actionSet))
	for action := range actionSet {
		actions = append(actions, action)
	}
	sort.Slice(actions, func(i, j int) bool {
		return order[actions[i]] < order[actions[j]]
	})
	return actions
}

// Draw renders the entire screen
func (r *Renderer) Draw(screen *ebiten.Image) {
	screen.Clear()

	switch {
	case r.renderState.IsLoading():
		r.drawCenteredMessage(screen, r.renderState.GetLoadingStatus(), colorWhite)
	case r.renderState.GetEmptyMessage() != "":
		r.drawCenteredMessage(screen, r.renderState.GetEmptyMessage(), colorLightRed)
	default:
		r.drawPlacements(screen)
	}

	// Draw info display (position, zoom, etc.) at bottom of screen if enabled
	if r.renderState.IsShowingInfo() && !r.renderState.IsLoading() {
		r.drawInfoDisplay(screen)
	}

	// Draw help overlay if enabled
	if r.renderState.IsShowingHelp() {
		r.drawHelpOverlay(screen)
	}

	// Draw overlay message if active
	if r.renderState.GetOverlayMessage() != "" && time.Since(r.renderState.GetOverlayMessageTime()) < overlayMessageDuration {
		r.drawOverlayMessage(screen)
	}
}

func (r *Renderer) drawPlacements(screen *ebiten.Image) {
	w, h := screen.Bounds().Dx(), screen.Bounds().Dy()
	for _, p := range r.renderState.GetPlacements(w, h) {
		if p.Image == nil {
			continue
		}
		DrawPlacement(screen, r.textures.get(p.Image), p)
	}
	r.textures.endFrame()
}

// drawCenteredMessage draws a single line in the middle of the screen
func (r *Renderer) drawCenteredMessage(screen *ebiten.Image, message string, textColor color.RGBA) {
	font := &text.GoTextFace{
		Source: r.helpFontSource,
		Size:   r.renderState.GetFontSize(),
	}

	message = truncateMiddle(message, 120)
	textWidth, textHeight := text.Measure(message, font, 0)
	x := (float64(screen.Bounds().Dx()) - textWidth) / 2
	y := (float64(screen.Bounds().Dy()) - textHeight) / 2
	DrawText(screen, message, font, max(x, 10), y, textColor)
}

// truncateMiddle shortens s to at most n runes, keeping both ends.
func truncateMiddle(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n || n < 5 {
		return s
	}
	half := (n - 3) / 2
	return string(runes[:half]) + "..." + string(runes[len(runes)-(n-3-half):])
}

// helpRow is one line of the controls table.
type helpRow struct {
	action, keys, mouse, description string
}

// helpContent gathers everything the help overlay shows.
func (r *Renderer) helpContent() ([]helpRow, []string) {
	keybindings := r.renderState.GetKeybindings()
	mousebindings := r.renderState.GetMousebindings()
	descriptions := getActionDescriptions()

	var rows []helpRow
	for _, action := range r.getActionsList() {
		row := helpRow{
			action:      action,
			keys:        strings.Join(keybindings[action], ", "),
			mouse:       strings.Join(mousebindings[action], ", "),
			description: descriptions[action],
		}
		if row.keys == "" && row.mouse == "" {
			continue
		}
		if row.description == "" {
			row.description = "No description available"
		}
		rows = append(rows, row)
	}

	status := r.renderState.GetConfigStatus()
	system := []string{fmt.Sprintf("Config Status: %s", status.Status)}
	for i, warning := range status.Warnings {
		if i >= maxHelpWarnings {
			break
		}
		system = append(system, "• "+truncateMiddle(warning, 50))
	}
	return rows, system
}

const (
	helpPadding     = 40.0
	helpMinFontSize = 12.0
	maxHelpWarnings = 2
)

// helpColumns measures the action and input columns at face.
func helpColumns(rows []helpRow, face *text.GoTextFace) (actionW, inputW, descW float64) {
	for _, row := range rows {
		w, _ := text.Measure(row.action, face, 0)
		actionW = max(actionW, w)

		input := row.keys
		if row.keys != "" && row.mouse != "" {
			input += " | "
		}
		w, _ = text.Measure(input+row.mouse, face, 0)
		inputW = max(inputW, w)

		w, _ = text.Measure(row.description, face, 0)
		descW = max(descW, w)
	}
	return actionW, inputW, descW
}

// helpSize returns the space the overlay needs at fontSize.
func (r *Renderer) helpSize(rows []helpRow, system []string, fontSize float64) (float64, float64) {
	face := &text.GoTextFace{Source: r.helpFontSource, Size: fontSize}
	lineHeight := fontSize * 1.5

	height := helpPadding*2 + fontSize*2 + lineHeight*1.5
	height += float64(len(rows)) * lineHeight
	height += lineHeight * float64(2+len(system))

	actionW, inputW, descW := helpColumns(rows, face)
	width := 40 + actionW + 20 + 30 + 20 + inputW + 20 + descW + helpPadding
	for _, line := range append([]string{"Controls (Keyboard | Mouse):"}, system...) {
		w, _ := text.Measure(line, face, 0)
		width = max(width, w+helpPadding*2+80)
	}
	return width, height
}

// helpFontSize finds the largest font size up to the configured one that
// fits, by bisection. It reports false when even the minimum does not fit.
func (r *Renderer) helpFontSize(rows []helpRow, system []string, availW, availH float64) (float64, bool) {
	fits := func(size float64) bool {
		w, h := r.helpSize(rows, system, size)
		return w <= availW && h <= availH
	}

	maxSize := r.renderState.GetFontSize()
	if !fits(helpMinFontSize) {
		return helpMinFontSize, false
	}
	if fits(maxSize) {
		return maxSize, true
	}

	low, high := helpMinFontSize, maxSize
	for high-low > 0.5 {
		mid := (low + high) / 2
		if fits(mid) {
			low = mid
		} else {
			high = mid
		}
	}
	return low, true
}

func (r *Renderer) drawHelpOverlay(screen *ebiten.Image) {
	w, h := float64(screen.Bounds().Dx()), float64(screen.Bounds().Dy())
	rows, system := r.helpContent()

	fontSize, ok := r.helpFontSize(rows, system, w-helpPadding*2, h-helpPadding*2)
	if !ok {
		r.drawMarginTooSmallMessage(screen)
		return
	}

	DrawFilledRect(screen, 0, 0, w, h, bgColorLight)
	DrawFilledRect(screen, helpPadding, helpPadding, w-helpPadding*2, h-helpPadding*2, bgColorMedium)

	face := &text.GoTextFace{Source: r.helpFontSource, Size: fontSize}
	lineHeight := fontSize * 1.5

	y := helpPadding + 30
	DrawText(screen, "HELP:", face, helpPadding+20, y, colorWhite)
	y += fontSize * 2
	DrawText(screen, "Controls (Keyboard | Mouse):", face, helpPadding+20, y, colorWhite)
	y += lineHeight * 1.5

	actionW, inputW, _ := helpColumns(rows, face)
	actionX := helpPadding + 40
	arrowX := actionX + actionW + 20
	inputX := arrowX + 30
	descX := inputX + inputW + 20

	for _, row := range rows {
		DrawText(screen, row.action, face, actionX, y, colorLightBlue)
		DrawText(screen, "→", face, arrowX, y, colorWhite)

		x := inputX
		if row.keys != "" {
			DrawText(screen, row.keys, face, x, y, colorYellow)
			kw, _ := text.Measure(row.keys, face, 0)
			x += kw
		}
		if row.keys != "" && row.mouse != "" {
			DrawText(screen, " | ", face, x, y, colorWhite)
			sw, _ := text.Measure(" | ", face, 0)
			x += sw
		}
		if row.mouse != "" {
			DrawText(screen, row.mouse, face, x, y, colorCyan)
		}

		DrawText(screen, row.description, face, descX, y, colorGray)
		y += lineHeight
	}

	y += lineHeight
	DrawText(screen, "System:", face, helpPadding+20, y, colorWhite)
	y += lineHeight

	statusColor := colorGreen
	if s := r.renderState.GetConfigStatus().Status; s == config.StatusWarning || s == config.StatusError {
		statusColor = colorOrange
	}
	for i, line := range system {
		c := statusColor
		if i > 0 {
			c = colorLightRed
		}
		DrawText(screen, line, face, helpPadding+40, y, c)
		y += lineHeight
	}
}

// drawMarginTooSmallMessage displays Fermat's margin joke when help cannot fit
func (r *Renderer) drawMarginTooSmallMessage(screen *ebiten.Image) {
	w, h := float64(screen.Bounds().Dx()), float64(screen.Bounds().Dy())
	DrawFilledRect(screen, 0, 0, w, h, bgColorLight)

	face := &text.GoTextFace{Source: r.helpFontSource, Size: 16.0}
	message := "Hanc marginis exiguitas non caperet."
	subtitle := "(This margin is too small to contain it.)"

	mw, mh := text.Measure(message, face, 0)
	sw, _ := text.Measure(subtitle, face, 0)
	my := h/2 - mh/2
	DrawText(screen, message, face, w/2-mw/2, my, colorWhite)
	DrawText(screen, subtitle, face, w/2-sw/2, my+mh+10, colorGray)
}

func (r *Renderer) drawInfoDisplay(screen *ebiten.Image) {
	// Create font for info display (same size as help text)
	infoFont := &text.GoTextFace{
		Source: r.helpFontSource,
		Size:   r.renderState.GetFontSize(),
	}

	infoText := r.renderState.GetInfoText()

	// Measure text dimensions
	textWidth, textHeight := text.Measure(infoText, infoFont, 0)

	// Position at bottom right corner
	padding := 10.0
	textX := float64(screen.Bounds().Dx()) - textWidth - padding
	textY := float64(screen.Bounds().Dy()) - textHeight - padding

	// Semi-transparent background
	bgPadding := 5.0
	bgX := textX - bgPadding
	bgY := textY - bgPadding
	bgW := textWidth + bgPadding*2
	bgH := textHeight + bgPadding*2

	DrawFilledRect(screen, bgX, bgY, bgW, bgH, bgColorLight)

	// Draw text
	DrawText(screen, infoText, infoFont, textX, textY, colorWhite)
}

func (r *Renderer) drawOverlayMessage(screen *ebiten.Image) {
	// Create font for overlay message
	messageFont := &text.GoTextFace{
		Source: r.helpFontSource,
		Size:   r.renderState.GetFontSize(),
	}

	// Measure text dimensions
	textWidth, textHeight := text.Measure(r.renderState.GetOverlayMessage(), messageFont, 0)

	// Calculate position (center of screen)
	padding := 20.0
	boxWidth := textWidth + padding*2
	boxHeight := textHeight + padding*2
	boxX := (float64(screen.Bounds().Dx()) - boxWidth) / 2
	boxY := (float64(screen.Bounds().Dy()) - boxHeight) / 2

	// Semi-transparent black background
	DrawFilledRect(screen, boxX, boxY, boxWidth, boxHeight, bgColorDark)

	// Draw text
	DrawText(screen, r.renderState.GetOverlayMessage(), messageFont, boxX+padding, boxY+padding, colorWhite)
}

