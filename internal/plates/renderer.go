package plates

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"github.com/nfnt/resize"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"soomhub/market/internal/models"
)

// ContentType of the images produced by Render.
const ContentType = "image/png"

const (
	padding     = 6
	lineSpacing = 3
)

type palette struct {
	background color.Color
	foreground color.Color
}

var palettes = map[models.PlateType]palette{
	models.PlatePrivate:    {background: color.White, foreground: color.Black},
	models.PlateCommercial: {background: color.RGBA{R: 0xd6, G: 0x2a, B: 0x2a, A: 0xff}, foreground: color.White},
	models.PlateMotorcycle: {background: color.RGBA{R: 0xf5, G: 0xc5, B: 0x18, A: 0xff}, foreground: color.Black},
	models.PlateClassic:    {background: color.Black, foreground: color.White},
}

// Renderer draws license plates as PNG images of a fixed width.
type Renderer struct {
	width uint
	face  font.Face
}

func NewRenderer(width int) *Renderer {
	if width <= 0 {
		width = 520
	}
	return &Renderer{width: uint(width), face: basicfont.Face7x13}
}

// Render draws the emirate on the top line and the code and number below it.
func (r *Renderer) Render(plate *models.LicensePlate) ([]byte, error) {
	if plate == nil {
		return nil, errors.New("nil plate")
	}
	top := plate.Emirate
	bottom := plate.Number
	if plate.Code != "" {
		bottom = plate.Code + "  " + plate.Number
	}
	if top == "" || plate.Number == "" {
		return nil, fmt.Errorf("plate %q has nothing to draw", plate.Label())
	}

	pal, ok := palettes[plate.PlateType]
	if !ok {
		pal = palettes[models.PlatePrivate]
	}

	metrics := r.face.Metrics()
	lineHeight := metrics.Height.Ceil()
	textWidth := max(font.MeasureString(r.face, top).Ceil(), font.MeasureString(r.face, bottom).Ceil())

	w := textWidth + 2*padding
	h := 2*lineHeight + lineSpacing + 2*padding
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(pal.background), image.Point{}, draw.Src)
	drawBorder(img, pal.foreground)

	ascent := metrics.Ascent.Ceil()
	r.drawCentered(img, top, pal.foreground, padding+ascent)
	r.drawCentered(img, bottom, pal.foreground, padding+lineHeight+lineSpacing+ascent)

	scaled := resize.Resize(r.width, 0, img, resize.NearestNeighbor)

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("failed to encode plate image: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) drawCentered(img *image.RGBA, text string, fg color.Color, baseline int) {
	width := font.MeasureString(r.face, text).Ceil()
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(fg),
		Face: r.face,
		Dot:  fixed.P((img.Bounds().Dx()-width)/2, baseline),
	}
	d.DrawString(text)
}

func drawBorder(img *image.RGBA, c color.Color) {
	b := img.Bounds()
	for x := b.Min.X; x < b.Max.X; x++ {
		img.Set(x, b.Min.Y, c)
		img.Set(x, b.Max.Y-1, c)
	}
	for y := b.Min.Y; y < b.Max.Y; y++ {
		img.Set(b.Min.X, y, c)
		img.Set(b.Max.X-1, y, c)
	}
}
