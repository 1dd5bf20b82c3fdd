package payment

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"

	"github.com/go-faster/errors"
	"github.com/mdp/qrterminal/v3"
	"rsc.io/qr"
)

// Renderer turns a payload into an image.
type Renderer interface {
	Render(text string) ([]byte, error)
}

// PNGRenderer renders QR codes as square PNG images.
type PNGRenderer struct {
	// Width is the image side in pixels.
	Width int
	// Margin is the quiet zone in modules.
	Margin int
	Level  qr.Level
}

// NewPNGRenderer returns a renderer with high error correction, a 256 px
// image and a two module quiet zone.
func NewPNGRenderer() *PNGRenderer {
	return &PNGRenderer{Width: 256, Margin: 2, Level: qr.H}
}

// Render encodes text and returns the PNG bytes.
func (r *PNGRenderer) Render(text string) ([]byte, error) {
	code, err := qr.Encode(text, r.Level)
	if err != nil {
		return nil, errors.Wrap(err, "encode qr")
	}

	modules := code.Size + 2*r.Margin
	if r.Width < modules {
		return nil, errors.Errorf("width %d is smaller than %d modules", r.Width, modules)
	}

	img := image.NewGray(image.Rect(0, 0, r.Width, r.Width))
	for py := 0; py < r.Width; py++ {
		my := py*modules/r.Width - r.Margin
		for px := 0; px < r.Width; px++ {
			mx := px*modules/r.Width - r.Margin
			c := color.Gray{Y: 0xFF}
			if mx >= 0 && my >= 0 && mx < code.Size && my < code.Size && code.Black(mx, my) {
				c = color.Gray{Y: 0x00}
			}
			img.SetGray(px, py, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	return buf.Bytes(), nil
}

// WriteTerminal prints text as a half-block QR code for terminals.
func WriteTerminal(w io.Writer, text string) {
	qrterminal.GenerateHalfBlock(text, qrterminal.H, w)
}
