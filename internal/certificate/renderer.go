// Package certificate draws personalised certificate images.
package certificate

import (
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/rs/zerolog"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	defaultWidth   = 1754
	defaultHeight  = 1240
	defaultQuality = 92
)

type Config struct {
	// Template is an optional background image (jpeg or png). A plain white
	// page of the default size is used without it.
	Template string
	Heading  string
}

// Renderer writes certificate images. Output depends only on the inputs and
// the template, so rendering the same certificate twice gives the same file.
type Renderer struct {
	cfg        Config
	background image.Image
	heading    font.Face
	body       font.Face
	log        zerolog.Logger
}

// NewRenderer loads the template and fonts
func NewRenderer(cfg Config, log zerolog.Logger) (*Renderer, error) {
	if cfg.Heading == "" {
		cfg.Heading = "СЕРТИФИКАТ"
	}

	var background image.Image
	if cfg.Template != "" {
		img, err := gg.LoadImage(cfg.Template)
		if err != nil {
			return nil, fmt.Errorf("failed to load certificate template: %w", err)
		}
		background = img
	}

	ttf, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}

	return &Renderer{
		cfg:        cfg,
		background: background,
		heading:    truetype.NewFace(ttf, &truetype.Options{Size: 96}),
		body:       truetype.NewFace(ttf, &truetype.Options{Size: 64}),
		log:        log.With().Str("component", "Certificates").Logger(),
	}, nil
}

// Render draws the certificate for name and stores it at Path(dir, ...)
func (r *Renderer) Render(ctx context.Context, name, dates string, year int, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create certificates dir: %w", err)
	}

	path := Path(dir, name, dates, year)
	img := r.draw(name, dates, year)
	if err := writeJPEG(path, img); err != nil {
		return "", err
	}
	r.log.Debug().Str("name", name).Str("path", path).Msg("Certificate rendered")
	return path, nil
}

func (r *Renderer) draw(name, dates string, year int) image.Image {
	var dc *gg.Context
	if r.background != nil {
		dc = gg.NewContextForImage(r.background)
	} else {
		dc = gg.NewContext(defaultWidth, defaultHeight)
		dc.SetRGB(1, 1, 1)
		dc.Clear()
	}

	w := float64(dc.Width())
	h := float64(dc.Height())
	dc.SetRGB(0.1, 0.1, 0.1)

	dc.SetFontFace(r.heading)
	dc.DrawStringAnchored(r.cfg.Heading, w/2, h*0.3, 0.5, 0.5)

	dc.SetFontFace(r.body)
	dc.DrawStringWrapped(name, w/2, h*0.5, 0.5, 0.5, w*0.8, 1.3, gg.AlignCenter)
	dc.DrawStringAnchored(dates+" "+strconv.Itoa(year), w/2, h*0.75, 0.5, 0.5)

	return dc.Image()
}

// writeJPEG writes through a temp file in the same dir so that a crash never
// leaves a truncated certificate under the final name.
func writeJPEG(path string, img image.Image) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cert-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := jpeg.Encode(tmp, img, &jpeg.Options{Quality: defaultQuality}); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode certificate: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write certificate: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to save certificate: %w", err)
	}
	return nil
}
