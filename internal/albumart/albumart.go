// Package albumart turns a video thumbnail into an embeddable cover image:
// fetch, center-crop to square, resize to a canonical resolution, re-encode
// as JPEG.
package albumart

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"
	"net/http"
	"time"

	"github.com/nfnt/resize"

	"github.com/lvcoi/tubetag/internal/webclient"

	_ "image/gif"
	_ "image/png"

	// YouTube serves most thumbnails as WebP.
	_ "golang.org/x/image/webp"
)

const (
	// Covers are normalized to 1000x1000 JPEG at quality 90.
	targetSize  = 1000
	jpegQuality = 90

	fetchTimeout = 10 * time.Second
)

// Picture is a processed cover image ready for embedding in a tag frame.
type Picture struct {
	Data     []byte
	MIMEType string
}

// Processor fetches and normalizes thumbnails.
type Processor struct {
	client *http.Client
}

func NewProcessor(client *http.Client) *Processor {
	if client == nil {
		client = webclient.New(fetchTimeout)
	}
	return &Processor{client: client}
}

// Fetch downloads the thumbnail and renders it into a cover Picture. The
// request is bounded by the processor's fetch timeout regardless of the
// parent context.
func (p *Processor) Fetch(ctx context.Context, thumbnailURL string) (Picture, error) {
	if thumbnailURL == "" {
		return Picture{}, fmt.Errorf("no thumbnail URL")
	}
	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	data, err := webclient.Get(ctx, p.client, thumbnailURL)
	if err != nil {
		return Picture{}, fmt.Errorf("downloading thumbnail: %w", err)
	}
	return Render(data)
}

// Render decodes raw image bytes and produces the canonical cover encoding.
func Render(data []byte) (Picture, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Picture{}, fmt.Errorf("decoding thumbnail: %w", err)
	}

	square := centerSquare(img)
	scaled := resize.Resize(targetSize, targetSize, square, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return Picture{}, fmt.Errorf("encoding cover: %w", err)
	}
	return Picture{Data: buf.Bytes(), MIMEType: "image/jpeg"}, nil
}

// centerSquare returns the largest centered square crop of img, redrawn into
// an RGBA image so downstream encoding sees a plain three-channel picture.
func centerSquare(img image.Image) image.Image {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	side := width
	if height < side {
		side = height
	}

	offsetX := bounds.Min.X + (width-side)/2
	offsetY := bounds.Min.Y + (height-side)/2

	square := image.NewRGBA(image.Rect(0, 0, side, side))
	draw.Draw(square, square.Bounds(), img, image.Pt(offsetX, offsetY), draw.Src)
	return square
}
