package albumart

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

// testImage builds a wide image whose horizontal thirds are red, green, blue,
// so the crop position is observable in the output.
func testImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		var c color.RGBA
		switch {
		case x < width/3:
			c = color.RGBA{R: 255, A: 255}
		case x < 2*width/3:
			c = color.RGBA{G: 255, A: 255}
		default:
			c = color.RGBA{B: 255, A: 255}
		}
		for y := 0; y < height; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func TestCenterSquareLandscape(t *testing.T) {
	square := centerSquare(testImage(300, 100))
	bounds := square.Bounds()
	if bounds.Dx() != 100 || bounds.Dy() != 100 {
		t.Fatalf("expected 100x100 crop, got %dx%d", bounds.Dx(), bounds.Dy())
	}

	// A centered crop of the tricolor image lands entirely in the green third.
	r, g, b, _ := square.At(50, 50).RGBA()
	if g == 0 || r != 0 || b != 0 {
		t.Fatalf("expected green center pixel, got r=%d g=%d b=%d", r, g, b)
	}
}

func TestCenterSquarePortrait(t *testing.T) {
	square := centerSquare(testImage(80, 200))
	bounds := square.Bounds()
	if bounds.Dx() != 80 || bounds.Dy() != 80 {
		t.Fatalf("expected 80x80 crop, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderProducesCanonicalJPEG(t *testing.T) {
	data := encodePNG(t, testImage(640, 480))

	pic, err := Render(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pic.MIMEType != "image/jpeg" {
		t.Fatalf("expected image/jpeg, got %q", pic.MIMEType)
	}

	decoded, format, err := image.Decode(bytes.NewReader(pic.Data))
	if err != nil {
		t.Fatalf("decoding rendered cover: %v", err)
	}
	if format != "jpeg" {
		t.Fatalf("expected jpeg encoding, got %q", format)
	}
	bounds := decoded.Bounds()
	if bounds.Dx() != targetSize || bounds.Dy() != targetSize {
		t.Fatalf("expected %dx%d, got %dx%d", targetSize, targetSize, bounds.Dx(), bounds.Dy())
	}
}

func TestRenderRejectsGarbage(t *testing.T) {
	if _, err := Render([]byte("not an image")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestFetch(t *testing.T) {
	data := encodePNG(t, testImage(120, 90))
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	proc := NewProcessor(srv.Client())
	pic, err := proc.Fetch(context.Background(), srv.URL+"/thumb.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pic.Data) == 0 {
		t.Fatal("expected cover data")
	}
}

func TestFetchEmptyURL(t *testing.T) {
	proc := NewProcessor(nil)
	if _, err := proc.Fetch(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty thumbnail URL")
	}
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	proc := NewProcessor(srv.Client())
	if _, err := proc.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("expected error for non-2xx response")
	}
}
