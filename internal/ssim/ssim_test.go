package ssim

import (
	"errors"
	"math"
	"testing"

	"photocull/internal/raster"
)

// gradientImage builds a raster with smooth horizontal and vertical
// luminance variation. contrast scales the variation around mid-gray.
func gradientImage(width, height int, contrast float64) *raster.Image {
	img := &raster.Image{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height*4),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := float64(x*255)/float64(width-1)*0.7 + float64(y*255)/float64(height-1)*0.3
			v = 128 + (v-128)*contrast
			if v < 0 {
				v = 0
			}
			if v > 255 {
				v = 255
			}
			p := (y*width + x) * 4
			img.Pix[p] = uint8(v)
			img.Pix[p+1] = uint8(v)
			img.Pix[p+2] = uint8(v)
			img.Pix[p+3] = 255
		}
	}
	return img
}

func TestCompare_IdenticalImages(t *testing.T) {
	img := gradientImage(48, 32, 1.0)

	score, err := Compare(img, img, DefaultWindowSize)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if math.Abs(score-1.0) > 1e-9 {
		t.Errorf("identical images scored %v, want 1.0", score)
	}
}

func TestCompare_Symmetric(t *testing.T) {
	a := gradientImage(48, 32, 1.0)
	b := gradientImage(48, 32, 0.5)

	s1, err := Compare(a, b, DefaultWindowSize)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	s2, err := Compare(b, a, DefaultWindowSize)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if math.Abs(s1-s2) > 1e-9 {
		t.Errorf("SSIM not symmetric: %v vs %v", s1, s2)
	}
}

func TestCompare_ContrastReduction(t *testing.T) {
	a := gradientImage(48, 32, 1.0)
	b := gradientImage(48, 32, 0.3)

	score, err := Compare(a, b, DefaultWindowSize)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if score >= 0.999 {
		t.Errorf("contrast-reduced copy scored %v, want below 1", score)
	}
	if score <= 0 {
		t.Errorf("contrast-reduced copy scored %v, want positive", score)
	}
}

func TestCompare_DimensionMismatch(t *testing.T) {
	a := gradientImage(48, 32, 1.0)
	b := gradientImage(32, 48, 1.0)

	_, err := Compare(a, b, DefaultWindowSize)
	if err == nil {
		t.Fatal("expected error for mismatched dimensions")
	}
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestCompare_ImageSmallerThanWindow(t *testing.T) {
	a := gradientImage(8, 8, 1.0)
	b := gradientImage(8, 8, 1.0)

	if _, err := Compare(a, b, DefaultWindowSize); err == nil {
		t.Error("expected error when image is smaller than the window")
	}
}

func TestCompare_DefaultWindowOnZero(t *testing.T) {
	img := gradientImage(16, 16, 1.0)

	// Window size 0 falls back to the default, which is larger than the
	// image here.
	if _, err := Compare(img, img, 0); err == nil {
		t.Error("expected error: default window exceeds image size")
	}

	score, err := Compare(img, img, 5)
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if math.Abs(score-1.0) > 1e-9 {
		t.Errorf("identical images scored %v, want 1.0", score)
	}
}

func TestCompareLuma_PlaneSizeMismatch(t *testing.T) {
	lumaA := make([]float64, 16*16)
	lumaB := make([]float64, 16*15)

	if _, err := CompareLuma(lumaA, lumaB, 16, 16, 5); err == nil {
		t.Error("expected error for wrong plane size")
	}
}
