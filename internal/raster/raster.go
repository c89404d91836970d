// Package raster decodes displayable images into plain pixel buffers for
// the fingerprinting and similarity code.
package raster

import (
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Image is a decoded raster in RGBA order, 4 bytes per pixel.
type Image struct {
	Width  int
	Height int
	Pix    []uint8
}

// Luminance returns one value per pixel using the standard Rec. 601
// weights 0.299R + 0.587G + 0.114B.
func (im *Image) Luminance() []float64 {
	luma := make([]float64, im.Width*im.Height)
	for i := range luma {
		p := i * 4
		r := float64(im.Pix[p])
		g := float64(im.Pix[p+1])
		b := float64(im.Pix[p+2])
		luma[i] = 0.299*r + 0.587*g + 0.114*b
	}
	return luma
}

// FromImage converts a decoded image.Image into a raster Image.
func FromImage(src image.Image) *Image {
	bounds := src.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), src, bounds.Min, draw.Src)
	return &Image{
		Width:  rgba.Rect.Dx(),
		Height: rgba.Rect.Dy(),
		Pix:    rgba.Pix,
	}
}

// Decoder loads pixel data for a displayable image reference.
type Decoder interface {
	Decode(path string) (*Image, error)
}

// FileDecoder decodes images from the local filesystem.
type FileDecoder struct{}

// NewFileDecoder creates a new FileDecoder.
func NewFileDecoder() *FileDecoder {
	return &FileDecoder{}
}

// Decode reads and decodes the image at path.
func (d *FileDecoder) Decode(path string) (*Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	return FromImage(img), nil
}

// IsSupportedImage checks if a file is a supported image format
func IsSupportedImage(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".tiff", ".tif":
		return true
	default:
		return false
	}
}
