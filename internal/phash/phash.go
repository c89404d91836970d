// Package phash computes DCT-based perceptual fingerprints for images and
// compares them by Hamming distance. Fingerprints are robust to resizing
// and mild recompression: visually identical images produce identical or
// near-identical hashes.
package phash

import (
	"fmt"
	"image"
	stddraw "image/draw"
	"math"
	"sort"

	"golang.org/x/image/draw"
)

const (
	// gridSize is the side of the downsampled luminance grid the DCT
	// runs over.
	gridSize = 32
	// blockSize is the side of the low-frequency coefficient block kept
	// from the DCT output.
	blockSize = 8
	// hashBits is the number of coefficients hashed: the top-left
	// blockSize×blockSize coefficients minus the DC term.
	hashBits = blockSize*blockSize - 1
	// HashLength is the length of the hex fingerprint Compute emits.
	HashLength = (hashBits + 3) / 4
)

// Compute reduces an image to a fixed-length hex fingerprint.
//
// The image is downsampled to a 32×32 grid with nearest-neighbor sampling,
// converted to luminance, transformed with a 2D DCT-II, and the 63
// low-frequency coefficients (top-left 8×8 block minus the DC term) are
// thresholded against their median: one bit per coefficient, packed into
// hex nibbles with the final partial nibble zero-padded. The result is a
// 16-character hex string for any input resolution.
func Compute(src image.Image) (string, error) {
	if src == nil {
		return "", fmt.Errorf("cannot hash nil image")
	}
	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return "", fmt.Errorf("cannot hash empty image (%dx%d)", bounds.Dx(), bounds.Dy())
	}

	luma := downsampleLuma(src)
	coeffs := dct2d(luma)

	// Top-left 8x8 block holds the low frequencies; skip the DC term.
	block := make([]float64, 0, hashBits)
	for y := 0; y < blockSize; y++ {
		for x := 0; x < blockSize; x++ {
			if x == 0 && y == 0 {
				continue
			}
			block = append(block, coeffs[y*gridSize+x])
		}
	}

	median := medianOf(block)

	var bits [hashBits]byte
	for i, c := range block {
		if c > median {
			bits[i] = 1
		}
	}

	return packBits(bits[:]), nil
}

// downsampleLuma scales the image to the hash grid and converts it to
// luminance using the standard 0.299/0.587/0.114 weights.
func downsampleLuma(src image.Image) []float64 {
	small := image.NewRGBA(image.Rect(0, 0, gridSize, gridSize))
	draw.NearestNeighbor.Scale(small, small.Bounds(), src, src.Bounds(), stddraw.Src, nil)

	luma := make([]float64, gridSize*gridSize)
	for i := range luma {
		p := i * 4
		r := float64(small.Pix[p])
		g := float64(small.Pix[p+1])
		b := float64(small.Pix[p+2])
		luma[i] = 0.299*r + 0.587*g + 0.114*b
	}
	return luma
}

// dct2d applies a DCT-II over rows then columns of the gridSize×gridSize
// field. Coefficients are unnormalized; only their ordering relative to
// the median matters for the hash.
func dct2d(field []float64) []float64 {
	rows := make([]float64, len(field))
	row := make([]float64, gridSize)
	for y := 0; y < gridSize; y++ {
		copy(row, field[y*gridSize:(y+1)*gridSize])
		out := dct1d(row)
		copy(rows[y*gridSize:], out)
	}

	result := make([]float64, len(field))
	col := make([]float64, gridSize)
	for x := 0; x < gridSize; x++ {
		for y := 0; y < gridSize; y++ {
			col[y] = rows[y*gridSize+x]
		}
		out := dct1d(col)
		for y := 0; y < gridSize; y++ {
			result[y*gridSize+x] = out[y]
		}
	}
	return result
}

func dct1d(in []float64) []float64 {
	n := len(in)
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += in[i] * math.Cos(math.Pi/float64(n)*(float64(i)+0.5)*float64(k))
		}
		out[k] = sum
	}
	return out
}

func medianOf(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}

// packBits packs the bit sequence into lowercase hex nibbles, zero-padding
// the final partial nibble.
func packBits(bits []byte) string {
	const hexDigits = "0123456789abcdef"

	out := make([]byte, 0, HashLength)
	for i := 0; i < len(bits); i += 4 {
		var nibble byte
		for j := 0; j < 4; j++ {
			nibble <<= 1
			if i+j < len(bits) {
				nibble |= bits[i+j]
			}
		}
		out = append(out, hexDigits[nibble])
	}
	return string(out)
}
