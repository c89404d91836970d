package phash

import (
	"errors"
	"fmt"
)

// ErrLengthMismatch is returned when two fingerprints of different lengths
// are compared. Callers must treat this as a hard error, never as
// "dissimilar".
var ErrLengthMismatch = errors.New("fingerprint length mismatch")

// HammingDistance counts the differing hex-digit positions between two
// fingerprints. Nibble granularity slightly under-counts bit-level
// distance, which is the comparison contract fingerprints are tuned for.
func HammingDistance(a, b string) (int, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrLengthMismatch, len(a), len(b))
	}

	dist := 0
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			dist++
		}
	}
	return dist, nil
}

// AreSimilar reports whether two fingerprints are within threshold Hamming
// distance of each other.
func AreSimilar(a, b string, threshold int) (bool, error) {
	dist, err := HammingDistance(a, b)
	if err != nil {
		return false, err
	}
	return dist <= threshold, nil
}
