package models

import "time"

// EyeState is the externally detected state of a single eye.
type EyeState string

const (
	EyeOpen    EyeState = "open"
	EyeClosed  EyeState = "closed"
	EyeUnknown EyeState = "unknown"
)

// Face is a detected face supplied by an external detection module.
// Bounding box coordinates are percentages of the image dimensions (0-100).
type Face struct {
	X        float64  `json:"x"`
	Y        float64  `json:"y"`
	Width    float64  `json:"width"`
	Height   float64  `json:"height"`
	LeftEye  EyeState `json:"left_eye"`
	RightEye EyeState `json:"right_eye"`
}

// EyesOpen reports whether both eyes of the face are open.
func (f Face) EyesOpen() bool {
	return f.LeftEye == EyeOpen && f.RightEye == EyeOpen
}

// AreaFraction returns the fraction of the image covered by the face
// bounding box, derived from its percentage coordinates.
func (f Face) AreaFraction() float64 {
	return f.Width * f.Height / 10000
}

// ImageRecord holds metadata, fingerprint and quality signals for an image
type ImageRecord struct {
	ID            string     `json:"id"`
	Path          string     `json:"path"`
	FileName      string     `json:"file_name"`
	Width         int        `json:"width"`
	Height        int        `json:"height"`
	Hash          string     `json:"hash,omitempty"` // hex pHash, empty until hashed
	FocusScore    *float64   `json:"focus_score,omitempty"`
	ExposureScore *float64   `json:"exposure_score,omitempty"`
	Faces         []Face     `json:"faces,omitempty"`
	Rating        int        `json:"rating"`             // user-assigned, 0-5
	GroupID       string     `json:"group_id,omitempty"` // empty means ungrouped
	IsAutoPick    bool       `json:"is_auto_pick"`
	FileSize      int64      `json:"file_size"`
	ModTime       time.Time  `json:"mod_time"`
	CapturedAt    *time.Time `json:"captured_at,omitempty"`
}

// Group represents a persisted cluster of near-duplicate images.
// MemberIDs is ordered (discovery order) and always has at least two
// entries; singletons are never persisted as groups.
type Group struct {
	ID         string   `json:"id"`
	MemberIDs  []string `json:"member_ids"`
	AutoPickID string   `json:"auto_pick_id"` // must be one of MemberIDs
}

// ProjectStats holds aggregate counters recomputed after a grouping run.
type ProjectStats struct {
	TotalImages   int       `json:"total_images"`
	HashedImages  int       `json:"hashed_images"`
	GroupedImages int       `json:"grouped_images"`
	GroupCount    int       `json:"group_count"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ProgressFunc reports grouping progress to the caller.
type ProgressFunc func(processed, total int, status string)

// Default grouping parameters.
const (
	DefaultHammingThreshold = 15
	DefaultSSIMThreshold    = 0.8
	DefaultMaxGroupSize     = 10
)

// GroupingOptions are caller-supplied parameters for a single grouping run.
type GroupingOptions struct {
	Threshold     int     // max Hamming distance between fingerprints
	UseSSIM       bool    // confirm pHash candidates with SSIM
	SSIMThreshold float64 // min SSIM score to accept a candidate
	MaxGroupSize  int     // max members per group
	Progress      ProgressFunc
}

// Normalized returns a copy with zero-value fields replaced by defaults.
func (o GroupingOptions) Normalized() GroupingOptions {
	if o.Threshold <= 0 {
		o.Threshold = DefaultHammingThreshold
	}
	if o.SSIMThreshold <= 0 {
		o.SSIMThreshold = DefaultSSIMThreshold
	}
	if o.MaxGroupSize <= 0 {
		o.MaxGroupSize = DefaultMaxGroupSize
	}
	return o
}
