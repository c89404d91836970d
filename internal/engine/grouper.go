// Package engine clusters near-duplicate images and nominates the best
// frame of each cluster. Grouping is a single greedy pass in input order:
// similarity is not transitively closed, and input ordering determines
// outcomes. That behavior is relied on downstream; do not replace it with
// union-find style closure.
package engine

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"photocull/internal/models"
	"photocull/internal/phash"
	"photocull/internal/quality"
	"photocull/internal/raster"
	"photocull/internal/ssim"
)

// State describes the lifecycle of a grouping run.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateAborted   State = "aborted"
	StateFailed    State = "failed"
)

// Store is the persistence collaborator the grouper drives. Group creation
// and disbandment are each atomic: a group row is never visible without
// all member back-references set, and vice versa.
type Store interface {
	ListImages() ([]*models.ImageRecord, error)
	ListGroups() ([]*models.Group, error)
	CreateGroup(group *models.Group) error
	DisbandGroup(id string) error
	RecomputeStats() error
}

// Grouper clusters image records into groups of near-duplicates.
type Grouper struct {
	store   Store
	decoder raster.Decoder

	abort atomic.Bool

	mu    sync.Mutex
	state State
}

// New creates a Grouper over the given storage and raster decoder.
func New(store Store, decoder raster.Decoder) *Grouper {
	return &Grouper{
		store:   store,
		decoder: decoder,
		state:   StateIdle,
	}
}

// State returns the lifecycle state of the most recent run.
func (g *Grouper) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

func (g *Grouper) setState(s State) {
	g.mu.Lock()
	g.state = s
	g.mu.Unlock()
}

// Abort requests cooperative cancellation of the running pass. The flag is
// polled between comparisons; a pairwise SSIM computation in flight still
// completes. Groups already created stay. Cancellation leaves the dataset
// valid but incomplete, and is not an error.
func (g *Grouper) Abort() {
	g.abort.Store(true)
}

// GroupSimilarImages runs one grouping pass over all ungrouped, hashed
// images and returns the groups it created. On abort it returns the groups
// created so far with a nil error; callers distinguish a partial result by
// checking State.
func (g *Grouper) GroupSimilarImages(opts models.GroupingOptions) ([]*models.Group, error) {
	opts = opts.Normalized()
	g.abort.Store(false)
	g.setState(StateRunning)

	all, err := g.store.ListImages()
	if err != nil {
		g.setState(StateFailed)
		return nil, fmt.Errorf("failed to load images: %w", err)
	}

	// Only ungrouped images that already carry a fingerprint take part.
	candidates := make([]*models.ImageRecord, 0, len(all))
	for _, img := range all {
		if img.GroupID == "" && img.Hash != "" {
			candidates = append(candidates, img)
		}
	}

	run := &groupingRun{
		grouper:   g,
		opts:      opts,
		images:    candidates,
		processed: make([]bool, len(candidates)),
		lumaCache: make(map[string]*lumaEntry),
	}
	return run.execute()
}

// RegroupAll disbands every existing group and runs a fresh grouping pass.
// Nothing is reused across the boundary.
func (g *Grouper) RegroupAll(opts models.GroupingOptions) ([]*models.Group, error) {
	if err := g.DisbandAllGroups(); err != nil {
		return nil, err
	}
	return g.GroupSimilarImages(opts)
}

// DisbandAllGroups disbands each existing group independently. Every single
// disband is atomic; the sequence as a whole is not.
func (g *Grouper) DisbandAllGroups() error {
	groups, err := g.store.ListGroups()
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}
	for _, group := range groups {
		if err := g.store.DisbandGroup(group.ID); err != nil {
			return fmt.Errorf("failed to disband group %s: %w", group.ID, err)
		}
	}
	return nil
}

// lumaEntry caches a decoded luminance plane per image for the duration of
// one run, so pairwise SSIM never decodes the same preview twice. Decode
// failures are cached too.
type lumaEntry struct {
	luma   []float64
	width  int
	height int
	err    error
}

// groupingRun holds the per-run state of a single grouping pass: the
// processed arena and the luminance cache are never shared across runs.
type groupingRun struct {
	grouper   *Grouper
	opts      models.GroupingOptions
	images    []*models.ImageRecord
	processed []bool
	lumaCache map[string]*lumaEntry
}

func (r *groupingRun) execute() ([]*models.Group, error) {
	g := r.grouper
	total := len(r.images)
	var created []*models.Group

	for i, base := range r.images {
		if g.abort.Load() {
			g.setState(StateAborted)
			return created, nil
		}
		if r.processed[i] {
			r.reportProgress(i+1, total, base)
			continue
		}
		r.processed[i] = true

		members, err := r.collectMembers(i, base)
		if err != nil {
			g.setState(StateFailed)
			return created, err
		}
		if g.abort.Load() {
			g.setState(StateAborted)
			return created, nil
		}

		if len(members) > 1 {
			group, err := r.persistGroup(members)
			if err != nil {
				g.setState(StateFailed)
				return created, err
			}
			created = append(created, group)
		}

		r.reportProgress(i+1, total, base)
	}

	if err := g.store.RecomputeStats(); err != nil {
		g.setState(StateFailed)
		return created, fmt.Errorf("failed to recompute stats: %w", err)
	}

	g.setState(StateCompleted)
	return created, nil
}

// collectMembers greedily scans the images after base for near-duplicates,
// in input order, marking accepted candidates so later base images never
// reconsider them.
func (r *groupingRun) collectMembers(baseIdx int, base *models.ImageRecord) ([]*models.ImageRecord, error) {
	members := []*models.ImageRecord{base}

	for j := baseIdx + 1; j < len(r.images); j++ {
		if r.grouper.abort.Load() {
			return members, nil
		}
		if r.processed[j] {
			continue
		}
		if len(members) >= r.opts.MaxGroupSize {
			break
		}

		candidate := r.images[j]
		dist, err := phash.HammingDistance(base.Hash, candidate.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to compare %s and %s: %w",
				base.FileName, candidate.FileName, err)
		}
		if dist > r.opts.Threshold {
			continue
		}

		if r.opts.UseSSIM && !r.confirmSSIM(base, candidate) {
			continue
		}

		members = append(members, candidate)
		r.processed[j] = true
	}

	return members, nil
}

// confirmSSIM refines a pHash match with a structural comparison. Any SSIM
// failure (missing preview, decode error, mismatched dimensions) falls back
// to accepting on pHash alone rather than rejecting.
func (r *groupingRun) confirmSSIM(base, candidate *models.ImageRecord) bool {
	a := r.decodedLuma(base)
	if a.err != nil {
		return true
	}
	b := r.decodedLuma(candidate)
	if b.err != nil {
		return true
	}

	if a.width != b.width || a.height != b.height {
		return true
	}
	score, err := ssim.CompareLuma(a.luma, b.luma, a.width, a.height, ssim.DefaultWindowSize)
	if err != nil {
		return true
	}
	return score >= r.opts.SSIMThreshold
}

func (r *groupingRun) decodedLuma(img *models.ImageRecord) *lumaEntry {
	if entry, ok := r.lumaCache[img.ID]; ok {
		return entry
	}

	entry := &lumaEntry{}
	if img.Path == "" {
		entry.err = fmt.Errorf("image %s has no rasterizable preview", img.ID)
	} else if decoded, err := r.grouper.decoder.Decode(img.Path); err != nil {
		entry.err = err
	} else {
		entry.luma = decoded.Luminance()
		entry.width = decoded.Width
		entry.height = decoded.Height
	}

	r.lumaCache[img.ID] = entry
	return entry
}

// persistGroup picks the representative and stores the group with all
// member back-references in one transaction.
func (r *groupingRun) persistGroup(members []*models.ImageRecord) (*models.Group, error) {
	best := pickRepresentative(members)

	group := &models.Group{
		ID:         uuid.NewString(),
		MemberIDs:  make([]string, len(members)),
		AutoPickID: best.ID,
	}
	for i, m := range members {
		group.MemberIDs[i] = m.ID
	}

	if err := r.grouper.store.CreateGroup(group); err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	for _, m := range members {
		m.GroupID = group.ID
		m.IsAutoPick = m.ID == best.ID
	}

	return group, nil
}

// pickRepresentative returns the member with the highest quality score.
// The sort is stable, so ties resolve to the earliest-discovered candidate.
func pickRepresentative(members []*models.ImageRecord) *models.ImageRecord {
	type scored struct {
		img   *models.ImageRecord
		score float64
	}
	ranked := make([]scored, len(members))
	for i, m := range members {
		ranked[i] = scored{img: m, score: quality.Score(m)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	return ranked[0].img
}

func (r *groupingRun) reportProgress(processed, total int, img *models.ImageRecord) {
	if r.opts.Progress == nil {
		return
	}
	r.opts.Progress(processed, total, fmt.Sprintf("Grouping %s...", img.FileName))
}
