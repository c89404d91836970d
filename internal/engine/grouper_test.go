package engine

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"photocull/internal/models"
	"photocull/internal/raster"
)

// fakeStore is an in-memory Store that mirrors the transactional behavior
// of the SQLite layer: group creation sets member back-references, disband
// clears them.
type fakeStore struct {
	images          []*models.ImageRecord
	groups          []*models.Group
	createErr       error
	statsRecomputed int
}

func (s *fakeStore) ListImages() ([]*models.ImageRecord, error) {
	return s.images, nil
}

func (s *fakeStore) ListGroups() ([]*models.Group, error) {
	return append([]*models.Group(nil), s.groups...), nil
}

func (s *fakeStore) CreateGroup(group *models.Group) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.groups = append(s.groups, group)
	for _, id := range group.MemberIDs {
		img := s.byID(id)
		if img == nil {
			return fmt.Errorf("group member %s does not exist", id)
		}
		img.GroupID = group.ID
		img.IsAutoPick = id == group.AutoPickID
	}
	return nil
}

func (s *fakeStore) DisbandGroup(id string) error {
	for i, g := range s.groups {
		if g.ID != id {
			continue
		}
		for _, memberID := range g.MemberIDs {
			if img := s.byID(memberID); img != nil {
				img.GroupID = ""
				img.IsAutoPick = false
			}
		}
		s.groups = append(s.groups[:i], s.groups[i+1:]...)
		return nil
	}
	return fmt.Errorf("no such group: %s", id)
}

func (s *fakeStore) RecomputeStats() error {
	s.statsRecomputed++
	return nil
}

func (s *fakeStore) byID(id string) *models.ImageRecord {
	for _, img := range s.images {
		if img.ID == id {
			return img
		}
	}
	return nil
}

// fakeDecoder serves pre-built rasters by path.
type fakeDecoder struct {
	rasters map[string]*raster.Image
	decodes int
}

func (d *fakeDecoder) Decode(path string) (*raster.Image, error) {
	d.decodes++
	img, ok := d.rasters[path]
	if !ok {
		return nil, fmt.Errorf("failed to decode image: %s", path)
	}
	return img, nil
}

func record(id, hash string) *models.ImageRecord {
	return &models.ImageRecord{
		ID:       id,
		Path:     "/photos/" + id + ".jpg",
		FileName: id + ".jpg",
		Hash:     hash,
	}
}

// withDistance returns a hash at the given nibble distance from a base of
// all zeros.
func withDistance(n int) string {
	return strings.Repeat("f", n) + strings.Repeat("0", 16-n)
}

func flatRaster(size int, value uint8) *raster.Image {
	img := &raster.Image{Width: size, Height: size, Pix: make([]uint8, size*size*4)}
	for i := 0; i < size*size; i++ {
		img.Pix[i*4] = value
		img.Pix[i*4+1] = value
		img.Pix[i*4+2] = value
		img.Pix[i*4+3] = 255
	}
	return img
}

// gradientRaster yields structure so two unrelated rasters score a low
// SSIM against each other.
func gradientRaster(size int, invert bool) *raster.Image {
	img := &raster.Image{Width: size, Height: size, Pix: make([]uint8, size*size*4)}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8((x * 255) / (size - 1))
			if invert {
				v = 255 - v
			}
			p := (y*size + x) * 4
			img.Pix[p] = v
			img.Pix[p+1] = v
			img.Pix[p+2] = v
			img.Pix[p+3] = 255
		}
	}
	return img
}

func noSSIMOptions(threshold int) models.GroupingOptions {
	return models.GroupingOptions{Threshold: threshold, UseSSIM: false}
}

func TestGroupSimilarImages_ConcreteScenario(t *testing.T) {
	// Images 1 and 2 at distance 3 with a high SSIM; 3-5 mutually
	// dissimilar. Expect exactly one 2-member group.
	store := &fakeStore{images: []*models.ImageRecord{
		record("img1", withDistance(0)),
		record("img2", withDistance(3)),
		record("img3", strings.Repeat("1", 16)),
		record("img4", strings.Repeat("2", 16)),
		record("img5", strings.Repeat("3", 16)),
	}}
	same := flatRaster(16, 120)
	decoder := &fakeDecoder{rasters: map[string]*raster.Image{
		"/photos/img1.jpg": same,
		"/photos/img2.jpg": same,
	}}

	g := New(store, decoder)
	groups, err := g.GroupSimilarImages(models.GroupingOptions{UseSSIM: true})
	if err != nil {
		t.Fatalf("GroupSimilarImages failed: %v", err)
	}

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if len(groups[0].MemberIDs) != 2 {
		t.Fatalf("expected 2 members, got %v", groups[0].MemberIDs)
	}
	if groups[0].MemberIDs[0] != "img1" || groups[0].MemberIDs[1] != "img2" {
		t.Errorf("expected members [img1 img2], got %v", groups[0].MemberIDs)
	}
	for _, id := range []string{"img3", "img4", "img5"} {
		if store.byID(id).GroupID != "" {
			t.Errorf("%s should remain ungrouped", id)
		}
	}
	if g.State() != StateCompleted {
		t.Errorf("state = %s, want completed", g.State())
	}
	if store.statsRecomputed != 1 {
		t.Errorf("stats recomputed %d times, want 1", store.statsRecomputed)
	}
}

func TestGroupSimilarImages_ThresholdBoundary(t *testing.T) {
	// Distance exactly at the threshold groups; threshold+1 does not.
	tests := []struct {
		name      string
		distance  int
		threshold int
		grouped   bool
	}{
		{"at threshold", 5, 5, true},
		{"above threshold", 6, 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{images: []*models.ImageRecord{
				record("a", withDistance(0)),
				record("b", withDistance(tt.distance)),
			}}
			g := New(store, &fakeDecoder{})
			groups, err := g.GroupSimilarImages(noSSIMOptions(tt.threshold))
			if err != nil {
				t.Fatalf("GroupSimilarImages failed: %v", err)
			}

			if tt.grouped && len(groups) != 1 {
				t.Errorf("expected 1 group, got %d", len(groups))
			}
			if !tt.grouped && len(groups) != 0 {
				t.Errorf("expected no groups, got %d", len(groups))
			}
		})
	}
}

func TestGroupSimilarImages_RepresentativeSelection(t *testing.T) {
	focus := func(v float64) *float64 { return &v }

	best := record("best", withDistance(1))
	best.FocusScore = focus(0.95)
	low1 := record("low1", withDistance(0))
	low1.FocusScore = focus(0.2)
	low2 := record("low2", withDistance(2))
	low2.FocusScore = focus(0.4)

	store := &fakeStore{images: []*models.ImageRecord{low1, best, low2}}
	g := New(store, &fakeDecoder{})
	groups, err := g.GroupSimilarImages(noSSIMOptions(5))
	if err != nil {
		t.Fatalf("GroupSimilarImages failed: %v", err)
	}

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].AutoPickID != "best" {
		t.Errorf("auto pick = %s, want best", groups[0].AutoPickID)
	}
	if !best.IsAutoPick {
		t.Error("best image should be flagged as auto pick")
	}
	if low1.IsAutoPick || low2.IsAutoPick {
		t.Error("only the representative may carry the auto pick flag")
	}
}

func TestGroupSimilarImages_TieGoesToEarliestDiscovered(t *testing.T) {
	first := record("first", withDistance(0))
	second := record("second", withDistance(1))
	// Identical quality signals: both score 0.

	store := &fakeStore{images: []*models.ImageRecord{first, second}}
	g := New(store, &fakeDecoder{})
	groups, err := g.GroupSimilarImages(noSSIMOptions(5))
	if err != nil {
		t.Fatalf("GroupSimilarImages failed: %v", err)
	}

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].AutoPickID != "first" {
		t.Errorf("tie should resolve to earliest-discovered, got %s", groups[0].AutoPickID)
	}
}

func TestGroupSimilarImages_SingletonNotPersisted(t *testing.T) {
	store := &fakeStore{images: []*models.ImageRecord{
		record("lonely", withDistance(0)),
		record("far", strings.Repeat("f", 16)),
	}}
	g := New(store, &fakeDecoder{})
	groups, err := g.GroupSimilarImages(noSSIMOptions(3))
	if err != nil {
		t.Fatalf("GroupSimilarImages failed: %v", err)
	}

	if len(groups) != 0 {
		t.Errorf("expected no groups, got %d", len(groups))
	}
	if g.State() != StateCompleted {
		t.Errorf("state = %s, want completed", g.State())
	}
}

func TestGroupSimilarImages_SkipsUnhashedAndGrouped(t *testing.T) {
	unhashed := record("unhashed", "")
	grouped := record("grouped", withDistance(0))
	grouped.GroupID = "existing"
	free := record("free", withDistance(1))

	store := &fakeStore{images: []*models.ImageRecord{unhashed, grouped, free}}
	g := New(store, &fakeDecoder{})
	groups, err := g.GroupSimilarImages(noSSIMOptions(5))
	if err != nil {
		t.Fatalf("GroupSimilarImages failed: %v", err)
	}

	if len(groups) != 0 {
		t.Errorf("unhashed and already-grouped images must not be grouped, got %d groups", len(groups))
	}
}

func TestGroupSimilarImages_MaxGroupSize(t *testing.T) {
	var images []*models.ImageRecord
	for i := 0; i < 5; i++ {
		images = append(images, record(fmt.Sprintf("img%d", i), withDistance(0)))
	}
	store := &fakeStore{images: images}

	g := New(store, &fakeDecoder{})
	opts := noSSIMOptions(3)
	opts.MaxGroupSize = 3
	groups, err := g.GroupSimilarImages(opts)
	if err != nil {
		t.Fatalf("GroupSimilarImages failed: %v", err)
	}

	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if len(groups[0].MemberIDs) != 3 {
		t.Errorf("first group has %d members, want 3", len(groups[0].MemberIDs))
	}
	if len(groups[1].MemberIDs) != 2 {
		t.Errorf("second group has %d members, want 2", len(groups[1].MemberIDs))
	}
}

func TestGroupSimilarImages_Abort(t *testing.T) {
	// Two independent pairs; abort after the first base image completes.
	store := &fakeStore{images: []*models.ImageRecord{
		record("a1", withDistance(0)),
		record("a2", withDistance(1)),
		record("b1", strings.Repeat("8", 16)),
		record("b2", strings.Repeat("8", 15) + "9"),
	}}

	g := New(store, &fakeDecoder{})
	opts := noSSIMOptions(3)
	opts.Progress = func(processed, total int, status string) {
		if processed == 1 {
			g.Abort()
		}
	}

	groups, err := g.GroupSimilarImages(opts)
	if err != nil {
		t.Fatalf("abort must not surface as an error, got %v", err)
	}
	if g.State() != StateAborted {
		t.Errorf("state = %s, want aborted", g.State())
	}
	if len(groups) != 1 {
		t.Fatalf("expected the group created before cancellation, got %d", len(groups))
	}

	// The first pair is a valid persisted group.
	if store.byID("a1").GroupID == "" || store.byID("a2").GroupID == "" {
		t.Error("members of the completed group must keep their membership")
	}
	// The second pair was never reached.
	if store.byID("b1").GroupID != "" || store.byID("b2").GroupID != "" {
		t.Error("images after the abort point must stay ungrouped")
	}
	if store.statsRecomputed != 0 {
		t.Error("stats must not be recomputed on abort")
	}
}

func TestGroupSimilarImages_SSIMRejects(t *testing.T) {
	// Hashes match but the structural comparison fails the threshold.
	store := &fakeStore{images: []*models.ImageRecord{
		record("a", withDistance(0)),
		record("b", withDistance(1)),
	}}
	decoder := &fakeDecoder{rasters: map[string]*raster.Image{
		"/photos/a.jpg": gradientRaster(24, false),
		"/photos/b.jpg": gradientRaster(24, true),
	}}

	g := New(store, decoder)
	groups, err := g.GroupSimilarImages(models.GroupingOptions{Threshold: 3, UseSSIM: true})
	if err != nil {
		t.Fatalf("GroupSimilarImages failed: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("SSIM below threshold must reject the candidate, got %d groups", len(groups))
	}
}

func TestGroupSimilarImages_SSIMFailureFallsBackToHash(t *testing.T) {
	tests := []struct {
		name    string
		rasters map[string]*raster.Image
	}{
		{"decode error", nil},
		{"dimension mismatch", map[string]*raster.Image{
			"/photos/a.jpg": flatRaster(16, 100),
			"/photos/b.jpg": flatRaster(24, 100),
		}},
		{"smaller than window", map[string]*raster.Image{
			"/photos/a.jpg": flatRaster(4, 100),
			"/photos/b.jpg": flatRaster(4, 100),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{images: []*models.ImageRecord{
				record("a", withDistance(0)),
				record("b", withDistance(1)),
			}}
			g := New(store, &fakeDecoder{rasters: tt.rasters})
			groups, err := g.GroupSimilarImages(models.GroupingOptions{Threshold: 3, UseSSIM: true})
			if err != nil {
				t.Fatalf("GroupSimilarImages failed: %v", err)
			}
			if len(groups) != 1 {
				t.Fatalf("SSIM failure must fall back to hash-only acceptance, got %d groups", len(groups))
			}
		})
	}
}

func TestGroupSimilarImages_LuminanceCachedPerRun(t *testing.T) {
	store := &fakeStore{images: []*models.ImageRecord{
		record("a", withDistance(0)),
		record("b", withDistance(1)),
		record("c", withDistance(2)),
	}}
	same := flatRaster(16, 90)
	decoder := &fakeDecoder{rasters: map[string]*raster.Image{
		"/photos/a.jpg": same,
		"/photos/b.jpg": same,
		"/photos/c.jpg": same,
	}}

	g := New(store, decoder)
	if _, err := g.GroupSimilarImages(models.GroupingOptions{Threshold: 3, UseSSIM: true}); err != nil {
		t.Fatalf("GroupSimilarImages failed: %v", err)
	}

	// Base compared against two candidates: three distinct images, three
	// decodes, no repeats.
	if decoder.decodes != 3 {
		t.Errorf("decoded %d times, want 3 (one per image)", decoder.decodes)
	}
}

func TestGroupSimilarImages_HashLengthMismatchFails(t *testing.T) {
	store := &fakeStore{images: []*models.ImageRecord{
		record("a", withDistance(0)),
		record("b", "abc"),
	}}
	g := New(store, &fakeDecoder{})

	_, err := g.GroupSimilarImages(noSSIMOptions(3))
	if err == nil {
		t.Fatal("expected hash length mismatch to fail the run")
	}
	if g.State() != StateFailed {
		t.Errorf("state = %s, want failed", g.State())
	}
}

func TestGroupSimilarImages_StorageFailureKeepsEarlierGroups(t *testing.T) {
	store := &fakeStore{images: []*models.ImageRecord{
		record("a1", withDistance(0)),
		record("a2", withDistance(1)),
		record("b1", strings.Repeat("8", 16)),
		record("b2", strings.Repeat("8", 15) + "9"),
	}}

	g := New(store, &fakeDecoder{})
	opts := noSSIMOptions(3)
	boom := errors.New("disk full")
	opts.Progress = func(processed, total int, status string) {
		// Fail storage after the first group has been persisted.
		if processed == 1 {
			store.createErr = boom
		}
	}

	groups, err := g.GroupSimilarImages(opts)
	if !errors.Is(err, boom) {
		t.Fatalf("expected storage error to propagate, got %v", err)
	}
	if g.State() != StateFailed {
		t.Errorf("state = %s, want failed", g.State())
	}
	if len(groups) != 1 {
		t.Errorf("groups created before the failure must be kept, got %d", len(groups))
	}
	if len(store.groups) != 1 {
		t.Errorf("store should still hold the earlier group, got %d", len(store.groups))
	}
}

func TestGroupSimilarImages_GreedyNotTransitive(t *testing.T) {
	// d(a,b) <= threshold, d(b,c) <= threshold but d(a,c) above it: c is
	// not pulled into a's group, and b is already consumed when c's turn
	// comes. Input order decides the outcome.
	store := &fakeStore{images: []*models.ImageRecord{
		record("a", withDistance(0)),
		record("b", withDistance(2)),
		record("c", withDistance(4)),
	}}
	g := New(store, &fakeDecoder{})
	groups, err := g.GroupSimilarImages(noSSIMOptions(2))
	if err != nil {
		t.Fatalf("GroupSimilarImages failed: %v", err)
	}

	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if len(groups[0].MemberIDs) != 2 || groups[0].MemberIDs[0] != "a" || groups[0].MemberIDs[1] != "b" {
		t.Errorf("expected group [a b], got %v", groups[0].MemberIDs)
	}
	if store.byID("c").GroupID != "" {
		t.Error("c must remain ungrouped: similarity is not transitively closed")
	}
}

func TestGroupSimilarImages_ProgressReporting(t *testing.T) {
	store := &fakeStore{images: []*models.ImageRecord{
		record("a", withDistance(0)),
		record("b", withDistance(1)),
		record("c", strings.Repeat("9", 16)),
	}}

	var calls []int
	var lastStatus string
	g := New(store, &fakeDecoder{})
	opts := noSSIMOptions(3)
	opts.Progress = func(processed, total int, status string) {
		if total != 3 {
			t.Errorf("total = %d, want 3", total)
		}
		calls = append(calls, processed)
		lastStatus = status
	}

	if _, err := g.GroupSimilarImages(opts); err != nil {
		t.Fatalf("GroupSimilarImages failed: %v", err)
	}

	if len(calls) != 3 || calls[2] != 3 {
		t.Errorf("progress calls = %v, want one per base image ending at 3", calls)
	}
	if !strings.Contains(lastStatus, "c.jpg") {
		t.Errorf("status %q should name the file being grouped", lastStatus)
	}
}

func TestRegroupAll_ReproducesMembership(t *testing.T) {
	store := &fakeStore{images: []*models.ImageRecord{
		record("a1", withDistance(0)),
		record("a2", withDistance(1)),
		record("b1", strings.Repeat("7", 16)),
		record("b2", strings.Repeat("7", 15) + "6"),
	}}

	g := New(store, &fakeDecoder{})
	first, err := g.GroupSimilarImages(noSSIMOptions(3))
	if err != nil {
		t.Fatalf("GroupSimilarImages failed: %v", err)
	}

	second, err := g.RegroupAll(noSSIMOptions(3))
	if err != nil {
		t.Fatalf("RegroupAll failed: %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("regroup produced %d groups, want %d", len(second), len(first))
	}
	for i := range first {
		if first[i].ID == second[i].ID {
			t.Errorf("regroup must mint new group ids, got %s twice", first[i].ID)
		}
		if strings.Join(first[i].MemberIDs, ",") != strings.Join(second[i].MemberIDs, ",") {
			t.Errorf("group %d membership changed: %v vs %v", i, first[i].MemberIDs, second[i].MemberIDs)
		}
	}
}

func TestDisbandAllGroups(t *testing.T) {
	store := &fakeStore{images: []*models.ImageRecord{
		record("a", withDistance(0)),
		record("b", withDistance(1)),
	}}
	g := New(store, &fakeDecoder{})
	if _, err := g.GroupSimilarImages(noSSIMOptions(3)); err != nil {
		t.Fatalf("GroupSimilarImages failed: %v", err)
	}
	if len(store.groups) != 1 {
		t.Fatalf("expected 1 group before disband, got %d", len(store.groups))
	}

	if err := g.DisbandAllGroups(); err != nil {
		t.Fatalf("DisbandAllGroups failed: %v", err)
	}
	if len(store.groups) != 0 {
		t.Errorf("expected no groups after disband, got %d", len(store.groups))
	}
	for _, img := range store.images {
		if img.GroupID != "" || img.IsAutoPick {
			t.Errorf("image %s still carries group state", img.ID)
		}
	}
}
