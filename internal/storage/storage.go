// Package storage persists image records, groups and project statistics
// in a SQLite database.
package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"photocull/internal/models"
)

// Storage is the SQLite-backed persistence layer.
type Storage struct {
	db     *sql.DB
	dbPath string
}

// NewStorage opens (or creates) the database at dbPath and applies the
// schema.
func NewStorage(dbPath string) (*Storage, error) {
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Storage{db: db, dbPath: dbPath}
	if err := s.init(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Current schema version
const schemaVersion = 1

// init creates the database schema
func (s *Storage) init() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS images (
		id TEXT PRIMARY KEY,
		path TEXT UNIQUE NOT NULL,
		file_name TEXT NOT NULL,
		width INTEGER NOT NULL DEFAULT 0,
		height INTEGER NOT NULL DEFAULT 0,
		hash TEXT NOT NULL DEFAULT '',
		focus_score REAL,
		exposure_score REAL,
		faces TEXT NOT NULL DEFAULT '[]',
		rating INTEGER NOT NULL DEFAULT 0,
		group_id TEXT NOT NULL DEFAULT '',
		is_auto_pick INTEGER NOT NULL DEFAULT 0,
		file_size INTEGER NOT NULL DEFAULT 0,
		mod_time TEXT NOT NULL DEFAULT '',
		captured_at TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_images_hash ON images(hash);
	CREATE INDEX IF NOT EXISTS idx_images_group_id ON images(group_id);
	CREATE INDEX IF NOT EXISTS idx_images_path ON images(path);

	CREATE TABLE IF NOT EXISTS groups (
		id TEXT PRIMARY KEY,
		auto_pick_id TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS group_members (
		group_id TEXT NOT NULL,
		image_id TEXT NOT NULL,
		pos INTEGER NOT NULL,
		PRIMARY KEY (group_id, pos)
	);

	CREATE INDEX IF NOT EXISTS idx_group_members_image ON group_members(image_id);

	CREATE TABLE IF NOT EXISTS project_stats (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		total_images INTEGER NOT NULL DEFAULT 0,
		hashed_images INTEGER NOT NULL DEFAULT 0,
		grouped_images INTEGER NOT NULL DEFAULT 0,
		group_count INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL DEFAULT ''
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, schemaVersion)
	return nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveImages inserts or refreshes image records. Re-scanning an existing
// path updates its fingerprint and file metadata but preserves its id,
// quality signals, rating and group membership.
func (s *Storage) SaveImages(images []*models.ImageRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO images (id, path, file_name, width, height, hash, file_size, mod_time, captured_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			file_name = excluded.file_name,
			width = excluded.width,
			height = excluded.height,
			hash = excluded.hash,
			file_size = excluded.file_size,
			mod_time = excluded.mod_time,
			captured_at = excluded.captured_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, img := range images {
		var capturedAt any
		if img.CapturedAt != nil {
			capturedAt = img.CapturedAt.Format(time.RFC3339Nano)
		}
		_, err := stmt.Exec(
			img.ID,
			img.Path,
			img.FileName,
			img.Width,
			img.Height,
			img.Hash,
			img.FileSize,
			img.ModTime.Format(time.RFC3339Nano),
			capturedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert image %s: %w", img.Path, err)
		}
	}

	return tx.Commit()
}

const imageColumns = `id, path, file_name, width, height, hash, focus_score,
	exposure_score, faces, rating, group_id, is_auto_pick, file_size, mod_time, captured_at`

func scanImage(row interface{ Scan(...any) error }) (*models.ImageRecord, error) {
	img := &models.ImageRecord{}
	var focus, exposure sql.NullFloat64
	var facesJSON, modTime string
	var capturedAt sql.NullString
	var isAutoPick int

	err := row.Scan(
		&img.ID,
		&img.Path,
		&img.FileName,
		&img.Width,
		&img.Height,
		&img.Hash,
		&focus,
		&exposure,
		&facesJSON,
		&img.Rating,
		&img.GroupID,
		&isAutoPick,
		&img.FileSize,
		&modTime,
		&capturedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if focus.Valid {
		img.FocusScore = &focus.Float64
	}
	if exposure.Valid {
		img.ExposureScore = &exposure.Float64
	}
	if facesJSON != "" && facesJSON != "[]" {
		if err := json.Unmarshal([]byte(facesJSON), &img.Faces); err != nil {
			return nil, fmt.Errorf("failed to decode faces for %s: %w", img.Path, err)
		}
	}
	img.IsAutoPick = isAutoPick == 1
	img.ModTime, _ = time.Parse(time.RFC3339Nano, modTime)
	if capturedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, capturedAt.String); err == nil {
			img.CapturedAt = &t
		}
	}

	return img, nil
}

// ListImages returns all stored images in stable path order.
func (s *Storage) ListImages() ([]*models.ImageRecord, error) {
	rows, err := s.db.Query(`SELECT ` + imageColumns + ` FROM images ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to query images: %w", err)
	}
	defer rows.Close()

	var images []*models.ImageRecord
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// GetImageByPath returns the image stored under path, or nil if unknown.
func (s *Storage) GetImageByPath(path string) (*models.ImageRecord, error) {
	row := s.db.QueryRow(`SELECT `+imageColumns+` FROM images WHERE path = ?`, path)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

// UpdateSignals stores externally computed quality signals for an image.
func (s *Storage) UpdateSignals(path string, focus, exposure *float64, faces []models.Face) error {
	if faces == nil {
		faces = []models.Face{}
	}
	facesJSON, err := json.Marshal(faces)
	if err != nil {
		return fmt.Errorf("failed to encode faces: %w", err)
	}

	var focusVal, exposureVal any
	if focus != nil {
		focusVal = *focus
	}
	if exposure != nil {
		exposureVal = *exposure
	}

	res, err := s.db.Exec(`
		UPDATE images SET focus_score = ?, exposure_score = ?, faces = ?
		WHERE path = ?
	`, focusVal, exposureVal, string(facesJSON), path)
	if err != nil {
		return fmt.Errorf("failed to update signals for %s: %w", path, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no image stored for path %s", path)
	}
	return nil
}

// SetRating stores the user-assigned rating (0-5) for an image.
func (s *Storage) SetRating(path string, rating int) error {
	if rating < 0 || rating > 5 {
		return fmt.Errorf("rating %d out of range 0-5", rating)
	}
	res, err := s.db.Exec(`UPDATE images SET rating = ? WHERE path = ?`, rating, path)
	if err != nil {
		return fmt.Errorf("failed to set rating for %s: %w", path, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no image stored for path %s", path)
	}
	return nil
}

// ListGroups returns all groups with their member ids in stored order.
func (s *Storage) ListGroups() ([]*models.Group, error) {
	rows, err := s.db.Query(`
		SELECT g.id, g.auto_pick_id, m.image_id
		FROM groups g
		JOIN group_members m ON m.group_id = g.id
		ORDER BY g.created_at, g.id, m.pos
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	byID := make(map[string]*models.Group)
	for rows.Next() {
		var groupID, autoPickID, imageID string
		if err := rows.Scan(&groupID, &autoPickID, &imageID); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		group, ok := byID[groupID]
		if !ok {
			group = &models.Group{ID: groupID, AutoPickID: autoPickID}
			byID[groupID] = group
			groups = append(groups, group)
		}
		group.MemberIDs = append(group.MemberIDs, imageID)
	}
	return groups, rows.Err()
}

// CreateGroup inserts the group and sets group_id/is_auto_pick on every
// member in a single transaction: the group is never visible half-created.
func (s *Storage) CreateGroup(group *models.Group) error {
	if len(group.MemberIDs) < 2 {
		return fmt.Errorf("group must have at least 2 members, got %d", len(group.MemberIDs))
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO groups (id, auto_pick_id) VALUES (?, ?)`,
		group.ID, group.AutoPickID); err != nil {
		return fmt.Errorf("failed to insert group: %w", err)
	}

	memberStmt, err := tx.Prepare(`INSERT INTO group_members (group_id, image_id, pos) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer memberStmt.Close()

	imageStmt, err := tx.Prepare(`UPDATE images SET group_id = ?, is_auto_pick = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer imageStmt.Close()

	for pos, imageID := range group.MemberIDs {
		if _, err := memberStmt.Exec(group.ID, imageID, pos); err != nil {
			return fmt.Errorf("failed to insert member %s: %w", imageID, err)
		}
		isAutoPick := 0
		if imageID == group.AutoPickID {
			isAutoPick = 1
		}
		res, err := imageStmt.Exec(group.ID, isAutoPick, imageID)
		if err != nil {
			return fmt.Errorf("failed to update member %s: %w", imageID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("group member %s does not exist", imageID)
		}
	}

	return tx.Commit()
}

// DisbandGroup clears group_id/is_auto_pick on every member and deletes the
// group in a single transaction.
func (s *Storage) DisbandGroup(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE images SET group_id = '', is_auto_pick = 0 WHERE group_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear members: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM group_members WHERE group_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete members: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM groups WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}

	return tx.Commit()
}

// DeleteImages removes image rows and any group memberships pointing at
// them in a single transaction. Callers disband affected groups first so
// no group is left with fewer than two members.
func (s *Storage) DeleteImages(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.Exec(`DELETE FROM group_members WHERE image_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete memberships: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM images WHERE id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete image: %w", err)
		}
	}

	return tx.Commit()
}

// RecomputeStats refreshes the aggregate project counters.
func (s *Storage) RecomputeStats() error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO project_stats (id, total_images, hashed_images, grouped_images, group_count, updated_at)
		SELECT 1,
			(SELECT COUNT(*) FROM images),
			(SELECT COUNT(*) FROM images WHERE hash != ''),
			(SELECT COUNT(*) FROM images WHERE group_id != ''),
			(SELECT COUNT(*) FROM groups),
			?
	`, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to recompute stats: %w", err)
	}
	return nil
}

// GetStats returns the last recomputed project counters.
func (s *Storage) GetStats() (*models.ProjectStats, error) {
	stats := &models.ProjectStats{}
	var updatedAt string
	err := s.db.QueryRow(`
		SELECT total_images, hashed_images, grouped_images, group_count, updated_at
		FROM project_stats WHERE id = 1
	`).Scan(&stats.TotalImages, &stats.HashedImages, &stats.GroupedImages, &stats.GroupCount, &updatedAt)
	if err == sql.ErrNoRows {
		return stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query stats: %w", err)
	}
	stats.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return stats, nil
}
