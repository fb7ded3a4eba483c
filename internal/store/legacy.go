package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Legacy document names inside the data directory.
const (
	LegacyGroupsFile = "groups.json"
	LegacySudoFile   = "sudo_admins.json"
)

type legacyGroup struct {
	Title                 string     `json:"title"`
	FirstJoined           legacyTime `json:"first_joined"`
	LastActive            legacyTime `json:"last_active"`
	NeedsVerification     bool       `json:"needs_verification"`
	NotificationsDisabled bool       `json:"notifications_disabled"`
}

type legacySudoDoc struct {
	Admins []struct {
		ID        json.Number `json:"id"`
		Name      string      `json:"name"`
		AddedDate legacyTime  `json:"added_date"`
		AddedBy   json.Number `json:"added_by"`
	} `json:"admins"`
	LastUpdated legacyTime `json:"last_updated"`
}

// legacyTime accepts ISO-8601 timestamps with or without a zone.
type legacyTime struct {
	time.Time
}

func (t *legacyTime) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// ImportResult reports how many legacy records were written.
type ImportResult struct {
	Groups int
	Admins int
}

// ImportLegacy loads groups.json and sudo_admins.json from dir into an empty
// store. Tables that already hold rows are skipped, so the import runs once.
func (s *SQLiteStore) ImportLegacy(ctx context.Context, dir string, now time.Time) (ImportResult, error) {
	var result ImportResult

	groupCount, err := s.Groups.Count(ctx)
	if err != nil {
		return result, err
	}
	if groupCount == 0 {
		n, err := s.importGroups(ctx, filepath.Join(dir, LegacyGroupsFile), now)
		if err != nil {
			return result, fmt.Errorf("import groups: %w", err)
		}
		result.Groups = n
	}

	sudoCount, err := s.Sudo.Count(ctx)
	if err != nil {
		return result, err
	}
	if sudoCount == 0 {
		n, err := s.importSudo(ctx, filepath.Join(dir, LegacySudoFile), now)
		if err != nil {
			return result, fmt.Errorf("import sudo admins: %w", err)
		}
		result.Admins = n
	}

	return result, nil
}

func readLegacy(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLiteStore) importGroups(ctx context.Context, path string, now time.Time) (int, error) {
	doc := map[string]legacyGroup{}
	ok, err := readLegacy(path, &doc)
	if err != nil || !ok {
		return 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	n := 0
	for key, g := range doc {
		if _, err := strconv.ParseInt(key, 10, 64); err != nil {
			continue
		}
		first := g.FirstJoined.Time
		if first.IsZero() {
			first = now
		}
		last := g.LastActive.Time
		if last.IsZero() {
			last = first
		}
		_, err := tx.NamedExecContext(ctx, `
			INSERT INTO groups (id, title, first_joined, last_active, needs_verification, notifications_disabled)
			VALUES (:id, :title, :first_joined, :last_active, :needs_verification, :notifications_disabled)
			ON CONFLICT(id) DO NOTHING`,
			&Group{
				ID:                    key,
				Title:                 g.Title,
				FirstJoined:           first,
				LastActive:            last,
				NeedsVerification:     g.NeedsVerification,
				NotificationsDisabled: g.NotificationsDisabled,
			},
		)
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, tx.Commit()
}

func (s *SQLiteStore) importSudo(ctx context.Context, path string, now time.Time) (int, error) {
	var doc legacySudoDoc
	ok, err := readLegacy(path, &doc)
	if err != nil || !ok {
		return 0, err
	}

	n := 0
	for _, a := range doc.Admins {
		if a.ID.String() == "" {
			continue
		}
		added := a.AddedDate.Time
		if added.IsZero() {
			added = now
		}
		inserted, err := s.Sudo.Add(ctx, &SudoAdmin{
			ID:        a.ID.String(),
			Name:      a.Name,
			AddedDate: added,
			AddedBy:   a.AddedBy.String(),
		})
		if err != nil {
			return n, err
		}
		if inserted {
			n++
		}
	}
	return n, nil
}
