package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/okian/eventmatch/internal/domain/model"
)

// Seed file names read by Import.
const (
	EventsFile        = "events.csv"
	UsersFile         = "user_profiles.csv"
	ParticipationFile = "past_participation.csv"
	InterestsFile     = "previous_interests.csv"
)

// UnknownEventName replaces blank event names on import.
const UnknownEventName = "Unknown Event"

// ImportStats counts the rows loaded by Import.
type ImportStats struct {
	Events        int `json:"events"`
	Users         int `json:"users"`
	Participation int `json:"participation"`
	Interests     int `json:"interests"`
}

// Import loads the seed CSV files found in dir into store. The events and
// user files are required; participation and interest history are optional.
func Import(ctx context.Context, store Store, dir string) (ImportStats, error) {
	var stats ImportStats

	events, err := readCSV(filepath.Join(dir, EventsFile), "event_id", "name")
	if err != nil {
		return stats, err
	}
	for _, row := range events {
		e, err := parseEventRow(row)
		if err != nil {
			return stats, err
		}
		if err := store.PutEvent(ctx, e); err != nil {
			return stats, err
		}
		stats.Events++
	}

	users, err := readCSV(filepath.Join(dir, UsersFile), "user_id", "email")
	if err != nil {
		return stats, err
	}
	for _, row := range users {
		u, err := parseUserRow(row)
		if err != nil {
			return stats, err
		}
		if err := store.PutUser(ctx, u); err != nil {
			return stats, err
		}
		stats.Users++
	}

	participation, err := readCSV(filepath.Join(dir, ParticipationFile), "user_id", "event_ids")
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return stats, err
	default:
		for _, row := range participation {
			userID, err := parseID(row, "user_id")
			if err != nil {
				return stats, err
			}
			ids, err := ParseEventIDs(row["event_ids"])
			if err != nil {
				return stats, fmt.Errorf("%s line %s: %w", ParticipationFile, row[lineKey], err)
			}
			if err := store.AddParticipation(ctx, userID, ids...); err != nil {
				return stats, err
			}
			stats.Participation += len(ids)
		}
	}

	interests, err := readCSV(filepath.Join(dir, InterestsFile), "user_id", "interest")
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return stats, err
	default:
		for _, row := range interests {
			userID, err := parseID(row, "user_id")
			if err != nil {
				return stats, err
			}
			if strings.TrimSpace(row["interest"]) == "" {
				continue
			}
			if err := store.AddInterest(ctx, userID, row["interest"]); err != nil {
				return stats, err
			}
			stats.Interests++
		}
	}

	return stats, nil
}

// ParseEventIDs accepts "[1, 2, 3]", "1;2;3" or "1 2 3". Blank input yields
// no ids.
func ParseEventIDs(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == ' ' || r == '\t'
	})
	out := make([]int64, 0, len(fields))
	for _, f := range fields {
		id, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("event id %q: %w", f, ErrInvalidRow)
		}
		out = append(out, id)
	}
	return out, nil
}

const lineKey = "\x00line"

// readCSV returns one map per data row keyed by lower-cased header name.
func readCSV(path string, required ...string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file: %w", path, ErrInvalidRow)
	}

	header := make([]string, len(records[0]))
	present := make(map[string]bool, len(header))
	for i, col := range records[0] {
		header[i] = strings.ToLower(strings.TrimSpace(col))
		present[header[i]] = true
	}
	for _, col := range required {
		if !present[col] {
			return nil, fmt.Errorf("%s: missing column %q: %w", path, col, ErrInvalidRow)
		}
	}

	rows := make([]map[string]string, 0, len(records)-1)
	for i, record := range records[1:] {
		row := make(map[string]string, len(header)+1)
		for j, col := range header {
			if j < len(record) {
				row[col] = strings.TrimSpace(record[j])
			}
		}
		row[lineKey] = strconv.Itoa(i + 2)
		rows = append(rows, row)
	}
	return rows, nil
}

func parseID(row map[string]string, col string) (int64, error) {
	id, err := strconv.ParseInt(row[col], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("line %s: %s %q: %w", row[lineKey], col, row[col], ErrInvalidRow)
	}
	return id, nil
}

func parseEventRow(row map[string]string) (model.Event, error) {
	id, err := parseID(row, "event_id")
	if err != nil {
		return model.Event{}, err
	}
	e := model.Event{ID: id, Name: row["name"], Description: row["description"]}
	if e.Name == "" {
		e.Name = UnknownEventName
	}
	if e.Description == "" {
		e.Description = e.Name
	}
	if d := row["date"]; d != "" {
		t, err := time.Parse(model.DateLayout, d)
		if err != nil {
			return model.Event{}, fmt.Errorf("line %s: date %q: %w", row[lineKey], d, ErrInvalidRow)
		}
		e.Date = t
	}
	return e, nil
}

func parseUserRow(row map[string]string) (model.User, error) {
	id, err := parseID(row, "user_id")
	if err != nil {
		return model.User{}, err
	}
	return model.User{
		ID:       id,
		Name:     row["name"],
		Email:    row["email"],
		Interest: row["interests"],
	}, nil
}
