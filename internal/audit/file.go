package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"tutorhub-portal/internal/model"
	"tutorhub-portal/pkg/apierror"
)

// FileSink appends entries as JSON lines.
type FileSink struct {
	filePath string
	mu       sync.Mutex
}

func NewFileSink(filePath string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("prepare audit directory: %w", err)
	}

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		if err := os.WriteFile(filePath, []byte{}, 0o644); err != nil {
			return nil, fmt.Errorf("initialize audit file: %w", err)
		}
	}

	return &FileSink{filePath: filePath}, nil
}

func (s *FileSink) Append(_ context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(data, '\n'))
	return err
}

func (s *FileSink) Query(_ context.Context, q Query) ([]Entry, model.Meta, error) {
	q.normalize()

	from, err := parseOptionalTime(strings.TrimSpace(q.From))
	if err != nil {
		return nil, model.Meta{}, apierror.New("BAD_REQUEST", "invalid 'from' datetime format", q.From, http.StatusBadRequest)
	}
	to, err := parseOptionalTime(strings.TrimSpace(q.To))
	if err != nil {
		return nil, model.Meta{}, apierror.New("BAD_REQUEST", "invalid 'to' datetime format", q.To, http.StatusBadRequest)
	}

	action := strings.ToLower(strings.TrimSpace(q.Action))
	email := strings.ToLower(strings.TrimSpace(q.Email))

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.filePath)
	if err != nil {
		return nil, model.Meta{}, err
	}
	defer f.Close()

	type timed struct {
		entry Entry
		at    time.Time
	}
	matched := make([]timed, 0, 128)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var entry Entry
		if json.Unmarshal([]byte(line), &entry) != nil {
			continue
		}

		if action != "" && strings.ToLower(entry.Action) != action {
			continue
		}
		if email != "" && strings.ToLower(entry.Email) != email {
			continue
		}
		if q.UserID != 0 && entry.UserID != q.UserID {
			continue
		}

		at, err := parseTime(entry.OccurredAt)
		if err != nil {
			continue
		}
		if !from.IsZero() && at.Before(from) {
			continue
		}
		if !to.IsZero() && at.After(to) {
			continue
		}

		matched = append(matched, timed{entry: entry, at: at})
	}
	if err := scanner.Err(); err != nil {
		return nil, model.Meta{}, err
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].at.After(matched[j].at)
	})

	total := len(matched)
	start := min((q.Page-1)*q.Limit, total)
	end := min(start+q.Limit, total)

	items := make([]Entry, 0, end-start)
	for _, m := range matched[start:end] {
		items = append(items, m.entry)
	}
	return items, pageMeta(q, total), nil
}
