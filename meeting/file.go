package meeting

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// FileSource reads meetings from a JSON file maintained by the calendar
// import step. Each read folds the file's contents into what was already
// listed, so a re-import updates known meetings in place and never drops an
// entry the operator is still looking at. Dedupe by id happens here on the
// collaborator side of the boundary.
type FileSource struct {
	Path string

	mu     sync.Mutex
	listed []Meeting
}

func (f *FileSource) Meetings() ([]Meeting, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return f.snapshot(), nil
		}
		return nil, fmt.Errorf("reading meetings file: %w", err)
	}
	var imported []Meeting
	if err := json.Unmarshal(data, &imported); err != nil {
		return nil, fmt.Errorf("parsing meetings file: %w", err)
	}

	f.mu.Lock()
	f.listed = Merge(f.listed, imported)
	f.mu.Unlock()
	return f.snapshot(), nil
}

func (f *FileSource) snapshot() []Meeting {
	f.mu.Lock()
	meetings := append([]Meeting(nil), f.listed...)
	f.mu.Unlock()
	sort.SliceStable(meetings, func(i, j int) bool {
		return meetings[i].Time.Before(meetings[j].Time)
	})
	return meetings
}

// Merge folds newly-imported meetings into existing ones. An imported meeting
// with a known id replaces the stale entry in place.
func Merge(existing, imported []Meeting) []Meeting {
	byID := make(map[string]int, len(existing))
	out := append([]Meeting(nil), existing...)
	for i, m := range out {
		byID[m.ID] = i
	}
	for _, m := range imported {
		if i, ok := byID[m.ID]; ok {
			out[i] = m
			continue
		}
		byID[m.ID] = len(out)
		out = append(out, m)
	}
	return out
}
