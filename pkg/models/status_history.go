package models

import (
	"encoding/json"
	"time"
)

// StatusEntry is one audit record of an application status change.
type StatusEntry struct {
	Status ApplicationStatus `json:"status"`
	Date   time.Time         `json:"date"`
	Note   string            `json:"note"`
}

// StatusHistory is an append-only log. Entries already recorded are never
// edited or removed; Entries hands out copies.
type StatusHistory struct {
	entries []StatusEntry
}

func NewStatusHistory(first StatusEntry) StatusHistory {
	return StatusHistory{entries: []StatusEntry{first}}
}

// Append records e after every existing entry. The backing array is never
// shared with another copy of the history.
func (h *StatusHistory) Append(e StatusEntry) {
	h.entries = append(h.entries[:len(h.entries):len(h.entries)], e)
}

func (h StatusHistory) Entries() []StatusEntry {
	out := make([]StatusEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h StatusHistory) Len() int {
	return len(h.entries)
}

func (h StatusHistory) First() (StatusEntry, bool) {
	if len(h.entries) == 0 {
		return StatusEntry{}, false
	}
	return h.entries[0], true
}

func (h StatusHistory) Last() (StatusEntry, bool) {
	if len(h.entries) == 0 {
		return StatusEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

func (h StatusHistory) MarshalJSON() ([]byte, error) {
	if h.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h.entries)
}

func (h *StatusHistory) UnmarshalJSON(data []byte) error {
	var entries []StatusEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	h.entries = entries
	return nil
}
