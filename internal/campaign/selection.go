package campaign

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/teemow/outreach/internal/atomicfile"
)

// ErrNoSelection is returned when no final selection has been saved yet.
var ErrNoSelection = errors.New("no subject and message selected; run suggest and select first")

// Selection is the subject and message chosen for a campaign.
// The numbers are 1-based indexes into the suggestions they were picked
// from, or zero for text entered directly.
type Selection struct {
	Subject       string    `json:"selected_subject"`
	Message       string    `json:"selected_message"`
	SubjectNumber int       `json:"selected_subject_number,omitempty"`
	MessageNumber int       `json:"selected_message_number,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Template returns the normalized template of the selection.
func (s Selection) Template() Template {
	return Template{Subject: s.Subject, Body: s.Message}.Normalize()
}

// LoadSelection reads the selection at path. A missing file yields
// ErrNoSelection.
func LoadSelection(path string) (Selection, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Selection{}, ErrNoSelection
	}
	if err != nil {
		return Selection{}, fmt.Errorf("reading selection: %w", err)
	}

	var sel Selection
	if err := json.Unmarshal(data, &sel); err != nil {
		return Selection{}, fmt.Errorf("parsing selection %s: %w", path, err)
	}
	if sel.Template().Empty() {
		return Selection{}, fmt.Errorf("selection %s: %w", path, ErrNoSelection)
	}
	return sel, nil
}

// SaveSelection writes sel to path, stamping it with the current time if it
// has none.
func SaveSelection(path string, sel Selection) error {
	if sel.Template().Empty() {
		return errors.New("subject and message must not be empty")
	}
	if sel.Timestamp.IsZero() {
		sel.Timestamp = time.Now()
	}

	data, err := json.MarshalIndent(sel, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicfile.WriteBytes(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("saving selection: %w", err)
	}
	return nil
}
