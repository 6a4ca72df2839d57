package suggest

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/teemow/outreach/internal/atomicfile"
)

// ErrNoSuggestions is returned by Load when nothing has been suggested yet.
var ErrNoSuggestions = errors.New("no suggestions saved; run suggest first")

// Save writes s to path so a later selection can refer to it by number.
func Save(path string, s *Suggestions) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	if err := atomicfile.WriteBytes(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("saving suggestions: %w", err)
	}
	return nil
}

// Load reads the suggestions saved at path.
func Load(path string) (*Suggestions, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSuggestions
	}
	if err != nil {
		return nil, fmt.Errorf("reading suggestions: %w", err)
	}

	s := &Suggestions{}
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing suggestions %s: %w", path, err)
	}
	return s, nil
}
