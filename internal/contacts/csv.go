package contacts

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
)

const utf8BOM = "\ufeff"

// Load parses a contact collection from r. source names the input in errors.
// The email column is required; influencer_name is optional and blank names
// load as UnknownName. Rows without an email are skipped and a repeated email
// keeps its first occurrence.
func Load(r io.Reader, source string) (*Set, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &MalformedSourceError{Source: source, Column: ColumnEmail}
	}
	if err != nil {
		return nil, &MalformedSourceError{Source: source, Err: err}
	}

	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], utf8BOM))
	}

	emailIdx, nameIdx := -1, -1
	for i, col := range header {
		switch strings.ToLower(col) {
		case ColumnEmail:
			if emailIdx < 0 {
				emailIdx = i
				header[i] = ColumnEmail
			}
		case ColumnName:
			if nameIdx < 0 {
				nameIdx = i
				header[i] = ColumnName
			}
		}
	}
	if emailIdx < 0 {
		return nil, &MalformedSourceError{Source: source, Column: ColumnEmail}
	}

	set := NewSet(header)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &MalformedSourceError{Source: source, Err: err}
		}

		c := Contact{Name: UnknownName}
		for i, value := range record {
			if i >= len(header) {
				break
			}
			switch i {
			case emailIdx:
				c.Email = value
			case nameIdx:
				if v := strings.TrimSpace(value); v != "" {
					c.Name = v
				}
			default:
				if c.Extra == nil {
					c.Extra = make(map[string]string)
				}
				c.Extra[header[i]] = value
			}
		}
		set.add(c)
	}
	return set, nil
}

// LoadFile opens path and loads it with Load.
func LoadFile(path string) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, path)
}

// Write serializes set as CSV, header first.
func Write(w io.Writer, set *Set) error {
	writer := csv.NewWriter(w)
	header := set.header
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, c := range set.contacts {
		record := make([]string, len(header))
		for i, col := range header {
			switch col {
			case ColumnEmail:
				record[i] = c.Email
			case ColumnName:
				record[i] = c.DisplayName()
			default:
				record[i] = c.Extra[col]
			}
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// mergeHeader returns base extended with the default columns and every extra
// column used by contacts that base does not have yet.
func mergeHeader(base []string, contacts []Contact) []string {
	header := make([]string, 0, len(base)+2)
	seen := make(map[string]struct{}, len(base)+2)
	for _, col := range base {
		if _, ok := seen[col]; ok {
			continue
		}
		seen[col] = struct{}{}
		header = append(header, col)
	}
	for _, col := range DefaultHeader {
		if _, ok := seen[col]; !ok {
			seen[col] = struct{}{}
			header = append(header, col)
		}
	}

	var extra []string
	for _, c := range contacts {
		for col := range c.Extra {
			if _, ok := seen[col]; !ok {
				seen[col] = struct{}{}
				extra = append(extra, col)
			}
		}
	}
	sort.Strings(extra)
	return append(header, extra...)
}
