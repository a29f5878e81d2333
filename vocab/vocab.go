/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package vocab loads the word list that rounds draw their cards from.
package vocab

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
)

// ErrEmpty is returned when a source yields no usable entries.
var ErrEmpty = errors.New("vocabulary is empty")

// Entry is a single word with its detail line and alternative definitions.
type Entry struct {
	Word        string
	WordDetail  string
	Definitions []string
}

// Vocabulary is an immutable, non-empty, ordered list of entries.
type Vocabulary struct {
	entries []Entry
}

// New returns a Vocabulary holding a copy of entries.
func New(entries []Entry) (*Vocabulary, error) {
	if len(entries) == 0 {
		return nil, ErrEmpty
	}

	out := make([]Entry, len(entries))
	for i, e := range entries {
		if len(e.Definitions) == 0 {
			return nil, fmt.Errorf("entry %d (%q) has no definitions", i+1, e.Word)
		}
		e.Definitions = append([]string(nil), e.Definitions...)
		out[i] = e
	}

	return &Vocabulary{entries: out}, nil
}

func (v *Vocabulary) Len() int {
	return len(v.entries)
}

// At returns a copy of the i'th entry.
func (v *Vocabulary) At(i int) Entry {
	e := v.entries[i]
	e.Definitions = append([]string(nil), e.Definitions...)
	return e
}

// Random returns a copy of a uniformly chosen entry.
func (v *Vocabulary) Random() Entry {
	return v.At(rand.Intn(len(v.entries)))
}

// Open loads a vocabulary from path, choosing the loader by file extension.
func Open(path string) (*Vocabulary, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return OpenSQLite(path)
	default:
		return LoadTSV(path)
	}
}

// LoadTSV reads a tab-separated vocabulary file.
func LoadTSV(path string) (*Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	v, err := ParseTSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return v, nil
}

// ParseTSV reads tab-separated records with a header row naming the word,
// word_detail and definition columns. Definitions are slash-separated.
func ParseTSV(r io.Reader) (*Vocabulary, error) {
	rdr := csv.NewReader(r)
	rdr.Comma = '\t'
	rdr.ReuseRecord = true

	header, err := rdr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmpty
	}
	if err != nil {
		return nil, err
	}

	cols, err := columns(header)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for {
		record, err := rdr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		line, _ := rdr.FieldPos(0)

		e := Entry{
			Word:        record[cols[0]],
			WordDetail:  record[cols[1]],
			Definitions: SplitDefinitions(record[cols[2]]),
		}
		if len(e.Definitions) == 0 {
			return nil, fmt.Errorf("line %d: %q has no definitions", line, e.Word)
		}

		entries = append(entries, e)
	}

	return New(entries)
}

// SplitDefinitions splits a slash-separated definition list, dropping blanks.
func SplitDefinitions(s string) []string {
	parts := strings.Split(s, "/")

	defs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		defs = append(defs, p)
	}

	return defs
}

// columns maps the header to the indices of word, word_detail and definition.
func columns(header []string) ([3]int, error) {
	idx := [3]int{-1, -1, -1}

	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "word":
			idx[0] = i
		case "word_detail", "worddetail", "word-detail":
			idx[1] = i
		case "definition", "definitions":
			idx[2] = i
		}
	}

	for i, name := range []string{"word", "word_detail", "definition"} {
		if idx[i] < 0 {
			return idx, fmt.Errorf("missing %q column in header", name)
		}
	}

	return idx, nil
}
