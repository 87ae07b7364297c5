package server

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// StaticEntry is one canned answer. Match is compared case-insensitively as a
// substring of the question.
type StaticEntry struct {
	Match     string     `yaml:"match"`
	Answer    string     `yaml:"answer"`
	Citations []Citation `yaml:"citations,omitempty"`
}

type staticFile struct {
	Fallback string        `yaml:"fallback"`
	Entries  []StaticEntry `yaml:"entries"`
}

// StaticAnswerer answers from a fixed list of entries, first match wins.
type StaticAnswerer struct {
	Fallback string
	Entries  []StaticEntry
}

func LoadStaticAnswerer(path string) (*StaticAnswerer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open answers file")
	}
	defer func() { _ = f.Close() }()
	return ReadStaticAnswerer(f)
}

func ReadStaticAnswerer(r io.Reader) (*StaticAnswerer, error) {
	var sf staticFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Wrap(err, "parse answers file")
	}
	for i, e := range sf.Entries {
		if strings.TrimSpace(e.Match) == "" {
			return nil, errors.Errorf("entry %d has an empty match", i)
		}
		if strings.TrimSpace(e.Answer) == "" {
			return nil, errors.Errorf("entry %d (%q) has an empty answer", i, e.Match)
		}
	}
	if sf.Fallback == "" {
		sf.Fallback = "I don't know the answer to that yet."
	}
	return &StaticAnswerer{Fallback: sf.Fallback, Entries: sf.Entries}, nil
}

func (s *StaticAnswerer) Answer(_ context.Context, question string) (Answer, error) {
	q := strings.ToLower(question)
	for _, e := range s.Entries {
		if strings.Contains(q, strings.ToLower(e.Match)) {
			return Answer{Text: e.Answer, Citations: e.Citations}, nil
		}
	}
	return Answer{Text: s.Fallback}, nil
}
