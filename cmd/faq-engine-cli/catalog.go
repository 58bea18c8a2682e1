package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/palasgaonkar-vishal/el-scooter-chat-assist-sub000/internal/faq"
)

// catalogFile is the on-disk YAML form of an FAQ set.
type catalogFile struct {
	FAQs []catalogEntry `yaml:"faqs"`
}

type catalogEntry struct {
	ID       string   `yaml:"id"`
	Question string   `yaml:"question"`
	Answer   string   `yaml:"answer"`
	Category string   `yaml:"category,omitempty"`
	Models   []string `yaml:"models,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
	// Active defaults to true when omitted.
	Active *bool `yaml:"active,omitempty"`
}

// loadCatalog reads and validates an FAQ catalog file.
func loadCatalog(path string) ([]faq.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return parseCatalog(data)
}

func parseCatalog(data []byte) ([]faq.Entry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	seen := make(map[string]struct{}, len(file.FAQs))
	entries := make([]faq.Entry, 0, len(file.FAQs))
	for i, ce := range file.FAQs {
		id := strings.TrimSpace(ce.ID)
		if id == "" {
			return nil, fmt.Errorf("faq #%d: id is required", i+1)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("faq %q: duplicate id", id)
		}
		seen[id] = struct{}{}

		entry := faq.Entry{
			ID:               id,
			Question:         ce.Question,
			Answer:           ce.Answer,
			ApplicableModels: faq.ParseModels(ce.Models),
			Tags:             ce.Tags,
			IsActive:         ce.Active == nil || *ce.Active,
		}
		if ce.Category != "" {
			category, err := faq.ParseCategory(ce.Category)
			if err != nil {
				return nil, fmt.Errorf("faq %q: %w", id, err)
			}
			entry.Category = category
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// writeCatalog encodes entries in catalog form. onEntry is called after each
// entry is added.
func writeCatalog(w io.Writer, entries []faq.Entry, onEntry func()) error {
	file := catalogFile{FAQs: make([]catalogEntry, 0, len(entries))}
	for _, e := range entries {
		active := e.IsActive
		models := make([]string, 0, len(e.ApplicableModels))
		for _, m := range e.ApplicableModels {
			models = append(models, string(m))
		}
		file.FAQs = append(file.FAQs, catalogEntry{
			ID:       e.ID,
			Question: e.Question,
			Answer:   e.Answer,
			Category: string(e.Category),
			Models:   models,
			Tags:     e.Tags,
			Active:   &active,
		})
		if onEntry != nil {
			onEntry()
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}
	return enc.Close()
}
