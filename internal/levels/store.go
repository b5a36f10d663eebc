// Package levels loads the price-level document, evaluates levels
// against live ticks, and maintains auto-detected support/resistance
// entries.
package levels

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"tradewatch/internal/logger"
	"tradewatch/internal/models"
)

// document is the on-disk shape of the level file.
type document struct {
	Levels map[string][]models.PriceLevel `yaml:"levels"`
}

// Store reads and writes the YAML level document. Auto-detected levels
// share the file with user-entered ones; saves preserve entries the
// auto-detector does not own.
type Store struct {
	path string
}

// NewStore creates a store for the document at path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads the document and validates every level. A missing file is
// not an error; it yields an empty level set so the watcher can run
// before the user has written any levels. Invalid entries are dropped
// with a warning so one bad line never takes the rest of the file down
// with it.
func (s *Store) Load() (map[string][]models.PriceLevel, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn("Level file %s not found, starting with no levels", s.path)
			return map[string][]models.PriceLevel{}, nil
		}
		return nil, fmt.Errorf("failed to read level file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse level file: %w", err)
	}
	if doc.Levels == nil {
		doc.Levels = map[string][]models.PriceLevel{}
	}

	for symbol, lvls := range doc.Levels {
		valid := lvls[:0]
		for _, l := range lvls {
			if err := l.Validate(); err != nil {
				logger.Warn("Skipping invalid level %q for %s: %v", l.ID, symbol, err)
				continue
			}
			valid = append(valid, l)
		}
		if len(valid) == 0 {
			delete(doc.Levels, symbol)
		} else {
			doc.Levels[symbol] = valid
		}
	}

	return doc.Levels, nil
}

// Save writes the full level set back to disk.
func (s *Store) Save(all map[string][]models.PriceLevel) error {
	data, err := yaml.Marshal(document{Levels: all})
	if err != nil {
		return fmt.Errorf("failed to marshal levels: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write level file: %w", err)
	}
	return nil
}

// ReplaceDynamic swaps the auto-detected entries for one symbol while
// keeping its user-entered levels untouched, then persists the result.
func (s *Store) ReplaceDynamic(symbol string, detected []models.PriceLevel) error {
	all, err := s.Load()
	if err != nil {
		return err
	}

	var kept []models.PriceLevel
	for _, l := range all[symbol] {
		if !l.Dynamic {
			kept = append(kept, l)
		}
	}
	merged := append(kept, detected...)
	sort.Slice(merged, func(i, j int) bool { return merged[i].Price < merged[j].Price })

	if len(merged) == 0 {
		delete(all, symbol)
	} else {
		all[symbol] = merged
	}
	return s.Save(all)
}
