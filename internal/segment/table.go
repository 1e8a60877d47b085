package segment

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/lexiqai/inquiry-analyzer/internal/stt"
)

// Table holds the active tier parameters. Readers take a Snapshot once per
// request; reloads swap the whole table atomically.
type Table struct {
	current atomic.Pointer[Params]
	logger  zerolog.Logger
}

// NewTable creates a table holding the built-in defaults
func NewTable(logger zerolog.Logger) *Table {
	t := &Table{logger: logger.With().Str("component", "tier_table").Logger()}
	defaults := DefaultParams()
	t.current.Store(&defaults)
	return t
}

// Snapshot returns the current parameters. The returned map must not be modified.
func (t *Table) Snapshot() Params {
	return *t.current.Load()
}

// Load replaces the table with the override file at path. On error the
// previous table stays active.
func (t *Table) Load(path string) error {
	params, err := LoadTableFile(path)
	if err != nil {
		return err
	}
	t.current.Store(&params)
	t.logger.Info().Str("path", path).Msg("Tier table loaded")
	return nil
}

// tierFile is the YAML layout of an override file:
//
//	tiers:
//	  long:
//	    window_seconds: 30
//	    overlap_seconds: 2
//	    max_length: 448
//	    beams: 5
//	    no_repeat_ngram: 3
type tierFile struct {
	Tiers map[string]tierEntry `yaml:"tiers"`
}

type tierEntry struct {
	WindowSeconds  *float64 `yaml:"window_seconds"`
	OverlapSeconds *float64 `yaml:"overlap_seconds"`
	MaxLength      *int     `yaml:"max_length"`
	Beams          *int     `yaml:"beams"`
	NoRepeatNgram  *int     `yaml:"no_repeat_ngram"`
}

// LoadTableFile reads a YAML override and merges it over the defaults.
// Only tiers and fields present in the file change. Duration thresholds
// between tiers are not configurable.
func LoadTableFile(path string) (Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read tier file %q: %w", path, err)
	}

	var file tierFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}

	params := DefaultParams()
	for name, entry := range file.Tiers {
		tier, err := ParseTier(name)
		if err != nil {
			return nil, err
		}

		p := params[tier]
		if entry.WindowSeconds != nil {
			p.Window = secondsToDuration(*entry.WindowSeconds)
		}
		if entry.OverlapSeconds != nil {
			p.Overlap = secondsToDuration(*entry.OverlapSeconds)
		}
		p.Decode = mergeDecode(p.Decode, entry)

		if err := p.validate(tier); err != nil {
			return nil, err
		}
		params[tier] = p
	}

	return params, nil
}

func mergeDecode(d stt.DecodeParams, entry tierEntry) stt.DecodeParams {
	if entry.MaxLength != nil {
		d.MaxLength = *entry.MaxLength
	}
	if entry.Beams != nil {
		d.Beams = *entry.Beams
	}
	if entry.NoRepeatNgram != nil {
		d.NoRepeatNgramSize = *entry.NoRepeatNgram
	}
	return d
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Watch reloads the table whenever the file at path is written or replaced.
// It blocks until ctx is done.
func (t *Table) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory so editors that replace the file are still seen
	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch dir %q: %w", dir, err)
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if err := t.Load(path); err != nil {
					t.logger.Warn().Err(err).Str("path", path).Msg("Rejected tier table update, keeping previous table")
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			t.logger.Error().Err(err).Msg("Tier file watcher error")
		}
	}
}
