// Package calibration persists the face's background color preference.
package calibration

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrInvalidColor is returned when a stored preference cannot be used
var ErrInvalidColor = errors.New("invalid background color")

// Color is an RGB triple with channels in 0..255
type Color struct {
	R int `yaml:"r" json:"r"`
	G int `yaml:"g" json:"g"`
	B int `yaml:"b" json:"b"`
}

// DefaultColor is used when no usable preference is stored
var DefaultColor = Color{R: 160, G: 217, B: 184}

// Clamped returns c with every channel forced into 0..255
func (c Color) Clamped() Color {
	return Color{R: clamp(c.R), G: clamp(c.G), B: clamp(c.B)}
}

// Hex renders c as #rrggbb
func (c Color) Hex() string {
	c = c.Clamped()
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return v
}

type preferences struct {
	Background *rawColor `yaml:"background"`
}

// rawColor uses pointers so a missing channel is distinguishable from 0
type rawColor struct {
	R *int `yaml:"r"`
	G *int `yaml:"g"`
	B *int `yaml:"b"`
}

// Parse decodes a preference document. Out-of-range channels are clamped;
// a missing background or channel is ErrInvalidColor.
func Parse(data []byte) (Color, error) {
	var prefs preferences
	if err := yaml.Unmarshal(data, &prefs); err != nil {
		return DefaultColor, fmt.Errorf("%w: %v", ErrInvalidColor, err)
	}
	bg := prefs.Background
	if bg == nil || bg.R == nil || bg.G == nil || bg.B == nil {
		return DefaultColor, fmt.Errorf("%w: missing channel", ErrInvalidColor)
	}
	return Color{R: *bg.R, G: *bg.G, B: *bg.B}.Clamped(), nil
}

// Store keeps the current color and mirrors it to a YAML file
type Store struct {
	path   string
	logger zerolog.Logger

	mu      sync.RWMutex
	current Color
}

// NewStore creates a store backed by path. Nothing is read until Load.
func NewStore(path string, logger zerolog.Logger) *Store {
	return &Store{
		path:    path,
		logger:  logger.With().Str("component", "calibration").Logger(),
		current: DefaultColor,
	}
}

// Path returns the preference file path
func (s *Store) Path() string {
	return s.path
}

// Current returns the color in effect
func (s *Store) Current() Color {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Load reads the preference file. A missing or unusable file leaves the
// default color in effect; only the unusable case is logged.
func (s *Store) Load() Color {
	c, err := s.read()
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("Ignoring background preference")
		}
		c = DefaultColor
	}

	s.mu.Lock()
	s.current = c
	s.mu.Unlock()
	return c
}

func (s *Store) read() (Color, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return DefaultColor, err
	}
	return Parse(data)
}

// Save clamps c, writes it and makes it current
func (s *Store) Save(c Color) (Color, error) {
	c = c.Clamped()

	r, g, b := c.R, c.G, c.B
	data, err := yaml.Marshal(preferences{Background: &rawColor{R: &r, G: &g, B: &b}})
	if err != nil {
		return c, err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return c, fmt.Errorf("create preference dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return c, fmt.Errorf("write preference: %w", err)
	}

	s.mu.Lock()
	s.current = c
	s.mu.Unlock()
	s.logger.Debug().Str("color", c.Hex()).Msg("Background preference saved")
	return c, nil
}

// Reset restores the default color and persists it
func (s *Store) Reset() (Color, error) {
	return s.Save(DefaultColor)
}

// Watch reloads the preference whenever the file is written or replaced
// and calls onChange with the new color when it differs. It blocks until
// ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func(Color)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	// Watch the directory: editors often replace the file instead of writing it.
	if err := watcher.Add(dir); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			before := s.Current()
			after := s.Load()
			if after != before && onChange != nil {
				onChange(after)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn().Err(err).Msg("Preference watcher error")
		}
	}
}
