package config

import (
	"fmt"
	"slices"

	"github.com/gookit/validate"
)

// Settings is the user-editable configuration persisted in settings.json.
type Settings struct {
	UpdateHour          int    `json:"update_hour" validate:"min:0|max:23"`
	UpdateMinute        int    `json:"update_minute" validate:"min:0|max:59"`
	HasSetUpdateTime    bool   `json:"has_set_update_time"`
	ChangeIntervalHours int    `json:"change_interval_hours" validate:"min:1|max:168"`
	StartWithSystem     bool   `json:"start_with_system"`
	ShowNotifications   bool   `json:"show_notifications"`
	IsFirstRun          bool   `json:"is_first_run"`
	Source              string `json:"source" validate:"in:MetMuseum,ArtInstituteChicago,Unsplash"`
	Departments         []int  `json:"departments"`
	SmartCrop           bool   `json:"smart_crop"`
	CheckForUpdates     bool   `json:"check_for_updates"`
	ControlAddr         string `json:"control_addr"`
	MaxStoredArtworks   int    `json:"max_stored_artworks" validate:"min:1|max:10000"`
}

// DefaultSettings returns the settings used on first run and for any field that is
// missing or invalid on disk.
func DefaultSettings() Settings {
	return Settings{
		UpdateHour:          DefaultUpdateHour,
		UpdateMinute:        DefaultUpdateMinute,
		ChangeIntervalHours: DefaultChangeIntervalHours,
		ShowNotifications:   true,
		IsFirstRun:          true,
		Source:              DefaultSource,
		Departments:         slices.Clone(DefaultDepartments),
		CheckForUpdates:     true,
		ControlAddr:         DefaultControlAddr,
		MaxStoredArtworks:   DefaultMaxStoredArtworks,
	}
}

// UpdateTime returns the configured daily slot. Until the user picks a time the
// default 07:00 applies.
func (s Settings) UpdateTime() (hour, minute int) {
	if !s.HasSetUpdateTime {
		return DefaultUpdateHour, DefaultUpdateMinute
	}
	return s.UpdateHour, s.UpdateMinute
}

// IntervalDays is the change interval expressed in whole calendar days (at least one).
func (s Settings) IntervalDays() int {
	days := (s.ChangeIntervalHours + 23) / 24
	if days < 1 {
		return 1
	}
	return days
}

// Validate checks field ranges.
func (s *Settings) Validate() error {
	v := validate.Struct(s)
	if !v.Validate() {
		return fmt.Errorf("invalid settings: %s", v.Errors.One())
	}
	for _, d := range s.Departments {
		if d <= 0 {
			return fmt.Errorf("invalid settings: department id %d", d)
		}
	}
	return nil
}

// normalize replaces every invalid or missing field with its default and reports
// whether anything changed.
func (s *Settings) normalize() bool {
	def := DefaultSettings()
	changed := false

	if s.UpdateHour < 0 || s.UpdateHour > 23 {
		s.UpdateHour = def.UpdateHour
		changed = true
	}
	if s.UpdateMinute < 0 || s.UpdateMinute > 59 {
		s.UpdateMinute = def.UpdateMinute
		changed = true
	}
	if s.ChangeIntervalHours < 1 || s.ChangeIntervalHours > 168 {
		s.ChangeIntervalHours = def.ChangeIntervalHours
		changed = true
	}
	if !slices.Contains(KnownSources, s.Source) {
		s.Source = def.Source
		changed = true
	}
	valid := s.Departments[:0:0]
	for _, d := range s.Departments {
		if d > 0 {
			valid = append(valid, d)
		}
	}
	if len(valid) == 0 {
		valid = def.Departments
	}
	if len(valid) != len(s.Departments) {
		changed = true
	}
	s.Departments = valid
	if s.ControlAddr == "" {
		s.ControlAddr = def.ControlAddr
		changed = true
	}
	if s.MaxStoredArtworks < 1 || s.MaxStoredArtworks > 10000 {
		s.MaxStoredArtworks = def.MaxStoredArtworks
		changed = true
	}
	return changed
}
