package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"geotag/internal/modules/export"
	"geotag/internal/modules/location"
	"geotag/internal/types"
)

// New starts a session in edit mode on the location tab. The draft date
// defaults to now and the image to defaultImageURL.
func New(id, owner types.ID, defaultImageURL string, now time.Time) *Session {
	draft := PhotoDraft{
		ImageURL: defaultImageURL,
		Location: location.Empty,
		Date:     now,
	}
	return &Session{
		ID:        id,
		OwnerID:   owner,
		Published: draft,
		Draft:     draft,
		ActiveTab: TabLocation,
		EditMode:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AllFieldsFilled is true iff the draft location has a name, an address and
// non-zero coordinates.
func (s *Session) AllFieldsFilled() bool {
	return s.Draft.Location.Complete()
}

func (s *Session) canGoNext() bool {
	i := tabIndex(s.ActiveTab)
	if i < 0 || i == len(TabOrder)-1 {
		return false
	}
	return CanTransition(s.ActiveTab, TabOrder[i+1], s.AllFieldsFilled())
}

// Next advances one tab. Leaving the location tab requires a complete location.
func (s *Session) Next() error {
	i := tabIndex(s.ActiveTab)
	if i < 0 {
		return ErrInvalidTab
	}
	if i == len(TabOrder)-1 {
		return ErrLastTab
	}
	if !s.canGoNext() {
		return incompleteLocation()
	}
	s.ActiveTab = TabOrder[i+1]
	return nil
}

// GoTo jumps to tab. Backward moves are free; forward moves pass the same
// gate as Next.
func (s *Session) GoTo(tab Tab) error {
	if tabIndex(tab) < 0 {
		return fmt.Errorf("%w: unknown tab %q", ErrInvalidTab, tab)
	}
	if !CanTransition(s.ActiveTab, tab, s.AllFieldsFilled()) {
		return incompleteLocation()
	}
	s.ActiveTab = tab
	return nil
}

// SelectLocation folds a picked location into the draft. The first time the
// location becomes complete the watermark is switched on, and a selection
// made on the location tab moves the wizard to the date tab.
func (s *Session) SelectLocation(loc location.Location) {
	wasFilled := s.AllFieldsFilled()
	s.Draft.Location = loc
	filled := s.AllFieldsFilled()
	if filled && !wasFilled {
		s.Draft.ShowWatermark = true
	}
	if filled && s.ActiveTab == TabLocation {
		s.ActiveTab = TabDate
	}
}

func (s *Session) SetDate(t time.Time) error {
	if t.IsZero() {
		return &location.ValidationError{Field: "date", Reason: "is required"}
	}
	s.Draft.Date = t
	return nil
}

func (s *Session) SetWatermark(on bool) {
	s.Draft.ShowWatermark = on
}

// ToggleEditMode commits the draft when leaving edit mode. Entering edit
// mode again re-seeds the draft from the published copy and clears the
// uploaded flag.
func (s *Session) ToggleEditMode() {
	if s.EditMode {
		s.Published = s.Draft
		s.EditMode = false
		return
	}
	s.Draft = s.Published
	s.Uploaded = false
	s.EditMode = true
}

// Discard reverts the draft to the last published copy.
func (s *Session) Discard() {
	s.Draft = s.Published
	s.Uploaded = false
}

// UploadImage replaces the draft image with a data URL of data. The file
// must be an image the exporter can decode and stay within its pixel budget.
func (s *Session) UploadImage(data []byte) error {
	if len(data) == 0 {
		return &location.ValidationError{Field: "image", Reason: "file is empty", Err: ErrNotImage}
	}
	if len(data) > MaxUploadBytes {
		return &location.ValidationError{Field: "image", Reason: fmt.Sprintf("file exceeds %d MB", MaxUploadBytes>>20)}
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return &location.ValidationError{
			Field:  "image",
			Reason: fmt.Sprintf("%s is not an image", mt.String()),
			Err:    ErrNotImage,
		}
	}
	if _, _, err := export.Inspect(data); err != nil {
		if errors.Is(err, export.ErrImageTooLarge) {
			return &location.ValidationError{
				Field:  "image",
				Reason: fmt.Sprintf("image exceeds %d megapixels", export.MaxPixels/1_000_000),
				Err:    err,
			}
		}
		return &location.ValidationError{
			Field:  "image",
			Reason: fmt.Sprintf("%s images are not supported, use JPEG, PNG, GIF or WebP", mt.String()),
			Err:    ErrNotImage,
		}
	}
	s.Draft.ImageURL = export.DataURL(mt.String(), data)
	s.Uploaded = true
	return nil
}

// RemoveImage reverts the draft image to defaultImageURL.
func (s *Session) RemoveImage(defaultImageURL string) {
	s.Draft.ImageURL = defaultImageURL
	s.Uploaded = false
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]`)

// FileName derives the export file name from the draft location name.
func (s *Session) FileName() string {
	name := strings.ToLower(s.Draft.Location.Name)
	if name == "" {
		return "geotag-photo.jpg"
	}
	return "geotag-" + nonSlug.ReplaceAllString(name, "-") + ".jpg"
}

// Overlay is the watermark content of the draft, nil when the watermark is off.
func (s *Session) Overlay() *export.Overlay {
	if !s.Draft.ShowWatermark {
		return nil
	}
	loc := s.Draft.Location
	return &export.Overlay{
		Name:      loc.Name,
		Address:   loc.Address,
		Latitude:  loc.Latitude,
		Longitude: loc.Longitude,
		Date:      s.Draft.Date,
	}
}

func incompleteLocation() error {
	return &location.ValidationError{
		Field:  "location",
		Reason: "select a location with a name, address and coordinates first",
		Err:    location.ErrIncomplete,
	}
}
