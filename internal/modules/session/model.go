// README: Edit session aggregate: photo draft, wizard tabs and edit-mode definitions.
package session

import (
	"errors"
	"time"

	"geotag/internal/modules/location"
	"geotag/internal/types"
)

type Tab string

const (
	TabLocation  Tab = "location"
	TabDate      Tab = "date"
	TabWatermark Tab = "watermark"
	TabExport    Tab = "export"
)

// TabOrder is the wizard sequence.
var TabOrder = []Tab{TabLocation, TabDate, TabWatermark, TabExport}

var (
	ErrNotFound       = errors.New("session not found")
	ErrConflict       = errors.New("session modified concurrently")
	ErrInvalidTab     = errors.New("invalid tab transition")
	ErrLastTab        = errors.New("already on the last tab")
	ErrNotImage       = errors.New("file is not an image")
	ErrExportInFlight = errors.New("export already in progress")
)

// MaxUploadBytes bounds a locally uploaded photo.
const MaxUploadBytes = 15 << 20

// ExportTimeout bounds one export. An exporting flag older than this belongs
// to an export that never finished and no longer blocks the session.
const ExportTimeout = 2 * time.Minute

// PhotoDraft is the editable content of a session.
type PhotoDraft struct {
	ImageURL      string            `json:"image_url"`
	Location      location.Location `json:"location"`
	Date          time.Time         `json:"date"`
	ShowWatermark bool              `json:"show_watermark"`
}

// Session holds a draft that is mutated while editing and a published copy
// committed when leaving edit mode.
type Session struct {
	ID        types.ID   `json:"id"`
	OwnerID   types.ID   `json:"owner_id,omitempty"`
	Published PhotoDraft `json:"published"`
	Draft     PhotoDraft `json:"draft"`
	ActiveTab Tab        `json:"active_tab"`
	EditMode  bool       `json:"edit_mode"`
	Uploaded  bool       `json:"uploaded"`
	Exporting bool       `json:"exporting"`
	// ExportStartedAt is when the current export claimed the session.
	ExportStartedAt time.Time `json:"export_started_at"`
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AllowedTransitions represents the forward wizard flow as code. Moving
// back to an earlier tab is always allowed.
var AllowedTransitions = map[Tab][]Tab{
	TabLocation:  {TabDate, TabWatermark, TabExport},
	TabDate:      {TabWatermark, TabExport},
	TabWatermark: {TabExport},
}

// CanTransition reports whether the wizard may move from one tab to another.
// Every tab after location requires a complete location.
func CanTransition(from, to Tab, allFieldsFilled bool) bool {
	fi, ti := tabIndex(from), tabIndex(to)
	if fi < 0 || ti < 0 {
		return false
	}
	if ti <= fi {
		return true
	}
	if !allFieldsFilled {
		return false
	}
	for _, t := range AllowedTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func tabIndex(t Tab) int {
	for i, x := range TabOrder {
		if x == t {
			return i
		}
	}
	return -1
}

// View is the session as served to clients.
type View struct {
	*Session
	AllFieldsFilled bool   `json:"all_fields_filled"`
	CanGoNext       bool   `json:"can_go_next"`
	FileName        string `json:"file_name"`
}

func (s *Session) View() View {
	return View{
		Session:         s,
		AllFieldsFilled: s.AllFieldsFilled(),
		CanGoNext:       s.canGoNext(),
		FileName:        s.FileName(),
	}
}
