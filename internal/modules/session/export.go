package session

import (
	"context"
	"io"
	"time"

	"geotag/internal/modules/export"
	"geotag/internal/modules/quota"
)

// Renderer composes the draft into the exported JPEG.
type Renderer interface {
	Render(ctx context.Context, imageURL string, ov *export.Overlay, w io.Writer) error
}

// BeginExport checks the export preconditions and claims the session for an
// export started at now. The quota is checked afterwards, outside the store.
func (s *Session) BeginExport(now time.Time) error {
	if !s.AllFieldsFilled() {
		return incompleteLocation()
	}
	if s.exportInFlight(now) {
		return ErrExportInFlight
	}
	s.Exporting = true
	s.ExportStartedAt = now
	return nil
}

// exportInFlight reports whether an export claimed the session less than
// ExportTimeout before now.
func (s *Session) exportInFlight(now time.Time) bool {
	return s.Exporting && now.Sub(s.ExportStartedAt) < ExportTimeout
}

// FinishExport releases the claim taken at startedAt. A newer claim that
// replaced an expired one is left alone.
func (s *Session) FinishExport(startedAt time.Time) {
	if !s.ExportStartedAt.Equal(startedAt) {
		return
	}
	s.Exporting = false
	s.ExportStartedAt = time.Time{}
}

// render records the export against q and only then renders the draft.
// Nothing is written to w when the quota refuses the export.
func render(ctx context.Context, s *Session, q quota.Quota, r Renderer, w io.Writer) error {
	ok, err := q.CanExportMore(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return quota.Exceeded(ctx, q)
	}
	ok, err = q.RecordExport(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return quota.Exceeded(ctx, q)
	}
	return r.Render(ctx, s.Draft.ImageURL, s.Overlay(), w)
}
