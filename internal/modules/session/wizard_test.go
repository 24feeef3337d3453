package session

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geotag/internal/modules/export"
	"geotag/internal/modules/location"
)

const defaultImage = "https://example.com/default.jpg"

var (
	start   = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	chennai = location.Location{ID: "c1", Name: "Chennai", Address: "Chennai, TN", Latitude: 13.08, Longitude: 80.27}
)

func newSession() *Session {
	return New("s1", "", defaultImage, start)
}

func TestNewSessionDefaults(t *testing.T) {
	s := newSession()
	assert.Equal(t, TabLocation, s.ActiveTab)
	assert.True(t, s.EditMode)
	assert.Equal(t, start, s.Draft.Date)
	assert.Equal(t, defaultImage, s.Draft.ImageURL)
	assert.Equal(t, location.Empty, s.Draft.Location)
	assert.False(t, s.Draft.ShowWatermark)
	assert.Equal(t, s.Draft, s.Published)
}

func TestAllFieldsFilled(t *testing.T) {
	tests := []struct {
		name string
		loc  location.Location
		want bool
	}{
		{"complete", chennai, true},
		{"zero latitude", location.Location{Name: "Chennai", Address: "Chennai, TN", Latitude: 0, Longitude: 80.27}, false},
		{"zero longitude", location.Location{Name: "Chennai", Address: "Chennai, TN", Latitude: 13.08}, false},
		{"empty name", location.Location{Address: "Chennai, TN", Latitude: 13.08, Longitude: 80.27}, false},
		{"blank address", location.Location{Name: "Chennai", Address: "  ", Latitude: 13.08, Longitude: 80.27}, false},
		{"empty", location.Empty, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession()
			s.Draft.Location = tt.loc
			assert.Equal(t, tt.want, s.AllFieldsFilled())
		})
	}
}

func TestNextGatedOnLocation(t *testing.T) {
	s := newSession()

	err := s.Next()
	assert.ErrorIs(t, err, location.ErrIncomplete)
	assert.True(t, location.IsValidation(err))
	assert.Equal(t, TabLocation, s.ActiveTab)
	assert.False(t, s.View().CanGoNext)

	s.Draft.Location = chennai
	assert.True(t, s.View().CanGoNext)
	require.NoError(t, s.Next())
	assert.Equal(t, TabDate, s.ActiveTab)
	require.NoError(t, s.Next())
	require.NoError(t, s.Next())
	assert.Equal(t, TabExport, s.ActiveTab)
	assert.ErrorIs(t, s.Next(), ErrLastTab)
}

func TestGoTo(t *testing.T) {
	s := newSession()
	assert.ErrorIs(t, s.GoTo(TabExport), location.ErrIncomplete)
	assert.ErrorIs(t, s.GoTo("settings"), ErrInvalidTab)

	s.SelectLocation(chennai)
	require.NoError(t, s.GoTo(TabExport))
	require.NoError(t, s.GoTo(TabLocation), "backward is free")
	require.NoError(t, s.GoTo(TabWatermark))
	assert.Equal(t, TabWatermark, s.ActiveTab)
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Tab
		filled   bool
		want     bool
	}{
		{TabLocation, TabDate, false, false},
		{TabLocation, TabDate, true, true},
		{TabDate, TabLocation, false, true},
		{TabExport, TabLocation, false, true},
		{TabDate, TabWatermark, true, true},
		{TabWatermark, TabExport, false, false},
		{TabLocation, "nope", true, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to, tt.filled); got != tt.want {
			t.Fatalf("CanTransition(%s, %s, %v) = %v, want %v", tt.from, tt.to, tt.filled, got, tt.want)
		}
	}
}

func TestSelectLocationAdvancesAndEnablesWatermark(t *testing.T) {
	s := newSession()
	s.SelectLocation(chennai)
	assert.Equal(t, TabDate, s.ActiveTab)
	assert.True(t, s.Draft.ShowWatermark)
	assert.Equal(t, chennai, s.Draft.Location)

	// A later selection keeps the user's watermark choice and tab.
	s.SetWatermark(false)
	require.NoError(t, s.GoTo(TabWatermark))
	s.SelectLocation(location.Location{ID: "m1", Name: "Mumbai", Address: "Mumbai, MH", Latitude: 19.07, Longitude: 72.87})
	assert.False(t, s.Draft.ShowWatermark)
	assert.Equal(t, TabWatermark, s.ActiveTab)
}

func TestToggleEditModeRestoresPublished(t *testing.T) {
	s := newSession()
	s.SelectLocation(chennai)
	require.NoError(t, s.SetDate(start.Add(time.Hour)))

	s.ToggleEditMode()
	assert.False(t, s.EditMode)
	published := s.Published
	assert.Equal(t, s.Draft, published)

	s.SelectLocation(location.Location{ID: "d1", Name: "Delhi", Address: "Delhi", Latitude: 28.6, Longitude: 77.2})
	s.SetWatermark(false)
	s.Uploaded = true

	s.ToggleEditMode()
	assert.True(t, s.EditMode)
	assert.Equal(t, published, s.Draft)
	assert.False(t, s.Uploaded)
}

func TestDiscard(t *testing.T) {
	s := newSession()
	s.SelectLocation(chennai)
	s.Discard()
	assert.Equal(t, location.Empty, s.Draft.Location)
}

func TestSetDateRejectsZero(t *testing.T) {
	s := newSession()
	assert.True(t, location.IsValidation(s.SetDate(time.Time{})))
	assert.Equal(t, start, s.Draft.Date)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	return buf.Bytes()
}

func TestUploadAndRemoveImage(t *testing.T) {
	s := newSession()
	require.NoError(t, s.UploadImage(pngBytes(t)))
	assert.True(t, s.Uploaded)
	assert.True(t, strings.HasPrefix(s.Draft.ImageURL, "data:image/png;base64,"))

	s.RemoveImage(defaultImage)
	assert.False(t, s.Uploaded)
	assert.Equal(t, defaultImage, s.Draft.ImageURL)
}

func TestUploadRejectsNonImage(t *testing.T) {
	s := newSession()
	bmp := []byte("BM\x46\x00\x00\x00\x00\x00\x00\x00\x36\x00\x00\x00\x28\x00\x00\x00")
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"><rect width="10" height="10"/></svg>`)
	for _, data := range [][]byte{nil, []byte("%PDF-1.4 hello"), []byte("plain text"), bmp, svg} {
		err := s.UploadImage(data)
		assert.ErrorIs(t, err, ErrNotImage)
		assert.True(t, location.IsValidation(err))
	}
	assert.False(t, s.Uploaded)
	assert.Equal(t, defaultImage, s.Draft.ImageURL)
}

// pngHeader announces a w x h grey PNG without any pixel data.
func pngHeader(w, h uint32) []byte {
	ihdr := make([]byte, 13)
	binary.BigEndian.PutUint32(ihdr[0:], w)
	binary.BigEndian.PutUint32(ihdr[4:], h)
	ihdr[8] = 8
	chunk := append([]byte("IHDR"), ihdr...)

	var buf bytes.Buffer
	buf.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ihdr)))
	buf.Write(chunk)
	_ = binary.Write(&buf, binary.BigEndian, crc32.ChecksumIEEE(chunk))
	return buf.Bytes()
}

func TestUploadRejectsOversizedDimensions(t *testing.T) {
	s := newSession()
	err := s.UploadImage(pngHeader(16000, 16000))
	require.Error(t, err)
	assert.ErrorIs(t, err, export.ErrImageTooLarge)
	var ve *location.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "image", ve.Field)
	assert.False(t, s.Uploaded)
	assert.Equal(t, defaultImage, s.Draft.ImageURL)
}

func TestFileName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"New Delhi!", "geotag-new-delhi-.jpg"},
		{"Chennai", "geotag-chennai.jpg"},
		{"Taj Mahal, Agra", "geotag-taj-mahal--agra.jpg"},
		{"", "geotag-photo.jpg"},
	}
	for _, tt := range tests {
		s := newSession()
		s.Draft.Location.Name = tt.name
		assert.Equal(t, tt.want, s.FileName(), tt.name)
	}
}

func TestOverlayFollowsWatermarkToggle(t *testing.T) {
	s := newSession()
	assert.Nil(t, s.Overlay())
	s.SelectLocation(chennai)
	ov := s.Overlay()
	require.NotNil(t, ov)
	assert.Equal(t, "Chennai", ov.Name)
	assert.Equal(t, start, ov.Date)
}
