package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"geotag/internal/maps"
	"geotag/internal/modules/export"
	"geotag/internal/modules/location"
	"geotag/internal/modules/quota"
	"geotag/internal/modules/search"
	"geotag/internal/modules/session"
	"geotag/internal/types"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) Search(_ context.Context, query string, _ maps.SearchOptions) ([]location.Location, error) {
	return []location.Location{{
		ID:        "gw",
		Name:      "Gateway of India",
		Address:   "Apollo Bandar, Colaba, Mumbai, Maharashtra",
		Latitude:  18.922,
		Longitude: 72.8347,
	}}, nil
}

func (stubProvider) Reverse(_ context.Context, p types.Point) (location.Location, string, bool, error) {
	return location.Location{Address: "Marine Drive, Mumbai, Maharashtra"}, "IN", true, nil
}

func defaultImage(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for y := 0; y < 48; y++ {
		for x := 0; x < 64; x++ {
			img.Set(x, y, color.RGBA{R: 40, G: 120, B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return export.DataURL("image/png", buf.Bytes())
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	client := maps.NewClient(location.India, []maps.Provider{stubProvider{}}, maps.WithCache(maps.NewCache(100, nil)))
	locations := location.NewService(nil, location.India)
	quotas := quota.NewService(nil, quota.NewMemoryCounter(1))
	sessions := session.NewService(session.NewMemoryStore(), locations, quotas, export.NewRenderer(), defaultImage(t))

	return NewRouter(RouterDeps{
		Geocoder:  client,
		Locations: locations,
		Search:    search.NewService(client, location.India).WithTimings(10*time.Millisecond, time.Second),
		Sessions:  sessions,
		Quotas:    quotas,
		Logger:    zerolog.Nop(),
	})
}

func call(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func upload(t *testing.T, h http.Handler, path, name string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", name)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

type sessionBody struct {
	ID              string             `json:"id"`
	ActiveTab       string             `json:"active_tab"`
	AllFieldsFilled bool               `json:"all_fields_filled"`
	FileName        string             `json:"file_name"`
	Draft           session.PhotoDraft `json:"draft"`
}

func createSession(t *testing.T, h http.Handler) sessionBody {
	t.Helper()
	w := call(t, h, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var s sessionBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	require.NotEmpty(t, s.ID)
	return s
}

func TestHealth(t *testing.T) {
	h := newTestRouter(t)
	w := call(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}

func TestExportFlowWithAnonymousQuota(t *testing.T) {
	h := newTestRouter(t)
	s := createSession(t, h)
	base := "/api/sessions/" + s.ID

	w := call(t, h, http.MethodPost, base+"/export", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "incomplete location blocks export")

	w = call(t, h, http.MethodPost, base+"/next", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = call(t, h, http.MethodGet, "/api/geocode/search?q=gateway", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var found struct {
		Results []location.Location `json:"results"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &found))
	require.Len(t, found.Results, 1)

	w = call(t, h, http.MethodPut, base+"/location", found.Results[0])
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got sessionBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "date", got.ActiveTab)
	assert.True(t, got.AllFieldsFilled)
	assert.True(t, got.Draft.ShowWatermark)
	assert.Equal(t, "geotag-gateway-of-india.jpg", got.FileName)

	w = call(t, h, http.MethodPost, base+"/export", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "geotag-gateway-of-india.jpg")
	_, format, err := image.DecodeConfig(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)

	w = call(t, h, http.MethodPost, base+"/export", nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	var qe struct {
		Kind      string `json:"kind"`
		Anonymous bool   `json:"anonymous"`
		Limit     int    `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &qe))
	assert.Equal(t, "quota_exceeded", qe.Kind)
	assert.True(t, qe.Anonymous)
	assert.Equal(t, 1, qe.Limit)

	w = call(t, h, http.MethodGet, "/api/quota", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"remaining":0,"limit":1,"anonymous":true}`, w.Body.String())

	w = call(t, h, http.MethodGet, base, nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "date", got.ActiveTab, "failed export leaves the session editable")

	fresh := "/api/sessions/" + createSession(t, h).ID
	w = call(t, h, http.MethodPut, fresh+"/location", found.Results[0])
	require.Equal(t, http.StatusOK, w.Code)
	w = call(t, h, http.MethodPost, fresh+"/export", nil)
	assert.Equal(t, http.StatusPaymentRequired, w.Code, "a new session does not reset the guest allowance")
}

func TestUploadRejectsFormatsExportCannotRender(t *testing.T) {
	h := newTestRouter(t)
	s := createSession(t, h)
	base := "/api/sessions/" + s.ID

	svg := `<svg xmlns="http://www.w3.org/2000/svg" width="10" height="10"></svg>`
	w := upload(t, h, base+"/image", "photo.svg", []byte(svg))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"field":"image"`)

	w = call(t, h, http.MethodGet, "/api/quota", nil)
	assert.JSONEq(t, `{"remaining":1,"limit":1,"anonymous":true}`, w.Body.String())
}

func TestSessionRoutes(t *testing.T) {
	h := newTestRouter(t)
	s := createSession(t, h)
	base := "/api/sessions/" + s.ID

	w := call(t, h, http.MethodGet, "/api/sessions/not-a-uuid!", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, h, http.MethodGet, "/api/sessions/3f2b8c1e-4a5d-4e6f-9a0b-1c2d3e4f5a6b", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = call(t, h, http.MethodPut, base+"/location", location.Location{Name: "Eiffel", Address: "Paris", Latitude: 48.85, Longitude: 2.29})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = call(t, h, http.MethodPost, base+"/tab", map[string]string{"tab": "export"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "forward jump needs a complete location")

	w = call(t, h, http.MethodPost, base+"/tab", map[string]string{"tab": "nowhere"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = call(t, h, http.MethodPut, base+"/watermark", map[string]bool{"show": true})
	require.Equal(t, http.StatusOK, w.Code)

	w = call(t, h, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = call(t, h, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRecentRequiresUser(t *testing.T) {
	h := newTestRouter(t)
	w := call(t, h, http.MethodGet, "/api/locations/recent", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

type pickerMsg struct {
	Type    string          `json:"type"`
	Session json.RawMessage `json:"session"`
	Map     *struct {
		Zoom int `json:"zoom"`
	} `json:"map"`
	Picker *struct {
		Open bool `json:"open"`
	} `json:"picker"`
	Search *struct {
		Phase      string `json:"phase"`
		Generation uint64 `json:"generation"`
	} `json:"search"`
}

func readUntil(t *testing.T, conn *ws.Conn, typ string) pickerMsg {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var m pickerMsg
		require.NoError(t, conn.ReadJSON(&m))
		if m.Type == typ {
			return m
		}
	}
}

func TestPickerWebSocketMapClickSelects(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	s := createSession(t, srv.Config.Handler)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + s.ID + "/picker"
	conn, resp, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	m := readUntil(t, conn, "map")
	require.NotNil(t, m.Map)
	assert.Equal(t, 5, m.Map.Zoom)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "click", "lat": 18.94, "lng": 72.82}))
	m = readUntil(t, conn, "selected")
	var got sessionBody
	require.NoError(t, json.Unmarshal(m.Session, &got))
	assert.Equal(t, "Marine Drive", got.Draft.Location.Name)
	assert.Equal(t, "date", got.ActiveTab)

	m = readUntil(t, conn, "picker")
	require.NotNil(t, m.Picker)
	assert.False(t, m.Picker.Open)
}

func TestPickerReopenKeepsSearchOrder(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	s := createSession(t, srv.Config.Handler)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/" + s.ID + "/picker"
	conn, resp, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()

	readUntil(t, conn, "map")
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "open"}))
	m := readUntil(t, conn, "picker")
	require.NotNil(t, m.Picker)
	assert.True(t, m.Picker.Open)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "query", "query": "gateway"}))
	var phases []string
	for {
		m = readUntil(t, conn, "search")
		require.NotNil(t, m.Search)
		phases = append(phases, m.Search.Phase)
		if m.Search.Phase == string(search.PhaseResults) {
			break
		}
	}

	// Nothing from the same search may arrive after its results.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	for {
		var late pickerMsg
		if err := conn.ReadJSON(&late); err != nil {
			break
		}
		if late.Type == "search" {
			phases = append(phases, late.Search.Phase)
		}
	}
	assert.Equal(t, []string{"searching", "results"}, phases)
}

func TestPickerRejectsUnknownSession(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/sessions/3f2b8c1e-4a5d-4e6f-9a0b-1c2d3e4f5a6b/picker"
	_, resp, err := ws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
