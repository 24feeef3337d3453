// README: Location picker over a WebSocket: typed search, map clicks, device and
// manual entry, with the chosen location folded into the edit session.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	ws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"geotag/internal/http/middleware"
	"geotag/internal/modules/location"
	"geotag/internal/modules/mapview"
	"geotag/internal/modules/picker"
	"geotag/internal/modules/search"
	"geotag/internal/modules/session"
	"geotag/internal/types"
)

const (
	writeWait   = 10 * time.Second
	outboxSize  = 32
	maxReadSize = 64 << 10
)

type PickerHandler struct {
	sessions *session.Service
	search   *search.Service
	reverser mapview.Reverser
	region   location.Region
	upgrader ws.Upgrader
	log      zerolog.Logger
}

func NewPickerHandler(sessions *session.Service, svc *search.Service, reverser mapview.Reverser, region location.Region, allowedOrigins []string, log zerolog.Logger) *PickerHandler {
	return &PickerHandler{
		sessions: sessions,
		search:   svc,
		reverser: reverser,
		region:   region,
		upgrader: ws.Upgrader{CheckOrigin: originChecker(allowedOrigins)},
		log:      log.With().Str("component", "picker_ws").Logger(),
	}
}

func originChecker(allowed []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}

// pickerIn is one client message. Type selects which fields apply.
type pickerIn struct {
	Type   string                     `json:"type"`
	Query  string                     `json:"query,omitempty"`
	ID     string                     `json:"id,omitempty"`
	Lat    float64                    `json:"lat,omitempty"`
	Lng    float64                    `json:"lng,omitempty"`
	Form   *search.CustomLocationForm `json:"form,omitempty"`
	Report *search.BrowserReport      `json:"report,omitempty"`
}

type pickerOut struct {
	Type    string            `json:"type"`
	Picker  *picker.State     `json:"picker,omitempty"`
	Search  *search.State     `json:"search,omitempty"`
	Map     *mapview.Snapshot `json:"map,omitempty"`
	Session *session.View     `json:"session,omitempty"`
	Error   *errorResponse    `json:"error,omitempty"`
}

type pickerConn struct {
	h      *PickerHandler
	ctx    context.Context
	id     types.ID
	caller types.ID
	out    chan pickerOut
	p      *picker.Picker
	chosen chan location.Location
}

func (h *PickerHandler) Serve(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	caller := middleware.CallerUID(c)
	if _, err := h.sessions.Get(c.Request.Context(), id, caller); err != nil {
		writeDomainError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("upgrade")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxReadSize)

	ctx, cancel := context.WithCancel(context.WithoutCancel(c.Request.Context()))
	defer cancel()

	pc := &pickerConn{
		h:      h,
		ctx:    ctx,
		id:     id,
		caller: caller,
		out:    make(chan pickerOut, outboxSize),
		chosen: make(chan location.Location, 1),
	}
	pc.p = picker.New(h.search, h.reverser, h.region, func(loc location.Location) {
		select {
		case pc.chosen <- loc:
		default:
		}
	})
	defer pc.p.Close()

	go pc.writeLoop(conn, cancel)
	pc.open()
	pc.readLoop(conn)
}

// writeLoop is the only writer on conn.
func (pc *pickerConn) writeLoop(conn *ws.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		select {
		case <-pc.ctx.Done():
			_ = conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case msg := <-pc.out:
			b, err := json.Marshal(msg)
			if err != nil {
				pc.h.log.Error().Err(err).Msg("encode picker message")
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(ws.TextMessage, b); err != nil {
				pc.h.log.Debug().Err(err).Msg("picker write")
				return
			}
		}
	}
}

func (pc *pickerConn) readLoop(conn *ws.Conn) {
	for {
		var in pickerIn
		if err := conn.ReadJSON(&in); err != nil {
			if !ws.IsCloseError(err, ws.CloseNormalClosure, ws.CloseGoingAway) {
				pc.h.log.Debug().Err(err).Msg("picker read")
			}
			return
		}
		pc.handle(in)
		pc.drainChosen()
	}
}

func (pc *pickerConn) send(m pickerOut) {
	select {
	case pc.out <- m:
	case <-pc.ctx.Done():
	}
}

func (pc *pickerConn) sendError(err error) {
	_, body := errorBody(err)
	pc.send(pickerOut{Type: "error", Error: &body})
}

func (pc *pickerConn) sendPicker() {
	st := pc.p.State()
	pc.send(pickerOut{Type: "picker", Picker: &st})
}

func (pc *pickerConn) sendMap() {
	if v := pc.p.Map(); v != nil {
		snap := v.Snapshot()
		pc.send(pickerOut{Type: "map", Map: &snap})
	}
}

// open starts a picker and forwards its search snapshots until it closes.
// Each search session gets exactly one forwarder so snapshots keep their order.
func (pc *pickerConn) open() {
	if !pc.p.Open(pc.ctx) {
		pc.sendPicker()
		return
	}
	if s := pc.p.Search(); s != nil {
		go func(updates <-chan search.State) {
			for st := range updates {
				pc.send(pickerOut{Type: "search", Search: &st})
			}
		}(s.Updates())
	}
	pc.sendPicker()
	pc.sendMap()
}

func (pc *pickerConn) handle(in pickerIn) {
	switch in.Type {
	case "open":
		pc.open()
	case "close":
		pc.p.Close()
		pc.sendPicker()
	case "dismiss":
		pc.p.DismissInstructions()
		pc.sendPicker()
	case "toggle_map":
		pc.p.ToggleMap()
		pc.sendPicker()
		pc.sendMap()
	case "query":
		if s := pc.p.Search(); s != nil {
			s.Type(in.Query)
		}
	case "clear":
		if s := pc.p.Search(); s != nil {
			s.Clear()
		}
	case "select":
		if s := pc.p.Search(); s != nil {
			if _, ok := s.Select(in.ID); !ok {
				pc.send(pickerOut{Type: "error", Error: &errorResponse{Error: "unknown result", Kind: "validation", Field: "id"}})
			}
		}
	case "click":
		v := pc.p.Map()
		if v == nil {
			return
		}
		if _, err := v.Click(pc.ctx, types.Point{Lat: in.Lat, Lng: in.Lng}); err != nil {
			pc.sendError(err)
			pc.sendMap()
		}
	case "device":
		if in.Report == nil {
			pc.send(pickerOut{Type: "error", Error: &errorResponse{Error: "report is required", Kind: "validation", Field: "report"}})
			return
		}
		loc, err := pc.h.search.Locate(pc.ctx, *in.Report)
		if err != nil {
			pc.sendError(err)
			return
		}
		pc.p.Select(loc)
	case "custom":
		if in.Form == nil {
			pc.send(pickerOut{Type: "error", Error: &errorResponse{Error: "form is required", Kind: "validation", Field: "form"}})
			return
		}
		loc, err := pc.h.search.SubmitCustom(in.Form)
		if err != nil {
			pc.sendError(err)
			return
		}
		pc.p.Select(loc)
	default:
		pc.send(pickerOut{Type: "error", Error: &errorResponse{Error: "unknown message type " + in.Type}})
	}
}

// drainChosen folds a picked location into the edit session.
func (pc *pickerConn) drainChosen() {
	select {
	case loc := <-pc.chosen:
		s, err := pc.h.sessions.SelectLocation(pc.ctx, pc.id, pc.caller, loc)
		if err != nil {
			pc.sendError(err)
			return
		}
		v := s.View()
		pc.send(pickerOut{Type: "selected", Session: &v})
		pc.sendPicker()
	default:
	}
}
