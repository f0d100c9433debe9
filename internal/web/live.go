package web

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/JonMunkholm/sheetview/internal/core"
	"github.com/JonMunkholm/sheetview/internal/logging"
	"github.com/JonMunkholm/sheetview/internal/web/templates"
)

// Live message types.
const (
	liveFilter = "filter"
	liveEdit   = "edit"
	livePing   = "ping"

	liveTable  = "table"
	liveEdited = "edited"
	livePong   = "pong"
	liveError  = "error"
)

// liveRequest is a client message on the live channel.
type liveRequest struct {
	Type  string `json:"type"`
	Term  string `json:"term,omitempty"`
	Row   int    `json:"row"`
	Col   int    `json:"col"`
	Value string `json:"value,omitempty"`
}

// liveReply is a server message on the live channel.
type liveReply struct {
	Type      string `json:"type"`
	HTML      string `json:"html,omitempty"`
	Filter    string `json:"filter,omitempty"`
	Rows      int    `json:"rows,omitempty"`
	Row       int    `json:"row,omitempty"`
	Col       int    `json:"col,omitempty"`
	FirstEdit bool   `json:"first_edit,omitempty"`
	Notice    string `json:"notice,omitempty"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
}

// handleLive upgrades to a websocket that carries filter keystrokes and
// cell edits. Filter terms are debounced on the server so a burst of
// keystrokes renders once.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	r, id := sessionContext(r)

	if _, err := s.service.View(r.Context(), id); err != nil {
		respondError(w, r, err, "")
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		logging.FromContext(r.Context()).Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	log := logging.FromContext(ctx)
	log.Debug("live channel opened")

	deb := NewDebouncer(s.cfg.Filter.Debounce)
	defer deb.Stop()

	for {
		var req liveRequest
		if err := wsjson.Read(ctx, conn, &req); err != nil {
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				log.Debug("live channel closed")
			default:
				if !errors.Is(err, context.Canceled) {
					log.Warn("live channel read failed", "error", err)
				}
			}
			return
		}

		switch req.Type {
		case liveFilter:
			term := req.Term
			deb.Trigger(func() { s.pushView(ctx, conn, id, term) })
		case liveEdit:
			s.liveEdit(ctx, conn, id, req)
		case livePing:
			s.send(ctx, conn, liveReply{Type: livePong})
		default:
			s.send(ctx, conn, liveReply{
				Type:    liveError,
				Code:    core.BadRequestMessage.Code,
				Message: "unknown message type " + strings.TrimSpace(req.Type),
			})
		}
	}
}

// pushView applies term and sends the rendered table fragment.
func (s *Server) pushView(ctx context.Context, conn *websocket.Conn, id, term string) {
	view, err := s.service.SetFilter(ctx, id, term)
	if err != nil {
		s.sendError(ctx, conn, err, "")
		return
	}

	var b strings.Builder
	if err := templates.Table(view.Rows, true).Render(ctx, &b); err != nil {
		s.sendError(ctx, conn, err, "")
		return
	}

	rows := 0
	if len(view.Rows) > 0 {
		rows = len(view.Rows) - 1
	}
	s.send(ctx, conn, liveReply{
		Type:   liveTable,
		HTML:   b.String(),
		Filter: view.Filter,
		Rows:   rows,
	})
}

func (s *Server) liveEdit(ctx context.Context, conn *websocket.Conn, id string, req liveRequest) {
	res, err := s.service.Edit(ctx, id, req.Row, req.Col, req.Value)
	if err != nil {
		s.sendError(ctx, conn, err, "")
		return
	}
	s.send(ctx, conn, liveReply{
		Type:      liveEdited,
		Row:       req.Row,
		Col:       req.Col,
		FirstEdit: res.FirstEdit,
		Notice:    res.Notice,
	})
}

func (s *Server) sendError(ctx context.Context, conn *websocket.Conn, err error, notice string) {
	msg := core.MapError(err)
	logging.FromContext(ctx).Warn("live request failed", "error", err, "code", msg.Code)
	s.send(ctx, conn, liveReply{
		Type:    liveError,
		Code:    msg.Code,
		Message: msg.Message,
		Notice:  notice,
	})
}

// send writes one reply. coder/websocket serializes concurrent writers,
// so the debounce goroutine and the read loop can both call it.
func (s *Server) send(ctx context.Context, conn *websocket.Conn, reply liveReply) {
	if err := wsjson.Write(ctx, conn, reply); err != nil && ctx.Err() == nil {
		logging.FromContext(ctx).Debug("live write failed", "error", err)
	}
}
