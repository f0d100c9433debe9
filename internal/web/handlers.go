package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/sheetview/internal/core"
	"github.com/JonMunkholm/sheetview/internal/export"
	"github.com/JonMunkholm/sheetview/internal/logging"
	"github.com/JonMunkholm/sheetview/internal/sheet"
	"github.com/JonMunkholm/sheetview/internal/web/templates"
)

// NoticeHeader carries the toast text on responses whose body is a file
// or an HTML fragment.
const NoticeHeader = "X-Notice"

// multipartOverhead is allowed on top of the file size for form framing.
const multipartOverhead = 1 << 20

// sessionContext tags the request context with the session id from the URL.
func sessionContext(r *http.Request) (*http.Request, string) {
	id := chi.URLParam(r, "sessionID")
	return r.WithContext(logging.WithSession(r.Context(), id)), id
}

// handleIndex starts a new session and redirects to its page.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	id, err := s.service.CreateSession(r.Context())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	http.Redirect(w, r, withQuery("/s/"+id, r), http.StatusSeeOther)
}

// withQuery carries the request's query string over to a redirect target so
// an api_key given on the first visit reaches the page.
func withQuery(path string, r *http.Request) string {
	if r.URL.RawQuery == "" {
		return path
	}
	return path + "?" + r.URL.RawQuery
}

// handlePage renders the viewer for an existing session. Unknown or
// expired sessions start over at /.
func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	r, id := sessionContext(r)

	view, err := s.service.View(r.Context(), id)
	if errors.Is(err, core.ErrSessionNotFound) {
		http.Redirect(w, r, withQuery("/", r), http.StatusSeeOther)
		return
	}
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	page := templates.Page(templates.PageData{
		SessionID:     id,
		FileName:      view.FileName,
		Filter:        view.Filter,
		Rows:          view.Rows,
		Debounce:      int(s.cfg.Filter.Debounce.Milliseconds()),
		ReadingNotice: core.NoticeReadingXLSX,
		AuthRequired:  s.cfg.Security.RequireAPIKey,
	})
	templ.Handler(page).ServeHTTP(w, r)
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status   string                 `json:"status"`
	Sessions int                    `json:"sessions"`
	Loads    core.LoadLimiterStatus `json:"loads"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:   "ok",
		Sessions: s.service.SessionCount(),
		Loads:    s.service.Limiter().Status(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, err := s.service.CreateSession(r.Context())
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"session_id": id})
}

// handleLoad streams the multipart "file" part into the decoder without
// buffering the form to disk.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	r, id := sessionContext(r)
	r.Body = http.MaxBytesReader(w, r.Body, s.service.MaxFileSize()+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		respondError(w, r, core.ErrNoFile, core.NoticeLoadFailed)
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			respondError(w, r, core.ErrNoFile, core.NoticeLoadFailed)
			return
		}
		if err != nil {
			respondError(w, r, err, core.NoticeLoadFailed)
			return
		}
		if part.FormName() != "file" {
			_ = part.Close()
			continue
		}

		s.loadPart(w, r, id, part)
		return
	}
}

func (s *Server) loadPart(w http.ResponseWriter, r *http.Request, id string, part *multipart.Part) {
	defer part.Close()

	res, err := s.service.Load(r.Context(), id, part.FileName(), part)
	if err != nil {
		respondError(w, r, err, core.FailureNotice(err))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// TableResponse is the JSON form of a view.
type TableResponse struct {
	FileName string          `json:"file_name"`
	Filter   string          `json:"filter"`
	Rows     []sheet.ViewRow `json:"rows"`
}

// handleTable returns the current view. A q parameter, even empty,
// replaces the stored filter first. The body is an HTML fragment unless
// the client accepts JSON.
func (s *Server) handleTable(w http.ResponseWriter, r *http.Request) {
	r, id := sessionContext(r)

	var (
		view *core.ViewResult
		err  error
	)
	if q, ok := r.URL.Query()["q"]; ok {
		view, err = s.service.SetFilter(r.Context(), id, strings.Join(q, ""))
	} else {
		view, err = s.service.View(r.Context(), id)
	}
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, TableResponse{
			FileName: view.FileName,
			Filter:   view.Filter,
			Rows:     view.Rows,
		})
		return
	}
	templ.Handler(templates.Table(view.Rows, true)).ServeHTTP(w, r)
}

// EditRequest is the body of POST /cells. Row is the stored row index.
type EditRequest struct {
	Row   *int   `json:"row"`
	Col   *int   `json:"col"`
	Value string `json:"value"`
}

func (s *Server) handleEditCell(w http.ResponseWriter, r *http.Request) {
	r, id := sessionContext(r)

	var req EditRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		respondErrorJSON(w, core.BadRequestMessage, http.StatusBadRequest)
		return
	}
	if req.Row == nil || req.Col == nil {
		respondErrorJSON(w, core.BadRequestMessage, http.StatusBadRequest)
		return
	}

	res, err := s.service.Edit(r.Context(), id, *req.Row, *req.Col, req.Value)
	if err != nil {
		respondError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleExport downloads the table. The print document is served inline
// so it opens in a tab and brings up the print dialog.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	r, id := sessionContext(r)

	f, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		respondError(w, r, err, "")
		return
	}

	art, err := s.service.Export(r.Context(), id, f)
	if err != nil {
		notice := ""
		if errors.Is(err, sheet.ErrEmptyExport) {
			notice = core.NoticeNothingToSave
		}
		respondError(w, r, err, notice)
		return
	}

	disposition := "attachment"
	if f == export.FormatPDF {
		disposition = "inline"
	}
	h := w.Header()
	h.Set("Content-Type", art.ContentType)
	h.Set("Content-Disposition", disposition+`; filename="`+art.FileName+`"`)
	h.Set("Content-Length", strconv.Itoa(len(art.Body)))
	h.Set(NoticeHeader, core.ExportNotice(f))
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, bytes.NewReader(art.Body))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	r, id := sessionContext(r)
	if err := s.service.Delete(r.Context(), id); err != nil {
		respondError(w, r, err, "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
