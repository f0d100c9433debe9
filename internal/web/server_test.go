package web

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/sheetview/internal/config"
	"github.com/JonMunkholm/sheetview/internal/core"
	"github.com/JonMunkholm/sheetview/internal/store"
)

const peopleCSV = "name,city\nAda,London\nGrace,New York\nLinus,Helsinki\n"

func testConfig(t *testing.T, env map[string]string) *config.Config {
	t.Helper()
	base := map[string]string{
		"RATE_LIMIT_ENABLED": "false",
		"FILTER_DEBOUNCE":    "10ms",
	}
	for k, v := range env {
		base[k] = v
	}
	cfg, err := config.LoadFrom(func(k string) string { return base[k] })
	require.NoError(t, err)
	return cfg
}

func newTestServer(t *testing.T, env map[string]string) *Server {
	t.Helper()
	cfg := testConfig(t, env)
	svc := core.NewService(store.NewMemory(), core.Options{
		MaxFileSize: 1 << 20,
		SessionTTL:  time.Hour,
	})
	srv := NewServer(svc, cfg)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body["session_id"])
	return body["session_id"]
}

func uploadRequest(t *testing.T, id, name, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("other", "x"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/load", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func loadCSV(t *testing.T, h http.Handler, id string) {
	t.Helper()
	rec := do(t, h, uploadRequest(t, id, "people.csv", peopleCSV))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body
}

func TestHealth(t *testing.T) {
	h := newTestServer(t, nil).Router()
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, core.DefaultMaxConcurrentLoads, body.Loads.MaxConcurrent)
}

func TestIndex_RedirectsToNewSession(t *testing.T) {
	h := newTestServer(t, nil).Router()
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "/s/"), loc)

	page := do(t, h, httptest.NewRequest(http.MethodGet, loc, nil))
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), `id="uploadBox"`)
	assert.Contains(t, page.Body.String(), `data-debounce="10"`)
	assert.NotEmpty(t, page.Header().Get("Content-Security-Policy"))
}

func TestPage_UnknownSessionStartsOver(t *testing.T) {
	h := newTestServer(t, nil).Router()
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/s/not-a-session", nil))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
}

func TestStatic(t *testing.T) {
	h := newTestServer(t, nil).Router()
	for _, path := range []string{"/static/app.js", "/static/app.css"} {
		rec := do(t, h, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestLoad(t *testing.T) {
	h := newTestServer(t, nil).Router()
	id := createSession(t, h)

	rec := do(t, h, uploadRequest(t, id, "people.csv", peopleCSV))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res core.LoadResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "people.csv", res.FileName)
	assert.Equal(t, 4, res.Rows)
	assert.Equal(t, 2, res.Columns)
	assert.Equal(t, core.NoticeCSVLoaded, res.Notice)
}

func TestLoad_Failures(t *testing.T) {
	tests := []struct {
		name       string
		file       string
		content    string
		wantStatus int
		wantNotice string
	}{
		{"legacy xls", "old.xls", "whatever", http.StatusUnsupportedMediaType, core.NoticeLegacyXLS},
		{"unknown extension", "notes.txt", "hello", http.StatusUnsupportedMediaType, core.NoticeUnsupported},
		{"broken xlsx", "broken.xlsx", "not a zip", http.StatusUnprocessableEntity, core.NoticeLoadFailed},
		{"no file part", "", "", http.StatusUnprocessableEntity, core.NoticeLoadFailed},
	}

	h := newTestServer(t, nil).Router()
	id := createSession(t, h)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, uploadRequest(t, id, tt.file, tt.content))
			assert.Equal(t, tt.wantStatus, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.wantNotice, body.Notice)
			assert.NotEmpty(t, body.Code)
		})
	}
}

func TestLoad_TooLarge(t *testing.T) {
	h := newTestServer(t, nil).Router()
	id := createSession(t, h)

	big := strings.Repeat("a,b\n", (1<<20)/4+16)
	rec := do(t, h, uploadRequest(t, id, "big.csv", big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestTable_FilterAndJSON(t *testing.T) {
	h := newTestServer(t, nil).Router()
	id := createSession(t, h)
	loadCSV(t, h, id)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/table?q=LON", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, "<th>name</th>")
	assert.Contains(t, html, "Ada")
	assert.NotContains(t, html, "Grace")

	// The filter sticks until replaced.
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/table", nil)
	req.Header.Set("Accept", "application/json")
	rec = do(t, h, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var view TableResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "lon", view.Filter)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, 1, view.Rows[1].Index)
}

func TestTable_BeforeLoad(t *testing.T) {
	h := newTestServer(t, nil).Router()
	id := createSession(t, h)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/table", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "empty-state")
}

func editRequest(id, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/sessions/"+id+"/cells", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func TestEditCell(t *testing.T) {
	h := newTestServer(t, nil).Router()
	id := createSession(t, h)
	loadCSV(t, h, id)

	rec := do(t, h, editRequest(id, `{"row":2,"col":1,"value":"Arlington"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var first core.EditResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.True(t, first.FirstEdit)
	assert.Equal(t, core.NoticeCellUpdated, first.Notice)

	rec = do(t, h, editRequest(id, `{"row":2,"col":0,"value":"Grace H"}`))
	require.Equal(t, http.StatusOK, rec.Code)
	var second core.EditResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &second))
	assert.False(t, second.FirstEdit)
	assert.Empty(t, second.Notice)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/export/csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Grace H","Arlington"`)
}

func TestEditCell_BadRequests(t *testing.T) {
	h := newTestServer(t, nil).Router()
	id := createSession(t, h)
	loadCSV(t, h, id)

	rec := do(t, h, editRequest(id, `not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, editRequest(id, `{"value":"x"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, editRequest(id, `{"row":99,"col":0,"value":"x"}`))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExport(t *testing.T) {
	h := newTestServer(t, nil).Router()
	id := createSession(t, h)
	loadCSV(t, h, id)

	tests := []struct {
		format      string
		contentType string
		disposition string
		notice      string
	}{
		{"csv", "text/csv", `attachment; filename="edited.csv"`, core.NoticeCSVExported},
		{"xls", "application/vnd.ms-excel", `attachment; filename="edited.xls"`, core.NoticeXLSExported},
		{"xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", `attachment; filename="edited.xlsx"`, core.NoticeXLSXExported},
		{"pdf", "text/html", `inline; filename="edited.html"`, core.NoticePDFReady},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/export/"+tt.format, nil))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), tt.contentType))
			assert.Equal(t, tt.disposition, rec.Header().Get("Content-Disposition"))
			assert.Equal(t, tt.notice, rec.Header().Get(NoticeHeader))
			assert.NotZero(t, rec.Body.Len())
		})
	}
}

func TestExport_Errors(t *testing.T) {
	h := newTestServer(t, nil).Router()
	id := createSession(t, h)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/export/csv", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, core.NoticeNothingToSave, decodeError(t, rec).Notice)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/export/ods", nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestDeleteSession(t *testing.T) {
	h := newTestServer(t, nil).Router()
	id := createSession(t, h)

	rec := do(t, h, httptest.NewRequest(http.MethodDelete, "/api/sessions/"+id, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/table", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SES001", decodeError(t, rec).Code)
}

func TestAPIKeyRequired(t *testing.T) {
	h := newTestServer(t, map[string]string{
		"REQUIRE_API_KEY": "true",
		"API_KEYS":        "secret",
	}).Router()

	rec := do(t, h, httptest.NewRequest(http.MethodPost, "/api/sessions", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = do(t, h, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAPIKeyRequired_BrowserFlow(t *testing.T) {
	h := newTestServer(t, map[string]string{
		"REQUIRE_API_KEY": "true",
		"API_KEYS":        "secret",
	}).Router()

	// The page is public; the key given on the first visit follows the
	// redirect so the client can pick it up.
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/?api_key=secret", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	loc := rec.Header().Get("Location")
	assert.True(t, strings.HasSuffix(loc, "?api_key=secret"), loc)

	page := do(t, h, httptest.NewRequest(http.MethodGet, loc, nil))
	require.Equal(t, http.StatusOK, page.Code)
	assert.Contains(t, page.Body.String(), "data-auth-required")
	assert.Contains(t, page.Body.String(), `data-reading-notice="`+core.NoticeReadingXLSX+`"`)

	js := do(t, h, httptest.NewRequest(http.MethodGet, "/static/app.js", nil)).Body.String()
	assert.Contains(t, js, "'X-API-Key'")
	assert.Contains(t, js, "?api_key=")

	id := strings.TrimPrefix(strings.TrimSuffix(loc, "?api_key=secret"), "/s/")
	req := httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/export/pdf", nil)
	assert.Equal(t, http.StatusUnauthorized, do(t, h, req).Code)

	// An empty table is refused with a JSON notice, which the client shows
	// instead of opening the print window.
	req = httptest.NewRequest(http.MethodGet, "/api/sessions/"+id+"/export/pdf", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = do(t, h, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, core.NoticeNothingToSave, decodeError(t, rec).Notice)
}

func TestPage_NoAuthAttributeByDefault(t *testing.T) {
	h := newTestServer(t, nil).Router()
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/", nil))
	page := do(t, h, httptest.NewRequest(http.MethodGet, rec.Header().Get("Location"), nil))
	assert.NotContains(t, page.Body.String(), "data-auth-required")
}

func TestRateLimit(t *testing.T) {
	h := newTestServer(t, map[string]string{
		"RATE_LIMIT_ENABLED":             "true",
		"RATE_LIMIT_REQUESTS_PER_MINUTE": "2",
	}).Router()

	for i := 0; i < 2; i++ {
		rec := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)
}

func dialLive(t *testing.T, ts *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/" + id + "/live"
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestLive_FilterIsDebounced(t *testing.T) {
	srv := newTestServer(t, map[string]string{"FILTER_DEBOUNCE": "150ms"})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	id := createSession(t, srv.Router())
	loadCSV(t, srv.Router(), id)
	conn := dialLive(t, ts, id)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, term := range []string{"h", "he", "hel"} {
		require.NoError(t, wsjson.Write(ctx, conn, liveRequest{Type: liveFilter, Term: term}))
	}

	var reply liveReply
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, liveTable, reply.Type)
	assert.Equal(t, "hel", reply.Filter)
	assert.Equal(t, 1, reply.Rows)
	assert.Contains(t, reply.HTML, "Helsinki")

	// Only one render for the burst: the next reply answers the ping.
	require.NoError(t, wsjson.Write(ctx, conn, liveRequest{Type: livePing}))
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, livePong, reply.Type)
}

func TestLive_Edit(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	id := createSession(t, srv.Router())
	loadCSV(t, srv.Router(), id)
	conn := dialLive(t, ts, id)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, wsjson.Write(ctx, conn, liveRequest{Type: liveEdit, Row: 1, Col: 1, Value: "Cambridge"}))
	var reply liveReply
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, liveEdited, reply.Type)
	assert.True(t, reply.FirstEdit)
	assert.Equal(t, core.NoticeCellUpdated, reply.Notice)

	require.NoError(t, wsjson.Write(ctx, conn, liveRequest{Type: liveEdit, Row: 50, Col: 0, Value: "x"}))
	require.NoError(t, wsjson.Read(ctx, conn, &reply))
	assert.Equal(t, liveError, reply.Type)
	assert.Equal(t, "CELL001", reply.Code)
}

func TestLive_UnknownSession(t *testing.T) {
	srv := newTestServer(t, nil)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/sessions/00000000-0000-0000-0000-000000000000/live"
	_, resp, err := websocket.Dial(ctx, url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
