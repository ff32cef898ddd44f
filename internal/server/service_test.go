package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"speakcheck/internal/domain"
	"speakcheck/internal/report"
	"speakcheck/internal/rules"
	"speakcheck/internal/usecase"
)

type fakeBackend struct {
	mu        sync.Mutex
	startReq  usecase.StartRequest
	startErr  error
	stopErr   error
	status    domain.Status
	view      report.View
	reportErr error
	archived  map[string]report.View
	raw       map[string][]byte
}

func (f *fakeBackend) StartRecording(_ context.Context, req usecase.StartRequest) (domain.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startReq = req
	if f.startErr != nil {
		return domain.Status{}, f.startErr
	}
	return f.status, nil
}

func (f *fakeBackend) StopRecording(context.Context) (domain.Status, error) {
	if f.stopErr != nil {
		return domain.Status{}, f.stopErr
	}
	return f.status, nil
}

func (f *fakeBackend) GetStatus() domain.Status {
	return f.status
}

func (f *fakeBackend) TakeReport(context.Context) (report.View, error) {
	return f.view, f.reportErr
}

func (f *fakeBackend) ArchivedReport(_ context.Context, id string) (report.View, error) {
	v, ok := f.archived[id]
	if !ok {
		return report.View{}, domain.ErrResultNotFound
	}
	return v, nil
}

func (f *fakeBackend) ArchivedRaw(_ context.Context, id string) ([]byte, error) {
	raw, ok := f.raw[id]
	if !ok {
		return nil, domain.ErrResultNotFound
	}
	return raw, nil
}

func (f *fakeBackend) ArchivedPDF(ctx context.Context, id string) ([]byte, error) {
	view, err := f.ArchivedReport(ctx, id)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := report.WritePDF(&buf, view); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (f *fakeBackend) GetRuntimeInfo() map[string]string {
	return map[string]string{"language": "en-US"}
}

func newTestServer(t *testing.T, backend *fakeBackend) (*httptest.Server, *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(zerolog.Nop())
	e := initRoutes(&Data{Addr: ":8000", Backend: backend, Hub: hub, Ctx: ctx, Log: zerolog.Nop()})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv, hub
}

func doRequest(t *testing.T, method, url, body string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestLive(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBackend{})

	code, body := doRequest(t, http.MethodGet, srv.URL+"/live", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"service":"OK"}`, body)
}

func TestMetricsExposed(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBackend{})
	doRequest(t, http.MethodGet, srv.URL+"/live", "")

	code, body := doRequest(t, http.MethodGet, srv.URL+"/metrics", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "speakcheck_requests_total")
}

func TestStartRecording(t *testing.T) {
	backend := &fakeBackend{status: domain.Status{SessionID: "s1", State: domain.SessionStateRecording, Phase: domain.PhaseRecording, Controls: domain.Controls{CanStop: true}}}
	srv, _ := newTestServer(t, backend)

	code, body := doRequest(t, http.MethodPost, srv.URL+"/api/recordings",
		`{"mode":"phrase","language":"en-GB","phrase":"good morning","prompt":{"testType":"ielts"}}`)
	assert.Equal(t, http.StatusAccepted, code)
	assert.JSONEq(t, `{"sessionId":"s1","state":"recording","phase":"recording","elapsedSeconds":0,"controls":{"canRecord":false,"canStop":true}}`, body)

	backend.mu.Lock()
	defer backend.mu.Unlock()
	assert.Equal(t, domain.ModePhrase, backend.startReq.Mode)
	assert.Equal(t, "en-GB", backend.startReq.Language)
	assert.Equal(t, "good morning", backend.startReq.Phrase)
	assert.Equal(t, "ielts", backend.startReq.Prompt.TestType)
}

func TestStartRecordingBadBody(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBackend{})

	code, body := doRequest(t, http.MethodPost, srv.URL+"/api/recordings", `{"mode":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body, `"status":"error"`)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{name: "busy", err: usecase.ErrSessionActive, wantCode: http.StatusConflict, wantErr: "session_active"},
		{name: "phrase", err: usecase.ErrMissingPhrase, wantCode: http.StatusBadRequest, wantErr: "bad_request"},
		{name: "mode", err: fmt.Errorf("%w: %q", usecase.ErrUnknownMode, "x"), wantCode: http.StatusBadRequest, wantErr: "bad_request"},
		{name: "rules", err: fmt.Errorf("normalize phrase: %w", rules.ErrNotConverged), wantCode: http.StatusBadRequest, wantErr: "rules"},
		{name: "permission", err: fmt.Errorf("acquire: %w", domain.ErrPermissionDenied), wantCode: http.StatusServiceUnavailable, wantErr: "permission_denied"},
		{name: "device", err: domain.ErrDeviceUnavailable, wantCode: http.StatusServiceUnavailable, wantErr: "device_unavailable"},
		{name: "other", err: errors.New("boom"), wantCode: http.StatusInternalServerError, wantErr: "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _ := newTestServer(t, &fakeBackend{startErr: tt.err})

			code, body := doRequest(t, http.MethodPost, srv.URL+"/api/recordings", `{"mode":"prompt"}`)
			assert.Equal(t, tt.wantCode, code)

			var got errorBody
			require.NoError(t, json.Unmarshal([]byte(body), &got))
			assert.Equal(t, "error", got.Status)
			assert.Equal(t, tt.wantErr, got.Code)
			assert.Equal(t, tt.err.Error(), got.Message)
		})
	}
}

func TestStopWithoutSession(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBackend{stopErr: usecase.ErrNoActiveSession})

	code, body := doRequest(t, http.MethodPost, srv.URL+"/api/recordings/stop", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Contains(t, body, "no_session")
}

func TestStatus(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBackend{status: domain.Status{State: domain.SessionStateIdle, Phase: domain.PhaseIdle, Controls: domain.Controls{CanRecord: true}}})

	code, body := doRequest(t, http.MethodGet, srv.URL+"/api/status", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"canRecord":true`)
}

func TestRuntimeInfo(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBackend{})

	code, body := doRequest(t, http.MethodGet, srv.URL+"/api/info", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"language":"en-US"}`, body)
}

func TestReportNoData(t *testing.T) {
	srv, _ := newTestServer(t, &fakeBackend{view: report.NoData()})

	code, body := doRequest(t, http.MethodGet, srv.URL+"/api/report", "")
	assert.Equal(t, http.StatusOK, code)

	var got report.View
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.True(t, got.NoData)
	assert.Equal(t, "No report data", got.Title)
}

func TestArchivedReport(t *testing.T) {
	backend := &fakeBackend{archived: map[string]report.View{"01ARZ3NDEKTSV4RRFFQ69G5FAV": {ResultID: "01ARZ3NDEKTSV4RRFFQ69G5FAV", Overall: 82}}}
	srv, _ := newTestServer(t, backend)

	code, body := doRequest(t, http.MethodGet, srv.URL+"/api/results/01ARZ3NDEKTSV4RRFFQ69G5FAV", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"overall":82`)

	code, body = doRequest(t, http.MethodGet, srv.URL+"/api/results/missing", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body, "not_found")
}

func TestArchivedRaw(t *testing.T) {
	const id = "01ARZ3NDEKTSV4RRFFQ69G5FAV"
	raw := `{"status":"ok","result_id":"01ARZ3NDEKTSV4RRFFQ69G5FAV","scores":{"pronunciation":82}}`
	srv, _ := newTestServer(t, &fakeBackend{raw: map[string][]byte{id: []byte(raw)}})

	resp, err := http.Get(srv.URL + "/api/results/" + id + "/raw")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get(echo.HeaderContentType), echo.MIMEApplicationJSON))
	assert.Equal(t, raw, string(body))

	code, body2 := doRequest(t, http.MethodGet, srv.URL+"/api/results/missing/raw", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body2, "not_found")
}

func TestArchivedPDF(t *testing.T) {
	const id = "01ARZ3NDEKTSV4RRFFQ69G5FAV"
	backend := &fakeBackend{archived: map[string]report.View{id: {ResultID: id, Overall: 82, Language: "en-US"}}}
	srv, _ := newTestServer(t, backend)

	resp, err := http.Get(srv.URL + "/api/results/" + id + "/pdf")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get(echo.HeaderContentType))
	assert.Equal(t, `attachment; filename="report-`+id+`.pdf"`, resp.Header.Get(echo.HeaderContentDisposition))
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF-")))

	code, _ := doRequest(t, http.MethodGet, srv.URL+"/api/results/missing/pdf", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEventsWebsocket(t *testing.T) {
	srv, hub := newTestServer(t, &fakeBackend{})

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/events"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast(Event{Type: "state", State: "finished", Reason: "report_ready", ResultID: "01ARZ"})

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"state","state":"finished","reason":"report_ready","resultId":"01ARZ"}`, string(msg))

	require.NoError(t, ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	s := hub.add()

	for i := 0; i < sendBuffer+1; i++ {
		hub.Broadcast(Event{Type: "state"})
	}

	assert.Equal(t, 0, hub.Len())
	count := 0
	for range s.send {
		count++
	}
	assert.Equal(t, sendBuffer, count)
	hub.remove(s)
}

func TestValidate(t *testing.T) {
	_, err := StartWebServer(&Data{Addr: ":8000", Hub: NewHub(zerolog.Nop()), Ctx: context.Background()})
	assert.Error(t, err)
	_, err = StartWebServer(&Data{Addr: ":8000", Backend: &fakeBackend{}, Ctx: context.Background()})
	assert.Error(t, err)
}
