package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nexus-ai/callmate/internal/adapters/assistant"
	"github.com/nexus-ai/callmate/internal/app"
	"github.com/nexus-ai/callmate/internal/config"
	"github.com/nexus-ai/callmate/internal/domain"
)

type fakeController struct {
	startErr error
	muteErr  error
	snap     app.Snapshot
	ended    int
	muted    []bool
}

func (f *fakeController) Start(context.Context) error { return f.startErr }
func (f *fakeController) End()                        { f.ended++ }
func (f *fakeController) SetMuted(m bool) error {
	if f.muteErr != nil {
		return f.muteErr
	}
	f.muted = append(f.muted, m)
	return nil
}
func (f *fakeController) Snapshot() app.Snapshot { return f.snap }

type fakeAuth struct {
	loginErr    error
	registerErr error
	result      *assistant.AuthResult
}

func (f *fakeAuth) Login(context.Context, string, string) (*assistant.AuthResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}
	return f.result, nil
}

func (f *fakeAuth) Register(context.Context, string, string) (*assistant.AuthResult, error) {
	if f.registerErr != nil {
		return nil, f.registerErr
	}
	return f.result, nil
}

type fakeSummaries struct {
	summary *assistant.CallSummary
	recent  []assistant.RecentCall
	err     error
}

func (f *fakeSummaries) CallSummary(context.Context, string) (*assistant.CallSummary, error) {
	return f.summary, f.err
}

func (f *fakeSummaries) RecentCalls(context.Context) ([]assistant.RecentCall, error) {
	return f.recent, f.err
}

func testRouter(ctrl *fakeController, auth *fakeAuth, sums *fakeSummaries) http.Handler {
	cfg := &config.Config{Mode: "release", Secret: "test-secret"}
	return SetupRouter(cfg, ctrl, auth, sums)
}

func doJSON(t *testing.T, r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body == "" {
		rd = strings.NewReader("")
	} else {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStartCallOK(t *testing.T) {
	ctrl := &fakeController{snap: app.Snapshot{State: domain.StateConnected, RoomID: "room-1"}}
	r := testRouter(ctrl, &fakeAuth{}, &fakeSummaries{})

	w := doJSON(t, r, http.MethodPost, "/api/call/start", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "connected", body["state"])
	assert.Equal(t, "room-1", body["room_id"])
}

func TestStartCallConflict(t *testing.T) {
	ctrl := &fakeController{startErr: app.ErrCallInProgress}
	r := testRouter(ctrl, &fakeAuth{}, &fakeSummaries{})

	w := doJSON(t, r, http.MethodPost, "/api/call/start", "")
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestStartCallSetupFailure(t *testing.T) {
	ctrl := &fakeController{
		startErr: app.ErrTransportConnect,
		snap:     app.Snapshot{State: domain.StateError, LastError: "transport connect failed"},
	}
	r := testRouter(ctrl, &fakeAuth{}, &fakeSummaries{})

	w := doJSON(t, r, http.MethodPost, "/api/call/start", "")
	require.Equal(t, http.StatusBadGateway, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
	snap, ok := body["snapshot"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "error", snap["state"])
}

func TestEndCall(t *testing.T) {
	ctrl := &fakeController{snap: app.Snapshot{State: domain.StateDisconnected}}
	r := testRouter(ctrl, &fakeAuth{}, &fakeSummaries{})

	w := doJSON(t, r, http.MethodPost, "/api/call/end", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, ctrl.ended)
}

func TestMuteToggleRoundTrip(t *testing.T) {
	ctrl := &fakeController{snap: app.Snapshot{State: domain.StateConnected, Muted: true}}
	r := testRouter(ctrl, &fakeAuth{}, &fakeSummaries{})

	w := doJSON(t, r, http.MethodPost, "/api/call/mute", `{"muted":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []bool{true}, ctrl.muted)
}

func TestMuteWithoutCall(t *testing.T) {
	ctrl := &fakeController{muteErr: app.ErrNotInCall}
	r := testRouter(ctrl, &fakeAuth{}, &fakeSummaries{})

	w := doJSON(t, r, http.MethodPost, "/api/call/mute", `{"muted":true}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMuteMissingBody(t *testing.T) {
	ctrl := &fakeController{}
	r := testRouter(ctrl, &fakeAuth{}, &fakeSummaries{})

	w := doJSON(t, r, http.MethodPost, "/api/call/mute", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCallStateJSON(t *testing.T) {
	ctrl := &fakeController{snap: app.Snapshot{
		State:  domain.StateReconnecting,
		RoomID: "room-9",
		Transcript: []domain.TranscriptEntry{
			{Speaker: domain.SpeakerLocal, Text: "hi", SentTS: 1},
		},
		Analysis: &domain.AnalysisSnapshot{Sentiment: domain.SentimentNeutral, Confidence: 0.5},
	}}
	r := testRouter(ctrl, &fakeAuth{}, &fakeSummaries{})

	w := doJSON(t, r, http.MethodGet, "/api/call/state", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "reconnecting", body["state"])
	assert.Equal(t, "room-9", body["room_id"])
	assert.Len(t, body["transcript"], 1)
	assert.NotNil(t, body["analysis"])
}

func TestSignInMissingFields(t *testing.T) {
	r := testRouter(&fakeController{}, &fakeAuth{}, &fakeSummaries{})

	w := doJSON(t, r, http.MethodPost, "/api/auth/signin", `{"email":"a@b.c"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignInBadCredentials(t *testing.T) {
	auth := &fakeAuth{loginErr: assistant.ErrAuthFailed}
	r := testRouter(&fakeController{}, auth, &fakeSummaries{})

	w := doJSON(t, r, http.MethodPost, "/api/auth/signin", `{"email":"a@b.c","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSignInOK(t *testing.T) {
	auth := &fakeAuth{result: &assistant.AuthResult{
		AccessToken: "jwt-1",
		User:        &domain.User{ID: "u-1", Email: "a@b.c"},
	}}
	r := testRouter(&fakeController{}, auth, &fakeSummaries{})

	w := doJSON(t, r, http.MethodPost, "/api/auth/signin", `{"email":"a@b.c","password":"secret"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "a@b.c")
	assert.NotEmpty(t, w.Result().Cookies())
}

func TestSignUpConflict(t *testing.T) {
	auth := &fakeAuth{registerErr: assistant.ErrAuthFailed}
	r := testRouter(&fakeController{}, auth, &fakeSummaries{})

	w := doJSON(t, r, http.MethodPost, "/api/auth/signup", `{"email":"a@b.c","password":"secret"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestClientTokenCookieIssued(t *testing.T) {
	r := testRouter(&fakeController{}, &fakeAuth{}, &fakeSummaries{})

	w := doJSON(t, r, http.MethodGet, "/api/call/state", "")
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == "ct" && c.Value != "" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRecentCalls(t *testing.T) {
	sums := &fakeSummaries{recent: []assistant.RecentCall{{RoomID: "room-1"}}}
	r := testRouter(&fakeController{}, &fakeAuth{}, sums)

	w := doJSON(t, r, http.MethodGet, "/api/calls/recent", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "room-1")
}
