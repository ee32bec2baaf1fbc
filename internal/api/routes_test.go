package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/narrator/server/adapters"
	adaptersaudio "github.com/satriahrh/narrator/server/adapters/audio"
	"github.com/satriahrh/narrator/server/adapters/tts"
	"github.com/satriahrh/narrator/server/domain"
	"github.com/satriahrh/narrator/server/domain/entities"
	"github.com/satriahrh/narrator/server/domain/repositories"
	"github.com/satriahrh/narrator/server/internal/audio"
	"github.com/satriahrh/narrator/server/internal/auth"
	"github.com/satriahrh/narrator/server/internal/websocket"
	"github.com/satriahrh/narrator/server/usecase"
)

// remoteFailingTTS answers every request with a provider error
type remoteFailingTTS struct{}

func (remoteFailingTTS) Generate(ctx context.Context, text string, voice entities.Voice) (*entities.SynthesisResult, error) {
	return nil, &domain.RemoteError{StatusCode: 401, StatusText: "Unauthorized"}
}

func (remoteFailingTTS) ListAvailableVoices() []entities.Voice {
	return entities.Voices()
}

type testServer struct {
	echo  *echo.Echo
	repo  *adapters.MemoryNarrationRepository
	token string
}

func newTestServer(t *testing.T, useFailingTTS bool) *testServer {
	t.Helper()
	logger := zaptest.NewLogger(t)

	var provider repositories.TextToSpeech = tts.NewMockTextToSpeech(logger)
	if useFailingTTS {
		provider = remoteFailingTTS{}
	}

	repo := adapters.NewMemoryNarrationRepository(logger)
	service := usecase.NewNarrationService(provider, adaptersaudio.NewDecoder(), repo, logger)
	hub := websocket.NewHub(service, logger)

	issuer, err := auth.NewTokenIssuer("test-secret", time.Hour)
	require.NoError(t, err)
	token, _, err := issuer.GenerateClientToken("test-client")
	require.NoError(t, err)

	e := echo.New()
	InitRoutes(e, service, hub, issuer, logger)

	return &testServer{echo: e, repo: repo, token: token}
}

func (s *testServer) do(t *testing.T, method, path string, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.echo.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, false)

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing header", "", http.StatusUnauthorized, "missing_token"},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, "missing_token"},
		{"invalid token", "Bearer not.a.token", http.StatusUnauthorized, "invalid_token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/voices", nil)
			if tt.header != "" {
				req.Header.Set(echo.HeaderAuthorization, tt.header)
			}
			rec := httptest.NewRecorder()
			s.echo.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.code, decodeError(t, rec).Error)
		})
	}
}

func TestListVoices(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodGet, "/api/v1/voices", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var voices []VoiceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &voices))
	require.Len(t, voices, 10)
	assert.Equal(t, "rachel", voices[0].Name)
	assert.Equal(t, "21m00Tcm4TlvDq8ikWAM", voices[0].ID)
	assert.True(t, voices[1].Default, "finn is the default voice")
}

func TestSynthesizeSpeech(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/v1/speech", []byte(`{"text":"hello","voice":"paul"}`), echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, "audio/wav", rec.Header().Get(echo.HeaderContentType))
	assert.NotEmpty(t, rec.Header().Get("X-Audio-Length"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "RIFF"))
}

func TestSynthesizeSpeech_InvalidVoice(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/v1/speech", []byte(`{"text":"hello","voice":"nobody"}`), echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request", decodeError(t, rec).Error)
}

func TestSynthesizeSpeech_RemoteError(t *testing.T) {
	s := newTestServer(t, true)

	rec := s.do(t, http.MethodPost, "/api/v1/speech", []byte(`{"text":"hello"}`), echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	resp := decodeError(t, rec)
	assert.Equal(t, "remote_error", resp.Error)
	assert.Contains(t, resp.Message, "Unauthorized")
}

func TestNarrationLifecycle(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/v1/narrations",
		[]byte(`{"segments":["Once upon a time","the end"],"voice":"domi"}`), echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created entities.Narration
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, entities.VoiceDomi, created.Voice)
	assert.Len(t, created.Segments, 2)
	assert.Equal(t, entities.NarrationStatusReady, created.Status)
	assert.NotContains(t, rec.Body.String(), `"audio"`)

	rec = s.do(t, http.MethodGet, "/api/v1/narrations/"+created.ID, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/v1/narrations/"+created.ID+"/audio", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "narration-"+created.ID+".wav")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "RIFF"))

	rec = s.do(t, http.MethodGet, "/api/v1/narrations?limit=5", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list NarrationListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	// Expire and check the audio is gone
	_, err := s.repo.ExpireNarrations(context.Background(), time.Now().Add(48*time.Hour))
	require.NoError(t, err)

	rec = s.do(t, http.MethodGet, "/api/v1/narrations/"+created.ID+"/audio", nil, "")
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "expired", decodeError(t, rec).Error)
}

func TestCreateNarration_Errors(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/v1/narrations", []byte(`{"segments":[]}`), echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "no_segments", decodeError(t, rec).Error)

	rec = s.do(t, http.MethodPost, "/api/v1/narrations", []byte(`{"segments":`), echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetNarration_NotFound(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodGet, "/api/v1/narrations/missing", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", decodeError(t, rec).Error)
}

func TestListNarrations_InvalidLimit(t *testing.T) {
	s := newTestServer(t, false)

	for _, limit := range []string{"abc", "0", "-3"} {
		rec := s.do(t, http.MethodGet, "/api/v1/narrations?limit="+limit, nil, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func multipartBody(t *testing.T, files map[string][]byte, order []string) ([]byte, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for _, name := range order {
		part, err := writer.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(files[name])
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body.Bytes(), writer.FormDataContentType()
}

func TestConcatAudio(t *testing.T) {
	s := newTestServer(t, false)

	first := entities.NewDecodedAudio(1, 100, 8000)
	second := entities.NewDecodedAudio(1, 50, 8000)
	for i := range first.Channels[0] {
		first.Channels[0][i] = 0.25
	}

	files := map[string][]byte{
		"a.wav": audio.EncodeWAV(first),
		"b.wav": audio.EncodeWAV(second),
	}
	body, contentType := multipartBody(t, files, []string{"a.wav", "b.wav"})

	rec := s.do(t, http.MethodPost, "/api/v1/concat", body, contentType)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "audio/wav", rec.Header().Get(echo.HeaderContentType))

	decoded, err := adaptersaudio.NewDecoder().Decode(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, 150, decoded.Length())
	assert.Equal(t, 8000, decoded.SampleRate)
}

func TestConcatAudio_Errors(t *testing.T) {
	s := newTestServer(t, false)

	rec := s.do(t, http.MethodPost, "/api/v1/concat", []byte("not multipart"), echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	body, contentType := multipartBody(t, map[string][]byte{}, nil)
	rec = s.do(t, http.MethodPost, "/api/v1/concat", body, contentType)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "missing_files", decodeError(t, rec).Error)

	files := map[string][]byte{
		"a.wav":   audio.EncodeWAV(entities.NewDecodedAudio(1, 10, 8000)),
		"bad.bin": []byte("definitely not audio"),
	}
	body, contentType = multipartBody(t, files, []string{"a.wav", "bad.bin"})
	rec = s.do(t, http.MethodPost, "/api/v1/concat", body, contentType)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "decode_error", decodeError(t, rec).Error)
}
