package ui

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studio/internal/bus"
	"studio/internal/canvas"
	"studio/internal/compositor"
	"studio/internal/container/avi"
	"studio/internal/layer"
	"studio/internal/recorder"
	"studio/internal/studio"
	"studio/internal/transport"
)

type fixture struct {
	server *Server
	studio *studio.Studio
	comp   *compositor.Compositor
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	surface, err := canvas.New(32, 24, "#102030")
	require.NoError(t, err)
	comp := compositor.New(surface, layer.NewRegistry(surface), 60)
	b := bus.New()

	srv := NewServer(Options{
		Bus:     b,
		Surface: surface,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("studio_frames_drawn_total 0\n"))
		}),
	})
	st, err := studio.New(studio.Options{
		Bus:        b,
		Compositor: comp,
		LayerList:  srv,
		Indicator:  srv,
		Volume:     srv,
		Playback:   srv,
	})
	require.NoError(t, err)

	t.Cleanup(func() {
		st.Close()
		_ = srv.Close()
		_ = surface.Close()
	})
	return &fixture{server: srv, studio: st, comp: comp, router: srv.Router()}
}

func (f *fixture) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, field, name string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile(field, name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/layers", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadAddsLayer(t *testing.T) {
	f := newFixture(t)

	w := f.do(uploadRequest(t, "image", "logo.png", pngBytes(t, 10, 8)))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp struct {
		Name   string            `json:"name"`
		Format string            `json:"format"`
		Width  int               `json:"width"`
		Height int               `json:"height"`
		Layers []studio.LayerTag `json:"layers"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "png", resp.Format)
	assert.Equal(t, 10, resp.Width)
	assert.Equal(t, 8, resp.Height)
	require.Len(t, resp.Layers, 1)
	assert.Equal(t, "logo.png", resp.Layers[0].Name)

	assert.Equal(t, 1, f.comp.Registry().Len())
	assert.Equal(t, resp.Layers, f.server.Layers())
}

func TestUploadRejected(t *testing.T) {
	tests := []struct {
		name  string
		field string
		data  []byte
	}{
		{"wrong field", "file", []byte("x")},
		{"empty file", "image", nil},
		{"not an image", "image", []byte("definitely not a png")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := f.do(uploadRequest(t, tt.field, "upload.png", tt.data))
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Zero(t, f.comp.Registry().Len())
			assert.Empty(t, f.server.Layers())
		})
	}
}

func TestRemoveLayer(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusCreated, f.do(uploadRequest(t, "image", "a.png", pngBytes(t, 4, 4))).Code)
	layers := f.server.Layers()
	require.Len(t, layers, 1)

	w := f.do(httptest.NewRequest(http.MethodDelete, "/api/layers/"+strconv.Itoa(layers[0].ID), nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, f.server.Layers())
	assert.Zero(t, f.comp.Registry().Len())

	w = f.do(httptest.NewRequest(http.MethodDelete, "/api/layers/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCommandRoute(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodPost, "/api/commands/volume-down", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"action":"volume-down","defaultPrevented":true}`, w.Body.String())
	assert.InDelta(t, 0.9, f.studio.Gain(), 1e-9)

	req := httptest.NewRequest(http.MethodPost, "/api/commands/PLAY", strings.NewReader(`{"type":"keydown"}`))
	req.Header.Set("Content-Type", "application/json")
	w = f.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, f.comp.Playing())

	w = f.do(httptest.NewRequest(http.MethodPost, "/api/commands/stop", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.False(t, f.comp.Playing())

	w = f.do(httptest.NewRequest(http.MethodPost, "/api/commands/image_uploaded", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArtifactRoute(t *testing.T) {
	f := newFixture(t)
	a, err := recorder.Assemble(avi.Config{Width: 2, Height: 2, FPS: 10},
		[]recorder.Chunk{{Kind: recorder.KindVideo, Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}}})
	require.NoError(t, err)
	f.server.SetSource(a)

	w := f.do(httptest.NewRequest(http.MethodGet, a.URL(), nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "video/avi", w.Header().Get("Content-Type"))
	assert.Equal(t, a.Data, w.Body.Bytes())
	assert.Empty(t, w.Header().Get("Content-Disposition"))

	w = f.do(httptest.NewRequest(http.MethodGet, a.URL()+"?download=1", nil))
	assert.Contains(t, w.Header().Get("Content-Disposition"), a.Filename())

	w = f.do(httptest.NewRequest(http.MethodGet, "/artifacts/missing", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestArtifactsAreBounded(t *testing.T) {
	f := newFixture(t)
	var first *recorder.Artifact
	for i := 0; i < maxArtifacts+1; i++ {
		a, err := recorder.Assemble(avi.Config{Width: 2, Height: 2, FPS: 10},
			[]recorder.Chunk{{Kind: recorder.KindVideo, Data: []byte{0xFF, 0xD8, 0xFF, 0xD9}}})
		require.NoError(t, err)
		if first == nil {
			first = a
		}
		f.server.SetSource(a)
	}
	_, ok := f.server.Artifact(first.ID)
	assert.False(t, ok)
	assert.Len(t, f.server.artifacts, maxArtifacts)
}

func TestPreviewHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	w := f.do(httptest.NewRequest(http.MethodGet, "/api/preview.jpg", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte{0xFF, 0xD8}))

	w = f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","clients":0,"layers":0}`, w.Body.String())

	w = f.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "studio_frames_drawn_total")
}

type wireEvent struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func TestWebSocketGreetingAndCommands(t *testing.T) {
	f := newFixture(t)
	f.server.Add(studio.LayerTag{Name: "camera", ID: 0})

	ts := httptest.NewServer(f.router)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var greeting []wireEvent
	for i := 0; i < 3; i++ {
		var ev wireEvent
		require.NoError(t, conn.ReadJSON(&ev))
		greeting = append(greeting, ev)
	}
	assert.Equal(t, transport.LayerAdded, greeting[0].Type)
	assert.JSONEq(t, `{"name":"camera","id":0}`, string(greeting[0].Data))
	assert.Equal(t, transport.VolumeIndicator, greeting[1].Type)
	assert.JSONEq(t, `{"percent":100}`, string(greeting[1].Data))
	assert.Equal(t, transport.RecordingIndicator, greeting[2].Type)
	assert.JSONEq(t, `{"visible":false}`, string(greeting[2].Data))

	require.NoError(t, conn.WriteJSON(transport.Command{
		Action: "VOLUME_DOWN",
		Event:  &bus.RemoteEvent{Type: "click"},
	}))

	var gotVolume, gotAck bool
	for !gotVolume || !gotAck {
		var ev wireEvent
		require.NoError(t, conn.ReadJSON(&ev))
		switch ev.Type {
		case transport.VolumeIndicator:
			assert.JSONEq(t, `{"percent":90}`, string(ev.Data))
			gotVolume = true
		case transport.CommandAck:
			var cmd transport.Command
			require.NoError(t, json.Unmarshal(ev.Data, &cmd))
			require.NotNil(t, cmd.Event)
			assert.True(t, cmd.Event.DefaultPrevented)
			gotAck = true
		}
	}
	assert.InDelta(t, 0.9, f.studio.Gain(), 1e-9)
	assert.Equal(t, 1, f.server.Clients())
}

func TestUnknownCommandIgnored(t *testing.T) {
	f := newFixture(t)
	f.server.HandleCommand(transport.Command{Action: "LAYER_REMOVED"})
	f.server.HandleCommand(transport.Command{Action: ""})
	assert.InDelta(t, 1.0, f.studio.Gain(), 1e-9)
}
