package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chapter_post_generator/generator"
	"chapter_post_generator/ocr"
	"chapter_post_generator/pipeline"
	"chapter_post_generator/publisher"
)

type textEngine struct{}

func (textEngine) Recognize(context.Context, image.Image, string) (string, error) {
	return "內文", nil
}

type fixedLLM struct {
	reply string
	err   error
}

func (l fixedLLM) Complete(context.Context, generator.Prompt) (string, error) {
	return l.reply, l.err
}

func newTestServer(t *testing.T, llm generator.LLMClient) (http.Handler, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "output")
	agent, err := generator.NewAgent(llm, time.Second)
	require.NoError(t, err)
	pub, err := publisher.New(dir)
	require.NoError(t, err)
	p, err := pipeline.New(pipeline.Options{
		Engine:    textEngine{},
		Agent:     agent,
		Sequencer: publisher.NewLockedSequencer(dir),
		Publisher: pub,
		Logger:    zerolog.Nop(),
	})
	require.NoError(t, err)
	srv, err := New(p, pub, zerolog.Nop())
	require.NoError(t, err)
	return srv.Routes(), dir
}

func pngData(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 3, 3))))
	return buf.Bytes()
}

func multipartBody(t *testing.T, files map[string][]byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		part, err := mw.CreateFormFile("files", name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &body, mw.FormDataContentType()
}

func postUpload(t *testing.T, h http.Handler, files map[string][]byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body, ctype := multipartBody(t, files, fields)
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestUploadSuccess(t *testing.T) {
	h, dir := newTestServer(t, fixedLLM{reply: `{"chapter":"第2章","intro":"嗨","quote":"q","highlights":["a"],"hashtags":["#t"]}`})

	rec := postUpload(t, h, map[string][]byte{"p1.png": pngData(t)}, map[string]string{"schedule": "2025-07-01T08:00:00+08:00"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp pipeline.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "p1.png", resp.Results[0].File)
	assert.Equal(t, "2025-07-01T08:00:00+08:00", resp.Results[0].Schedule)
	assert.Equal(t, "嗨\n\n第2章\nq\n\na\n\n#t", resp.Preview)
	assert.Equal(t, dir, filepath.Dir(resp.Results[0].Path))
	_, err := os.Stat(resp.Results[0].Path)
	assert.NoError(t, err)
}

func TestUploadUnparsedReplyIsStillSuccess(t *testing.T) {
	h, _ := newTestServer(t, fixedLLM{reply: "not json"})

	rec := postUpload(t, h, map[string][]byte{"p1.png": pngData(t)}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp pipeline.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "success", resp.Status)
	assert.Equal(t, "\n\n\n\n\n\n\n", resp.Preview)
	data, err := os.ReadFile(resp.Results[0].Path)
	require.NoError(t, err)
	assert.Equal(t, "not json", string(data))
}

func TestUploadErrors(t *testing.T) {
	tests := []struct {
		name   string
		llm    generator.LLMClient
		files  map[string][]byte
		status int
	}{
		{"no files", fixedLLM{reply: "{}"}, nil, http.StatusBadRequest},
		{"invalid image", fixedLLM{reply: "{}"}, map[string][]byte{"x.jpg": []byte("nope")}, http.StatusBadRequest},
		{"model down", fixedLLM{err: errors.New("dial tcp: refused")}, map[string][]byte{"a.png": nil}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, dir := newTestServer(t, tt.llm)
			files := tt.files
			for name, data := range files {
				if data == nil {
					files[name] = pngData(t)
				}
			}
			rec := postUpload(t, h, files, nil)
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
			_, err := os.Stat(dir)
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestUploadRejectsNonMultipart(t *testing.T) {
	h, _ := newTestServer(t, fixedLLM{reply: "{}"})
	req := httptest.NewRequest(http.MethodPost, "/upload", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebForm(t *testing.T) {
	h, _ := newTestServer(t, fixedLLM{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/web", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), `name="files"`)
	assert.Contains(t, rec.Body.String(), `name="instruction"`)
}

func TestPostsListAndView(t *testing.T) {
	h, _ := newTestServer(t, fixedLLM{reply: `{"title":"標題","chapter":"第9章","quote":"金句"}`})
	rec := postUpload(t, h, map[string][]byte{"a.png": pngData(t)}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var up pipeline.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &up))
	name := filepath.Base(up.Results[0].Path)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list postListResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Posts, 1)
	assert.Equal(t, name, list.Posts[0].Name)
	assert.Equal(t, 1, list.Posts[0].Sequence)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts/"+name, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h2>標題</h2>")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, fmt.Sprintf("/posts/post_99_%s_000000.json", "20250101"), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, fixedLLM{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(pipeline.ErrNoImages))
	assert.Equal(t, http.StatusBadRequest, statusFor(fmt.Errorf("x: %w", ocr.ErrInvalidImage)))
	assert.Equal(t, http.StatusInternalServerError, statusFor(fmt.Errorf("x: %w", ocr.ErrExtraction)))
	assert.Equal(t, http.StatusBadGateway, statusFor(fmt.Errorf("%w: timeout", generator.ErrModelInvocation)))
}
