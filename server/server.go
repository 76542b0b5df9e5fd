package server

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"chapter_post_generator/generator"
	"chapter_post_generator/ocr"
	"chapter_post_generator/pipeline"
	"chapter_post_generator/publisher"
)

//go:embed web/*.html
var embeddedWeb embed.FS

const (
	maxMemory   = 32 << 20
	maxBodySize = 256 << 20
)

// Runner executes one upload.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Response, error)
}

type Server struct {
	runner Runner
	pub    *publisher.Publisher
	pages  *template.Template
	log    zerolog.Logger
}

func New(runner Runner, pub *publisher.Publisher, log zerolog.Logger) (*Server, error) {
	if runner == nil {
		return nil, errors.New("pipeline runner required")
	}
	if pub == nil {
		return nil, errors.New("publisher required")
	}
	pages, err := template.ParseFS(embeddedWeb, "web/*.html")
	if err != nil {
		return nil, err
	}
	return &Server{runner: runner, pub: pub, pages: pages, log: log}, nil
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(s.logMiddleware)
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/web", s.handleWeb)
	r.Post("/upload", s.handleUpload)
	r.Get("/posts", s.handlePostList)
	r.Get("/posts/{name}", s.handlePostView)
	return r
}

// --- Handlers ---

func (s *Server) handleWeb(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := map[string]string{
		"Title":        "書摘貼文產生器",
		"ScheduleHint": "2006-01-02T15:04:05+08:00",
	}
	if err := s.pages.ExecuteTemplate(w, "upload.html", data); err != nil {
		s.log.Error().Err(err).Msg("render upload form")
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	uploads, err := readUploads(r.MultipartForm.File["files"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.runner.Run(r.Context(), pipeline.Request{
		Uploads:     uploads,
		Schedule:    r.FormValue("schedule"),
		Instruction: r.FormValue("instruction"),
	})
	if err != nil {
		status := statusFor(err)
		s.log.Error().Err(err).Int("status", status).Str("request_id", chimiddleware.GetReqID(r.Context())).Msg("upload failed")
		writeError(w, status, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type postListResp struct {
	Posts []publisher.Artifact `json:"posts"`
}

func (s *Server) handlePostList(w http.ResponseWriter, _ *http.Request) {
	items, err := s.pub.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, postListResp{Posts: items})
}

func (s *Server) handlePostView(w http.ResponseWriter, r *http.Request) {
	raw, err := s.pub.Read(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, publisher.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	body, err := publisher.RenderHTML(generator.ParseResult(raw))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, body)
}

// --- Helpers ---

func readUploads(headers []*multipart.FileHeader) ([]ocr.Image, error) {
	uploads := make([]ocr.Image, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, ocr.Image{Name: fh.Filename, Data: data})
	}
	return uploads, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrNoImages), errors.Is(err, ocr.ErrInvalidImage):
		return http.StatusBadRequest
	case errors.Is(err, generator.ErrModelInvocation), errors.Is(err, context.DeadlineExceeded):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info().
			Str("request_id", chimiddleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("http")
	})
}
