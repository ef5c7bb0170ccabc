// Package api exposes the HTTP boundary over the rag system. Request and
// response schemas here are the external contract; everything behind them
// lives in the core packages.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/brightpath/course-agent/knowledge"
	"github.com/brightpath/course-agent/rag"
	"github.com/brightpath/course-agent/tools"
)

// Server exposes HTTP handlers for the course-agent workflows.
type Server struct {
	system  *rag.System
	docsDir string
	logger  *log.Logger
	handler http.Handler
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type queryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

type queryResponse struct {
	Answer    string         `json:"answer"`
	Sources   []tools.Source `json:"sources"`
	SessionID string         `json:"session_id"`
}

type ingestRequest struct {
	Dir     string `json:"dir"`
	Replace bool   `json:"replace"`
}

type ingestResponse struct {
	Courses int `json:"courses"`
	Chunks  int `json:"chunks"`
}

type coursesResponse struct {
	TotalCourses int                     `json:"total_courses"`
	CourseTitles []string                `json:"course_titles"`
	Insights     map[string]courseDetail `json:"insights,omitempty"`
}

type courseDetail struct {
	LessonCount    int      `json:"lesson_count"`
	SameInstructor []string `json:"same_instructor,omitempty"`
}

// New constructs a Server over an already-wired rag system.
func New(system *rag.System, docsDir string, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{system: system, docsDir: docsDir, logger: logger}
	s.handler = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/v1/query", s.handleQuery)
	mux.HandleFunc("/v1/courses", s.handleCourses)
	mux.HandleFunc("/v1/ingest", s.handleIngest)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	s.writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req queryRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	if strings.TrimSpace(req.Query) == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("query is required"))
		return
	}

	answer, err := s.system.Query(r.Context(), req.Query, req.SessionID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("query failed: %w", err))
		return
	}

	sources := answer.Sources
	if sources == nil {
		sources = []tools.Source{}
	}

	s.writeJSON(w, http.StatusOK, queryResponse{
		Answer:    answer.Text,
		Sources:   sources,
		SessionID: answer.SessionID,
	})
}

func (s *Server) handleCourses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}

	stats, err := s.system.Analytics(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("course analytics: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, transformStats(stats))
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}

	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = s.docsDir
	}

	courses, chunks, err := s.system.IngestDirectory(r.Context(), dir, req.Replace)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("ingestion failed: %w", err))
		return
	}

	s.writeJSON(w, http.StatusOK, ingestResponse{Courses: courses, Chunks: chunks})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	s.writeError(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed, use %s", allowed))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Printf("encode response: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Printf("api error (%d): %v", status, err)
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}

	if dec.More() {
		return fmt.Errorf("request body must contain a single JSON object")
	}

	return nil
}

func transformStats(stats rag.Stats) coursesResponse {
	resp := coursesResponse{
		TotalCourses: stats.TotalCourses,
		CourseTitles: stats.CourseTitles,
	}
	if resp.CourseTitles == nil {
		resp.CourseTitles = []string{}
	}

	if len(stats.Insights) > 0 {
		resp.Insights = make(map[string]courseDetail, len(stats.Insights))
		for title, insight := range stats.Insights {
			resp.Insights[title] = transformInsight(insight)
		}
	}
	return resp
}

func transformInsight(insight knowledge.CourseInsight) courseDetail {
	return courseDetail{
		LessonCount:    insight.LessonCount,
		SameInstructor: append([]string(nil), insight.SameInstructor...),
	}
}
