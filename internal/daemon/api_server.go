package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"khoj/internal/api"
	"khoj/internal/config"
	"khoj/internal/fileutil"
	"khoj/internal/logging"
	"khoj/internal/services"
)

const maxUploadBytes = 32 << 20

type apiServer struct {
	bind    string
	logger  *slog.Logger
	daemon  *Daemon
	staging string

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, errors.New("api bind address is required")
	}

	srv := &apiServer{
		bind:    bind,
		logger:  logger.With(logging.String(logging.FieldComponent, "api")),
		daemon:  d,
		staging: filepath.Join(cfg.Paths.StagingDir, "uploads"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", srv.handleHealth)
	mux.HandleFunc("GET /api/status", srv.handleStatus)
	mux.HandleFunc("POST /api/cases", srv.handleCreateCase)
	mux.HandleFunc("GET /api/cases", srv.handleListCases)
	mux.HandleFunc("GET /api/cases/{id}", srv.handleGetCase)
	mux.HandleFunc("GET /api/cases/{id}/status", srv.handleCaseStatus)
	mux.HandleFunc("POST /api/cases/{id}/sightings", srv.handleSubmitSighting)
	mux.HandleFunc("GET /api/cases/{id}/sightings", srv.handleListSightings)
	mux.HandleFunc("POST /api/cases/{id}/age-progression", srv.handleAgeProgression)
	mux.HandleFunc("POST /api/cases/{id}/sweep", srv.handleSweep)
	mux.HandleFunc("POST /api/cases/{id}/close", srv.handleCloseCase)
	mux.HandleFunc("POST /api/search", srv.handleSearch)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) address() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.daemon.store.CheckHealth(r.Context()); err != nil {
		s.logger.Warn("health check failed", logging.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "degraded"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

func (s *apiServer) handleCreateCase(w http.ResponseWriter, r *http.Request) {
	req, photoPath, err := s.parseCaseForm(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	created, err := s.daemon.svc.CreateCase(r.Context(), req, photoPath)
	if err != nil {
		s.discardUpload(photoPath)
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

func (s *apiServer) handleListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.daemon.svc.ListCases(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.CaseListResponse{Cases: cases})
}

func (s *apiServer) handleGetCase(w http.ResponseWriter, r *http.Request) {
	id, err := casePathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	found, err := s.daemon.svc.GetCase(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, found)
}

func (s *apiServer) handleCaseStatus(w http.ResponseWriter, r *http.Request) {
	id, err := casePathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	status, err := s.daemon.svc.Status(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *apiServer) handleSubmitSighting(w http.ResponseWriter, r *http.Request) {
	id, err := casePathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	req, photoPath, err := s.parseSightingForm(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sighting, err := s.daemon.svc.SubmitSighting(r.Context(), id, req, photoPath)
	if err != nil && sighting == nil {
		s.discardUpload(photoPath)
		s.writeError(w, err)
		return
	}
	status := http.StatusCreated
	if err != nil {
		// The verification was computed even though the request failed, so
		// return the payload with the mapped error status instead of a bare
		// error body.
		status = services.HTTPStatus(err)
		s.logger.Warn("sighting degraded", logging.Error(err))
	}
	s.writeJSON(w, status, sighting)
}

func (s *apiServer) handleListSightings(w http.ResponseWriter, r *http.Request) {
	id, err := casePathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	sightings, err := s.daemon.svc.ListSightings(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SightingListResponse{Sightings: sightings})
}

func (s *apiServer) handleAgeProgression(w http.ResponseWriter, r *http.Request) {
	id, err := casePathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var body struct {
		TargetAge int `json:"targetAge"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, services.Wrap(services.ErrInput, "api", "age progression", "invalid request body", err))
		return
	}
	resp, err := s.daemon.svc.AgeProgression(r.Context(), id, body.TargetAge)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleSweep(w http.ResponseWriter, r *http.Request) {
	id, err := casePathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	resp, err := s.daemon.svc.Sweep(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleCloseCase(w http.ResponseWriter, r *http.Request) {
	id, err := casePathID(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var body struct {
		Found bool `json:"found"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, services.Wrap(services.ErrInput, "api", "close case", "invalid request body", err))
		return
	}
	closed, err := s.daemon.svc.CloseCase(r.Context(), id, body.Found)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, closed)
}

func (s *apiServer) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, services.Wrap(services.ErrInput, "api", "search", "invalid request body", err))
		return
	}
	results, err := s.daemon.svc.SearchCases(r.Context(), body.Query)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.SearchResponse{Results: results})
}

func (s *apiServer) parseCaseForm(r *http.Request) (req api.NewCaseRequest, photoPath string, err error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return req, "", services.Wrap(services.ErrInput, "api", "create case", "invalid multipart form", err)
	}
	req.Name = r.FormValue("name")
	req.Description = r.FormValue("description")
	req.LastSeenLocation = r.FormValue("lastSeenLocation")
	req.Contact = r.FormValue("contact")
	if ageValue := strings.TrimSpace(r.FormValue("age")); ageValue != "" {
		age, parseErr := strconv.Atoi(ageValue)
		if parseErr != nil {
			return req, "", services.Wrap(services.ErrInput, "api", "create case", "age must be an integer", parseErr)
		}
		req.Age = age
	}

	photoPath, err = s.stageUpload(r, "photo", false)
	if err != nil {
		return req, "", err
	}
	return req, photoPath, nil
}

func (s *apiServer) parseSightingForm(r *http.Request) (req api.SightingRequest, photoPath string, err error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return req, "", services.Wrap(services.ErrInput, "api", "submit sighting", "invalid multipart form", err)
	}
	req.ReporterName = r.FormValue("reporterName")
	req.ReporterContact = r.FormValue("reporterContact")
	req.LocationText = r.FormValue("locationText")
	req.DescriptionText = r.FormValue("descriptionText")

	photoPath, err = s.stageUpload(r, "photo", true)
	if err != nil {
		return req, "", err
	}
	return req, photoPath, nil
}

// stageUpload copies a multipart file into the staging directory under a
// unique name. The staged file belongs to the request until the service
// persists a record referencing it.
func (s *apiServer) stageUpload(r *http.Request, field string, required bool) (string, error) {
	file, header, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		if required {
			return "", services.Wrap(services.ErrInput, "api", "stage upload", fmt.Sprintf("%s file is required", field), nil)
		}
		return "", nil
	}
	if err != nil {
		return "", services.Wrap(services.ErrInput, "api", "stage upload", "read form file", err)
	}
	defer file.Close()

	name := uuid.New().String() + uploadExtension(header)
	path, err := fileutil.WriteUpload(s.staging, name, file)
	if err != nil {
		return "", services.Wrap(services.ErrPersistence, "api", "stage upload", "stage file", err)
	}
	return path, nil
}

func (s *apiServer) discardUpload(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("staged upload not removed", logging.String("path", path), logging.Error(err))
	}
}

func uploadExtension(header *multipart.FileHeader) string {
	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return ext
	default:
		return ".jpg"
	}
}

func casePathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, services.Wrap(services.ErrInput, "api", "parse path", fmt.Sprintf("invalid case id %q", raw), err)
	}
	return id, nil
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("api response encode failed", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, err error) {
	status := services.HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	payload := map[string]string{"error": err.Error()}
	if encodeErr := json.NewEncoder(w).Encode(payload); encodeErr != nil {
		s.logger.Warn("api error encode failed", logging.Error(encodeErr))
	}
}
