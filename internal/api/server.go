// Package api exposes the HTTP surface: document upload/search/edit/delete,
// payload streaming, agreements, and the dashboard. Handlers translate domain
// errors into the JSON envelope and never leak internal details.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/dcervantes/foliovault/internal/agreements"
	"github.com/dcervantes/foliovault/internal/blobstore"
	"github.com/dcervantes/foliovault/internal/config"
	"github.com/dcervantes/foliovault/internal/documents"
	"github.com/dcervantes/foliovault/internal/signing"
)

// Server exposes HTTP endpoints over the document and agreement managers.
type Server struct {
	cfg    *config.Config
	docs   *documents.Manager
	agrs   *agreements.Manager
	blobs  blobstore.Store
	signer *signing.Signer
}

// New constructs a Server.
func New(cfg *config.Config, docs *documents.Manager, agrs *agreements.Manager, blobs blobstore.Store, signer *signing.Signer) *Server {
	return &Server{
		cfg:    cfg,
		docs:   docs,
		agrs:   agrs,
		blobs:  blobs,
		signer: signer,
	}
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:        s.cfg.Address,
		Handler:     corsMiddleware(loggingMiddleware(s.routes())),
		ReadTimeout: s.cfg.UploadTimeout,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	log.Printf("api listening on %s", s.cfg.Address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/documents", s.handleDocuments)
	mux.HandleFunc("/api/documents/", s.handleDocumentRoute)
	mux.HandleFunc("/api/files/", s.handleDownload)
	mux.HandleFunc("/api/agreements", s.handleAgreements)
	mux.HandleFunc("/api/agreements/", s.handleAgreementRoute)
	mux.HandleFunc("/api/dashboard", s.handleDashboard)
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleUpload(w, r)
	case http.MethodGet:
		s.handleList(w, r)
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleDocumentRoute(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/documents/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	if parts[0] == "expiring" {
		s.handleExpiring(w, r)
		return
	}
	id := parts[0]
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleGet(w, r, id)
		case http.MethodPut, http.MethodPatch:
			s.handleUpdate(w, r, id)
		case http.MethodDelete:
			s.handleDelete(w, r, id)
		default:
			respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}
	if parts[1] == "link" && r.Method == http.MethodPost {
		s.handleMintLink(w, r, id)
		return
	}
	respondError(w, http.StatusNotFound, "not found")
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		respondError(w, http.StatusBadRequest, "expecting multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "no file attached")
		return
	}
	defer file.Close()
	if header.Size == 0 {
		respondError(w, http.StatusBadRequest, documents.ErrEmptyPayload.Error())
		return
	}

	contentType, payload, err := sniffContentType(header.Header.Get("Content-Type"), file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable file")
		return
	}

	fields := fieldsFromForm(r)
	doc, err := s.docs.Create(ctx, fields, payload, fileName(header.Filename), contentType)
	if err != nil {
		s.respondDocumentError(w, err, "failed to store file")
		return
	}
	respondJSON(w, http.StatusCreated, envelope{OK: true, Item: doc})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	sortBy := r.URL.Query().Get("sortBy")
	if sortBy == "" {
		sortBy = "createdAt"
	}
	desc := r.URL.Query().Get("order") != "asc"

	items, err := s.docs.List(r.Context(), q, sortBy, desc, time.Now(), s.cfg.BadgeThresholdDays)
	if err != nil {
		log.Printf("list documents: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	respondJSON(w, http.StatusOK, envelope{OK: true, Items: items, Total: len(items)})
}

func (s *Server) handleExpiring(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	items, err := s.docs.Expiring(r.Context(), time.Now(), s.cfg.WindowDays)
	if err != nil {
		log.Printf("expiring documents: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list expiring documents")
		return
	}
	respondJSON(w, http.StatusOK, envelope{OK: true, Items: items, Total: len(items)})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := s.docs.Get(r.Context(), id)
	if err != nil {
		s.respondDocumentError(w, err, "failed to load document")
		return
	}
	respondJSON(w, http.StatusOK, envelope{OK: true, Item: doc})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request, id string) {
	ctx := r.Context()

	var (
		fields      documents.UpdateFields
		payload     io.Reader
		name        string
		contentType string
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if strings.HasPrefix(mediaType, "multipart/") {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxFileSize+1024)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			respondError(w, http.StatusBadRequest, "expecting multipart form")
			return
		}
		fields = updateFieldsFromForm(r)
		if file, header, err := r.FormFile("file"); err == nil {
			defer file.Close()
			if header.Size == 0 {
				respondError(w, http.StatusBadRequest, documents.ErrEmptyPayload.Error())
				return
			}
			ct, body, err := sniffContentType(header.Header.Get("Content-Type"), file)
			if err != nil {
				respondError(w, http.StatusBadRequest, "unreadable file")
				return
			}
			payload = body
			name = fileName(header.Filename)
			contentType = ct
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			respondError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	doc, err := s.docs.Update(ctx, id, fields, payload, name, contentType)
	if err != nil {
		s.respondDocumentError(w, err, "failed to update document")
		return
	}
	respondJSON(w, http.StatusOK, envelope{OK: true, Item: doc})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.docs.Delete(r.Context(), id); err != nil {
		s.respondDocumentError(w, err, "failed to delete document")
		return
	}
	respondJSON(w, http.StatusOK, envelope{OK: true})
}

func (s *Server) handleMintLink(w http.ResponseWriter, r *http.Request, id string) {
	doc, err := s.docs.Get(r.Context(), id)
	if err != nil {
		s.respondDocumentError(w, err, "failed to load document")
		return
	}
	expires := time.Now().Add(s.cfg.SignedURLTTL).Unix()
	sig := s.signer.Sign(doc.BlobRef, expires)
	url := fmt.Sprintf("/api/files/%s?expires=%d&sig=%s", doc.BlobRef, expires, sig)
	respondJSON(w, http.StatusOK, envelope{OK: true, Item: map[string]string{"url": url}})
}

// handleDownload streams a payload inline. Status and headers are decided
// before the first byte is copied; once streaming starts, failures can only
// be logged and the connection dropped.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ref := strings.TrimPrefix(r.URL.Path, "/api/files/")
	if ref == "" {
		respondError(w, http.StatusNotFound, "file not found")
		return
	}

	expires := r.URL.Query().Get("expires")
	sig := r.URL.Query().Get("sig")
	if s.cfg.RequireSignedDownloads || sig != "" {
		if !s.signer.Validate(ref, expires, sig, time.Now()) {
			respondError(w, http.StatusForbidden, "invalid or expired link")
			return
		}
	}

	rc, err := s.blobs.Open(r.Context(), ref)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			respondError(w, http.StatusNotFound, "file not found")
			return
		}
		log.Printf("open blob %s: %v", ref, err)
		respondError(w, http.StatusInternalServerError, "failed to open file")
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", "inline")
	if _, err := io.Copy(w, rc); err != nil {
		log.Printf("stream blob %s: %v", ref, err)
	}
}

func (s *Server) handleAgreements(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleAgreementCreate(w, r)
	case http.MethodGet:
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		items, err := s.agrs.List(r.Context(), q, time.Now())
		if err != nil {
			log.Printf("list agreements: %v", err)
			respondError(w, http.StatusInternalServerError, "failed to list agreements")
			return
		}
		respondJSON(w, http.StatusOK, envelope{OK: true, Items: items, Total: len(items)})
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleAgreementCreate(w http.ResponseWriter, r *http.Request) {
	var cmd agreements.CreateCommand
	if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	a, err := s.agrs.Create(r.Context(), cmd, time.Now())
	if err != nil {
		s.respondAgreementError(w, err, "failed to create agreement")
		return
	}
	respondJSON(w, http.StatusCreated, envelope{OK: true, Item: a})
}

func (s *Server) handleAgreementRoute(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/agreements/")
	if id == "" || strings.Contains(id, "/") {
		respondError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a, err := s.agrs.Get(r.Context(), id, time.Now())
		if err != nil {
			s.respondAgreementError(w, err, "failed to load agreement")
			return
		}
		respondJSON(w, http.StatusOK, envelope{OK: true, Item: a})
	case http.MethodDelete:
		if err := s.agrs.Delete(r.Context(), id); err != nil {
			s.respondAgreementError(w, err, "failed to delete agreement")
			return
		}
		respondJSON(w, http.StatusOK, envelope{OK: true})
	default:
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		respondError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	stats, err := s.agrs.Stats(r.Context(), time.Now())
	if err != nil {
		log.Printf("dashboard: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}
	respondJSON(w, http.StatusOK, envelope{OK: true, Item: stats})
}

func (s *Server) respondDocumentError(w http.ResponseWriter, err error, fallback string) {
	status := documents.MapHTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("document operation failed: %v", err)
		respondError(w, status, fallback)
		return
	}
	respondError(w, status, err.Error())
}

func (s *Server) respondAgreementError(w http.ResponseWriter, err error, fallback string) {
	status := agreements.MapHTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Printf("agreement operation failed: %v", err)
		respondError(w, status, fallback)
		return
	}
	respondError(w, status, err.Error())
}

// envelope is the JSON response shape shared by every endpoint.
type envelope struct {
	OK    bool   `json:"ok"`
	Item  any    `json:"item,omitempty"`
	Items any    `json:"items,omitempty"`
	Total int    `json:"total,omitempty"`
	Error string `json:"error,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, envelope{OK: false, Error: msg})
}

// sniffContentType peeks at the first bytes to classify payloads whose
// declared type is missing or generic, and returns a reader that replays the
// peeked bytes.
func sniffContentType(declared string, file io.Reader) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", nil, err
	}
	head = head[:n]
	payload := io.MultiReader(bytes.NewReader(head), file)

	contentType := declared
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(head)
	}
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return contentType, payload, nil
}

func fileName(name string) string {
	if name == "" {
		return "upload.pdf"
	}
	return name
}

func fieldsFromForm(r *http.Request) documents.Fields {
	return documents.Fields{
		Titular:        r.FormValue("titular"),
		Cargo:          r.FormValue("cargo"),
		Correo:         r.FormValue("correo"),
		ApoderadoLegal: r.FormValue("apoderadoLegal"),
		Expediente:     r.FormValue("expediente"),
		Firma:          r.FormValue("firma"),
		Nacionalidad:   r.FormValue("nacionalidad"),
		Codigo:         r.FormValue("codigo"),
		RFC:            r.FormValue("rfc"),
		CuentaINE:      parseFormBool(r.FormValue("cuentaINE")),
		Comentarios:    r.FormValue("comentarios"),
		VigenciaInicio: parseFormDate(r.FormValue("vigenciaInicio")),
		VigenciaFin:    parseFormDate(r.FormValue("vigenciaFin")),
	}
}

// updateFieldsFromForm builds merge-style update fields: only keys present in
// the submitted form produce a pointer, everything else stays untouched.
func updateFieldsFromForm(r *http.Request) documents.UpdateFields {
	var f documents.UpdateFields
	if r.MultipartForm == nil {
		return f
	}
	values := r.MultipartForm.Value
	str := func(key string) *string {
		if vs, ok := values[key]; ok && len(vs) > 0 {
			v := vs[0]
			return &v
		}
		return nil
	}
	f.Titular = str("titular")
	f.Cargo = str("cargo")
	f.Correo = str("correo")
	f.ApoderadoLegal = str("apoderadoLegal")
	f.Expediente = str("expediente")
	f.Firma = str("firma")
	f.Nacionalidad = str("nacionalidad")
	f.Codigo = str("codigo")
	f.RFC = str("rfc")
	f.Comentarios = str("comentarios")
	if vs, ok := values["cuentaINE"]; ok && len(vs) > 0 {
		b := parseFormBool(vs[0])
		f.CuentaINE = &b
	}
	if v := str("vigenciaInicio"); v != nil {
		f.VigenciaInicio = parseFormDate(*v)
	}
	if v := str("vigenciaFin"); v != nil {
		f.VigenciaFin = parseFormDate(*v)
	}
	return f
}

func parseFormBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "on", "yes", "si", "sí":
		return true
	}
	return false
}

// parseFormDate reads a yyyy-mm-dd form value. Dates are anchored at noon
// UTC so timezone offsets cannot shift them across a day boundary.
func parseFormDate(v string) *time.Time {
	if v == "" {
		return nil
	}
	parsed, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil
	}
	t := time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 12, 0, 0, 0, time.UTC)
	return &t
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s (%s)", r.Method, r.URL.Path, time.Since(start))
	})
}
