package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dcervantes/foliovault/internal/agreements"
	"github.com/dcervantes/foliovault/internal/blobstore"
	"github.com/dcervantes/foliovault/internal/config"
	"github.com/dcervantes/foliovault/internal/documents"
	"github.com/dcervantes/foliovault/internal/expiry"
	"github.com/dcervantes/foliovault/internal/repository"
	"github.com/dcervantes/foliovault/internal/signing"
)

var pdfBytes = append([]byte("%PDF-1.4\n"), bytes.Repeat([]byte("b"), 10<<10)...)

func newTestServer(t *testing.T) (*Server, http.Handler, *blobstore.MemoryStore) {
	t.Helper()
	cfg := &config.Config{
		MaxFileSize:        50 << 20,
		BadgeThresholdDays: 7,
		WindowDays:         30,
		SigningSecret:      []byte("test-secret"),
		SignedURLTTL:       5 * time.Minute,
	}
	blobs := blobstore.NewMemory()
	docs := documents.NewManager(repository.NewMemoryDocumentStore(), blobs, nil, false)
	agrs := agreements.NewManager(repository.NewMemoryAgreementStore(), cfg.WindowDays)
	srv := New(cfg, docs, agrs, blobs, signing.NewSigner(cfg.SigningSecret))
	return srv, srv.routes(), blobs
}

func multipartUpload(t *testing.T, fields map[string]string, filename string, contentType string, payload []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(payload)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

type itemEnvelope struct {
	OK    bool               `json:"ok"`
	Item  documents.Document `json:"item"`
	Error string             `json:"error"`
}

type listEnvelope struct {
	OK    bool                 `json:"ok"`
	Items []documents.ListItem `json:"items"`
	Total int                  `json:"total"`
}

func TestUploadListDeleteOverHTTP(t *testing.T) {
	_, handler, _ := newTestServer(t)

	fin := time.Now().AddDate(0, 0, 3).Format("2006-01-02")
	body, contentType := multipartUpload(t, map[string]string{
		"titular":     "Jane Doe",
		"correo":      "jane@example.com",
		"vigenciaFin": fin,
	}, "contrato.pdf", "application/pdf", pdfBytes)

	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created itemEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	require.True(t, created.OK)
	require.NotEmpty(t, created.Item.ID)
	assert.Equal(t, "Jane Doe", created.Item.Titular)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var listed listEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&listed))
	require.Len(t, listed.Items, 1)
	assert.Equal(t, 1, listed.Total)
	require.NotNil(t, listed.Items[0].Expiry.Days)
	assert.Equal(t, 3, *listed.Items[0].Expiry.Days)
	assert.Equal(t, expiry.StatusExpiringSoon, listed.Items[0].Expiry.Status)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/documents/"+created.Item.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	var after listEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&after))
	assert.Empty(t, after.Items)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/documents/"+created.Item.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUploadRejectsNonPDF(t *testing.T) {
	_, handler, _ := newTestServer(t)

	body, contentType := multipartUpload(t, nil, "nota.txt", "text/plain", []byte("plain text here"))
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUploadRequiresFile(t *testing.T) {
	_, handler, _ := newTestServer(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("titular", "Jane Doe"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/documents", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadStreamsPayload(t *testing.T) {
	_, handler, _ := newTestServer(t)

	body, contentType := multipartUpload(t, nil, "contrato.pdf", "application/pdf", pdfBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created itemEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files/"+created.Item.BlobRef, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	got, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, got)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files/uploads/nope/missing.pdf", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSignedDownloadLink(t *testing.T) {
	srv, handler, _ := newTestServer(t)
	srv.cfg.RequireSignedDownloads = true

	body, contentType := multipartUpload(t, nil, "contrato.pdf", "application/pdf", pdfBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created itemEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	// unsigned access is refused
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/files/"+created.Item.BlobRef, nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/documents/"+created.Item.ID+"/link", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var link struct {
		OK   bool              `json:"ok"`
		Item map[string]string `json:"item"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&link))
	signedURL := link.Item["url"]
	require.NotEmpty(t, signedURL)

	parsed, err := url.Parse(signedURL)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, parsed.String(), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUpdateOverHTTPMerges(t *testing.T) {
	_, handler, _ := newTestServer(t)

	body, contentType := multipartUpload(t, map[string]string{
		"titular": "Ana Ruiz",
		"cargo":   "Directora",
	}, "contrato.pdf", "application/pdf", pdfBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created itemEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))

	update := strings.NewReader(`{"cargo":"Apoderada"}`)
	req = httptest.NewRequest(http.MethodPatch, "/api/documents/"+created.Item.ID, update)
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated itemEnvelope
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&updated))
	assert.Equal(t, "Apoderada", updated.Item.Cargo)
	assert.Equal(t, "Ana Ruiz", updated.Item.Titular)
}

func TestAgreementsAndDashboard(t *testing.T) {
	_, handler, _ := newTestServer(t)

	fin := time.Now().AddDate(0, 0, 10).Format(time.RFC3339)
	payload := fmt.Sprintf(`{"unidadReceptora":"Facultad de Derecho","nombre":"Convenio Marco","fechaFin":%q}`, fin)
	req := httptest.NewRequest(http.MethodPost, "/api/agreements", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		OK   bool                 `json:"ok"`
		Item agreements.Agreement `json:"item"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	assert.Equal(t, 1, created.Item.Numero)
	assert.Equal(t, agreements.StatusExpiring, created.Item.Estatus)

	// duplicate receiving unit conflicts
	req = httptest.NewRequest(http.MethodPost, "/api/agreements", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var dash struct {
		OK   bool                 `json:"ok"`
		Item agreements.Dashboard `json:"item"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dash))
	assert.Equal(t, 1, dash.Item.TotalActive)
	assert.Equal(t, 1, dash.Item.TotalExpiring)
	require.Len(t, dash.Item.Upcoming, 1)
}
