package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kirillkom/loan-decision-engine/internal/core/domain"
	"github.com/kirillkom/loan-decision-engine/internal/core/ports"
)

const maxJSONBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode request", err)
	}
	return nil
}

func (rt *Router) scoreRisk(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Quotes == nil {
		writeError(w, r, errServiceUnavailable)
		return
	}
	var profile domain.ApplicantProfile
	if err := decodeJSON(w, r, &profile); err != nil {
		writeError(w, r, err)
		return
	}
	assessment, err := rt.svc.Quotes.Quote(r.Context(), profile)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordRiskQuote(serviceName, string(assessment.Decision))
	}
	writeJSON(w, http.StatusOK, assessment)
}

func (rt *Router) createApplication(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Applications == nil {
		writeError(w, r, errServiceUnavailable)
		return
	}
	var profile domain.ApplicantProfile
	if err := decodeJSON(w, r, &profile); err != nil {
		writeError(w, r, err)
		return
	}
	app, err := rt.svc.Applications.Create(r.Context(), profile)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/applications/"+app.ID)
	writeJSON(w, http.StatusCreated, app)
}

func (rt *Router) getApplication(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Applications == nil {
		writeError(w, r, errServiceUnavailable)
		return
	}
	app, err := rt.svc.Applications.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (rt *Router) resubmitProfile(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Applications == nil {
		writeError(w, r, errServiceUnavailable)
		return
	}
	var profile domain.ApplicantProfile
	if err := decodeJSON(w, r, &profile); err != nil {
		writeError(w, r, err)
		return
	}
	app, err := rt.svc.Applications.Resubmit(r.Context(), r.PathValue("id"), profile)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (rt *Router) deleteApplication(w http.ResponseWriter, r *http.Request, operator string) {
	if rt.svc.Applications == nil {
		writeError(w, r, errServiceUnavailable)
		return
	}
	if err := rt.svc.Applications.Delete(r.Context(), r.PathValue("id"), operator); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Documents == nil {
		writeError(w, r, errServiceUnavailable)
		return
	}

	// Multipart framing and the document_type field need headroom over the file limit.
	r.Body = http.MaxBytesReader(w, r.Body, rt.uploadMaxBytes+64<<10)
	if err := r.ParseMultipartForm(rt.uploadMaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("upload exceeds %d bytes", rt.uploadMaxBytes)))
			return
		}
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload document", err))
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	rawType := strings.TrimSpace(r.FormValue("document_type"))
	docType, ok := domain.ParseDocumentType(rawType)
	if !ok {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload document", fmt.Errorf("unknown document_type %q", rawType)))
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "upload document", errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	doc, err := rt.svc.Documents.Upload(r.Context(), ports.UploadRequest{
		ApplicationID: r.PathValue("id"),
		DocumentType:  docType,
		Filename:      fileHeader.Filename,
		MimeType:      fileHeader.Header.Get("Content-Type"),
		Body:          file,
	})
	if rt.metrics != nil {
		rt.metrics.RecordUpload(serviceName, string(docType), err)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Documents == nil {
		writeError(w, r, errServiceUnavailable)
		return
	}
	docs, err := rt.svc.Documents.ListDocuments(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []domain.DocumentArtifact{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) requestEvaluation(w http.ResponseWriter, r *http.Request) {
	if rt.svc.Evaluations == nil {
		writeError(w, r, errServiceUnavailable)
		return
	}
	id := r.PathValue("id")
	err := rt.svc.Evaluations.RequestEvaluation(r.Context(), id)
	if rt.metrics != nil {
		rt.metrics.RecordEvaluationRequest(serviceName, err)
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"application_id": id,
		"status":         "queued",
	})
}
