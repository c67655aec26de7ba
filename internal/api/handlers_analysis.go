package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"charteye/pkg/charteye"
)

const multipartMemory = 4 << 20

var errMissingFile = errors.New("missing file")

type uploadedFile struct {
	name        string
	contentType string
	data        []byte
}

func (h *handler) analyzeChart(w http.ResponseWriter, r *http.Request) {
	file, err := h.readUpload(w, r)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}
	analysis, err := h.core.AnalyzeChart(r.Context(), charteye.ChartUpload{
		UserID:      userIDFrom(r.Context()),
		FileName:    file.name,
		ContentType: file.contentType,
		Data:        file.data,
	})
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *handler) getAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.core.GetAnalysis(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	if analysis.UserID != userIDFrom(r.Context()) {
		writeError(w, http.StatusNotFound, "Analysis not found")
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *handler) getPublicAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.core.GetPublicAnalysis(chi.URLParam(r, "id"))
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, analysis)
}

func (h *handler) recognizePatterns(w http.ResponseWriter, r *http.Request) {
	file, err := h.readUpload(w, r)
	if err != nil {
		h.writeUploadError(w, err)
		return
	}
	result, err := h.core.RecognizePatterns(r.Context(), charteye.Image{MIMEType: file.contentType, Data: file.data})
	if err != nil {
		writeErrorResponse(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// readUpload reads the multipart "file" field of a size-limited request.
func (h *handler) readUpload(w http.ResponseWriter, r *http.Request) (*uploadedFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, err
		}
		return nil, errMissingFile
	}
	defer r.MultipartForm.RemoveAll()

	part, header, err := r.FormFile("file")
	if err != nil {
		return nil, errMissingFile
	}
	defer part.Close()
	data, err := io.ReadAll(part)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errMissingFile
	}
	return &uploadedFile{name: header.Filename, contentType: partContentType(header), data: data}, nil
}

func (h *handler) writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, errMissingFile):
		writeError(w, http.StatusBadRequest, "Missing file")
	case errors.As(err, &tooLarge):
		writeError(w, http.StatusBadRequest, "File too large")
	default:
		writeErrorBody(w, http.StatusBadRequest, ErrorResponse{Error: "Invalid upload", Message: err.Error()})
	}
}

func partContentType(header *multipart.FileHeader) string {
	if header == nil {
		return ""
	}
	return header.Header.Get("Content-Type")
}
