package handler

import (
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/jobhack/web/internal/backend"
	"github.com/jobhack/web/internal/server"
	"github.com/pkg/errors"
)

const (
	msgUnsupportedFile = "Please upload a PDF or DOCX file"
	msgUploadFailed    = "Upload failed. Please try again."
	msgUploaded        = "Resume uploaded and analyzed successfully!"
)

var resumeTypes = map[string]string{
	".pdf":  "application/pdf",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".doc":  "application/msword",
}

// resumeContentType returns the content type to forward for a resume upload,
// or false when the file is not a PDF or Word document.
func resumeContentType(filename, declared string) (string, bool) {
	declared = strings.ToLower(strings.TrimSpace(strings.Split(declared, ";")[0]))
	for _, ct := range resumeTypes {
		if declared == ct {
			return ct, true
		}
	}
	if declared != "" && declared != "application/octet-stream" {
		return "", false
	}
	ct, ok := resumeTypes[strings.ToLower(filepath.Ext(filename))]
	return ct, ok
}

func sizeLimitMessage(maxBytes int64) string {
	if maxBytes >= 1<<20 && maxBytes%(1<<20) == 0 {
		return fmt.Sprintf("File size must be less than %dMB", maxBytes>>20)
	}
	return "File size must be less than " + humanize.IBytes(uint64(maxBytes))
}

func renderUpload(svr server.Server, w http.ResponseWriter, r *http.Request, status int, analysis *backend.ResumeAnalysis, msg string) {
	err := svr.Render(w, r, status, "upload.html", map[string]interface{}{
		"Title":    "Upload Resume",
		"Error":    msg,
		"Analysis": analysis,
		"MaxBytes": svr.GetConfig().MaxUploadBytes,
	})
	if err != nil {
		svr.Log(err, "unable to render upload page")
	}
}

func UploadResumePageHandler(svr server.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		renderUpload(svr, w, r, http.StatusOK, nil, "")
	}
}

func UploadResumeHandler(svr server.Server, api *backend.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		maxBytes := svr.GetConfig().MaxUploadBytes
		// leave room for the multipart envelope around the file
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+64<<10)
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				renderUpload(svr, w, r, http.StatusRequestEntityTooLarge, nil, sizeLimitMessage(maxBytes))
				return
			}
			renderUpload(svr, w, r, http.StatusBadRequest, nil, msgUnsupportedFile)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, err := r.FormFile("file")
		if err != nil {
			renderUpload(svr, w, r, http.StatusBadRequest, nil, msgUnsupportedFile)
			return
		}
		defer file.Close()
		contentType, ok := resumeContentType(header.Filename, header.Header.Get("Content-Type"))
		if !ok {
			renderUpload(svr, w, r, http.StatusBadRequest, nil, msgUnsupportedFile)
			return
		}
		if header.Size > maxBytes {
			renderUpload(svr, w, r, http.StatusRequestEntityTooLarge, nil, sizeLimitMessage(maxBytes))
			return
		}

		tk := tokens(svr, r)
		analysis, err := api.UploadResume(r.Context(), tk, filepath.Base(header.Filename), contentType, file)
		keepTokens(svr, w, r, tk)
		if err != nil {
			logger := svr.Logger()
			logger.Warn().Err(err).Str("filename", header.Filename).Msg("resume upload failed")
			renderUpload(svr, w, r, http.StatusBadGateway, nil, backend.Detail(err, msgUploadFailed))
			return
		}
		if err := svr.Sessions.AddFlash(w, r, msgUploaded); err != nil {
			svr.Log(err, "unable to save flash")
		}
		renderUpload(svr, w, r, http.StatusOK, &analysis, "")
	}
}
