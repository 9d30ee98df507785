package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	"github.com/pkg/errors"
)

// ResumeAnalysis is the backend's ATS check of an uploaded resume.
type ResumeAnalysis struct {
	ResumeID    int      `json:"resume_id"`
	ATSFriendly bool     `json:"ats_friendly"`
	Issues      []string `json:"issues"`
	Chars       int      `json:"chars"`
}

// UploadResume posts the file as multipart field "file".
func (c *Client) UploadResume(ctx context.Context, tk *Tokens, filename, contentType string, r io.Reader) (ResumeAnalysis, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		return ResumeAnalysis{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return ResumeAnalysis{}, errors.Wrap(err, "unable to read resume")
	}
	if err := mw.Close(); err != nil {
		return ResumeAnalysis{}, err
	}
	body, err := c.send(ctx, tk, request{
		method:      http.MethodPost,
		path:        "/api/resumes/upload/",
		body:        buf.Bytes(),
		contentType: mw.FormDataContentType(),
	})
	if err != nil {
		return ResumeAnalysis{}, err
	}
	var res ResumeAnalysis
	if err := json.Unmarshal(body, &res); err != nil {
		return ResumeAnalysis{}, errors.Wrap(err, "unable to decode resume analysis")
	}
	return res, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
