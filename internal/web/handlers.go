package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/ResumeMatch/internal/export"
	"github.com/JonMunkholm/ResumeMatch/internal/logging"
	"github.com/JonMunkholm/ResumeMatch/internal/match"
	"github.com/JonMunkholm/ResumeMatch/internal/matchclient"
	"github.com/JonMunkholm/ResumeMatch/internal/web/templates"
)

// multipartMemory is how much of an upload is buffered in memory before
// ParseMultipartForm spills to temp files.
const multipartMemory = 32 << 20

// handleIndex renders the upload page, showing ?set={id} when it is still stored.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, r, http.StatusOK, templates.PageParams{
		Results: s.lookupSet(r.URL.Query().Get("set")),
	})
}

// handleSubmit forwards the browser's upload and renders the results.
// app.js gets the results region fragment. A plain form post stores the set
// and is redirected to the page showing it, replacing the previous set.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	previous := s.lookupSet(r.URL.Query().Get("previous"))

	results, err := s.submit(w, r)
	if err != nil {
		s.respondSubmitError(w, r, err, previous)
		return
	}

	if isFetch(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.ResultsRegion(&match.ResultSet{Results: results}).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render results", "error", err)
		}
		return
	}

	set := s.store.Put(results)
	if previous != nil {
		s.store.Delete(previous.ID)
	}
	http.Redirect(w, r, "/?set="+set.ID, http.StatusSeeOther)
}

// APIMatchResponse is the body of a successful /api/match call.
type APIMatchResponse struct {
	Results []match.MatchResult `json:"results"`
}

// handleAPIMatch is the JSON form of handleSubmit.
func (s *Server) handleAPIMatch(w http.ResponseWriter, r *http.Request) {
	results, err := s.submit(w, r)
	if err != nil {
		s.respondSubmitError(w, r, err, nil)
		return
	}
	writeJSONStatus(w, http.StatusOK, APIMatchResponse{Results: results})
}

// submit parses the request and makes the single upstream call.
func (s *Server) submit(w http.ResponseWriter, r *http.Request) ([]match.MatchResult, error) {
	up, cleanup, err := s.parseUpload(w, r)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	results, err := s.client.Submit(r.Context(), up)
	if err != nil {
		return nil, err
	}

	logging.FromContext(r.Context()).Info("submission matched",
		"resumes", len(up.Resumes),
		"results", len(results),
	)
	return results, nil
}

// parseUpload reads the multipart form into a matchclient.Upload. Empty
// file inputs are skipped, so a form with no resumes chosen sends none.
// cleanup closes the opened parts and removes any temp files.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (matchclient.Upload, func(), error) {
	var up matchclient.Upload
	noop := func() {}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return up, noop, &match.ServerError{
				Status:  http.StatusRequestEntityTooLarge,
				Message: fmt.Sprintf("Files exceed the %d MB upload limit", s.cfg.Upload.MaxFileSize>>20),
			}
		}
		return up, noop, &match.ServerError{Status: http.StatusBadRequest, Message: "Invalid upload form"}
	}

	var opened []multipart.File
	cleanup := func() {
		for _, f := range opened {
			f.Close()
		}
		if r.MultipartForm != nil {
			r.MultipartForm.RemoveAll()
		}
	}

	open := func(fh *multipart.FileHeader) (matchclient.File, error) {
		f, err := fh.Open()
		if err != nil {
			return matchclient.File{}, &match.ServerError{
				Status:  http.StatusBadRequest,
				Message: "Could not read " + fh.Filename,
			}
		}
		opened = append(opened, f)
		return matchclient.File{Name: fh.Filename, Content: f}, nil
	}

	for _, fh := range r.MultipartForm.File[matchclient.FieldResumes] {
		if isEmptyPart(fh) {
			continue
		}
		f, err := open(fh)
		if err != nil {
			cleanup()
			return up, noop, err
		}
		up.Resumes = append(up.Resumes, f)
	}

	for _, fh := range r.MultipartForm.File[matchclient.FieldJobDescription] {
		if isEmptyPart(fh) {
			continue
		}
		f, err := open(fh)
		if err != nil {
			cleanup()
			return up, noop, err
		}
		up.JobDescription = f
		break
	}
	if up.JobDescription.Content == nil {
		cleanup()
		return up, noop, matchclient.ErrMissingJobDescription
	}

	return up, cleanup, nil
}

// isEmptyPart matches what browsers send for a file input left blank.
func isEmptyPart(fh *multipart.FileHeader) bool {
	return fh.Filename == "" && fh.Size == 0
}

// handleExport returns the posted result list as the CSV download. It reads
// nothing but the request, so any table still on screen can be exported.
// Browsers post the form field; API clients may send {"results": [...]}.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	var (
		results []match.MatchResult
		err     error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var payload APIMatchResponse
		err = json.NewDecoder(r.Body).Decode(&payload)
		results = payload.Results
	} else if err = r.ParseForm(); err == nil {
		err = json.Unmarshal([]byte(r.PostForm.Get(templates.ExportField)), &results)
	}
	if err != nil {
		logging.FromContext(r.Context()).Warn("invalid export request", "error", err)
		http.Error(w, "Invalid result list", http.StatusBadRequest)
		return
	}

	body := export.CSV(results)
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Write(body)
}

// proxiedHeaders are copied from the upstream document response.
var proxiedHeaders = []string{"Content-Type", "Content-Disposition", "Content-Length", "Last-Modified"}

// handleDownload proxies a resume document from the matching service so
// relative resume links resolve through this server.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	name, err := downloadName(r)
	if err != nil {
		http.Error(w, "invalid file name", http.StatusBadRequest)
		return
	}

	resp, err := s.client.Download(r.Context(), name)
	if err != nil {
		msg := match.UserMessageFor(err)
		logging.FromContext(r.Context()).Error("document download failed",
			"file", name, "code", msg.Code, "error", err)
		http.Error(w, msg.Message, statusFor(err))
		return
	}
	defer resp.Body.Close()

	for _, h := range proxiedHeaders {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logging.FromContext(r.Context()).Warn("document copy interrupted", "file", name, "error", err)
	}
}

// downloadName returns the decoded file name. chi hands back the escaped
// segment when the request path needed RawPath, as with "a%2Fb.pdf".
func downloadName(r *http.Request) (string, error) {
	name := chi.URLParam(r, "filename")
	if r.URL.RawPath != "" {
		var err error
		if name, err = url.PathUnescape(name); err != nil {
			return "", err
		}
	}
	if name == "" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return name, nil
}

// HealthResponse is the body of /healthz.
type HealthResponse struct {
	Status     string                    `json:"status"`
	Uploads    matchclient.LimiterStatus `json:"uploads"`
	ResultSets int                       `json:"result_sets"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSONStatus(w, http.StatusOK, HealthResponse{
		Status:     "ok",
		Uploads:    s.client.Limiter().Status(),
		ResultSets: s.store.Len(),
	})
}

// lookupSet returns the stored set for id, or nil when it is unknown or expired.
func (s *Server) lookupSet(id string) *match.ResultSet {
	if id == "" {
		return nil
	}
	set, ok := s.store.Get(id)
	if !ok {
		return nil
	}
	return set
}

// renderPage renders the full page into a buffer first so a template error
// never leaves a half-written response.
func (s *Server) renderPage(w http.ResponseWriter, r *http.Request, status int, p templates.PageParams) {
	var buf bytes.Buffer
	if err := templates.Page(p).Render(r.Context(), &buf); err != nil {
		logging.FromContext(r.Context()).Error("render page", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}
