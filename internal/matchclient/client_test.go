package matchclient

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JonMunkholm/ResumeMatch/internal/match"
	"github.com/JonMunkholm/ResumeMatch/internal/metrics"
)

func newTestClient(t *testing.T, baseURL string, mutate ...func(*Options)) *Client {
	t.Helper()
	opts := Options{
		BaseURL:       baseURL,
		MaxConcurrent: 2,
		MaxWait:       time.Second,
		Metrics:       metrics.New(),
	}
	for _, m := range mutate {
		m(&opts)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func sampleUpload() Upload {
	return Upload{
		Resumes: []File{
			{Name: "r1.pdf", Content: strings.NewReader("resume one")},
			{Name: "r2.docx", Content: strings.NewReader("resume two")},
		},
		JobDescription: File{Name: "jd.txt", Content: strings.NewReader("job text")},
	}
}

func TestSubmit_Success(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)

		if r.Method != http.MethodPost || r.URL.Path != "/upload" {
			t.Errorf("got %s %s, want POST /upload", r.Method, r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}

		resumes := r.MultipartForm.File[FieldResumes]
		if len(resumes) != 2 || resumes[0].Filename != "r1.pdf" || resumes[1].Filename != "r2.docx" {
			t.Errorf("resumes parts = %+v", resumes)
		}
		jd := r.MultipartForm.File[FieldJobDescription]
		if len(jd) != 1 || jd[0].Filename != "jd.txt" {
			t.Errorf("job_description parts = %+v", jd)
		} else {
			f, _ := jd[0].Open()
			body, _ := io.ReadAll(f)
			f.Close()
			if string(body) != "job text" {
				t.Errorf("job_description content = %q", body)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"results":[
			{"Similarity":0.9,"Name":"B","Skills":"Go","resume_file_name":"r2.docx","resume_file_link":"/download/r2.docx"},
			{"Similarity":0.4,"Name":"A","Skills":["Python","SQL"],"resume_file_name":"r1.pdf","resume_file_link":"/download/r1.pdf"}
		]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	results, err := c.Submit(context.Background(), sampleUpload())
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("upstream calls = %d, want 1", n)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	// Order is preserved exactly as sent.
	if results[0].Name != "B" || results[1].Name != "A" {
		t.Errorf("order = %q, %q", results[0].Name, results[1].Name)
	}
	if results[1].Skills.String() != "Python, SQL" {
		t.Errorf("Skills = %q", results[1].Skills.String())
	}
	if results[0].ResumeFileLink != "/download/r2.docx" {
		t.Errorf("ResumeFileLink = %q", results[0].ResumeFileLink)
	}
}

func TestSubmit_ZeroResumes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		if n := len(r.MultipartForm.File[FieldResumes]); n != 0 {
			t.Errorf("resumes parts = %d, want 0", n)
		}
		io.WriteString(w, `{"results":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	results, err := c.Submit(context.Background(), Upload{
		JobDescription: File{Name: "jd.txt", Content: strings.NewReader("x")},
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("len(results) = %d, want 0", len(results))
	}
}

func TestSubmit_ServerReportedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"bad file"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Submit(context.Background(), sampleUpload())

	var se *match.ServerError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v (%T), want *match.ServerError", err, err)
	}
	if se.Message != "bad file" {
		t.Errorf("Message = %q, want %q", se.Message, "bad file")
	}
	if se.Status != http.StatusInternalServerError {
		t.Errorf("Status = %d, want 500", se.Status)
	}
}

func TestSubmit_TransportErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantSub string
	}{
		{"html on success", http.StatusOK, "<html>oops</html>", "decode response"},
		{"missing results key", http.StatusOK, `{"items":[]}`, "missing results"},
		{"html on failure", http.StatusBadGateway, "<html>bad gateway</html>", "decode error response"},
		{"failure without error key", http.StatusUnprocessableEntity, `{"detail":"x"}`, "unexpected response shape"},
		{"wrong results type", http.StatusOK, `{"results":"nope"}`, "decode response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				io.Copy(io.Discard, r.Body)
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL)
			_, err := c.Submit(context.Background(), sampleUpload())

			if !match.IsTransportError(err) {
				t.Fatalf("error = %v (%T), want transport error", err, err)
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantSub)
			}
			if msg := match.UserMessageFor(err); msg.Message != match.GenericFailureMessage {
				t.Errorf("user message = %q, want generic", msg.Message)
			}
		})
	}
}

func TestSubmit_ConnectionRefused(t *testing.T) {
	// Reserve a port, then close it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c := newTestClient(t, "http://"+addr)
	_, err = c.Submit(context.Background(), sampleUpload())

	if !match.IsTransportError(err) {
		t.Fatalf("error = %v (%T), want transport error", err, err)
	}
	if msg := match.UserMessageFor(err); msg.Code != "UPS001" {
		t.Errorf("Code = %q, want UPS001 (err: %v)", msg.Code, err)
	}
}

func TestSubmit_MissingJobDescription(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)
	_, err := c.Submit(context.Background(), Upload{Resumes: sampleUpload().Resumes})

	if !errors.Is(err, ErrMissingJobDescription) {
		t.Errorf("error = %v, want ErrMissingJobDescription", err)
	}
	if n := atomic.LoadInt32(&calls); n != 0 {
		t.Errorf("upstream calls = %d, want 0", n)
	}
}

func TestSubmit_BreakerOpensOnTransportFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "not json")
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(o *Options) {
		o.BreakerFailures = 2
		o.BreakerCooldown = time.Minute
	})

	for i := 0; i < 2; i++ {
		if _, err := c.Submit(context.Background(), sampleUpload()); !match.IsTransportError(err) {
			t.Fatalf("call %d: error = %v, want transport error", i, err)
		}
	}

	_, err := c.Submit(context.Background(), sampleUpload())
	if !match.IsTransportError(err) {
		t.Fatalf("error = %v, want transport error", err)
	}
	if !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Errorf("error = %v, want open breaker", err)
	}
	if n := atomic.LoadInt32(&calls); n != 2 {
		t.Errorf("upstream calls = %d, want 2", n)
	}
}

func TestSubmit_ServerErrorsDoNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"unsupported file type"}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(o *Options) {
		o.BreakerFailures = 1
		o.BreakerCooldown = time.Minute
	})

	for i := 0; i < 3; i++ {
		_, err := c.Submit(context.Background(), sampleUpload())
		if !match.IsServerError(err) {
			t.Fatalf("call %d: error = %v, want server error", i, err)
		}
	}
}

func TestSubmit_CallerCancellationDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		time.Sleep(200 * time.Millisecond)
		io.WriteString(w, `{"results":[]}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, func(o *Options) {
		o.BreakerFailures = 3
		o.BreakerCooldown = time.Minute
	})

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		_, err := c.Submit(ctx, sampleUpload())
		cancel()
		if !match.IsTransportError(err) {
			t.Fatalf("deadline call %d: error = %v, want transport error", i, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Submit(ctx, sampleUpload()); err == nil {
		t.Fatal("cancelled call succeeded")
	}

	if _, err := c.Submit(context.Background(), sampleUpload()); err != nil {
		t.Fatalf("healthy call after disconnects: error = %v, want success", err)
	}
}

func TestBreakerSuccess(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, true},
		{"server error", &match.ServerError{Status: 500, Message: "x"}, true},
		{"caller gone", &match.TransportError{Op: "submit", Err: errCallerGone}, true},
		{"cancelled", &match.TransportError{Op: "post upload", Err: context.Canceled}, true},
		{"connection refused", &match.TransportError{Op: "post upload", Err: errors.New("connection refused")}, false},
		{"upstream deadline", &match.TransportError{Op: "post upload", Err: context.DeadlineExceeded}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := breakerSuccess(tt.err); got != tt.want {
				t.Errorf("breakerSuccess(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestDownload_RejectsPathNames(t *testing.T) {
	c := newTestClient(t, "http://127.0.0.1:1")
	for _, name := range []string{"", ".", "..", "a/b.pdf", "/"} {
		if _, err := c.Download(context.Background(), name); !match.IsServerError(err) {
			t.Errorf("Download(%q) error = %v, want server error", name, err)
		}
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/download/my resume.pdf" {
			w.Header().Set("Content-Type", "application/pdf")
			io.WriteString(w, "%PDF")
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL)

	resp, err := c.Download(context.Background(), "my resume.pdf")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "%PDF" {
		t.Errorf("status %d body %q", resp.StatusCode, body)
	}

	resp, err = c.Download(context.Background(), "missing.pdf")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	for _, bad := range []string{"", "..", "a/b.pdf"} {
		if _, err := c.Download(context.Background(), bad); !match.IsServerError(err) {
			t.Errorf("Download(%q) error = %v, want server error", bad, err)
		}
	}
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "ftp://x", "://"} {
		if _, err := New(Options{BaseURL: u}); err == nil {
			t.Errorf("New(%q) succeeded, want error", u)
		}
	}
}

func TestEndpoint_BasePath(t *testing.T) {
	c := newTestClient(t, "http://matcher:8000/api/", func(o *Options) {
		o.UploadPath = "upload"
	})
	if got := c.endpoint(c.uploadPath); got != "http://matcher:8000/api/upload" {
		t.Errorf("endpoint = %q", got)
	}
}
