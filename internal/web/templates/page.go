package templates

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/ResumeMatch/internal/match"
)

// PageParams holds everything the upload page shows.
type PageParams struct {
	// Results is the set currently displayed, if any.
	Results *match.ResultSet

	// Notice is shown above the form after a failed no-script submission.
	Notice *match.UserMessage
}

// Page renders the full upload page.
func Page(p PageParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		b.WriteString(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		b.WriteString(`<title>Resume Matcher</title>`)
		b.WriteString(`<link rel="stylesheet" href="/static/app.css">`)
		b.WriteString(`</head><body><main class="container">`)
		b.WriteString(`<h1>Resume Matcher</h1>`)

		if p.Notice != nil {
			if err := Notification(*p.Notice).Render(ctx, &b); err != nil {
				return err
			}
		}

		if err := UploadForm(p.Results).Render(ctx, &b); err != nil {
			return err
		}
		if err := ResultsRegion(p.Results).Render(ctx, &b); err != nil {
			return err
		}

		b.WriteString(`</main><script src="/static/app.js" defer></script></body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// SubmitPath is the form action. It names the displayed set so a failed
// no-script submission can show it again, even when the body was rejected
// before it could be parsed.
func SubmitPath(previousID string) string {
	if previousID == "" {
		return "/submit"
	}
	return "/submit?" + url.Values{"previous": {previousID}}.Encode()
}

// UploadForm renders the submission form.
func UploadForm(current *match.ResultSet) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		previous := ""
		if current != nil {
			previous = current.ID
		}

		b.WriteString(`<form id="uploadForm" action="`)
		b.WriteString(templ.EscapeString(SubmitPath(previous)))
		b.WriteString(`" method="post" enctype="multipart/form-data">`)
		b.WriteString(`<div class="field"><label for="resumes">Resumes</label>`)
		b.WriteString(`<input type="file" id="resumes" name="resumes" multiple></div>`)
		b.WriteString(`<div class="field"><label for="jobDescription">Job description</label>`)
		b.WriteString(`<input type="file" id="jobDescription" name="job_description" required></div>`)
		b.WriteString(`<button type="submit" class="btn btn-primary">Match</button></form>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Notification renders a dismissible alert with the message as literal text.
func Notification(msg match.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder

		b.WriteString(`<div class="alert alert-error" role="alert"><strong>Error:</strong> `)
		b.WriteString(templ.EscapeString(msg.Message))
		if msg.Action != "" {
			b.WriteString(`<p class="alert-action">`)
			b.WriteString(templ.EscapeString(msg.Action))
			b.WriteString(`</p>`)
		}
		if msg.Code != "" {
			b.WriteString(`<small class="alert-code">Code: `)
			b.WriteString(templ.EscapeString(msg.Code))
			b.WriteString(`</small>`)
		}
		b.WriteString(`</div>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}
