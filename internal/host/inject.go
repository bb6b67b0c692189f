package host

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/roach88/snipd/internal/engine"
	"github.com/roach88/snipd/internal/ir"
)

// mobileUA matches the user agents treated as mobile devices.
var mobileUA = regexp.MustCompile(`(?i)Mobile|Android|Silk/|Kindle|BlackBerry|Opera Mini|Opera Mobi`)

// shortcode matches an inline reference: [snippet id="abc"], [snippet id=abc].
var shortcode = regexp.MustCompile(`\[snippet\s+id\s*=\s*["']?([^"'\]\s]+)["']?\s*\]`)

// RequestContext derives what the engine needs to know about r.
func (s *Server) RequestContext(r *http.Request) ir.RequestContext {
	rc := ir.RequestContext{
		Mode:   ir.ModeFrontend,
		Path:   r.URL.Path,
		Mobile: mobileUA.MatchString(r.UserAgent()),
	}
	if r.URL.Path == s.opts.AdminPrefix || strings.HasPrefix(r.URL.Path, s.opts.AdminPrefix+"/") {
		rc.Mode = ir.ModeAdmin
	}
	if c, err := r.Cookie(s.opts.AuthCookie); err == nil && c.Value != "" {
		rc.Authenticated = true
	}
	return rc
}

// inject runs the scheduling pass, lets next render the page, then splices
// the page's contributions into HTML responses.
func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		rc := s.RequestContext(r)

		defer s.recoverPanic(ctx, w, r)

		page := s.eng.NewPage(rc)
		if err := page.ScheduleAndRun(ctx); err != nil {
			s.logger.Error("scheduling pass failed", "path", rc.Path, "error", err)
		}

		buf := newBufferedWriter()
		next.ServeHTTP(buf, r)

		body := buf.body.Bytes()
		if r.Method != http.MethodHead && isHTML(buf.Header()) {
			body = []byte(s.render(ctx, page, string(body)))
		}

		h := w.Header()
		for k, v := range buf.Header() {
			h[k] = v
		}
		h.Del("Content-Length")
		if r.Method != http.MethodHead {
			h.Set("Content-Length", strconv.Itoa(len(body)))
		}
		w.WriteHeader(buf.status)
		_, _ = w.Write(body)

		if events := page.Events(); len(events) > 0 {
			s.logger.Debug("page rendered", "path", rc.Path, "events", len(events))
		}
	})
}

// render applies inline references, head and footer insertion, then body
// filters.
func (s *Server) render(ctx context.Context, page *engine.Page, body string) string {
	body = s.expand(ctx, page, body)
	body = insertBefore(body, "</head>", page.Head(ctx), false)
	body = insertBefore(body, "</body>", page.Footer(ctx), true)
	return page.FilterBody(ctx, body)
}

// expand replaces each inline reference with the snippet's output.
// Failing references render as nothing.
func (s *Server) expand(ctx context.Context, page *engine.Page, body string) string {
	return shortcode.ReplaceAllStringFunc(body, func(m string) string {
		id := shortcode.FindStringSubmatch(m)[1]
		out, err := page.RunSingle(ctx, id)
		if err != nil {
			s.logger.Debug("inline reference failed", "snippet", id, "error", err)
			return ""
		}
		return out
	})
}

// insertBefore places text before the last case-insensitive occurrence of
// tag. A missing tag appends when atEnd, else prepends.
func insertBefore(body, tag, text string, atEnd bool) string {
	if text == "" {
		return body
	}
	i := strings.LastIndex(strings.ToLower(body), tag)
	switch {
	case i >= 0:
		return body[:i] + text + "\n" + body[i:]
	case atEnd:
		return body + text
	default:
		return text + "\n" + body
	}
}

// recoverPanic inspects a panic that escaped the request. The response
// becomes a 500 whether or not the panic is attributed to a snippet.
func (s *Server) recoverPanic(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	v := recover()
	if v == nil {
		return
	}
	if v == http.ErrAbortHandler {
		panic(v)
	}

	rec := engine.PanicRecord(v, debug.Stack(), s.eng.Config().CrashMarkers)
	s.logger.Error("request panicked", "path", r.URL.Path, "message", rec.Message, "file", rec.File, "line", rec.Line)

	// The request context may already be cancelled; attribution must land.
	if err := s.eng.InspectAt(context.WithoutCancel(ctx), rec, r.URL.Path); err != nil {
		s.logger.Error("failed to inspect panic", "error", err)
	}
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func isHTML(h http.Header) bool {
	ct := h.Get("Content-Type")
	return strings.HasPrefix(strings.ToLower(ct), "text/html")
}

// bufferedWriter holds a response until the page is complete.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
	wrote  bool
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: http.Header{}, status: http.StatusOK}
}

func (b *bufferedWriter) Header() http.Header {
	return b.header
}

func (b *bufferedWriter) WriteHeader(status int) {
	if b.wrote {
		return
	}
	b.status = status
	b.wrote = true
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if !b.wrote {
		b.WriteHeader(http.StatusOK)
	}
	if b.header.Get("Content-Type") == "" {
		b.header.Set("Content-Type", http.DetectContentType(p))
	}
	return b.body.Write(p)
}
