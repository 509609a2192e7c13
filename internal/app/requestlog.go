package app

import (
	"io"
	"log"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

const redacted = "REDACTED"

// redactingFormatter keeps SSE query tokens out of access logs.
type redactingFormatter struct {
	next chimw.LogFormatter
}

func (f redactingFormatter) NewLogEntry(r *http.Request) chimw.LogEntry {
	return f.next.NewLogEntry(redactRequest(r))
}

// requestLogger is chi's access logger writing to out, with credentials in
// the query string masked.
func requestLogger(out io.Writer) func(http.Handler) http.Handler {
	return chimw.RequestLogger(redactingFormatter{
		next: &chimw.DefaultLogFormatter{Logger: log.New(out, "", log.LstdFlags), NoColor: true},
	})
}

// redactRequest returns r unchanged when it carries no token parameter,
// otherwise a shallow copy whose URL and RequestURI show a masked token.
func redactRequest(r *http.Request) *http.Request {
	if r.URL == nil || r.URL.RawQuery == "" {
		return r
	}
	q := r.URL.Query()
	if !q.Has("token") {
		return r
	}
	q.Set("token", redacted)
	u := *r.URL
	u.RawQuery = q.Encode()
	clone := *r
	clone.URL = &u
	clone.RequestURI = u.RequestURI()
	return &clone
}
