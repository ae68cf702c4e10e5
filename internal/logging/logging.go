// Package logging configures the process-wide logrus logger and carries
// request scoped entries through context.Context.
package logging

import (
	"context"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

type ctxKey struct{}

// Init sets the standard logger to logfmt output at the given level.
// Unknown levels fall back to info.
func Init(level string) {
	logrus.SetOutput(os.Stdout)
	logrus.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
	})

	parsed, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	logrus.SetLevel(parsed)
}

// ToContext stores entry in ctx.
func ToContext(ctx context.Context, entry *logrus.Entry) context.Context {
	return context.WithValue(ctx, ctxKey{}, entry)
}

// FromContext returns the entry stored in ctx, or one on the standard logger.
func FromContext(ctx context.Context) *logrus.Entry {
	if entry, ok := ctx.Value(ctxKey{}).(*logrus.Entry); ok && entry != nil {
		return entry
	}
	return logrus.NewEntry(logrus.StandardLogger())
}

// RequestEntry attaches an entry tagged with the chi request id to every
// request. It must run after middleware.RequestID.
func RequestEntry(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fields := logrus.Fields{"component": "http"}
		if id := middleware.GetReqID(r.Context()); id != "" {
			fields["request_id"] = id
		}
		ctx := ToContext(r.Context(), logrus.WithFields(fields))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
