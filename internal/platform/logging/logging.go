// internal/platform/logging/logging.go
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Configure sets up the standard logrus logger used by every component
// (logrus.WithField("component", ...)) and returns it.
//
// format: "json" (Cloud Run / production) or "text" (local).
func Configure(level, format string, out io.Writer) *logrus.Logger {
	l := logrus.StandardLogger()
	apply(l, level, format, out)
	return l
}

func apply(l *logrus.Logger, level, format string, out io.Writer) {
	if out == nil {
		out = os.Stdout
	}
	l.SetOutput(out)

	lv, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		lv = logrus.InfoLevel
	}
	l.SetLevel(lv)

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyLevel: "severity",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
