package logger

import (
	"io"

	"github.com/sirupsen/logrus"
)

// New builds the shared application logger. Production gets JSON lines,
// everything else a readable text formatter at debug level.
func New(output io.Writer, env string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(output)
	if env == "production" {
		l.SetFormatter(new(logrus.JSONFormatter))
		l.SetLevel(logrus.InfoLevel)
	} else {
		l.SetFormatter(new(logrus.TextFormatter))
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}
