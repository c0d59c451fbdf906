package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var Log *logrus.Logger

func InitLogger(debug bool) {
	Log = New(os.Stderr, debug)
}

// New builds a logger writing to out. Debug loggers use the text formatter
// with full timestamps, the others emit JSON at info level.
func New(out io.Writer, debug bool) *logrus.Logger {
	l := logrus.New()
	l.Out = out

	if debug {
		l.SetLevel(logrus.DebugLevel)
		l.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	} else {
		l.SetLevel(logrus.InfoLevel)
		l.SetFormatter(&logrus.JSONFormatter{})
	}
	return l
}
