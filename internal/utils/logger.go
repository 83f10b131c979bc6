package utils

import (
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Log is the process-wide logger.  It is usable before InitLogger runs
// and writes text to stderr by default.
var Log = logrus.New()

// InitLogger configures Log.  level is any logrus level name (info when
// empty or unknown); format is "json" or "text".
func InitLogger(level, format string) *logrus.Logger {
	Log.SetOutput(os.Stdout)
	if strings.EqualFold(format, "json") {
		Log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	Log.SetLevel(lvl)
	return Log
}
