package utils

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Loggers are usable before InitLogger so packages can log from tests without setup.
var (
	InfoLogger  = newLogger(os.Stdout, logrus.InfoLevel)
	ErrorLogger = newLogger(os.Stderr, logrus.WarnLevel)
)

func newLogger(out *os.File, level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	l.SetLevel(level)
	return l
}

// InitLogger applies the configured level. "debug" also turns on debug output for InfoLogger.
func InitLogger(level string) {
	InfoLogger = newLogger(os.Stdout, logrus.InfoLevel)
	ErrorLogger = newLogger(os.Stderr, logrus.WarnLevel)

	if lvl, err := logrus.ParseLevel(level); err == nil && lvl >= logrus.InfoLevel {
		InfoLogger.SetLevel(lvl)
	}
}
