package log

import (
	"github.com/sirupsen/logrus"
	easy "github.com/t-tomalak/logrus-easy-formatter"
	"io"
	"os"
	"strings"
)

var logger *customLogger

// nolint:gochecknoinits
func init() {
	logger = newLogger()
}

type customLogger struct {
	*logrus.Logger
}

// Fields is the key/value set attached to a structured log line.
type Fields = logrus.Fields

// SetLevel
// Set log level:
// DebugLevel = 0
// InfoLevel = 1
// WarnLevel = 2
// ErrorLevel = 3
func SetLevel(lvl int) {
	switch lvl {
	case 0:
		logger.SetLevel(logrus.DebugLevel)
	case 1:
		logger.SetLevel(logrus.InfoLevel)
	case 2:
		logger.SetLevel(logrus.WarnLevel)
	case 3:
		logger.SetLevel(logrus.ErrorLevel)
	default:
		logger.SetLevel(logrus.InfoLevel)
	}
	Infof("log level set to %v.", strings.ToUpper(logger.GetLevel().String()))
}

// SetLevelName sets the level from its textual name (debug, info, warn, error).
// Unknown names fall back to info.
func SetLevelName(name string) {
	lvl, err := logrus.ParseLevel(name)
	if err != nil {
		Warnf("unknown log level %q, using info", name)
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	Infof("log level set to %v.", strings.ToUpper(lvl.String()))
}

// SetOutput redirects log output, mostly for tests.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

func newLogger() *customLogger {
	logger := &logrus.Logger{
		Out:   os.Stderr,
		Level: logrus.InfoLevel,
		Hooks: make(logrus.LevelHooks),
		Formatter: &easy.Formatter{
			TimestampFormat: "01-02 15:04:05.000",
			LogFormat:       "[%lvl%]   [%time%]   -   %msg%\r\n",
		},
	}
	return &customLogger{logger}
}

// WithFields returns an entry carrying the given fields.
func WithFields(fields Fields) *logrus.Entry {
	return logger.WithFields(fields)
}

// Debug
func Debug(content interface{}) {
	logger.Debug(content)
}

// Debugf
func Debugf(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

// Info
func Info(content interface{}) {
	logger.Info(content)
}

// Infof
func Infof(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// Warn
func Warn(content interface{}) {
	logger.Warn(content)
}

// Warnf
func Warnf(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

// Error
func Error(content interface{}) {
	logger.Error(content)
}

// Errorf
func Errorf(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

// Fatal
func Fatal(content interface{}) {
	logger.Fatal(content)
}

// Fatalf
func Fatalf(format string, args ...interface{}) {
	logger.Fatalf(format, args...)
}
