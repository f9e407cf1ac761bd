/*
Console logger with the 4 levels of logging (Debug, Error, Warn, Info)
*/
package logger

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var logger = logrus.New()

func init() {
	logger.Out = os.Stdout
	logger.Level = logrus.InfoLevel
	logger.Formatter = &prefixed.TextFormatter{FullTimestamp: true}
}

func SetOut(out io.Writer) {
	logger.Out = out
}

func SetLevel(level string) error {
	l, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logger.Level = l
	return nil
}

func GetLevel() string {
	return logger.Level.String()
}

func Debug(format string, args ...interface{}) {
	logger.Debugf(format, args...)
}

func Error(format string, args ...interface{}) {
	logger.Errorf(format, args...)
}

func Warn(format string, args ...interface{}) {
	logger.Warnf(format, args...)
}

func Info(format string, args ...interface{}) {
	logger.Infof(format, args...)
}

// WithPrefix returns an entry rendered with "[prefix]" by the prefixed formatter.
func WithPrefix(prefix string) *logrus.Entry {
	return logger.WithField("prefix", prefix)
}
