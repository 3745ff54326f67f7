// Package logging configures the application logger.
package logging

import (
	"io"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the log file written inside the config directory.
const FileName = "serial-monitor.log"

// Setup points the standard logrus logger at stderr and, when dir is not
// empty, a size-rotated log file in dir. The returned closer flushes the
// file and should be closed on exit.
func Setup(dir string, verbose bool) io.Closer {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	if verbose {
		log.SetLevel(log.DebugLevel)
	} else {
		log.SetLevel(log.InfoLevel)
	}

	if dir == "" {
		log.SetOutput(os.Stderr)
		return io.NopCloser(nil)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(dir, FileName),
		MaxSize:    5, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	log.SetOutput(io.MultiWriter(os.Stderr, file))
	return file
}
