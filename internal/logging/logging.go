// Package logging sets up logrus for the smartbus binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rifflock/lfshook"
	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects the level and an optional rotating log file.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ParseLevel maps a level name to a logrus level. Empty selects info.
func ParseLevel(s string) (log.Level, error) {
	if strings.TrimSpace(s) == "" {
		return log.InfoLevel, nil
	}
	lvl, err := log.ParseLevel(strings.TrimSpace(s))
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid LOG_LEVEL: %q", s)
	}
	return lvl, nil
}

// Configure sends text logs to stdout and, when File is set, also to a
// rotating file. The returned closer releases the file.
func Configure(logger *log.Logger, opts Options) (io.Closer, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(lvl)
	logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	logger.SetOutput(os.Stdout)

	if opts.File == "" {
		return nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), os.ModePerm); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	lj := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    orDefault(opts.MaxSizeMB, 100),
		MaxBackups: orDefault(opts.MaxBackups, 30),
		MaxAge:     orDefault(opts.MaxAgeDays, 30),
		Compress:   true,
	}
	fileFmt := &log.TextFormatter{DisableColors: true, FullTimestamp: true}
	logger.AddHook(lfshook.NewHook(lfshook.WriterMap{
		log.PanicLevel: lj,
		log.FatalLevel: lj,
		log.ErrorLevel: lj,
		log.WarnLevel:  lj,
		log.InfoLevel:  lj,
		log.DebugLevel: lj,
		log.TraceLevel: lj,
	}, fileFmt))
	return lj, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
