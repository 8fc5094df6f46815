// Copyright (c) 2024 The alsanna authors. MIT License.

// Package alog is alsanna's process-lifecycle diagnostic logger: listener
// bind failures, startup/shutdown, CA bootstrap problems. It is distinct
// from the operator-facing protocol stream that the UI Coordinator prints
// — that stream is the product, not a log.
//
// Adapted from nabbar-golib/logger, trimmed to a thin wrapper around
// logrus; that package's hclog/gorm/syslog/rotating-file bridges and
// viper-bound configuration are multi-backend ops infrastructure this
// single-binary proxy has no use for.
package alog

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/dulaku/alsanna/logger/level"
)

var std = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(level.InfoLevel.Logrus())
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return l
}

// SetLevel adjusts the minimum level that gets written.
func SetLevel(lvl level.Level) {
	std.SetLevel(lvl.Logrus())
}

func Debugf(format string, args ...interface{}) { std.Debugf(format, args...) }
func Infof(format string, args ...interface{})  { std.Infof(format, args...) }
func Warnf(format string, args ...interface{})  { std.Warnf(format, args...) }
func Errorf(format string, args ...interface{}) { std.Errorf(format, args...) }
func Fatalf(format string, args ...interface{}) { std.Fatalf(format, args...) }
