// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package errutil bridges oops errors and structured logging.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs an error with structured context if it's an oops error.
// For oops errors, it extracts and logs the message, code and context.
// For standard errors, it logs the error string. Extra attrs are appended as-is.
func LogError(logger *slog.Logger, msg string, err error, attrs ...any) {
	logAt(logger, slog.LevelError, msg, err, attrs...)
}

// LogWarn is LogError at warning severity, used for recoverable conditions.
func LogWarn(logger *slog.Logger, msg string, err error, attrs ...any) {
	logAt(logger, slog.LevelWarn, msg, err, attrs...)
}

func logAt(logger *slog.Logger, level slog.Level, msg string, err error, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	args := make([]any, 0, len(attrs)+6)
	args = append(args, attrs...)
	if oopsErr, ok := oops.AsOops(err); ok {
		args = append(args, "error", oopsErr.Error())
		if code := oopsErr.Code(); code != nil {
			args = append(args, "code", code)
		}
		if ctx := oopsErr.Context(); len(ctx) > 0 {
			args = append(args, "context", ctx)
		}
	} else {
		args = append(args, "error", err)
	}
	logger.Log(context.Background(), level, msg, args...)
}

// Code returns the oops code carried by err, or "" when err has none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string) //nolint:errcheck // non-string codes are treated as absent
	return code
}

// HasCode reports whether err is an oops error with the given code.
func HasCode(err error, code string) bool {
	return err != nil && Code(err) == code
}
