package main

import (
	"context"
	"log/slog"
)

type nullHandler struct{}

// Enabled implements slog.Handler
func (*nullHandler) Enabled(context.Context, slog.Level) bool {
	return false
}

// Handle implements slog.Handler
func (*nullHandler) Handle(context.Context, slog.Record) error {
	return nil
}

// WithAttrs implements slog.Handler
func (nh *nullHandler) WithAttrs([]slog.Attr) slog.Handler {
	return nh
}

// WithGroup implements slog.Handler
func (nh *nullHandler) WithGroup(string) slog.Handler {
	return nh
}

var _ slog.Handler = (*nullHandler)(nil)
