// Copyright (C) 2017 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log is a minimal, context-scoped severity logger. A Handler
// lives on the context rather than behind a global, so tests (see
// core/assert) can install one that records messages or calls
// testing.T.Fatal instead of writing to stderr and exiting.
package log

import (
	"context"
	"fmt"
	"os"
	"time"
)

// Severity orders log messages from least to most urgent.
type Severity int

const (
	Debug Severity = iota
	Info
	Warning
	Error
	Fatal
)

func (s Severity) String() string {
	switch s {
	case Debug:
		return "D"
	case Info:
		return "I"
	case Warning:
		return "W"
	case Error:
		return "E"
	case Fatal:
		return "F"
	default:
		return "?"
	}
}

// Handler receives every log call made against the context it was
// installed on.
type Handler func(ctx context.Context, sev Severity, msg string)

type handlerKey struct{}

// PutHandler returns a context that routes log calls to h instead of
// the default stderr handler.
func PutHandler(ctx context.Context, h Handler) context.Context {
	return context.WithValue(ctx, handlerKey{}, h)
}

func handlerFrom(ctx context.Context) Handler {
	if h, ok := ctx.Value(handlerKey{}).(Handler); ok && h != nil {
		return h
	}
	return defaultHandler
}

// defaultHandler writes to stderr and, for Fatal, terminates the
// process after the message is flushed.
func defaultHandler(ctx context.Context, sev Severity, msg string) {
	fmt.Fprintf(os.Stderr, "%s %v %s\n", time.Now().Format(time.RFC3339), sev, msg)
	if sev == Fatal {
		os.Exit(1)
	}
}

// F logs at Error severity, or Fatal if fatal is true. A Fatal message
// passed to the default handler terminates the process; a handler
// installed by a test typically calls t.Fatal instead.
func F(ctx context.Context, fatal bool, format string, args ...interface{}) {
	sev := Error
	if fatal {
		sev = Fatal
	}
	handlerFrom(ctx)(ctx, sev, fmt.Sprintf(format, args...))
}

// E logs at Error severity.
func E(ctx context.Context, format string, args ...interface{}) {
	handlerFrom(ctx)(ctx, Error, fmt.Sprintf(format, args...))
}

// W logs at Warning severity.
func W(ctx context.Context, format string, args ...interface{}) {
	handlerFrom(ctx)(ctx, Warning, fmt.Sprintf(format, args...))
}

// I logs at Info severity.
func I(ctx context.Context, format string, args ...interface{}) {
	handlerFrom(ctx)(ctx, Info, fmt.Sprintf(format, args...))
}

// D logs at Debug severity.
func D(ctx context.Context, format string, args ...interface{}) {
	handlerFrom(ctx)(ctx, Debug, fmt.Sprintf(format, args...))
}
