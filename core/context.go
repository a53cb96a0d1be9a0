// Copyright 2020-2021 Dolthub, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/sirupsen/logrus"
)

// Context wraps a stdlib context.Context with the engine's ambient
// concerns: a structured logger entry (mirrors the teacher's
// *sql.Context carrying a *logrus.Entry via ctx.GetLogger()) and an
// optional tracing span parent. Every blocking engine entry point takes
// a *Context as its first argument.
type Context struct {
	context.Context
	logger *logrus.Entry
}

// NewContext wraps parent with a default logger. If parent is nil,
// context.Background() is used.
func NewContext(parent context.Context, fields logrus.Fields) *Context {
	if parent == nil {
		parent = context.Background()
	}
	return &Context{
		Context: parent,
		logger:  logrus.WithFields(fields),
	}
}

// NewEmptyContext returns a Context suitable for tests and internal
// recursive evaluation, with no request-specific fields.
func NewEmptyContext() *Context {
	return NewContext(context.Background(), logrus.Fields{})
}

// Logger returns the context's structured logger entry.
func (c *Context) Logger() *logrus.Entry { return c.logger }

// WithLogger returns a copy of c with a replacement logger entry, used
// when a component wants to add fields (cube, address) for the duration
// of one evaluation without mutating the caller's context.
func (c *Context) WithLogger(entry *logrus.Entry) *Context {
	return &Context{Context: c.Context, logger: entry}
}

// Deadline check, per spec.md §5 "Cancellation/timeout": collaborators
// may check a per-request deadline between evaluation of independent
// cells. Expired reports whether the wrapped context's deadline, if any,
// has already passed.
func (c *Context) Expired() bool {
	select {
	case <-c.Done():
		return true
	default:
		return false
	}
}

// StartSpan opens a tracing span for operationName as a child of any
// span already associated with the wrapped context, per SPEC_FULL.md
// §A.6. The returned finish function must be called when the traced
// operation completes; it is always safe to call even if tracing is
// disabled (opentracing.GlobalTracer() defaults to a no-op tracer).
func (c *Context) StartSpan(operationName string) (opentracing.Span, func()) {
	span, spanCtx := opentracing.StartSpanFromContext(c.Context, operationName)
	c.Context = spanCtx
	return span, span.Finish
}

// WithTimeout returns a derived Context bounded by the given duration,
// along with its cancel function, mirroring context.WithTimeout but
// preserving the logger.
func (c *Context) WithTimeout(d time.Duration) (*Context, context.CancelFunc) {
	inner, cancel := context.WithTimeout(c.Context, d)
	return &Context{Context: inner, logger: c.logger}, cancel
}
