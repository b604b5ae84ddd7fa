// Copyright 2020 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package serrors provides structured, context-carrying errors in the shape
// used across the control-service packages: a message, optional key/value
// context pairs, and wrap semantics that preserve the original error chain.
package serrors

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type withCtx struct {
	cause error
	msg   string
	ctx   []interface{}
}

func (e *withCtx) Error() string {
	var b strings.Builder
	b.WriteString(e.msg)
	if len(e.ctx) > 0 {
		b.WriteString(" (")
		b.WriteString(formatCtx(e.ctx))
		b.WriteString(")")
	}
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *withCtx) Unwrap() error {
	return e.cause
}

func (e *withCtx) Cause() error {
	return e.cause
}

func formatCtx(ctx []interface{}) string {
	var parts []string
	for i := 0; i+1 < len(ctx); i += 2 {
		parts = append(parts, fmt.Sprintf("%v=%v", ctx[i], ctx[i+1]))
	}
	if len(ctx)%2 == 1 {
		parts = append(parts, fmt.Sprintf("%v", ctx[len(ctx)-1]))
	}
	return strings.Join(parts, " ")
}

// New creates a new error with a message and optional key/value context.
func New(msg string, ctx ...interface{}) error {
	return errors.WithStack(&withCtx{msg: msg, ctx: ctx})
}

// WrapStr wraps err with an additional message and optional key/value
// context, preserving err in the chain (errors.Is/As and Unwrap both work).
func WrapStr(msg string, err error, ctx ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&withCtx{cause: err, msg: msg, ctx: ctx})
}

// WithCtx annotates err with additional key/value context without changing
// its message.
func WithCtx(err error, ctx ...interface{}) error {
	if err == nil {
		return nil
	}
	return errors.WithStack(&withCtx{cause: err, msg: rootMsg(err), ctx: ctx})
}

func rootMsg(err error) string {
	if e, ok := err.(*withCtx); ok {
		return e.msg
	}
	return err.Error()
}

// List is a collection of errors, e.g. accumulated from validating
// independent fields of a request.
type List []error

// ToError returns nil if the list is empty, the single error if it holds
// exactly one, or an error summarizing all of them otherwise.
func (l List) ToError() error {
	switch len(l) {
	case 0:
		return nil
	case 1:
		return l[0]
	default:
		msgs := make([]string, 0, len(l))
		for _, e := range l {
			msgs = append(msgs, e.Error())
		}
		return errors.New(strings.Join(msgs, "; "))
	}
}
