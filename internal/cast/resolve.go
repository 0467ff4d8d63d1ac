/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	applog "scriptstage/internal/log"
)

var (
	// ErrExhausted is returned by a Source that has no answer for an actor.
	ErrExhausted = errors.New("side source exhausted")
	// ErrTooManyAttempts is the cause recorded when WithMaxAttempts is exceeded.
	ErrTooManyAttempts = errors.New("too many invalid answers")
)

// Source answers which side an actor stands on. Answers are free text and
// are validated by Resolve; an error means the source cannot answer at all.
type Source interface {
	Ask(ctx context.Context, actor string) (string, error)
}

// Rejecter is implemented by sources that want to know when an answer was
// not a valid side, e.g. to print a hint before being asked again.
type Rejecter interface {
	Reject(actor, answer string)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, actor string) (string, error)

func (f SourceFunc) Ask(ctx context.Context, actor string) (string, error) { return f(ctx, actor) }

// IncompleteSideAssignmentError reports the actor that could not be given a side.
type IncompleteSideAssignmentError struct {
	Actor string
	Err   error
}

func (e *IncompleteSideAssignmentError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("no side assigned for actor %q", e.Actor)
	}
	return fmt.Sprintf("no side assigned for actor %q: %v", e.Actor, e.Err)
}

func (e *IncompleteSideAssignmentError) Unwrap() error { return e.Err }

type resolveOptions struct {
	maxAttempts int
	logger      *slog.Logger
}

// ResolveOption customizes Resolve.
type ResolveOption func(*resolveOptions)

// WithMaxAttempts caps the number of answers asked per actor. Zero means no cap.
func WithMaxAttempts(n int) ResolveOption {
	return func(o *resolveOptions) { o.maxAttempts = n }
}

// WithLogger sets the logger used for rejected answers.
func WithLogger(l *slog.Logger) ResolveOption {
	return func(o *resolveOptions) { o.logger = l }
}

// Resolve asks src for the side of every cast member, in cast order.
// Invalid answers change nothing and the same actor is asked again until a
// valid answer arrives. It fails with *IncompleteSideAssignmentError when src
// returns an error, the attempt cap is reached or ctx is done.
func Resolve(ctx context.Context, c Cast, src Source, opts ...ResolveOption) (Assignment, error) {
	o := resolveOptions{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.logger == nil {
		o.logger = applog.WithOperation(applog.WithComponent("cast"), "resolve")
	}
	if src == nil {
		if c.Len() == 0 {
			return Assignment{}, nil
		}
		return nil, &IncompleteSideAssignmentError{Actor: c.members[0], Err: ErrExhausted}
	}

	out := make(Assignment, c.Len())
	for _, actor := range c.members {
		side, err := askUntilValid(ctx, actor, src, o)
		if err != nil {
			return nil, err
		}
		out[actor] = side
		o.logger.Debug("side assigned", slog.String("actor", actor), slog.String("side", side.String()))
	}
	return out, nil
}

func askUntilValid(ctx context.Context, actor string, src Source, o resolveOptions) (Side, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Unassigned, &IncompleteSideAssignmentError{Actor: actor, Err: err}
		}
		if o.maxAttempts > 0 && attempt > o.maxAttempts {
			return Unassigned, &IncompleteSideAssignmentError{Actor: actor, Err: ErrTooManyAttempts}
		}
		answer, err := src.Ask(ctx, actor)
		if err != nil {
			return Unassigned, &IncompleteSideAssignmentError{Actor: actor, Err: err}
		}
		side, perr := ParseSide(answer)
		if perr == nil {
			return side, nil
		}
		o.logger.Warn("rejected side answer", slog.String("actor", actor), slog.String("answer", answer), slog.Int("attempt", attempt))
		if r, ok := src.(Rejecter); ok {
			r.Reject(actor, answer)
		}
	}
}
