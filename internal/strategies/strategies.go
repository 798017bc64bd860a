// Copyright (c) 2026, mozhaa and the hanyuu contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package strategies holds the failure taxonomy shared by the find,
// timing, difficulty and download strategy packages, and the priority
// helpers the workers rank them with.
package strategies

import (
	"errors"
	"fmt"
)

// InvalidSourceError says the source can never be fetched: the row gets
// invalid = true and is not tried again.
type InvalidSourceError struct {
	Reason string
}

func (e *InvalidSourceError) Error() string {
	return "invalid source: " + e.Reason
}

// InvalidSourcef builds an InvalidSourceError from a format string.
func InvalidSourcef(format string, args ...any) error {
	return &InvalidSourceError{Reason: fmt.Sprintf(format, args...)}
}

// IsInvalidSource reports whether err classifies as a permanent source
// failure.
func IsInvalidSource(err error) bool {
	var e *InvalidSourceError
	return errors.As(err, &e)
}

// TemporaryFailureError says the attempt failed for reasons that may
// clear up (network, rate limits, missing cookies): the source id is
// banned for a while and retried later.
type TemporaryFailureError struct {
	Reason string
	Err    error
}

func (e *TemporaryFailureError) Error() string {
	if e.Err != nil {
		return "temporary failure: " + e.Reason + ": " + e.Err.Error()
	}
	return "temporary failure: " + e.Reason
}

func (e *TemporaryFailureError) Unwrap() error {
	return e.Err
}

// TemporaryFailuref builds a TemporaryFailureError from a format string.
func TemporaryFailuref(format string, args ...any) error {
	return &TemporaryFailureError{Reason: fmt.Sprintf(format, args...)}
}

// WrapTemporary attaches a cause to a TemporaryFailureError.
func WrapTemporary(err error, reason string) error {
	return &TemporaryFailureError{Reason: reason, Err: err}
}

// IsTemporaryFailure reports whether err classifies as a retryable
// failure.
func IsTemporaryFailure(err error) bool {
	var e *TemporaryFailureError
	return errors.As(err, &e)
}

// ManualName is the pseudo-strategy recorded on operator-seeded rows. It
// is never run but always outranks every real strategy.
const ManualName = "manual"

// WithManual prepends the manual pseudo-strategy to a priority list,
// dropping any explicit manual entry first so it cannot rank twice.
func WithManual(priorities []string) []string {
	out := make([]string, 0, len(priorities)+1)
	out = append(out, ManualName)
	for _, name := range priorities {
		if name != ManualName {
			out = append(out, name)
		}
	}
	return out
}
