/*
 * Copyright (c) 2026 Firefly Software Solutions Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

/*
Package errors provides the structured error system for OperationLog.

The errors package implements the error kinds as a single
Code/Category pair wrapping a message, optional detail, and an optional
wrapped cause:

  - NonMatchingLogIDs: merge across different logical logs.
  - MergeNotPossible: incoming operations at or below the local baseline,
    or divergent baselines that could not be reconciled.
  - ReduceNotPossible: a reduce cutoff was never satisfied.
  - CorruptLog: deserialized operations are not sorted ascending.
  - DecodeError: malformed container bytes, or a propagated user-serializer
    failure.
*/
package errors

import "fmt"

// Code identifies one of OperationLog's error kinds.
type Code int

const (
	CodeNonMatchingLogIDs Code = iota + 1
	CodeMergeNotPossible
	CodeReduceNotPossible
	CodeCorruptLog
	CodeDecodeError
)

func (c Code) String() string {
	switch c {
	case CodeNonMatchingLogIDs:
		return "NonMatchingLogIDs"
	case CodeMergeNotPossible:
		return "MergeNotPossible"
	case CodeReduceNotPossible:
		return "ReduceNotPossible"
	case CodeCorruptLog:
		return "CorruptLog"
	case CodeDecodeError:
		return "DecodeError"
	default:
		return "Unknown"
	}
}

// Category groups error Codes for coarse-grained handling (e.g. whether a
// caller should retry with different arguments, or simply surface the
// error to a human).
type Category string

const (
	CategoryMerge  Category = "MERGE"
	CategoryReduce Category = "REDUCE"
	CategoryDecode Category = "DECODE"
)

// Error is a structured OperationLog error.
type Error struct {
	Code     Code
	Category Category
	Message  string
	Detail   string
	Cause    error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("oplog error %d (%s): %s - %s", e.Code, e.Category, e.Message, e.Detail)
	}
	return fmt.Sprintf("oplog error %d (%s): %s", e.Code, e.Category, e.Message)
}

// Unwrap returns the underlying cause, if any, enabling errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error with the same Code, so that
// errors.Is(err, NonMatchingLogIDs("", "")) works regardless of Message
// or Detail.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

// WithDetail returns e with Detail set, for call sites that want to add
// context without constructing a new error kind.
func (e *Error) WithDetail(detail string) *Error {
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithCause returns e with Cause set.
func (e *Error) WithCause(cause error) *Error {
	clone := *e
	clone.Cause = cause
	return &clone
}

// NonMatchingLogIDs builds the error for merging logs with different
// LogIDs.
func NonMatchingLogIDs(local, remote string) *Error {
	return &Error{
		Code:     CodeNonMatchingLogIDs,
		Category: CategoryMerge,
		Message:  fmt.Sprintf("cannot merge logs with different log IDs: %s != %s", local, remote),
	}
}

// MergeNotPossible builds the error for an insert/merge whose incoming
// operations fall at or below the local baseline and cannot be
// reconciled.
func MergeNotPossible(reason string) *Error {
	return &Error{
		Code:     CodeMergeNotPossible,
		Category: CategoryMerge,
		Message:  "merge not possible",
		Detail:   reason,
	}
}

// ReduceNotPossible builds the error for a reduce whose cutoff predicate
// never matched.
func ReduceNotPossible() *Error {
	return &Error{
		Code:     CodeReduceNotPossible,
		Category: CategoryReduce,
		Message:  "reduce cutoff was never satisfied",
	}
}

// CorruptLog builds the error for a deserialized operation sequence that
// is not sorted ascending under the total order.
func CorruptLog(reason string) *Error {
	return &Error{
		Code:     CodeCorruptLog,
		Category: CategoryDecode,
		Message:  "corrupt log",
		Detail:   reason,
	}
}

// Decode builds the error for malformed container bytes or a propagated
// user-serializer failure.
func Decode(cause error) *Error {
	return &Error{
		Code:     CodeDecodeError,
		Category: CategoryDecode,
		Message:  "failed to decode log container",
		Cause:    cause,
	}
}
