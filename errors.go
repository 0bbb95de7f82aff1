// Copyright 2011 Google Inc. All Rights Reserved.
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

package anvil

import (
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// ParseKind enumerates the ways a build-file statement can fail to parse.
type ParseKind int

const (
	ExpectedStatement ParseKind = iota
	ExpectedVarDef
	UnexpectedIndent
	ExpectedPath
	ExpectedColon
	ExpectedName
	ExpectedRuleName
	ExpectedEndOfLine
	InvalidEscape
)

func (k ParseKind) String() string {
	switch k {
	case ExpectedStatement:
		return "expected statement"
	case ExpectedVarDef:
		return "expected variable definition"
	case UnexpectedIndent:
		return "unexpected indent"
	case ExpectedPath:
		return "expected path"
	case ExpectedColon:
		return "expected ':'"
	case ExpectedName:
		return "expected name"
	case ExpectedRuleName:
		return "expected rule name"
	case ExpectedEndOfLine:
		return "expected end of line"
	case InvalidEscape:
		return "invalid escape"
	default:
		return "parse error"
	}
}

// ParseError is a syntax error encountered while lexing or parsing a
// build file, always anchored to the file and line it occurred on.
type ParseError struct {
	Kind ParseKind
	File string
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Kind)
}

func NewParseError(kind ParseKind, file string, line int, msg string) *ParseError {
	return &ParseError{Kind: kind, File: file, Line: line, Msg: msg}
}

// ReadKind enumerates the ways loading a parsed statement into a Spec can
// fail.
type ReadKind int

const (
	UndefinedRule ReadKind = iota
	UndefinedPool
	DuplicateRule
	DuplicatePool
	InvalidPoolDepth
	ExpectedPoolDepth
	UnknownVariable
	ExpansionErrorKind
	IoErrorKind
	InvalidUtf8Kind
)

// ReadError is an error produced while resolving parsed statements into a
// Spec (undefined names, duplicate definitions, variable expansion
// failures, and I/O failures reading included/subninja'd files).
type ReadError struct {
	Kind  ReadKind
	Name  string
	File  string
	Line  int
	Cycle []string
	Cause error
}

func (e *ReadError) Error() string {
	loc := ""
	if e.File != "" {
		loc = fmt.Sprintf("%s:%d: ", e.File, e.Line)
	}
	switch e.Kind {
	case UndefinedRule:
		return fmt.Sprintf("%sundefined rule %q", loc, e.Name)
	case UndefinedPool:
		return fmt.Sprintf("%sundefined pool %q", loc, e.Name)
	case DuplicateRule:
		return fmt.Sprintf("%sduplicate rule %q", loc, e.Name)
	case DuplicatePool:
		return fmt.Sprintf("%sduplicate pool %q", loc, e.Name)
	case InvalidPoolDepth:
		return fmt.Sprintf("%sinvalid pool depth", loc)
	case ExpectedPoolDepth:
		return fmt.Sprintf("%sexpected pool depth", loc)
	case UnknownVariable:
		return fmt.Sprintf("%sunknown variable %q", loc, e.Name)
	case ExpansionErrorKind:
		return fmt.Sprintf("%svariable expansion cycle: %v", loc, e.Cycle)
	case IoErrorKind:
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s", e.Name, e.Cause)
		}
		return fmt.Sprintf("i/o error reading %s", e.Name)
	case InvalidUtf8Kind:
		return fmt.Sprintf("%sinvalid utf-8 in %q", loc, e.Name)
	default:
		return fmt.Sprintf("%sread error", loc)
	}
}

func (e *ReadError) Unwrap() error { return e.Cause }

func NewExpansionCycle(cycle []string) *ReadError {
	return &ReadError{Kind: ExpansionErrorKind, Cycle: cycle}
}

func NewIoError(path string, cause error) *ReadError {
	return &ReadError{Kind: IoErrorKind, Name: path, Cause: goerrors.Wrap(cause, 1)}
}

// LogError reports a corrupted build-log or dep-log file.
type LogError struct {
	Reason string
	Cause  error
}

func (e *LogError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid data: %s: %s", e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid data: %s", e.Reason)
}

func (e *LogError) Unwrap() error { return e.Cause }

func NewLogError(reason string, cause error) *LogError {
	if cause != nil {
		cause = goerrors.Wrap(cause, 1)
	}
	return &LogError{Reason: reason, Cause: cause}
}

// BuildKind enumerates fatal errors raised while executing the build
// queue.
type BuildKind int

const (
	MissingDependency BuildKind = iota
	SubprocessFailed
	DepfileFailed
	LogAppendFailed
)

// BuildError is a fatal error raised during execution: anvil has no
// partial-continuation mode, so any of these aborts the whole build.
type BuildError struct {
	Kind   BuildKind
	Target string
	Cause  error
}

func (e *BuildError) Error() string {
	switch e.Kind {
	case MissingDependency:
		return fmt.Sprintf("%s: no rule to make this target, and it does not exist", e.Target)
	case SubprocessFailed:
		return fmt.Sprintf("%s: command failed: %s", e.Target, e.Cause)
	case DepfileFailed:
		return fmt.Sprintf("%s: depfile parse failed: %s", e.Target, e.Cause)
	case LogAppendFailed:
		return fmt.Sprintf("%s: failed to record dependencies: %s", e.Target, e.Cause)
	default:
		return fmt.Sprintf("%s: build error", e.Target)
	}
}

func (e *BuildError) Unwrap() error { return e.Cause }

func NewBuildError(kind BuildKind, target string, cause error) *BuildError {
	if cause != nil {
		cause = goerrors.Wrap(cause, 1)
	}
	return &BuildError{Kind: kind, Target: target, Cause: cause}
}
