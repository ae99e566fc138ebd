// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mnemerr defines the closed set of error kinds the daemon and its
// collaborators use, and maps each to a wire error code for the IPC layer.
package mnemerr

import (
	"encoding/json"
	"fmt"
	"os"
)

// Kind is the closed enumeration of error kinds a handler can return.
type Kind string

const (
	KindDatabase      Kind = "Database"
	KindIO            Kind = "Io"
	KindConfig        Kind = "Config"
	KindSecurity      Kind = "Security"
	KindPathTraversal Kind = "PathTraversal"
	KindSemantic      Kind = "Semantic"
	KindProtocol      Kind = "Protocol"
	KindInternal      Kind = "Internal"
	KindNotFound      Kind = "NotFound"
	KindOther         Kind = "Other"
)

// Error is a structured, user-facing error: a title (what failed), a detail
// (why), an optional suggestion (what to do about it), and the wrapped cause.
// The shape mirrors the errors.NewXError(title, detail, suggestion, cause)
// calling convention.
type Error struct {
	Kind       Kind
	Title      string
	Detail     string
	Suggestion string
	Path       string // populated for Io / PathTraversal
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Title, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Detail)
}

func (e *Error) Unwrap() error { return e.Cause }

// Format renders the error for a human reader, with or without the
// suggestion line.
func (e *Error) Format(withSuggestion bool) string {
	s := fmt.Sprintf("[%s] %s: %s", e.Kind, e.Title, e.Detail)
	if withSuggestion && e.Suggestion != "" {
		s += "\nSuggestion: " + e.Suggestion
	}
	return s
}

func newErr(kind Kind, title, detail, suggestion string, cause error) *Error {
	return &Error{Kind: kind, Title: title, Detail: detail, Suggestion: suggestion, Cause: cause}
}

func NewDatabaseError(title, detail, suggestion string, cause error) *Error {
	return newErr(KindDatabase, title, detail, suggestion, cause)
}

func NewConfigError(title, detail, suggestion string, cause error) *Error {
	return newErr(KindConfig, title, detail, suggestion, cause)
}

func NewInternalError(title, detail, suggestion string, cause error) *Error {
	return newErr(KindInternal, title, detail, suggestion, cause)
}

func NewNotFoundError(title, detail string) *Error {
	return newErr(KindNotFound, title, detail, "", nil)
}

func NewSecurityError(title, detail string) *Error {
	return newErr(KindSecurity, title, detail, "", nil)
}

func NewSemanticError(title, detail string) *Error {
	return newErr(KindSemantic, title, detail, "", nil)
}

func NewProtocolError(title, detail string) *Error {
	return newErr(KindProtocol, title, detail, "", nil)
}

// NewIOError wraps a filesystem error with the path that triggered it.
func NewIOError(path string, cause error) *Error {
	return &Error{
		Kind:   KindIO,
		Title:  "I/O error",
		Detail: fmt.Sprintf("operation on %s failed", path),
		Path:   path,
		Cause:  cause,
	}
}

// NewPathTraversalError reports a path that escaped its project root.
func NewPathTraversalError(path string) *Error {
	return &Error{
		Kind:   KindPathTraversal,
		Title:  "Path traversal rejected",
		Detail: fmt.Sprintf("%s resolves outside the project root", path),
		Path:   path,
	}
}

// KindOf extracts the Kind from err, defaulting to KindOther for unrecognized
// error values (so callers unaware of mnemerr still get a safe wire mapping).
func KindOf(err error) Kind {
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}
	return KindOther
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// FatalError prints err to stderr and exits the process with code 1, the
// CLI collaborator's reserved "usage or business error" status. When
// asJSON is set the error is emitted as {"error": {...}} instead of the
// human-readable [Kind] Title: Detail line.
func FatalError(err error, asJSON bool) {
	var e *Error
	if !asError(err, &e) {
		e = &Error{Kind: KindOther, Title: "Error", Detail: err.Error()}
	}
	if asJSON {
		_ = json.NewEncoder(os.Stderr).Encode(map[string]any{
			"error": map[string]string{"kind": string(e.Kind), "title": e.Title, "detail": e.Detail},
		})
	} else {
		fmt.Fprintln(os.Stderr, e.Format(true))
	}
	os.Exit(1)
}

// WireCode maps a Kind to one of the closed IPC error codes from the wire
// protocol (spec §6/§7).
func WireCode(k Kind) string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindSecurity, KindPathTraversal:
		return "Security"
	case KindConfig:
		return "InvalidParams"
	case KindProtocol:
		return "Protocol"
	case KindDatabase, KindIO, KindSemantic, KindInternal, KindOther:
		return "Internal"
	default:
		return "Internal"
	}
}
