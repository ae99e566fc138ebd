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

// Package ipc implements the length-prefixed JSON request/response
// protocol spoken over the daemon's local socket: one Request in, one
// Response out, correlated by an opaque ID.
package ipc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
)

// maxFrameBytes bounds a single request/response frame, guarding against
// a misbehaving client claiming an enormous length prefix.
const maxFrameBytes = 64 * 1024 * 1024

// Request is one client call: an opaque correlation ID, a method name
// from the closed method set, and method-specific params.
type Request struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Response is the reply to exactly one Request, carrying either Result
// or Error, never both.
type Response struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *WireError      `json:"error,omitempty"`
}

// WireError is the error shape clients see: {code, message}.
type WireError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse builds a Response carrying a wire error derived from err.
// A *mnemerr.Error maps through WireCode; any other error is Internal.
func ErrorResponse(id json.RawMessage, err error) Response {
	code := "Internal"
	if me, ok := err.(*mnemerr.Error); ok {
		code = string(mnemerr.WireCode(me.Kind))
	}
	return Response{ID: id, Error: &WireError{Code: code, Message: err.Error()}}
}

// ResultResponse builds a Response carrying a successful result, encoded
// to JSON.
func ResultResponse(id json.RawMessage, result any) (Response, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return Response{}, mnemerr.NewInternalError("Cannot encode response", err.Error(), "", err)
	}
	return Response{ID: id, Result: raw}, nil
}

// WriteFrame writes v as a 4-byte big-endian length prefix followed by
// its JSON encoding.
func WriteFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return mnemerr.NewInternalError("Cannot encode frame", err.Error(), "", err)
	}
	if len(body) > maxFrameBytes {
		return mnemerr.NewProtocolError("Frame too large", fmt.Sprintf("%d bytes exceeds the %d byte limit", len(body), maxFrameBytes))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return mnemerr.NewIOError("socket", err)
	}
	if _, err := w.Write(body); err != nil {
		return mnemerr.NewIOError("socket", err)
	}
	return nil
}

// ReadFrame reads one length-prefixed JSON frame and decodes it into v.
func ReadFrame(r io.Reader, v any) error {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return err
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > maxFrameBytes {
		return mnemerr.NewProtocolError("Frame too large", fmt.Sprintf("%d bytes exceeds the %d byte limit", n, maxFrameBytes))
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return mnemerr.NewIOError("socket", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return mnemerr.NewProtocolError("Malformed frame", err.Error())
	}
	return nil
}
