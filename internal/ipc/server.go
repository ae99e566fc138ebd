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

package ipc

import (
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
)

// HandlerFunc executes one method call. Params is the raw JSON params
// object; the return value is marshaled as the response's result.
type HandlerFunc func(params json.RawMessage) (any, error)

// InitializeParams is the payload of the initialize method.
type InitializeParams struct {
	Token              string   `json:"token"`
	ClientCapabilities []string `json:"client_capabilities"`
}

// InitializeResult is the payload returned from a successful initialize.
type InitializeResult struct {
	ServerCapabilities []string `json:"server_capabilities"`
}

// ServerCapabilities lists every method this server exposes past
// initialize, used as the initialize handshake's capability list.
var ServerCapabilities = []string{
	"daemon.getStatus", "snapshot.list", "snapshot.get", "snapshot.restore.v1",
	"snapshot.restoreSymbol.v1", "file.getInfo", "file.getDiff",
	"symbol.getSemanticHistory", "content.grep", "symbol.find",
	"checkpoint.create", "checkpoint.list", "checkpoint.revert",
	"maintenance.gc", "git.recordCommit", "git.history",
	"mcp.start", "mcp.stop", "mcp.status",
}

// Dispatcher holds the method table and auth token shared by every
// connection the daemon accepts.
type Dispatcher struct {
	Token        string
	Handlers     map[string]HandlerFunc
	Logger       *slog.Logger
	ShuttingDown *atomic.Bool
}

// NewDispatcher returns a Dispatcher with an empty method table; callers
// register handlers with Handle before serving any connection.
func NewDispatcher(token string, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		Token:        token,
		Handlers:     make(map[string]HandlerFunc),
		Logger:       logger,
		ShuttingDown: &atomic.Bool{},
	}
}

// Handle registers a method handler.
func (d *Dispatcher) Handle(method string, fn HandlerFunc) {
	d.Handlers[method] = fn
}

// Serve runs the per-connection request loop until the client
// disconnects or sends exit; after shutdown the loop keeps answering,
// with a Protocol error for every method but exit. Every connection starts
// uninitialized: only "initialize" is accepted until the token matches.
func (d *Dispatcher) Serve(conn net.Conn) {
	defer conn.Close()
	initialized := false

	for {
		var req Request
		if err := ReadFrame(conn, &req); err != nil {
			if err != io.EOF {
				d.Logger.Debug("ipc.read_frame_failed", "error", err)
			}
			return
		}

		resp := d.dispatch(&req, &initialized)
		if err := WriteFrame(conn, resp); err != nil {
			d.Logger.Warn("ipc.write_frame_failed", "error", err)
			return
		}
		if req.Method == "exit" {
			return
		}
	}
}

func (d *Dispatcher) dispatch(req *Request, initialized *bool) Response {
	if d.ShuttingDown.Load() && req.Method != "exit" {
		return ErrorResponse(req.ID, mnemerr.NewProtocolError("Shutdown in progress", "the daemon is shutting down"))
	}

	if req.Method == "initialize" {
		var params InitializeParams
		if err := json.Unmarshal(req.Params, &params); err != nil {
			return ErrorResponse(req.ID, mnemerr.NewProtocolError("Malformed initialize params", err.Error()))
		}
		if params.Token != d.Token {
			return Response{ID: req.ID, Error: &WireError{Code: "Unauthorized", Message: "invalid authentication token"}}
		}
		*initialized = true
		resp, err := ResultResponse(req.ID, InitializeResult{ServerCapabilities: ServerCapabilities})
		if err != nil {
			return ErrorResponse(req.ID, err)
		}
		return resp
	}

	if !*initialized {
		return Response{ID: req.ID, Error: &WireError{Code: "NotInitialized", Message: "connection has not completed initialize"}}
	}

	if req.Method == "shutdown" || req.Method == "exit" {
		d.ShuttingDown.Store(true)
		resp, _ := ResultResponse(req.ID, struct{}{})
		return resp
	}

	handler, ok := d.Handlers[req.Method]
	if !ok {
		return ErrorResponse(req.ID, mnemerr.NewConfigError("Unknown method", "no handler registered for "+req.Method, "", nil))
	}

	result, err := handler(req.Params)
	if err != nil {
		return ErrorResponse(req.ID, err)
	}
	resp, err := ResultResponse(req.ID, result)
	if err != nil {
		return ErrorResponse(req.ID, err)
	}
	return resp
}
