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

package main

import (
	"encoding/json"
	"fmt"
	"net"
	"os"

	"github.com/google/uuid"

	"github.com/mnemosyne-project/mnemosyne/internal/ipc"
	"github.com/mnemosyne-project/mnemosyne/internal/mnemerr"
	"github.com/mnemosyne-project/mnemosyne/internal/paths"
)

// client is a connected, initialized session against mnemd's socket.
type client struct {
	conn net.Conn
}

// dial connects to the daemon's socket and completes the initialize
// handshake using the token at <base>/.daemon-token.
func dial() (*client, error) {
	base, err := paths.BaseDir()
	if err != nil {
		return nil, err
	}
	conn, err := net.Dial("unix", paths.SocketPath(base))
	if err != nil {
		return nil, mnemerr.NewIOError(paths.SocketPath(base), err)
	}

	tokenBytes, err := os.ReadFile(paths.TokenPath(base))
	if err != nil {
		conn.Close()
		return nil, mnemerr.NewIOError(paths.TokenPath(base), err)
	}

	c := &client{conn: conn}
	if _, err := c.call("initialize", ipc.InitializeParams{Token: string(tokenBytes)}); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *client) close() { c.conn.Close() }

// call issues one request and returns its decoded result, or an error
// built from the response's wire error.
func (c *client) call(method string, params any) (json.RawMessage, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, mnemerr.NewInternalError("Cannot encode request", err.Error(), "", err)
	}
	req := ipc.Request{ID: json.RawMessage(fmt.Sprintf("%q", uuid.NewString())), Method: method, Params: raw}
	if err := ipc.WriteFrame(c.conn, req); err != nil {
		return nil, err
	}

	var resp ipc.Response
	if err := ipc.ReadFrame(c.conn, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, mnemerr.NewInternalError(resp.Error.Code, resp.Error.Message, "", nil)
	}
	return resp.Result, nil
}
