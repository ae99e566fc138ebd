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
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func dialedPair(t *testing.T, d *Dispatcher) net.Conn {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	go d.Serve(serverConn)
	t.Cleanup(func() { clientConn.Close() })
	return clientConn
}

func call(t *testing.T, conn net.Conn, id, method string, params any) Response {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	require.NoError(t, WriteFrame(conn, Request{ID: json.RawMessage(id), Method: method, Params: raw}))
	var resp Response
	require.NoError(t, ReadFrame(conn, &resp))
	return resp
}

func TestHandshakeRejectsRequestsBeforeInitialize(t *testing.T) {
	d := NewDispatcher("secret", nil)
	conn := dialedPair(t, d)

	resp := call(t, conn, `"1"`, "snapshot.list", map[string]string{"file_path": "a.txt"})
	require.NotNil(t, resp.Error)
	require.Equal(t, "NotInitialized", resp.Error.Code)
}

func TestHandshakeRejectsWrongToken(t *testing.T) {
	d := NewDispatcher("secret", nil)
	conn := dialedPair(t, d)

	resp := call(t, conn, `"1"`, "initialize", InitializeParams{Token: "wrong"})
	require.NotNil(t, resp.Error)
	require.Equal(t, "Unauthorized", resp.Error.Code)
}

func TestHandshakeSucceedsThenAllowsMethods(t *testing.T) {
	d := NewDispatcher("secret", nil)
	d.Handle("daemon.getStatus", func(params json.RawMessage) (any, error) {
		return map[string]string{"version": "0.1.0"}, nil
	})
	conn := dialedPair(t, d)

	initResp := call(t, conn, `"1"`, "initialize", InitializeParams{Token: "secret"})
	require.Nil(t, initResp.Error)

	statusResp := call(t, conn, `"2"`, "daemon.getStatus", struct{}{})
	require.Nil(t, statusResp.Error)
	require.Contains(t, string(statusResp.Result), "0.1.0")
}

func TestUnknownMethodReturnsInvalidParams(t *testing.T) {
	d := NewDispatcher("secret", nil)
	conn := dialedPair(t, d)
	call(t, conn, `"1"`, "initialize", InitializeParams{Token: "secret"})

	resp := call(t, conn, `"2"`, "not.a.method", struct{}{})
	require.NotNil(t, resp.Error)
	require.Equal(t, "InvalidParams", resp.Error.Code)
}
