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

package daemon

import (
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mnemosyne-project/mnemosyne/internal/ipc"
)

func newTestDaemon(t *testing.T) *Daemon {
	t.Helper()
	base := t.TempDir()
	d, err := New(context.Background(), base, nil)
	require.NoError(t, err)
	t.Cleanup(d.Shutdown)
	return d
}

func dialedDaemonConn(t *testing.T, d *Daemon) net.Conn {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	go d.Dispatcher.Serve(serverConn)
	t.Cleanup(func() { clientConn.Close() })
	return clientConn
}

func callDaemon(t *testing.T, conn net.Conn, method string, params any) ipc.Response {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	require.NoError(t, ipc.WriteFrame(conn, ipc.Request{ID: json.RawMessage(`"1"`), Method: method, Params: raw}))
	var resp ipc.Response
	require.NoError(t, ipc.ReadFrame(conn, &resp))
	return resp
}

func TestStatusReportsNoWatchedProjectsInitially(t *testing.T) {
	d := newTestDaemon(t)
	status, err := d.Status()
	require.NoError(t, err)
	require.Equal(t, 0, status.WatchedProjects)
	require.Equal(t, appVersion, status.Version)
}

func TestOpenRepositoryIsIdempotentPerProject(t *testing.T) {
	d := newTestDaemon(t)
	root := t.TempDir()

	repoA, err := d.openRepository(root)
	require.NoError(t, err)
	repoB, err := d.openRepository(root)
	require.NoError(t, err)
	require.Same(t, repoA, repoB)

	status, err := d.Status()
	require.NoError(t, err)
	require.Equal(t, 1, status.WatchedProjects)
}

func TestDispatcherServesStatusAndGCAfterInitialize(t *testing.T) {
	d := newTestDaemon(t)
	root := t.TempDir()
	filePath := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(filePath, []byte("hello"), 0o644))

	conn := dialedDaemonConn(t, d)

	tokenBytes, err := os.ReadFile(filepath.Join(d.base, ".daemon-token"))
	require.NoError(t, err)

	initResp := callDaemon(t, conn, "initialize", ipc.InitializeParams{Token: string(tokenBytes)})
	require.Nil(t, initResp.Error)

	statusResp := callDaemon(t, conn, "daemon.getStatus", struct{}{})
	require.Nil(t, statusResp.Error)

	gcResp := callDaemon(t, conn, "maintenance.gc", map[string]string{"project_path": root})
	require.Nil(t, gcResp.Error)
}
