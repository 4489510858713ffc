// Copyright 2025 Photonpath Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package server

import (
	"bufio"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/solver"
	"github.com/photonpath/nrm/pkg/topology"
	"github.com/photonpath/nrm/private/nrm"
	"github.com/photonpath/nrm/private/storage"
)

func TestMain(m *testing.M) {
	log.Discard()
	goleak.VerifyTestMain(m)
}

const serverTopoXML = `<topology>
  <design>
    <channelInfo>
      <channelTable id="WDM4" type="optical">
        <channel no="1"/>
      </channelTable>
    </channelInfo>
  </design>
  <components>
    <comp ref="A">
      <ports>
        <port number="1" name="/T_A_IN1" io="input" supportChannel="WDM4"/>
        <port number="2" name="/T_A_OUT1" io="output" supportChannel="WDM4"/>
      </ports>
    </comp>
  </components>
  <nets/>
</topology>`

func newTestServer(t *testing.T) (addr string, stop func()) {
	t.Helper()
	dir := t.TempDir()
	topoFile := filepath.Join(dir, "topo.xml")
	require.NoError(t, os.WriteFile(topoFile, []byte(serverTopoXML), 0o644))
	topo, err := topology.Load(topoFile, filepath.Join(dir, "ac"))
	require.NoError(t, err)
	registry, err := nrm.NewRegistry(topo, storage.New(filepath.Join(dir, "db")), false)
	require.NoError(t, err)
	driver := solver.NewDriver()
	engine, err := nrm.NewEngine(topo, filepath.Join(dir, "glpk"), "topo.xml", 0,
		driver, driver, registry)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	srv := &Server{Handler: nrm.NewHandler(engine, nil)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx, listener)
	}()
	return listener.Addr().String(), func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("server did not shut down")
		}
	}
}

func request(t *testing.T, conn net.Conn, r *bufio.Reader, line string) string {
	t.Helper()
	_, err := conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
	var lines []string
	for {
		reply, err := r.ReadString('\n')
		require.NoError(t, err)
		reply = strings.TrimRight(reply, "\r\n")
		if reply == "" {
			return strings.Join(lines, "\n")
		}
		lines = append(lines, reply)
	}
}

func TestServerAnswersRequests(t *testing.T) {
	addr, stop := newTestServer(t)
	defer stop()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()
	r := bufio.NewReader(conn)

	assert.Equal(t, "No Reservation", request(t, conn, r, "query"))
	assert.Contains(t, request(t, conn, r, "deltmp false"),
		"Delete GLPK temporary files : false")

	// Requests on one connection are answered in order.
	assert.Contains(t, request(t, conn, r, "nonsense"), "usage: pathfind")
}

func TestServerMultipleConnections(t *testing.T) {
	addr, stop := newTestServer(t)
	defer stop()

	for i := 0; i < 3; i++ {
		conn, err := net.Dial("tcp", addr)
		require.NoError(t, err)
		r := bufio.NewReader(conn)
		assert.Equal(t, "No Reservation", request(t, conn, r, "query"))
		conn.Close()
	}
}
