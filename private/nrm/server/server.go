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

// Package server accepts NRM requests over a line-oriented TCP protocol:
// the client writes one request line, the server answers with the reply
// text terminated by an empty line. Requests on one connection are
// strictly serialized; a disconnect cancels the in-flight solver work.
package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/photonpath/nrm/pkg/glpk"
	"github.com/photonpath/nrm/pkg/log"
	"github.com/photonpath/nrm/pkg/private/serrors"
	"github.com/photonpath/nrm/private/nrm"
)

// Server is the NRM request server.
type Server struct {
	Addr    string
	Handler *nrm.Handler
}

// Run listens on Addr and serves until the context is canceled.
func (s *Server) Run(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", s.Addr)
	if err != nil {
		return serrors.Wrap("listening", err, "addr", s.Addr)
	}
	log.Info("NRM Server is listening", "addr", s.Addr)
	return s.Serve(ctx, listener)
}

// Serve accepts connections on the given listener until the context is
// canceled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer log.HandlePanic()
		<-gctx.Done()
		return listener.Close()
	})
	g.Go(func() error {
		defer log.HandlePanic()
		for {
			conn, err := listener.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}
				return serrors.Wrap("accepting connection", err)
			}
			g.Go(func() error {
				defer log.HandlePanic()
				s.serveConn(gctx, conn)
				return nil
			})
		}
	})
	return g.Wait()
}

// serveConn handles one client connection. The request context is
// canceled when the client goes away, terminating pending solver
// subprocesses.
func (s *Server) serveConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	logger := log.New("client", conn.RemoteAddr().String())
	logger.Info("client connected")
	ctx = log.CtxWith(ctx, logger)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		defer log.HandlePanic()
		<-connCtx.Done()
		conn.Close()
	}()

	// Requests are read ahead on a separate goroutine so that a client
	// disconnect cancels the in-flight solver work.
	lines := make(chan string)
	go func() {
		defer log.HandlePanic()
		defer close(lines)
		defer cancel()
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-connCtx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
			logger.Info("client read failed", "err", err)
		}
	}()

	for line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		logger.Info("received message", "data", line)
		reply := s.Handler.Handle(connCtx, line)
		// The reply is terminated by one empty line.
		if _, err := conn.Write([]byte(reply + glpk.RET + glpk.RET)); err != nil {
			logger.Info("client write failed", "err", err)
			return
		}
	}
	logger.Info("client disconnected")
}
