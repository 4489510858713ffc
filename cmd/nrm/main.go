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

// The nrm client sends requests to the NRM server. With an argument it
// sends that single request; without one it runs an interactive shell
// with a persistent command history.
package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/photonpath/nrm/private/config"
)

const historyFile = "history.nrm"

func main() {
	var configFile string

	cmd := &cobra.Command{
		Use:           "nrm [request]",
		Short:         "NRM client",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
			if len(args) == 1 {
				return oneShot(addr, args[0])
			}
			return shell(addr)
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "config/param.json",
		"configuration file")
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// readReply reads the reply text up to the empty sentinel line.
func readReply(r *bufio.Reader) (string, error) {
	var lines []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", errors.New(
					"the server returned an empty response and is probably down")
			}
			return "", err
		}
		line = strings.TrimRight(line, "\r\n")
		if line == "" {
			return strings.Join(lines, "\n"), nil
		}
		lines = append(lines, line)
	}
}

func send(conn net.Conn, r *bufio.Reader, request string) error {
	if _, err := fmt.Fprintln(conn, request); err != nil {
		return err
	}
	reply, err := readReply(r)
	if err != nil {
		return err
	}
	fmt.Println(reply)
	return nil
}

func oneShot(addr, request string) error {
	if strings.TrimSpace(request) == "" {
		return nil
	}
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	return send(conn, bufio.NewReader(conn), request)
}

func shell(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	reader := bufio.NewReader(conn)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "> ",
		HistoryFile: historyFile,
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			// Interrupt or EOF ends the shell.
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := send(conn, reader, line); err != nil {
			return err
		}
	}
}
