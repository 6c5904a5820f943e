// Package ipc is the local control channel between waiter-ctl and the daemon.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"os"
	"time"
)

const DefaultSocketPath = "/tmp/waiter.sock"

const (
	CmdTrigger = "trigger"
	CmdReload  = "reload"
	CmdStatus  = "status"
	CmdStop    = "stop"
)

type ControlMessage struct {
	Cmd string `json:"cmd"`
}

type Reply struct {
	OK    bool   `json:"ok"`
	Text  string `json:"text,omitempty"`
	Error string `json:"error,omitempty"`
}

type Handler func(ControlMessage) Reply

type Server struct {
	path    string
	ln      net.Listener
	handler Handler
	logger  *log.Logger
}

// Listen replaces any stale socket at path.
func Listen(path string, handler Handler, logger *log.Logger) (*Server, error) {
	if path == "" {
		path = DefaultSocketPath
	}
	if logger == nil {
		logger = log.Default()
	}

	_ = os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return &Server{path: path, ln: ln, handler: handler, logger: logger}, nil
}

// Serve accepts connections until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.ln.Close()
	}()
	defer os.Remove(s.path)

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Warn("Accept failed", "err", err)
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		s.logger.Debug("Bad control message", "err", err)
		return
	}

	s.logger.Debug("Control command", "cmd", msg.Cmd)
	reply := s.handler(msg)
	if err := json.NewEncoder(conn).Encode(reply); err != nil {
		s.logger.Debug("Failed to reply", "err", err)
	}
}

func SendCommand(path, cmd string) (Reply, error) {
	if path == "" {
		path = DefaultSocketPath
	}

	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return Reply{}, err
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	if err := json.NewEncoder(conn).Encode(ControlMessage{Cmd: cmd}); err != nil {
		return Reply{}, fmt.Errorf("send: %w", err)
	}

	var reply Reply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return Reply{}, fmt.Errorf("read reply: %w", err)
	}
	return reply, nil
}
