package mcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
)

// StdIO implements a Transport speaking newline-delimited JSON over an
// io.Reader/io.Writer pair, typically the standard streams of a child MCP
// server process. Use NewStdIO to wrap an existing pair, or NewCommandStdIO
// to spawn a server process whose lifetime is tied to the transport:
// closing the transport terminates the child if it is still running.
type StdIO struct {
	reader io.Reader
	writer io.Writer
	logger *slog.Logger

	cmd *exec.Cmd

	reads chan stdIORead

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

type stdIORead struct {
	data []byte
	err  error
}

// NewStdIO creates a transport over an existing reader/writer pair.
func NewStdIO(reader io.Reader, writer io.Writer) *StdIO {
	return &StdIO{
		reader: reader,
		writer: writer,
		logger: slog.Default(),
		reads:  make(chan stdIORead),
		done:   make(chan struct{}),
	}
}

// NewCommandStdIO creates a transport that spawns the given command on Open
// and communicates over its standard input and output. The child's standard
// error is passed through to this process's.
func NewCommandStdIO(command string, args ...string) *StdIO {
	cmd := exec.Command(command, args...)
	cmd.Stderr = os.Stderr
	return &StdIO{
		cmd:    cmd,
		logger: slog.Default(),
		reads:  make(chan stdIORead),
		done:   make(chan struct{}),
	}
}

// Open implements Transport. For command transports it starts the child
// process and wires its pipes; in all cases it starts the read loop.
func (s *StdIO) Open(_ context.Context) error {
	if s.cmd != nil {
		stdin, err := s.cmd.StdinPipe()
		if err != nil {
			return fmt.Errorf("failed to open stdin pipe: %w", err)
		}
		stdout, err := s.cmd.StdoutPipe()
		if err != nil {
			return fmt.Errorf("failed to open stdout pipe: %w", err)
		}
		if err := s.cmd.Start(); err != nil {
			return fmt.Errorf("failed to start %q: %w", s.cmd.Path, err)
		}
		s.writer = stdin
		s.reader = stdout
	}

	go s.readLoop()
	return nil
}

// Send implements Transport. It appends the newline that frames one message
// and writes it in a single critical section.
func (s *StdIO) Send(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return ErrTransportClosed
	default:
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Receive implements Transport. It blocks until one full line is read, the
// peer closes its end, or the transport is closed.
func (s *StdIO) Receive(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, ErrTransportClosed
	case r := <-s.reads:
		return r.data, r.err
	}
}

// Close implements Transport. It closes both ends of the pipe, unblocking
// any pending Receive, and reaps the child process if one was spawned.
// Close is safe to call multiple times.
func (s *StdIO) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)

		if closer, ok := s.writer.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				s.logger.Debug("failed to close writer", "err", err)
			}
		}
		if closer, ok := s.reader.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				s.logger.Debug("failed to close reader", "err", err)
			}
		}

		if s.cmd != nil && s.cmd.Process != nil {
			if err := s.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
				s.logger.Debug("failed to kill child process", "err", err)
			}
			// Reap the child so it doesn't linger as a zombie.
			_ = s.cmd.Wait()
		}
	})
	return nil
}

func (s *StdIO) readLoop() {
	// Use bufio.Reader instead of bufio.Scanner to avoid max token size errors.
	reader := bufio.NewReader(s.reader)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
				err = ErrTransportClosed
			}
			select {
			case s.reads <- stdIORead{err: err}:
			case <-s.done:
			}
			return
		}

		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			continue
		}

		select {
		case s.reads <- stdIORead{data: []byte(line)}:
		case <-s.done:
			return
		}
	}
}
