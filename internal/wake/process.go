package wake

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"os/exec"
	"sync"
)

// ProcessScorer feeds raw PCM16 frames to an external detector on stdin and
// reads one JSON object of model scores per frame from its stdout.
type ProcessScorer struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    *bufio.Scanner
	logger *log.Logger
}

func StartProcess(ctx context.Context, name string, args []string, logger *log.Logger) (*ProcessScorer, error) {
	if logger == nil {
		logger = log.Default()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start wake detector: %w", err)
	}

	logger.Info("Wake detector started", "cmd", name, "pid", cmd.Process.Pid)
	return &ProcessScorer{cmd: cmd, stdin: stdin, out: bufio.NewScanner(stdout), logger: logger}, nil
}

func (p *ProcessScorer) Score(ctx context.Context, frame []byte) (map[string]float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := p.stdin.Write(frame); err != nil {
		return nil, fmt.Errorf("write frame: %w", err)
	}

	if !p.out.Scan() {
		if err := p.out.Err(); err != nil {
			return nil, fmt.Errorf("read scores: %w", err)
		}
		return nil, errors.New("wake detector exited")
	}

	var scores map[string]float64
	if err := json.Unmarshal(p.out.Bytes(), &scores); err != nil {
		return nil, fmt.Errorf("decode scores %q: %w", p.out.Text(), err)
	}
	return scores, nil
}

func (p *ProcessScorer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.stdin.Close()
	if werr := p.cmd.Wait(); werr != nil && err == nil {
		var exit *exec.ExitError
		if !errors.As(werr, &exit) {
			err = werr
		}
	}
	return err
}
