package docsmcp

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"
)

const defaultShutdownGrace = 5 * time.Second

// process owns a spawned MCP server and its three standard pipes. The pipes
// belong exclusively to the owning session and are closed exactly once.
type process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	grace    time.Duration
	waitDone chan struct{}
	waitErr  error

	closeOnce sync.Once
}

// launchServer spawns the configured command with the parent environment
// overlaid by the config's env entries, and returns live handles to its
// pipes. It fails with ErrProcessSpawn if the executable cannot be started.
func launchServer(cfg ServerConfig) (*process, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("%w: empty command", ErrProcessSpawn)
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = mergeEnv(os.Environ(), cfg.Env)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdin pipe: %v", ErrProcessSpawn, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrProcessSpawn, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrProcessSpawn, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessSpawn, err)
	}

	p := &process{
		cmd:      cmd,
		stdin:    stdin,
		stdout:   stdout,
		stderr:   stderr,
		grace:    defaultShutdownGrace,
		waitDone: make(chan struct{}),
	}

	// Single waiter: exec.Cmd.Wait must be called exactly once.
	go func() {
		p.waitErr = cmd.Wait()
		close(p.waitDone)
	}()

	return p, nil
}

// close shuts the process down: stdin is closed first to signal end-of-input
// to a well-behaved peer, then the process is given a bounded grace period
// before being force-terminated. Calling close twice is a no-op.
func (p *process) close() {
	p.closeOnce.Do(func() {
		_ = p.stdin.Close()

		select {
		case <-p.waitDone:
		case <-time.After(p.grace):
			_ = p.cmd.Process.Kill()
			<-p.waitDone
		}
	})
}

// exited is closed once the process has terminated for any reason.
func (p *process) exited() <-chan struct{} {
	return p.waitDone
}

// mergeEnv overlays the given entries onto a base environment of KEY=VALUE
// strings, replacing existing keys.
func mergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}

	merged := make([]string, 0, len(base)+len(overlay))
	for _, kv := range base {
		replaced := false
		for k := range overlay {
			if len(kv) > len(k) && kv[:len(k)] == k && kv[len(k)] == '=' {
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, kv)
		}
	}
	for k, v := range overlay {
		merged = append(merged, fmt.Sprintf("%s=%s", k, v))
	}
	return merged
}
