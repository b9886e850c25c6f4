// Package service starts, stops, and health-checks the consumer process
// serving the active dataset snapshot.
package service

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"syscall"
	"time"

	"github.com/koalasec/photon-sync/internal/logger"
)

// ServiceStartError means the consumer process exited before passing its
// readiness probe, or the probe never passed within the startup window.
type ServiceStartError struct {
	Reason string
	Err    error
}

func (e *ServiceStartError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("service start failed: %s: %v", e.Reason, e.Err)
	}
	return "service start failed: " + e.Reason
}

func (e *ServiceStartError) Unwrap() error { return e.Err }

// Options configures a Controller.
type Options struct {
	// JavaBin and JarPath locate the consumer. Extra JVM arguments go in
	// JavaArgs, consumer flags in ConsumerArgs.
	JavaBin      string
	JarPath      string
	JavaArgs     []string
	ConsumerArgs []string

	// ProbeURL is polled until it answers with a non-5xx status.
	ProbeURL       string
	StartupTimeout time.Duration
	ProbeInterval  time.Duration

	// Runner substitutes the process launcher; nil means os/exec.
	Runner Runner
}

// Controller owns the lifecycle of the consumer process handle.
type Controller struct {
	opts   Options
	log    logger.Logger
	client *http.Client

	mu     sync.Mutex
	handle Handle
}

// NewController creates a Controller.
func NewController(opts Options, log logger.Logger) *Controller {
	if opts.Runner == nil {
		opts.Runner = &ExecRunner{}
	}
	if opts.ProbeInterval <= 0 {
		opts.ProbeInterval = 2 * time.Second
	}
	if opts.StartupTimeout <= 0 {
		opts.StartupTimeout = 5 * time.Minute
	}
	return &Controller{
		opts:   opts,
		log:    log,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Running reports whether a consumer process is currently held.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handle != nil
}

// Start launches the consumer against snapshotPath and waits until it passes
// the readiness probe. The process is torn down again if it never becomes
// healthy within the startup window.
func (c *Controller) Start(ctx context.Context, snapshotPath string) error {
	c.mu.Lock()
	if c.handle != nil {
		c.mu.Unlock()
		return &ServiceStartError{Reason: "service already running"}
	}

	args := append([]string{}, c.opts.JavaArgs...)
	args = append(args, "-jar", c.opts.JarPath, "-data-dir", snapshotPath)
	args = append(args, c.opts.ConsumerArgs...)

	c.log.Infof("starting service: %s %v", c.opts.JavaBin, args)
	handle, err := c.opts.Runner.Start(c.opts.JavaBin, args...)
	if err != nil {
		c.mu.Unlock()
		return &ServiceStartError{Reason: "failed to launch process", Err: err}
	}
	c.handle = handle
	c.mu.Unlock()

	if err := c.awaitReady(ctx, handle); err != nil {
		c.mu.Lock()
		c.handle = nil
		c.mu.Unlock()
		return err
	}

	c.log.Infof("service is healthy")
	return nil
}

// awaitReady polls the probe until it passes, the process exits, or the
// startup window closes.
func (c *Controller) awaitReady(ctx context.Context, handle Handle) error {
	deadline := time.NewTimer(c.opts.StartupTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(c.opts.ProbeInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			c.terminate(handle)
			return ctx.Err()
		case <-handle.Done():
			return &ServiceStartError{Reason: "process exited before becoming healthy", Err: handle.Err()}
		case <-deadline.C:
			c.terminate(handle)
			return &ServiceStartError{Reason: fmt.Sprintf("not healthy within %s", c.opts.StartupTimeout)}
		case <-tick.C:
			if c.probe(ctx) {
				return nil
			}
		}
	}
}

// Stop gracefully terminates the consumer, escalating to SIGKILL after
// gracePeriod.
func (c *Controller) Stop(gracePeriod time.Duration) error {
	c.mu.Lock()
	handle := c.handle
	c.handle = nil
	c.mu.Unlock()

	if handle == nil {
		return nil
	}

	c.log.Infof("stopping service (grace period %s)", gracePeriod)
	if err := handle.Signal(syscall.SIGTERM); err != nil {
		// Already gone.
		return nil
	}

	grace := time.NewTimer(gracePeriod)
	defer grace.Stop()
	select {
	case <-handle.Done():
		return nil
	case <-grace.C:
		c.log.Warnf("service did not stop within %s, killing", gracePeriod)
		_ = handle.Signal(syscall.SIGKILL)
		<-handle.Done()
		return nil
	}
}

// IsHealthy probes the running service once.
func (c *Controller) IsHealthy(ctx context.Context) bool {
	if !c.Running() {
		return false
	}
	return c.probe(ctx)
}

func (c *Controller) probe(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.ProbeURL, nil)
	if err != nil {
		return false
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode >= 200 && resp.StatusCode < 500
}

// terminate force-stops a handle the controller no longer tracks.
func (c *Controller) terminate(handle Handle) {
	_ = handle.Signal(syscall.SIGTERM)
	select {
	case <-handle.Done():
	case <-time.After(10 * time.Second):
		_ = handle.Signal(syscall.SIGKILL)
		<-handle.Done()
	}
}
