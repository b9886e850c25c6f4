// Package scheduler orchestrates the update pipeline: it decides when an
// update is due, drives fetch, verification, install, promotion, and service
// reload, and emits lifecycle events.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/koalasec/photon-sync/internal/config"
	"github.com/koalasec/photon-sync/internal/fetch"
	"github.com/koalasec/photon-sync/internal/logger"
	"github.com/koalasec/photon-sync/internal/metrics"
	"github.com/koalasec/photon-sync/internal/notify"
	"github.com/koalasec/photon-sync/internal/region"
	"github.com/koalasec/photon-sync/internal/snapshot"
	"github.com/koalasec/photon-sync/internal/types"
	"github.com/koalasec/photon-sync/internal/verify"
)

// Fetcher retrieves remote resources. Implemented by fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string, maxRetries int) (int64, error)
	RemoteSize(ctx context.Context, url string) (int64, error)
	EnsureSpace(dir string, downloadSize int64, parallel bool) error
}

// Verifier checks archives against checksum sidecars. Implemented by
// verify.Verifier.
type Verifier interface {
	VerifyAgainstSidecar(path, sidecarPath string) error
}

// Installer extracts archives into generation directories. Implemented by
// archive.Installer.
type Installer interface {
	Install(ctx context.Context, archivePath, targetDir string) error
}

// Controller manages the consumer process. Implemented by
// service.Controller.
type Controller interface {
	Start(ctx context.Context, snapshotPath string) error
	Stop(gracePeriod time.Duration) error
	Running() bool
}

// Notifier fans out lifecycle events. Implemented by notify.Notifier.
type Notifier interface {
	Notify(ctx context.Context, ev notify.Event)
}

// FirstRunError wraps a failure during the mandatory first download, when
// there is no prior generation to fall back to.
type FirstRunError struct {
	Err error
}

func (e *FirstRunError) Error() string {
	return fmt.Sprintf("mandatory first download failed: %v", e.Err)
}

func (e *FirstRunError) Unwrap() error { return e.Err }

// Cycle records one execution of the scheduler.
type Cycle struct {
	Start           time.Time
	Strategy        types.Strategy
	Stage           types.Stage
	Outcome         types.Outcome
	SkipReason      string
	Checksum        string
	ChecksumSkipped bool
	SizeBytes       int64
	Err             error
}

// Scheduler is the sole caller of the pipeline components.
type Scheduler struct {
	cfg       *config.Config
	store     *snapshot.Store
	fetcher   Fetcher
	verifier  Verifier
	installer Installer
	service   Controller
	notifier  Notifier
	log       logger.Logger

	// mu serializes cycles: a manual forced update racing a scheduled one
	// must never overlap.
	mu  sync.Mutex
	now func() time.Time
}

// New creates a Scheduler.
func New(cfg *config.Config, store *snapshot.Store, fetcher Fetcher, verifier Verifier,
	installer Installer, service Controller, notifier Notifier, log logger.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg,
		store:     store,
		fetcher:   fetcher,
		verifier:  verifier,
		installer: installer,
		service:   service,
		notifier:  notifier,
		log:       log,
		now:       time.Now,
	}
}

// RunForever drives the scheduler until ctx is done. It only returns early
// when the mandatory first download fails or the service cannot be started
// against an existing generation.
func (s *Scheduler) RunForever(ctx context.Context) error {
	defer func() {
		if s.service.Running() {
			_ = s.service.Stop(s.cfg.ServiceGracePeriod)
		}
	}()

	if !s.store.HasCurrent() {
		if !s.cfg.InitialDownload {
			s.log.Warnf("initial download is disabled and no dataset generation exists; nothing to serve")
			return nil
		}
		s.log.Infof("no dataset generation found, starting initial download")
		cycle := s.RunCycle(ctx, true)
		if cycle.Err != nil {
			return &FirstRunError{Err: cycle.Err}
		}
	} else {
		if err := s.service.Start(ctx, s.store.Current()); err != nil {
			return err
		}
		if s.cfg.ForceUpdate {
			s.log.Infof("running forced update")
			s.RunCycle(ctx, true)
		}
	}

	if s.cfg.UpdateStrategy.IsDisabled() {
		s.log.Infof("scheduled updates are disabled")
		<-ctx.Done()
		return nil
	}

	for {
		wait := s.untilDue()
		s.log.Infof("next update check in %s", wait.Round(time.Second))
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}

		cycle := s.RunCycle(ctx, false)
		if cycle.Outcome != types.OutcomeSucceeded {
			// Failures are not retried within the interval; hold off
			// until the next scheduled opportunity.
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(s.cfg.UpdateInterval):
			}
		}
	}
}

// untilDue returns how long to wait before the next due check.
func (s *Scheduler) untilDue() time.Duration {
	meta, err := s.store.ReadMetadata()
	if err != nil || meta.LastSuccess.IsZero() {
		return 0
	}
	wait := meta.LastSuccess.Add(s.cfg.UpdateInterval).Sub(s.now())
	if wait < 0 {
		return 0
	}
	return wait
}

// Due reports whether an update should run now, and the skip reason when not.
func (s *Scheduler) Due(forced bool) (bool, string) {
	if forced {
		return true, ""
	}
	if s.cfg.UpdateStrategy.IsDisabled() {
		return false, "updates disabled"
	}

	meta, err := s.store.ReadMetadata()
	if err != nil {
		s.log.Warnf("failed to read metadata, treating update as due: %v", err)
		return true, ""
	}
	if meta.LastSuccess.IsZero() {
		return true, ""
	}
	if age := s.now().Sub(meta.LastSuccess); age < s.cfg.UpdateInterval {
		return false, fmt.Sprintf("last update %s ago, interval is %s", age.Round(time.Second), s.cfg.UpdateInterval)
	}
	return true, ""
}

// RunCycle executes one update cycle. Only one cycle runs at a time.
func (s *Scheduler) RunCycle(ctx context.Context, forced bool) *Cycle {
	s.mu.Lock()
	defer s.mu.Unlock()

	cycle := &Cycle{
		Start:    s.now(),
		Strategy: s.cfg.UpdateStrategy,
		Stage:    types.StageDueCheck,
	}

	due, reason := s.Due(forced)
	if !due {
		cycle.Outcome = types.OutcomeSkipped
		cycle.SkipReason = reason
		s.log.Infof("update skipped: %s", reason)
		s.notify(notify.NewEvent(notify.EventUpdateSkipped, map[string]interface{}{"reason": reason}))
		metrics.UpdateCycles.WithLabelValues(cycle.Outcome.String()).Inc()
		return cycle
	}

	// PARALLEL only pays off while a generation is being served; the first
	// download always takes the sequential path.
	parallel := s.cfg.UpdateStrategy == types.StrategyParallel && s.store.HasCurrent()

	s.log.Infof("update cycle started (strategy %s)", s.cfg.UpdateStrategy)
	s.notify(notify.NewEvent(notify.EventUpdateStarted, map[string]interface{}{
		"strategy": s.cfg.UpdateStrategy.String(),
		"forced":   forced,
	}))

	err := s.runUpdate(ctx, cycle, parallel)
	if err != nil {
		cycle.Outcome = types.OutcomeFailed
		cycle.Err = err
		s.failCycle(ctx, cycle, err)
		metrics.UpdateCycles.WithLabelValues(cycle.Outcome.String()).Inc()
		return cycle
	}

	cycle.Outcome = types.OutcomeSucceeded
	cycle.Stage = types.StageIdle
	duration := s.now().Sub(cycle.Start)
	s.log.Infof("update cycle succeeded in %s", duration.Round(time.Second))
	s.notify(notify.NewEvent(notify.EventUpdateSucceeded, map[string]interface{}{
		"durationMs": duration.Milliseconds(),
		"sizeBytes":  cycle.SizeBytes,
	}))
	metrics.RecordSuccess(s.now(), cycle.SizeBytes)
	return cycle
}

// runUpdate drives the pipeline stages. The cycle's Stage field tracks where
// a failure happened. Cancellation is honored at stage boundaries only,
// never mid-rename.
func (s *Scheduler) runUpdate(ctx context.Context, cycle *Cycle, parallel bool) error {
	src, err := s.resolveSource()
	if err != nil {
		return err
	}

	cycle.Stage = types.StageFetching

	size, err := s.fetcher.RemoteSize(ctx, src.ArchiveURL)
	if err != nil {
		s.log.Warnf("could not probe remote size of %s: %v", src.ArchiveURL, err)
		size = -1
	}
	if err := s.fetcher.EnsureSpace(s.store.Root(), size, parallel); err != nil {
		return err
	}

	// SEQUENTIAL trades availability for disk headroom: the service goes
	// down before the transfer begins.
	if !parallel && s.service.Running() {
		if err := s.service.Stop(s.cfg.ServiceGracePeriod); err != nil {
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	archivePath := filepath.Join(s.store.DownloadDir(), archiveName(src.ArchiveURL))
	written, err := s.fetcher.Fetch(ctx, src.ArchiveURL, archivePath, s.cfg.DownloadMaxRetries)
	if err != nil {
		s.notifyDownloadFailed(err)
		return err
	}
	cycle.SizeBytes = written
	metrics.DownloadedBytes.Add(float64(written))

	if err := ctx.Err(); err != nil {
		return err
	}

	cycle.Stage = types.StageVerifying
	if s.cfg.SkipChecksum {
		// Recorded in the cycle outcome; never silently skipped.
		cycle.ChecksumSkipped = true
		s.log.Warnf("checksum verification disabled, skipping")
	} else {
		sidecar := archivePath + ".md5"
		if _, err := s.fetcher.Fetch(ctx, src.ChecksumURL, sidecar, s.cfg.DownloadMaxRetries); err != nil {
			s.notifyDownloadFailed(err)
			return err
		}
		if err := s.verifier.VerifyAgainstSidecar(archivePath, sidecar); err != nil {
			s.notify(notify.NewEvent(notify.EventVerificationFailed, map[string]interface{}{
				"cause": err.Error(),
			}))
			return err
		}
		if digest, err := verify.ParseSidecar(sidecar); err == nil {
			cycle.Checksum = digest
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	cycle.Stage = types.StageInstalling
	if err := s.installer.Install(ctx, archivePath, s.store.Staging()); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	cycle.Stage = types.StagePromoting
	if parallel && s.service.Running() {
		// The only downtime in a parallel update: the swap itself.
		if err := s.service.Stop(s.cfg.ServiceGracePeriod); err != nil {
			return err
		}
	}
	if err := s.store.Promote(); err != nil {
		return err
	}

	cycle.Stage = types.StageReloading
	if err := s.service.Start(ctx, s.store.Current()); err != nil {
		return err
	}

	// The cycle only counts once the new generation is actually serving.
	meta := &snapshot.Metadata{
		SourceURL:       src.ArchiveURL,
		Checksum:        cycle.Checksum,
		ChecksumSkipped: cycle.ChecksumSkipped,
		InstalledAt:     s.now(),
		SizeBytes:       cycle.SizeBytes,
		LastSuccess:     s.now(),
	}
	if size, err := snapshot.DirSize(s.store.Current()); err == nil {
		meta.SizeBytes = size
	}
	if err := s.store.WriteMetadata(meta); err != nil {
		s.log.Warnf("failed to persist metadata: %v", err)
	}

	if err := s.store.GC(); err != nil {
		s.log.Warnf("gc failed: %v", err)
	}
	return nil
}

// failCycle restores the pre-cycle state as far as possible: staging is
// discarded, a generation promoted but unserveable is rolled back, and the
// service is restarted against the last known good generation.
func (s *Scheduler) failCycle(ctx context.Context, cycle *Cycle, cause error) {
	s.log.Errorf("update cycle failed in stage %s: %v", cycle.Stage, cause)
	s.notify(notify.NewEvent(notify.EventUpdateFailed, map[string]interface{}{
		"stage": cycle.Stage.String(),
		"cause": cause.Error(),
	}))

	if err := s.store.DiscardStaging(); err != nil {
		s.log.Errorf("failed to discard staging: %v", err)
	}

	if cycle.Stage == types.StageReloading {
		// The freshly promoted generation would not serve. Fall back to
		// the retired one.
		if err := s.store.Rollback(); err != nil {
			s.log.Errorf("rollback failed: %v", err)
		}
	}

	// During shutdown the service stays down; RunForever is exiting anyway.
	if ctx.Err() != nil {
		return
	}

	if !s.service.Running() && s.store.HasCurrent() {
		s.log.Infof("restarting service against last known good generation")
		if err := s.service.Start(ctx, s.store.Current()); err != nil {
			s.log.Errorf("failed to restart service after failed cycle: %v", err)
		}
	}
}

func (s *Scheduler) resolveSource() (*region.Source, error) {
	if s.cfg.FileURL != "" {
		return region.DirectSource(s.cfg.FileURL), nil
	}
	return region.NewSource(s.cfg.BaseURL, s.cfg.Region)
}

func (s *Scheduler) notifyDownloadFailed(err error) {
	fields := map[string]interface{}{"cause": err.Error()}
	var ferr *fetch.FetchError
	if errors.As(err, &ferr) {
		fields["attempt"] = ferr.Attempts
		metrics.DownloadAttempts.Add(float64(ferr.Attempts))
	}
	s.notify(notify.NewEvent(notify.EventDownloadFailed, fields))
}

// notify delivers an event on a background context so that notifications
// still go out while the scheduler is shutting down.
func (s *Scheduler) notify(ev notify.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.notifier.Notify(ctx, ev)
}

// archiveName derives the local file name for a download URL.
func archiveName(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(rawURL)
}
