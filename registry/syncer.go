package registry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/0xmhha/blockstream-go/internal/constants"
)

// StreamInfo is the control plane's view of one running worker.
type StreamInfo struct {
	StreamID            string
	Identity            Identity
	Version             uint64
	LastPublishedHeight uint64
}

// ControlPlane is the slice of the stream controller the syncer drives.
type ControlPlane interface {
	StartStream(ctx context.Context, cfg IndexerConfig) (string, error)
	StopStream(ctx context.Context, streamID string) error
	ListStreams(ctx context.Context) ([]StreamInfo, error)
}

// Syncer reconciles the registry snapshot against the running workers:
// missing streams are started, version bumps restarted, deregistered
// streams stopped.
type Syncer struct {
	fetcher  Fetcher
	store    *Store
	control  ControlPlane
	interval time.Duration
	logger   *zap.Logger
}

// NewSyncer creates a syncer polling at the given interval (0 = default).
func NewSyncer(fetcher Fetcher, store *Store, control ControlPlane, interval time.Duration, logger *zap.Logger) *Syncer {
	if interval <= 0 {
		interval = constants.DefaultRegistryPollInterval
	}
	return &Syncer{
		fetcher:  fetcher,
		store:    store,
		control:  control,
		interval: interval,
		logger:   logger,
	}
}

// Run polls until the context is cancelled. Fetch failures are logged and
// retried on the next tick; the previous snapshot stays in effect.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.syncOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("registry sync failed", zap.Error(err))
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Syncer) syncOnce(ctx context.Context) error {
	configs, err := s.fetcher.Fetch(ctx)
	if err != nil {
		return err
	}
	snapshot := s.store.Replace(configs)

	active, err := s.control.ListStreams(ctx)
	if err != nil {
		return err
	}
	activeByID := make(map[string]StreamInfo, len(active))
	for _, info := range active {
		activeByID[info.StreamID] = info
	}

	for streamID, cfg := range snapshot.Configs {
		info, running := activeByID[streamID]
		if running && info.Version == cfg.Version {
			continue
		}
		// Start is idempotent per version and restarts on version change.
		if _, err := s.control.StartStream(ctx, cfg); err != nil {
			s.logger.Error("failed to start stream",
				zap.String("stream_id", streamID),
				zap.String("indexer", cfg.Identity.FullName()),
				zap.Uint64("version", cfg.Version),
				zap.Error(err),
			)
		}
	}

	for streamID := range activeByID {
		if _, desired := snapshot.Configs[streamID]; desired {
			continue
		}
		if err := s.control.StopStream(ctx, streamID); err != nil {
			s.logger.Error("failed to stop deregistered stream",
				zap.String("stream_id", streamID),
				zap.Error(err),
			)
		}
	}

	return nil
}
