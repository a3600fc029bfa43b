package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labhub-io/labhub/internal/notification/domain"
)

// SweeperConfig holds the expiry sweep schedule.
type SweeperConfig struct {
	Interval time.Duration
	TTL      time.Duration
}

// Sweeper periodically expires actionable recipient rows (invitations,
// membership applications) that went unanswered past the TTL. Each
// transition re-checks pending state inside the conditional update, so a
// user resolution that lands between scan and write is never overwritten.
type Sweeper struct {
	repo   domain.MessageRepository
	logger *slog.Logger
	cfg    SweeperConfig
}

// NewSweeper creates an expiry sweeper.
func NewSweeper(repo domain.MessageRepository, logger *slog.Logger, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 72 * time.Hour
	}
	return &Sweeper{
		repo:   repo,
		logger: logger.With("component", "sweeper"),
		cfg:    cfg,
	}
}

// Run executes sweeps on a fixed schedule until ctx is cancelled. The loop
// body runs synchronously, so a new sweep never overlaps the previous one.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.InfoContext(ctx, "Expiry sweeper started",
		"interval", s.cfg.Interval, "ttl", s.cfg.TTL)

	for {
		select {
		case <-ticker.C:
			expired, err := s.SweepOnce(ctx)
			if err != nil {
				// Best-effort: log and let the next scheduled run retry.
				// The scan predicate is idempotent, rows already expired
				// or resolved drop out of the next result set.
				s.logger.ErrorContext(ctx, "Sweep finished with errors", "error", err, "expired", expired)
			} else if expired > 0 {
				s.logger.InfoContext(ctx, "Sweep completed", "expired", expired)
			}
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "Expiry sweeper stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// SweepOnce scans every actionable scene for pending rows older than the
// TTL and expires them. It returns how many rows it transitioned. A failure
// on one row does not roll back rows already expired.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.TTL)
	total := 0
	var firstErr error

	for _, scene := range domain.ActionableScenes() {
		n, err := s.sweepScene(ctx, scene, cutoff)
		total += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return total, firstErr
}

func (s *Sweeper) sweepScene(ctx context.Context, scene domain.Scene, cutoff time.Time) (int, error) {
	rows, err := s.repo.FindPendingOlderThan(ctx, scene, cutoff)
	if err != nil {
		return 0, fmt.Errorf("scan pending %s rows: %w", scene, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	s.logger.InfoContext(ctx, "Expiring overdue actionable messages",
		"scene", scene, "candidates", len(rows), "cutoff", cutoff)

	expired := 0
	var firstErr error
	for _, row := range rows {
		ok, err := s.repo.MarkExpired(ctx, row.ID, time.Now().UTC())
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to mark recipient expired",
				"recipient_id", row.ID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if !ok {
			// Resolved by the user between scan and write. Not an error.
			s.logger.DebugContext(ctx, "Recipient no longer pending, skipping",
				"recipient_id", row.ID)
			continue
		}

		expired++
		recipientsExpiredCounter.WithLabelValues(string(scene)).Inc()

		// The notice is only appended after a successful transition, so a
		// body never gains the suffix twice.
		if err := s.repo.AppendExpiryNotice(ctx, row.MessageBodyID, expiryNotice(scene, s.cfg.TTL)); err != nil {
			s.logger.ErrorContext(ctx, "Failed to append expiry notice",
				"message_body_id", row.MessageBodyID, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return expired, firstErr
}

func expiryNotice(scene domain.Scene, ttl time.Duration) string {
	days := int(ttl.Hours() / 24)
	if days < 1 {
		days = 1
	}
	switch scene {
	case domain.SceneProjectMemberInvited:
		return fmt.Sprintf("\n\n[This invitation has expired]\nIt went unanswered for more than %d days and is no longer valid.", days)
	case domain.SceneProjectMemberApply:
		return fmt.Sprintf("\n\n[This application has expired]\nIt went unanswered for more than %d days and is no longer valid.", days)
	default:
		return fmt.Sprintf("\n\n[This message has expired]\nIt went unanswered for more than %d days and is no longer valid.", days)
	}
}
