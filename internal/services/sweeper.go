package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/giftlist/backend/internal/logging"
	"github.com/giftlist/backend/internal/metrics"
	"github.com/giftlist/backend/internal/storage"
)

// SweepReport counts what one sweep removed.
type SweepReport struct {
	Participants int `json:"participants"`
	Gifts        int `json:"gifts"`
}

// Sweeper removes sub-documents left behind by a cascade that did not
// complete: participants and gifts of a deleted group, and gifts whose owner
// is no longer a participant.
type Sweeper struct {
	store storage.Store
}

func NewSweeper(store storage.Store) *Sweeper {
	return &Sweeper{store: store}
}

// Sweep works from snapshots taken one after another, so every candidate is
// re-read before it is deleted. Anything whose parent appeared in the
// meantime belongs to live traffic and is kept.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	report, err := s.sweep(ctx)
	if err != nil {
		metrics.SweepRuns.WithLabelValues("error").Inc()
		return report, err
	}
	metrics.SweepRuns.WithLabelValues("ok").Inc()
	metrics.SweepDeleted.WithLabelValues("participant").Add(float64(report.Participants))
	metrics.SweepDeleted.WithLabelValues("gift").Add(float64(report.Gifts))
	return report, nil
}

func (s *Sweeper) sweep(ctx context.Context) (SweepReport, error) {
	var report SweepReport

	groupIDs, err := s.store.ListGroupIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("list groups: %w", err)
	}
	groups := make(map[string]bool, len(groupIDs))
	for _, id := range groupIDs {
		groups[id] = true
	}

	participants, err := s.store.ListParticipantKeys(ctx)
	if err != nil {
		return report, fmt.Errorf("list participants: %w", err)
	}
	members := make(map[storage.ParticipantKey]bool, len(participants))
	for _, p := range participants {
		if groups[p.GroupID] {
			members[p] = true
			continue
		}
		live, err := s.groupExists(ctx, p.GroupID)
		if err != nil {
			return report, err
		}
		if live {
			groups[p.GroupID] = true
			members[p] = true
			continue
		}
		if err := s.store.Participants().Delete(ctx, p.GroupID, p.UserID); err != nil {
			return report, fmt.Errorf("delete participant %s/%s: %w", p.GroupID, p.UserID, err)
		}
		report.Participants++
	}

	gifts, err := s.store.ListGiftKeys(ctx)
	if err != nil {
		return report, fmt.Errorf("list gifts: %w", err)
	}
	for _, g := range gifts {
		owner := storage.ParticipantKey{GroupID: g.GroupID, UserID: g.UserID}
		if groups[g.GroupID] && members[owner] {
			continue
		}
		live, err := s.ownerExists(ctx, owner)
		if err != nil {
			return report, err
		}
		if live {
			continue
		}
		if err := s.store.Gifts().Delete(ctx, g.GroupID, g.GiftID); err != nil {
			return report, fmt.Errorf("delete gift %s/%s: %w", g.GroupID, g.GiftID, err)
		}
		report.Gifts++
	}
	return report, nil
}

func (s *Sweeper) groupExists(ctx context.Context, groupID string) (bool, error) {
	g, err := s.store.Groups().Get(ctx, groupID)
	if err != nil {
		return false, fmt.Errorf("get group %s: %w", groupID, err)
	}
	return g != nil, nil
}

// ownerExists reports whether the gift owner is still a member of a live group.
func (s *Sweeper) ownerExists(ctx context.Context, owner storage.ParticipantKey) (bool, error) {
	live, err := s.groupExists(ctx, owner.GroupID)
	if err != nil || !live {
		return false, err
	}
	p, err := s.store.Participants().Get(ctx, owner.GroupID, owner.UserID)
	if err != nil {
		return false, fmt.Errorf("get participant %s/%s: %w", owner.GroupID, owner.UserID, err)
	}
	return p != nil, nil
}

// Start sweeps every interval until ctx is done.
func (s *Sweeper) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				report, err := s.Sweep(ctx)
				if err != nil {
					slog.Error("[Sweep] failed", logging.Err(err))
					continue
				}
				if report.Participants > 0 || report.Gifts > 0 {
					slog.Info("[Sweep] removed orphans", "participants", report.Participants, "gifts", report.Gifts)
				}
			}
		}
	}()
}
