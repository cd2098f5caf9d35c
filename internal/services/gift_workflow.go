package services

import (
	"sort"
	"strconv"
	"strings"

	"github.com/giftlist/backend/internal/models"
)

// GetStatus returns the neighbouring status in the Available, Claimed,
// Purchased chain. ok is false at either end, and nothing must be written.
func GetStatus(next bool, status models.GiftStatus) (models.GiftStatus, bool) {
	if next {
		switch status {
		case models.GiftAvailable:
			return models.GiftClaimed, true
		case models.GiftClaimed:
			return models.GiftPurchased, true
		}
		return "", false
	}
	switch status {
	case models.GiftPurchased:
		return models.GiftClaimed, true
	case models.GiftClaimed:
		return models.GiftAvailable, true
	}
	return "", false
}

// StatusTextFor is the statusText stored with a transition to status.
func StatusTextFor(status models.GiftStatus, actorID string) string {
	if status == models.GiftAvailable {
		return ""
	}
	return actorID
}

// RenderGift prepares a stored gift for viewerID. The owner never sees status
// or statusText; everyone else sees statusText resolved through names.
func RenderGift(g models.Gift, viewerID string, names map[string]string) models.Gift {
	if g.UserID == viewerID {
		g.Status = ""
		g.StatusText = ""
		return g
	}
	if g.StatusText != "" {
		if name, ok := names[g.StatusText]; ok && name != "" {
			g.StatusText = name
		}
	}
	return g
}

func RenderGifts(gifts []models.Gift, viewerID string, names map[string]string) []models.Gift {
	out := make([]models.Gift, 0, len(gifts))
	for _, g := range gifts {
		out = append(out, RenderGift(g, viewerID, names))
	}
	return out
}

// FilterGifts applies q to already rendered gifts, so a search on status
// never matches the viewer's own gifts.
func FilterGifts(gifts []models.Gift, q models.GiftQuery) []models.Gift {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]models.Gift, 0, len(gifts))
	for _, g := range gifts {
		if q.UserID != "" && g.UserID != q.UserID {
			continue
		}
		if q.Status != "" && g.Status != q.Status {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(g.Name), search) &&
			!strings.Contains(strings.ToLower(g.Note), search) &&
			!strings.Contains(strings.ToLower(string(g.Status)), search) {
			continue
		}
		out = append(out, g)
	}

	var less func(a, b models.Gift) bool
	switch q.Sort {
	case models.GiftSortName:
		less = func(a, b models.Gift) bool {
			return strings.ToLower(a.Name) < strings.ToLower(b.Name)
		}
	case models.GiftSortPrice:
		less = func(a, b models.Gift) bool {
			return parsePrice(a.Price) < parsePrice(b.Price)
		}
	default:
		return out
	}
	sort.SliceStable(out, func(i, j int) bool {
		if q.Desc {
			return less(out[j], out[i])
		}
		return less(out[i], out[j])
	})
	return out
}

// parsePrice reads the numeric part of a free-text price such as "$1,299.50".
// Prices without a number sort first.
func parsePrice(s string) float64 {
	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	v, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return -1
	}
	return v
}
