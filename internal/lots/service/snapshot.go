package service

import (
	"strings"
	"time"

	"github.com/farmaflow/farmaflow-backend/internal/expiry"
	"github.com/patrickmn/go-cache"
)

const (
	summaryPrefix   = "summary:"
	announcedPrefix = "announced:"
)

// Snapshot caches the dashboard summary per reference day and remembers
// which lots have already been announced.
type Snapshot struct {
	cache       *cache.Cache
	announceTTL time.Duration
}

// NewSnapshot creates a snapshot cache. Summaries live for ttl, announcements for announceTTL.
func NewSnapshot(ttl, announceTTL time.Duration) *Snapshot {
	return &Snapshot{
		cache:       cache.New(ttl, 2*ttl),
		announceTTL: announceTTL,
	}
}

func summaryKey(reference time.Time) string {
	return summaryPrefix + reference.Format("2006-01-02")
}

// Summary returns the cached summary for the reference day
func (s *Snapshot) Summary(reference time.Time) (expiry.Summary, bool) {
	v, ok := s.cache.Get(summaryKey(reference))
	if !ok {
		return expiry.Summary{}, false
	}
	return v.(expiry.Summary), true
}

// Store caches a summary under its reference day
func (s *Snapshot) Store(reference time.Time, summary expiry.Summary) {
	s.cache.SetDefault(summaryKey(reference), summary)
}

// Invalidate drops every cached summary. Announcements are kept.
func (s *Snapshot) Invalidate() {
	for key := range s.cache.Items() {
		if strings.HasPrefix(key, summaryPrefix) {
			s.cache.Delete(key)
		}
	}
}

func announcedKey(lotID string, tier expiry.Tier) string {
	return announcedPrefix + string(tier) + ":" + lotID
}

// MarkAnnounced records an announcement and reports whether it is new
func (s *Snapshot) MarkAnnounced(lotID string, tier expiry.Tier) bool {
	return s.cache.Add(announcedKey(lotID, tier), struct{}{}, s.announceTTL) == nil
}

// Forget removes an announcement so the next refresh retries it
func (s *Snapshot) Forget(lotID string, tier expiry.Tier) {
	s.cache.Delete(announcedKey(lotID, tier))
}
