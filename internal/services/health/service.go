package health

import (
	"context"
	"time"
)

const pingTimeout = time.Second

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Report is the health payload. OK reflects liveness only; the other
// fields say which features are usable.
type Report struct {
	OK             bool   `json:"ok"`
	DocIntel       bool   `json:"docintel"`
	Storage        bool   `json:"storage"`
	RateLimitStore string `json:"rateLimitStore,omitempty"`
}

// Service encapsulates health-related checks.
type Service struct {
	docIntel bool
	storage  bool
	store    Pinger
}

// NewService constructs a health service. store may be nil.
func NewService(docIntelReady, storageReady bool, store Pinger) *Service {
	return &Service{docIntel: docIntelReady, storage: storageReady, store: store}
}

// Status returns the current health report.
func (s *Service) Status(ctx context.Context) Report {
	if s == nil {
		return Report{OK: true}
	}
	r := Report{OK: true, DocIntel: s.docIntel, Storage: s.storage}
	if s.store != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		r.RateLimitStore = "ok"
		if err := s.store.Ping(pingCtx); err != nil {
			r.RateLimitStore = "unreachable"
		}
	}
	return r
}
