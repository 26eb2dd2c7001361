package dns

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-acme/lego/v4/challenge/dns01"
)

// DefaultPropagation is the conservative settle delay between creating a
// challenge record and letting the CA validate it.
const DefaultPropagation = 60 * time.Second

// Solver adapts a Provider to lego's challenge.Provider contract and tracks
// every record it creates so a failed issuance can be rolled back.
type Solver struct {
	provider    Provider
	propagation time.Duration

	mu      sync.Mutex
	handles map[challengeKey]RecordHandle
}

// challengeKey identifies one challenge record. A wildcard order validates
// the apex and the wildcard name against the same FQDN (the ACME identifier
// strips the *. prefix), so the FQDN alone cannot tell the two records
// apart; the record value can.
type challengeKey struct {
	fqdn  string
	value string
}

// NewSolver wraps provider with the given propagation settle delay.
// A non-positive delay falls back to DefaultPropagation.
func NewSolver(provider Provider, propagation time.Duration) *Solver {
	if propagation <= 0 {
		propagation = DefaultPropagation
	}
	return &Solver{
		provider:    provider,
		propagation: propagation,
		handles:     make(map[challengeKey]RecordHandle),
	}
}

// Present creates the TXT record for one challenge and sleeps the bounded
// propagation delay. The delay is a fixed settle, not a poll.
func (s *Solver) Present(domain, token, keyAuth string) error {
	info := dns01.GetChallengeInfo(domain, keyAuth)
	fqdn := dns01.UnFqdn(info.EffectiveFQDN)

	handle, err := s.provider.CreateTXTRecord(context.Background(), fqdn, info.Value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.handles[challengeKey{fqdn: fqdn, value: info.Value}] = handle
	s.mu.Unlock()

	time.Sleep(s.propagation)
	return nil
}

// CleanUp deletes the record created for this challenge. Unknown or
// already-deleted records are not an error.
func (s *Solver) CleanUp(domain, token, keyAuth string) error {
	info := dns01.GetChallengeInfo(domain, keyAuth)
	fqdn := dns01.UnFqdn(info.EffectiveFQDN)

	key := challengeKey{fqdn: fqdn, value: info.Value}
	s.mu.Lock()
	handle, ok := s.handles[key]
	if ok {
		delete(s.handles, key)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	return s.provider.DeleteTXTRecord(context.Background(), handle)
}

// Timeout bounds how long lego waits for the challenge, matching the settle
// delay plus headroom for the CA's own lookups.
func (s *Solver) Timeout() (timeout, interval time.Duration) {
	return s.propagation + 2*time.Minute, 10 * time.Second
}

// CleanupAll deletes every record still tracked. Called on rollback so a
// failed attempt leaves no stray challenge records behind.
func (s *Solver) CleanupAll(ctx context.Context) error {
	s.mu.Lock()
	remaining := make([]RecordHandle, 0, len(s.handles))
	for _, h := range s.handles {
		remaining = append(remaining, h)
	}
	s.handles = make(map[challengeKey]RecordHandle)
	s.mu.Unlock()

	var errs []error
	for _, handle := range remaining {
		if err := s.provider.DeleteTXTRecord(ctx, handle); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Pending reports how many created records have not been cleaned up yet.
func (s *Solver) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}
