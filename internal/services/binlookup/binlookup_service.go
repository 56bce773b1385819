package binlookup

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/iyilikvakfi/donation-service/internal/domain"
	"github.com/iyilikvakfi/donation-service/internal/domain/ports"
	"github.com/iyilikvakfi/donation-service/pkg/timeutil"
)

// DefaultCacheTTL bounds how long a BIN entry is served from memory.
// Bank reference data changes rarely; five minutes is plenty.
const DefaultCacheTTL = 5 * time.Minute

type cacheEntry struct {
	info      *domain.BinInfo
	expiresAt time.Time
}

// Service resolves card BIN prefixes to issuing banks through a
// read-through cache over the reference tables.
type Service struct {
	binRepo ports.BinRepository
	logger  ports.Logger
	ttl     time.Duration

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// NewService creates a new BIN lookup service
func NewService(binRepo ports.BinRepository, logger ports.Logger, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Service{
		binRepo: binRepo,
		logger:  logger,
		ttl:     ttl,
		cache:   make(map[string]cacheEntry),
	}
}

// Normalize strips whitespace from a card number and returns its 6-digit
// BIN prefix. Numbers shorter than 6 digits are rejected.
func Normalize(cardNumber string) (string, error) {
	cleaned := strings.Join(strings.Fields(cardNumber), "")
	if len(cleaned) < 6 {
		return "", domain.ErrBinInvalid
	}
	return cleaned[:6], nil
}

// Lookup resolves a 6-digit BIN to its bank. Unregistered BINs return a
// not-found domain error and are not cached, so a late registration takes
// effect immediately.
func (s *Service) Lookup(ctx context.Context, bin string) (*domain.BinInfo, error) {
	now := timeutil.Now()

	s.mu.RLock()
	entry, ok := s.cache[bin]
	s.mu.RUnlock()
	if ok && entry.expiresAt.After(now) {
		return entry.info, nil
	}

	info, err := s.binRepo.GetByBin(ctx, nil, bin)
	if err != nil {
		if !domain.IsNotFoundError(err) {
			s.logger.Error("bin lookup failed", ports.String("bin", bin), ports.Err(err))
		}
		return nil, err
	}

	s.mu.Lock()
	s.cache[bin] = cacheEntry{info: info, expiresAt: now.Add(s.ttl)}
	s.mu.Unlock()

	return info, nil
}

// InvalidateAll drops the whole cache. Used after reference-data imports.
func (s *Service) InvalidateAll() {
	s.mu.Lock()
	s.cache = make(map[string]cacheEntry)
	s.mu.Unlock()
}
