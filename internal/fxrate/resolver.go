// Package fxrate resolves exchange rates for cross-currency transfer matching.
//
// Lookups go through a persistent rate cache first and fall back to an
// external provider for the exact date. Before a pairing pass, Prefetch
// resolves every rate the pass can need into an immutable RateTable.
package fxrate

import (
	"context"
	"sync"
	"time"

	"transfer-reconciliation-service/internal/models"
	apperrors "transfer-reconciliation-service/pkg/errors"
	"transfer-reconciliation-service/pkg/logger"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	// DefaultConcurrency bounds parallel rate lookups during Prefetch.
	DefaultConcurrency = 8

	// DefaultLookupTimeout bounds one shared cache-then-provider lookup.
	DefaultLookupTimeout = 30 * time.Second
)

var (
	// ErrRateNotFound is matched by every error Resolve returns for a missing rate.
	ErrRateNotFound = errors.New("exchange rate not found")

	// ErrProviderRejected means the provider answered but refused the lookup.
	ErrProviderRejected = errors.New("rate provider rejected the request")
)

// CacheStore reads previously stored rates. A miss returns (nil, nil).
type CacheStore interface {
	LookupRate(ctx context.Context, key RateKey) (*Rate, error)
}

// Provider fetches a rate for an exact date from an external service.
type Provider interface {
	FetchRate(ctx context.Context, key RateKey) (Rate, error)
}

// Resolver resolves rates from the cache, then the provider. It never writes
// provider results back to the cache.
type Resolver struct {
	cache         CacheStore
	provider      Provider
	group         singleflight.Group
	lookupTimeout time.Duration
	logger        logger.Logger
}

// NewResolver creates a resolver. Either collaborator may be nil.
func NewResolver(cache CacheStore, provider Provider, log logger.Logger) *Resolver {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Resolver{
		cache:         cache,
		provider:      provider,
		lookupTimeout: DefaultLookupTimeout,
		logger:        log.WithComponent("fxrate"),
	}
}

// Resolve returns the rate to convert from -> to on date.
func (r *Resolver) Resolve(ctx context.Context, date time.Time, from, to string) (Rate, error) {
	return r.ResolveKey(ctx, NewRateKey(date, from, to))
}

// ResolveKey is Resolve for a prebuilt key. Concurrent calls for the same key
// share one lookup. The shared lookup does not inherit any caller's
// cancellation; a caller whose ctx ends stops waiting and gets ctx.Err().
func (r *Resolver) ResolveKey(ctx context.Context, key RateKey) (Rate, error) {
	if key.SameCurrency() {
		return Rate{Value: decimal.NewFromInt(1), Source: SourceSameCurrency}, nil
	}
	if err := ctx.Err(); err != nil {
		return Rate{}, err
	}

	ch := r.group.DoChan(key.String(), func() (interface{}, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.lookupTimeout)
		defer cancel()
		return r.lookup(lctx, key)
	})

	select {
	case <-ctx.Done():
		return Rate{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Rate{}, res.Err
		}
		return res.Val.(Rate), nil
	}
}

func (r *Resolver) lookup(ctx context.Context, key RateKey) (Rate, error) {
	log := r.logger.WithFields(logger.Fields{"date": key.Date, "from": key.From, "to": key.To})

	if r.cache != nil {
		cached, err := r.cache.LookupRate(ctx, key)
		switch {
		case err != nil:
			log.WithError(err).Warn("Rate cache lookup failed, trying provider")
		case cached != nil:
			return Rate{Value: cached.Value, Source: cached.Source + cachedSuffix}, nil
		}
	}

	if r.provider == nil {
		return Rate{}, notFound(key, apperrors.CodeRateNotFound, nil)
	}

	rate, err := r.provider.FetchRate(ctx, key)
	if err != nil {
		code := apperrors.CodeProviderFailed
		if errors.Is(err, ErrProviderRejected) {
			code = apperrors.CodeProviderRejected
		}
		log.WithError(err).Warn("Rate provider lookup failed")
		return Rate{}, notFound(key, code, err)
	}

	return rate, nil
}

func notFound(key RateKey, code apperrors.ErrorCode, cause error) error {
	inner := ErrRateNotFound
	if cause != nil {
		inner = errors.Wrap(ErrRateNotFound, cause.Error())
	}
	return apperrors.RateResolutionFailure(code, key.Date, key.From, key.To, inner)
}

// Prefetch resolves keys with at most concurrency lookups in flight. Missing
// rates are left out of the table; only context cancellation fails the call.
func (r *Resolver) Prefetch(ctx context.Context, keys []RateKey, concurrency int) (*RateTable, error) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	var mu sync.Mutex
	rates := make(map[RateKey]Rate, len(keys))
	seen := make(map[RateKey]bool, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, key := range keys {
		if key.SameCurrency() || seen[key] {
			continue
		}
		seen[key] = true

		key := key
		g.Go(func() error {
			rate, err := r.ResolveKey(gctx, key)
			if err != nil {
				if errors.Is(err, ErrRateNotFound) {
					return nil
				}
				return err
			}
			mu.Lock()
			rates[key] = rate
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	r.logger.WithFields(logger.Fields{
		"requested": len(seen),
		"resolved":  len(rates),
	}).Debug("Exchange rates prefetched")

	return NewRateTable(rates), nil
}

// RateFromModel adapts a stored exchange rate row.
func RateFromModel(m *models.ExchangeRate) *Rate {
	if m == nil {
		return nil
	}
	return &Rate{Value: m.Rate, Source: m.Source}
}
