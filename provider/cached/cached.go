// Package cached memoizes the resource sets of another provider.
package cached

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/text/language"

	"github.com/pitabwire/polyglot/provider"
)

const (
	DefaultTTL             = 5 * time.Minute
	defaultCleanupInterval = time.Minute
)

// item is a cached set with expiration.
type item struct {
	set        provider.ResourceSet
	expiration time.Time
}

// isExpired checks if the item has expired at now.
func (i *item) isExpired(now time.Time) bool {
	if i.expiration.IsZero() {
		return false
	}
	return now.After(i.expiration)
}

// Provider keeps successful loads of the wrapped provider for a TTL. Failed
// loads are not cached. It is safe for concurrent use.
type Provider struct {
	inner      provider.Provider
	ttl        time.Duration
	cleanupInt time.Duration
	now        func() time.Time

	items     sync.Map // map[string]*item
	closeMu   sync.Mutex
	stopClean chan struct{}
}

// Option configures a Provider.
type Option func(p *Provider)

// WithTTL sets how long a set is kept. Zero keeps sets until invalidated.
func WithTTL(ttl time.Duration) Option {
	return func(p *Provider) {
		if ttl >= 0 {
			p.ttl = ttl
		}
	}
}

// WithCleanupInterval sets how often expired sets are swept.
func WithCleanupInterval(interval time.Duration) Option {
	return func(p *Provider) {
		if interval > 0 {
			p.cleanupInt = interval
		}
	}
}

// New wraps inner. The returned provider runs a sweeper until Close.
func New(inner provider.Provider, opts ...Option) *Provider {
	p := &Provider{
		inner:      inner,
		ttl:        DefaultTTL,
		cleanupInt: defaultCleanupInterval,
		now:        time.Now,
		stopClean:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}

	go p.startCleanup()

	return p
}

func cacheKey(bundle string, locale language.Tag) string {
	return bundle + "\x00" + locale.String()
}

// startCleanup periodically removes expired sets.
func (p *Provider) startCleanup() {
	ticker := time.NewTicker(p.cleanupInt)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.cleanup()
		case <-p.stopClean:
			return
		}
	}
}

func (p *Provider) cleanup() {
	now := p.now()
	p.items.Range(func(key, value any) bool {
		it, ok := value.(*item)
		if ok && it.isExpired(now) {
			p.items.CompareAndDelete(key, value)
		}
		return true
	})
}

// Load returns the cached set of bundle for locale or loads it.
func (p *Provider) Load(ctx context.Context, bundle string, locale language.Tag) (provider.ResourceSet, error) {
	key := cacheKey(bundle, locale)

	if value, ok := p.items.Load(key); ok {
		if it, valid := value.(*item); valid && !it.isExpired(p.now()) {
			return it.set, nil
		}
		p.items.CompareAndDelete(key, value)
	}

	set, err := p.inner.Load(ctx, bundle, locale)
	if err != nil {
		return nil, err
	}

	it := &item{set: set}
	if p.ttl > 0 {
		it.expiration = p.now().Add(p.ttl)
	}
	p.items.Store(key, it)
	return set, nil
}

// Invalidate drops the cached sets of bundle, or every set when bundle is empty.
func (p *Provider) Invalidate(bundle string) {
	prefix := bundle + "\x00"
	p.items.Range(func(key, _ any) bool {
		k, ok := key.(string)
		if ok && (bundle == "" || strings.HasPrefix(k, prefix)) {
			p.items.Delete(key)
		}
		return true
	})
}

// Close stops the sweeper.
func (p *Provider) Close() error {
	p.closeMu.Lock()
	defer p.closeMu.Unlock()

	select {
	case <-p.stopClean:
		// Already closed
		return nil
	default:
		close(p.stopClean)
	}

	return nil
}
