package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
)

const (
	// SuggestDelay is the quiet period before a prefix lookup fires.
	SuggestDelay = 300 * time.Millisecond
	// ResolveDelay is the quiet period before an exact-match resolution
	// fires once the identifier reaches full length.
	ResolveDelay = 500 * time.Millisecond

	// IdentifierLen is the full aadhar number length.
	IdentifierLen = 12

	maxSuggestions = 10
	rosterTTL      = time.Minute
	rosterCacheKey = "roster"
)

// debouncer delays a callback until input has been quiet for the
// configured interval. A new Trigger cancels the pending one,
// last write wins.
type debouncer struct {
	mu    sync.Mutex
	delay time.Duration
	timer *time.Timer
}

func newDebouncer(delay time.Duration) *debouncer {
	return &debouncer{delay: delay}
}

func (d *debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

func (d *debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Lookup serves type-ahead suggestions by prefix-filtering the temple
// roster client-side. The roster itself is fetched at most once per TTL.
type Lookup struct {
	dir   Directory
	cache *cache.Cache
	limit int
}

func NewLookup(dir Directory) *Lookup {
	return &Lookup{
		dir:   dir,
		cache: cache.New(rosterTTL, 2*rosterTTL),
		limit: maxSuggestions,
	}
}

// Suggest returns up to limit roster members whose identifier starts
// with prefix, in roster order. Lookup failures degrade to an empty
// list; only session expiry is reported.
func (l *Lookup) Suggest(ctx context.Context, s Session, prefix string) ([]Member, error) {
	if prefix == "" {
		return nil, nil
	}

	roster, err := l.roster(ctx, s)
	if errors.Is(err, ErrSessionExpired) {
		return nil, err
	}
	if err != nil {
		return nil, nil
	}

	var out []Member
	for _, m := range roster {
		if strings.HasPrefix(m.AadharNumber, prefix) {
			out = append(out, m)
			if len(out) == l.limit {
				break
			}
		}
	}
	return out, nil
}

func (l *Lookup) roster(ctx context.Context, s Session) ([]Member, error) {
	if cached, ok := l.cache.Get(rosterCacheKey); ok {
		return cached.([]Member), nil
	}

	roster, err := l.dir.TempleUsers(ctx, s)
	if err != nil {
		return nil, err
	}
	l.cache.SetDefault(rosterCacheKey, roster)
	return roster, nil
}

// Invalidate drops the cached roster so the next Suggest refetches.
func (l *Lookup) Invalidate() {
	l.cache.Delete(rosterCacheKey)
}
