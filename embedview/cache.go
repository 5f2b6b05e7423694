// ABOUTME: Keyed cache of heavyweight dashboard embeds with single-visible-at-a-time display semantics.
// ABOUTME: Validates URLs before accepting them and tracks per-entry load failures without evicting anything.
package embedview

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
)

var (
	// ErrInvalidURL reports a URL that failed validation: not absolute, wrong
	// scheme, or pointing back at the host application.
	ErrInvalidURL = errors.New("embed URL failed validation")

	// ErrNotCached reports an operation on a URL that has no cache entry.
	ErrNotCached = errors.New("no embed cached for URL")
)

// Surface is a live embedded dashboard handle. What it actually is depends on
// the factory: a terminal panel, a browser tab, a webview.
type Surface interface {
	Close() error
}

// Factory allocates a Surface for a URL. Allocation is expensive; the cache
// calls it at most once per distinct URL for the lifetime of the session.
type Factory func(url, title string) (Surface, error)

// Entry is a snapshot of one cached embed.
type Entry struct {
	URL     string
	Title   string
	Surface Surface
	Visible bool
	LoadErr error
}

// Cache owns the URL-to-embed mapping. Entries are never evicted during a
// session; at most one entry is visible at a time.
type Cache struct {
	factory      Factory
	appBase      *url.URL
	notify       func(text string)
	openExternal func(url string) error

	mu      sync.Mutex
	entries map[string]*Entry
	visible string
}

// Option configures a Cache.
type Option func(*Cache)

// WithNotify registers a callback for user-visible notices: validation
// failures and "already open" messages.
func WithNotify(fn func(text string)) Option {
	return func(c *Cache) { c.notify = fn }
}

// WithExternalOpener sets the fallback action used when an embed fails to
// load and the user asks to open it outside the app.
func WithExternalOpener(fn func(url string) error) Option {
	return func(c *Cache) { c.openExternal = fn }
}

// NewCache creates a Cache. appBase is the host application's own base URL;
// embeds resolving to the same origin and path are rejected so a dashboard
// cannot recursively load the app. An empty or unparseable appBase disables
// that check.
func NewCache(factory Factory, appBase string, opts ...Option) *Cache {
	c := &Cache{
		factory:      factory,
		notify:       func(string) {},
		openExternal: func(string) error { return nil },
		entries:      make(map[string]*Entry),
	}
	if base, err := url.Parse(appBase); err == nil && base.Host != "" {
		c.appBase = base
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Validate reports whether raw is an acceptable embed target: an absolute
// http or https URL that is not the host application itself. Never panics.
func (c *Cache) Validate(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	if u.Host == "" {
		return false
	}
	if c.appBase != nil && sameOriginPath(u, c.appBase) {
		return false
	}
	return true
}

// Show makes the embed for rawURL the single visible entry, creating its
// surface on first use. Showing the already-visible URL is an idempotent
// no-op that only emits a notice.
func (c *Cache) Show(rawURL, title string) error {
	if !c.Validate(rawURL) {
		c.notify("That dashboard link cannot be embedded.")
		return fmt.Errorf("%w: %s", ErrInvalidURL, rawURL)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.visible == rawURL {
		c.notify("Dashboard is already open.")
		return nil
	}

	ent, ok := c.entries[rawURL]
	if !ok {
		surface, err := c.factory(rawURL, title)
		if err != nil {
			return fmt.Errorf("create embed surface: %w", err)
		}
		ent = &Entry{URL: rawURL, Title: title, Surface: surface}
		c.entries[rawURL] = ent
	}

	for _, other := range c.entries {
		other.Visible = false
	}
	ent.Visible = true
	c.visible = rawURL
	return nil
}

// Hide marks every entry invisible. Nothing is evicted.
func (c *Cache) Hide() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ent := range c.entries {
		ent.Visible = false
	}
	c.visible = ""
}

// Visible returns a snapshot of the currently visible entry, if any.
func (c *Cache) Visible() (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visible == "" {
		return Entry{}, false
	}
	ent, ok := c.entries[c.visible]
	if !ok {
		return Entry{}, false
	}
	return *ent, true
}

// Has reports whether a URL already has a cache entry. It never creates one.
func (c *Cache) Has(rawURL string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[rawURL]
	return ok
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// ReportLoadError records an asynchronous load failure for one entry. Other
// entries are unaffected.
func (c *Cache) ReportLoadError(rawURL string, loadErr error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ent, ok := c.entries[rawURL]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotCached, rawURL)
	}
	ent.LoadErr = loadErr
	return nil
}

// OpenExternally is the fallback for a failed embed: hand the URL to the
// configured external opener.
func (c *Cache) OpenExternally(rawURL string) error {
	c.mu.Lock()
	_, ok := c.entries[rawURL]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotCached, rawURL)
	}
	return c.openExternal(rawURL)
}

// sameOriginPath reports whether u targets the same scheme, host, and path
// as base, ignoring a trailing slash difference.
func sameOriginPath(u, base *url.URL) bool {
	if u.Scheme != base.Scheme || u.Host != base.Host {
		return false
	}
	return strings.TrimSuffix(u.Path, "/") == strings.TrimSuffix(base.Path, "/")
}
