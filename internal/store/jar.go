package store

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"
)

// Jar is the upstream cookie jar of one console session. It only ever talks
// to the single configured backend, so cookies are keyed by name alone and
// domain scoping is not tracked.
type Jar struct {
	mu      sync.Mutex
	cookies map[string]storedCookie
	dirty   bool
	now     func() time.Time
}

type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitzero"`
}

func NewJar() *Jar {
	return &Jar{cookies: make(map[string]storedCookie), now: time.Now}
}

// LoadJar restores a jar from Marshal output. Empty input gives an empty jar.
func LoadJar(data []byte) (*Jar, error) {
	j := NewJar()
	if len(data) == 0 {
		return j, nil
	}
	var list []storedCookie
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, err
	}
	for _, c := range list {
		j.cookies[c.Name] = c
	}
	return j, nil
}

// SetCookies implements http.CookieJar.
func (j *Jar) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	for _, c := range cookies {
		if c == nil || c.Name == "" {
			continue
		}
		j.dirty = true
		if c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now)) {
			delete(j.cookies, c.Name)
			continue
		}
		sc := storedCookie{Name: c.Name, Value: c.Value, Path: c.Path, Expires: c.Expires}
		if c.MaxAge > 0 {
			sc.Expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		j.cookies[c.Name] = sc
	}
}

// Cookies implements http.CookieJar.
func (j *Jar) Cookies(_ *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	out := make([]*http.Cookie, 0, len(j.cookies))
	for _, c := range j.live(now) {
		out = append(out, &http.Cookie{Name: c.Name, Value: c.Value})
	}
	return out
}

// Len returns the number of unexpired cookies.
func (j *Jar) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.live(j.now()))
}

// Dirty reports whether the jar changed since it was loaded.
func (j *Jar) Dirty() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.dirty
}

// Clear drops every cookie.
func (j *Jar) Clear() {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.cookies) > 0 {
		j.dirty = true
	}
	j.cookies = make(map[string]storedCookie)
}

// Clone returns an independent copy, used to run a backend call whose
// cookies may have to be thrown away.
func (j *Jar) Clone() *Jar {
	j.mu.Lock()
	defer j.mu.Unlock()
	c := NewJar()
	c.now = j.now
	for k, v := range j.cookies {
		c.cookies[k] = v
	}
	return c
}

// Absorb replaces the contents of j with those of other.
func (j *Jar) Absorb(other *Jar) {
	other.mu.Lock()
	cookies := make(map[string]storedCookie, len(other.cookies))
	for k, v := range other.cookies {
		cookies[k] = v
	}
	other.mu.Unlock()

	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies = cookies
	j.dirty = true
}

// Marshal serializes the unexpired cookies.
func (j *Jar) Marshal() ([]byte, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return json.Marshal(j.live(j.now()))
}

// live must be called with mu held.
func (j *Jar) live(now time.Time) []storedCookie {
	out := make([]storedCookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		if !c.Expires.IsZero() && !c.Expires.After(now) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
