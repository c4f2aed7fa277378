package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"

	"github.com/jonathan/apply-autopilot/internal/schemas"
)

// Snapshot is a prepared, authenticated browser state in Playwright storage-state format.
type Snapshot struct {
	Cookies []SnapshotCookie `json:"cookies"`
	Origins []SnapshotOrigin `json:"origins"`
}

// SnapshotCookie is one stored cookie. Expires is seconds since epoch, -1 for session cookies.
type SnapshotCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// SnapshotOrigin holds localStorage entries for one origin.
type SnapshotOrigin struct {
	Origin       string         `json:"origin"`
	LocalStorage []StorageEntry `json:"localStorage"`
}

// StorageEntry is a localStorage key/value pair.
type StorageEntry struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LoadSnapshot reads and validates a snapshot file. A missing path or file wraps ErrSnapshotMissing.
func LoadSnapshot(path string) (*Snapshot, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: no path configured", ErrSnapshotMissing)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrSnapshotMissing, path)
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if err := schemas.ValidateStorageState(data); err != nil {
		return nil, fmt.Errorf("%w: %s is invalid: %w", ErrSnapshotMissing, path, err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}

// CookieParams converts stored cookies into CDP parameters.
func (s *Snapshot) CookieParams() []*network.CookieParam {
	out := make([]*network.CookieParam, 0, len(s.Cookies))
	for _, c := range s.Cookies {
		p := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if p.Path == "" {
			p.Path = "/"
		}
		if c.Expires > 0 {
			sec := int64(c.Expires)
			exp := cdp.TimeSinceEpoch(time.Unix(sec, 0))
			p.Expires = &exp
		}
		switch c.SameSite {
		case "Strict":
			p.SameSite = network.CookieSameSiteStrict
		case "Lax":
			p.SameSite = network.CookieSameSiteLax
		case "None":
			p.SameSite = network.CookieSameSiteNone
		}
		out = append(out, p)
	}
	return out
}

// StorageScript returns a script that seeds localStorage for matching origins on every new
// document, or "" when there is nothing to seed.
func (s *Snapshot) StorageScript() string {
	byOrigin := make(map[string]map[string]string)
	for _, o := range s.Origins {
		if len(o.LocalStorage) == 0 {
			continue
		}
		items := make(map[string]string, len(o.LocalStorage))
		for _, e := range o.LocalStorage {
			items[e.Name] = e.Value
		}
		byOrigin[o.Origin] = items
	}
	if len(byOrigin) == 0 {
		return ""
	}
	data, err := json.Marshal(byOrigin)
	if err != nil {
		return ""
	}
	return fmt.Sprintf(`(function(){try{var s=%s[location.origin];if(!s)return;for(var k in s){localStorage.setItem(k,s[k]);}}catch(e){}})();`, data)
}
