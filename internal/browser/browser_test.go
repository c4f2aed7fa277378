package browser_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/apply-autopilot/internal/browser"
	"github.com/jonathan/apply-autopilot/internal/browser/browsertest"
)

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return doc
}

func TestCSSPath(t *testing.T) {
	doc := parse(t, `<html><body>
		<form>
			<input name="a">
			<div><input name="b"></div>
			<input name="c">
			<input id="e&quot;mail" name="d">
		</form>
	</body></html>`)

	tests := []struct {
		name string
		find string
		want string
	}{
		{"sibling index", `input[name="c"]`, "html > body:nth-of-type(1) > form:nth-of-type(1) > input:nth-of-type(2)"},
		{"nested", `input[name="b"]`, "html > body:nth-of-type(1) > form:nth-of-type(1) > div:nth-of-type(1) > input:nth-of-type(1)"},
		{"id quoted", `input[name="d"]`, `input[id="e\"mail"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := browser.CSSPath(doc.Find(tt.find))
			assert.Equal(t, tt.want, got)
			if !strings.Contains(tt.want, `\"`) {
				assert.Equal(t, 1, doc.Find(got).Length(), "path must address exactly one element")
			}
		})
	}

	assert.Empty(t, browser.CSSPath(doc.Find("select")))
}

func TestDismissOverlays(t *testing.T) {
	t.Run("known selector", func(t *testing.T) {
		p := browsertest.NewPage("https://x.test", `<html><body><button id="onetrust-accept-btn-handler">Accept</button></body></html>`)
		assert.True(t, browser.DismissOverlays(context.Background(), p))
		assert.True(t, p.Clicked("#onetrust-accept-btn-handler"))
	})

	t.Run("text fallback", func(t *testing.T) {
		p := browsertest.NewPage("https://x.test", `<html><body><div><button>Apply filters</button><button> Accept all cookies </button></div></body></html>`)
		assert.True(t, browser.DismissOverlays(context.Background(), p))
		require.Len(t, p.Actions, 1)
		assert.Contains(t, p.Actions[0].Selector, "button:nth-of-type(2)")
	})

	t.Run("nothing to dismiss", func(t *testing.T) {
		p := browsertest.NewPage("https://x.test", `<html><body><button>Apply</button></body></html>`)
		assert.False(t, browser.DismissOverlays(context.Background(), p))
		assert.Empty(t, p.Actions)
	})
}

func TestRenderHTML(t *testing.T) {
	p := browsertest.NewPage("about:blank", `<html><body><main>Rendered</main></body></html>`)
	html, err := browser.RenderHTML(context.Background(), &browsertest.Opener{Pages: []*browsertest.Page{p}}, "https://jobs.test/1")
	require.NoError(t, err)
	assert.Contains(t, html, "Rendered")
	assert.Equal(t, []string{"https://jobs.test/1"}, p.Navigations)
	assert.True(t, p.Closed)

	_, err = browser.RenderHTML(context.Background(), &browsertest.Opener{Err: browser.ErrUnavailable}, "https://jobs.test/1")
	assert.ErrorIs(t, err, browser.ErrUnavailable)
}

func TestLoadSnapshot(t *testing.T) {
	dir := t.TempDir()

	t.Run("empty path", func(t *testing.T) {
		_, err := browser.LoadSnapshot("")
		assert.ErrorIs(t, err, browser.ErrSnapshotMissing)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := browser.LoadSnapshot(filepath.Join(dir, "nope.json"))
		assert.ErrorIs(t, err, browser.ErrSnapshotMissing)
	})

	t.Run("schema violation", func(t *testing.T) {
		path := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"origins": []}`), 0o600))
		_, err := browser.LoadSnapshot(path)
		assert.ErrorIs(t, err, browser.ErrSnapshotMissing)
	})

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "state.json")
		data := `{
			"cookies": [
				{"name": "sid", "value": "abc", "domain": ".wd5.myworkdayjobs.com", "path": "/", "expires": 1893456000, "httpOnly": true, "secure": true, "sameSite": "Lax"},
				{"name": "tmp", "value": "1", "domain": "x.test", "expires": -1}
			],
			"origins": [
				{"origin": "https://x.test", "localStorage": [{"name": "k", "value": "v\"q"}]},
				{"origin": "https://empty.test", "localStorage": []}
			]
		}`
		require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

		snap, err := browser.LoadSnapshot(path)
		require.NoError(t, err)

		params := snap.CookieParams()
		require.Len(t, params, 2)
		assert.Equal(t, "sid", params[0].Name)
		assert.Equal(t, network.CookieSameSiteLax, params[0].SameSite)
		require.NotNil(t, params[0].Expires)
		assert.Nil(t, params[1].Expires)
		assert.Equal(t, "/", params[1].Path)

		script := snap.StorageScript()
		assert.Contains(t, script, `"https://x.test"`)
		assert.Contains(t, script, `v\"q`)
		assert.NotContains(t, script, "empty.test")
	})
}

func TestSurfaces(t *testing.T) {
	p := browsertest.NewPage("https://x.test", "<html></html>")
	p.AddFrame("https://x.test/frame", "<html></html>")
	got := browser.Surfaces(context.Background(), p)
	require.Len(t, got, 2)
	assert.Equal(t, "main", got[0].Label())
	assert.Equal(t, "frame[0]", got[1].Label())
}

func TestFakeSurfaceRejectsUnknownSelector(t *testing.T) {
	s := browsertest.NewSurface("main", "https://x.test", `<html><body><input id="a"></body></html>`)
	require.NoError(t, s.Fill(context.Background(), `input[id="a"]`, "v"))
	assert.Error(t, s.Fill(context.Background(), `input[id="b"]`, "v"))

	s.Fail[`input[id="a"]`] = errors.New("detached")
	assert.Error(t, s.Click(context.Background(), `input[id="a"]`))
	v, ok := s.Filled(`input[id="a"]`)
	assert.True(t, ok)
	assert.Equal(t, "v", v)
}
