package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingPacer struct{ calls []string }

func (p *countingPacer) WaitURL(_ context.Context, raw string) error {
	p.calls = append(p.calls, raw)
	return nil
}

func TestURL_Success(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html><body><h1>Test</h1></body></html>"))
	}))
	defer server.Close()

	pacer := &countingPacer{}
	result, err := URL(context.Background(), server.URL, &Options{Pacer: pacer})
	require.NoError(t, err)
	assert.Equal(t, server.URL, result.URL)
	assert.Equal(t, server.URL, result.FinalURL)
	assert.Contains(t, result.HTML, "<h1>Test</h1>")
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, DefaultUserAgent, gotUA)
	assert.Equal(t, []string{server.URL}, pacer.calls)
}

func TestURL_FollowsRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("moved"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	result, err := URL(context.Background(), server.URL+"/old", nil)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/new", result.FinalURL)
}

func TestURL_InvalidURL(t *testing.T) {
	_, err := URL(context.Background(), "not-a-valid-url", nil)
	require.Error(t, err)

	var fetchErr *Error
	assert.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "invalid URL")
}

func TestURL_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	result, err := URL(context.Background(), server.URL, nil)
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, http.StatusNotFound, result.StatusCode)

	var fetchErr *Error
	assert.ErrorAs(t, err, &fetchErr)
	assert.Contains(t, err.Error(), "404")
}

func TestExtractMainText(t *testing.T) {
	tests := []struct {
		name       string
		html       string
		selectors  []string
		noise      []string
		contains   []string
		notContain []string
	}{
		{
			name:       "main element wins over chrome",
			html:       `<html><body><nav>Navigation</nav><main><h1>Main Content</h1><p>Important text.</p></main><footer>Footer</footer></body></html>`,
			selectors:  JobPostingSelectors(),
			contains:   []string{"Main Content", "Important text"},
			notContain: []string{"Navigation", "Footer"},
		},
		{
			name:       "job description selector",
			html:       `<html><body><div class="sidebar">Sidebar junk</div><div class="job-description"><h2>Requirements</h2><p>5 years experience in Go</p></div></body></html>`,
			selectors:  JobPostingSelectors(),
			contains:   []string{"Requirements", "5 years experience"},
			notContain: []string{"Sidebar junk"},
		},
		{
			name:      "falls back to body",
			html:      `<html><body><div>Some content here.</div></body></html>`,
			selectors: []string{".missing"},
			contains:  []string{"Some content here"},
		},
		{
			name:       "platform noise removed",
			html:       `<html><body><div class="job__description">About the role<form><label>Name</label></form></div></body></html>`,
			selectors:  PlatformContentSelectors(PlatformGreenhouse),
			noise:      PlatformNoiseSelectors(PlatformGreenhouse),
			contains:   []string{"About the role"},
			notContain: []string{"Name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, err := ExtractMainText(tt.html, tt.selectors, tt.noise...)
			require.NoError(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, text, s)
			}
			for _, s := range tt.notContain {
				assert.NotContains(t, text, s)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Intern, Platform", Title(`<html><head><meta property="og:title" content=" Intern, Platform "><title>Other</title></head></html>`))
	assert.Equal(t, "Backend Engineer", Title(`<html><head><title>Backend Engineer</title></head></html>`))
	assert.Equal(t, "", Title(`<html><body></body></html>`))
}

func TestShouldUseBrowser(t *testing.T) {
	assert.True(t, ShouldUseBrowser("   short   "))
	assert.False(t, ShouldUseBrowser(strings.Repeat("x", MinContentLength)))
}
