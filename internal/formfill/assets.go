package formfill

import (
	"os"
	"path/filepath"
	"strings"
)

// Assets locates the local documents attached to file-upload fields.
type Assets struct {
	ResumePath     string
	TranscriptPath string
	// Dir is searched when a canonical path does not exist.
	Dir string
}

// Resume returns the resume PDF to upload, or "" when none is available.
func (a Assets) Resume() string {
	if fileExists(a.ResumePath) {
		return a.ResumePath
	}
	return PickBestPDF(a.Dir, "resume", "cv")
}

// Transcript returns the transcript PDF to upload, or "" when none is available.
func (a Assets) Transcript() string {
	if fileExists(a.TranscriptPath) {
		return a.TranscriptPath
	}
	return PickBestPDF(a.Dir, "transcript")
}

// PickBestPDF returns the largest PDF in dir whose name contains the first keyword that has
// any hit. Without hits the largest PDF overall is returned. An empty or unreadable dir gives "".
func PickBestPDF(dir string, keywords ...string) string {
	if dir == "" {
		return ""
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return ""
	}

	type candidate struct {
		path string
		name string
		size int64
	}
	var pdfs []candidate
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		pdfs = append(pdfs, candidate{path: filepath.Join(dir, e.Name()), name: strings.ToLower(e.Name()), size: info.Size()})
	}
	if len(pdfs) == 0 {
		return ""
	}

	largest := func(match func(candidate) bool) string {
		best := -1
		for i, c := range pdfs {
			if match(c) && (best < 0 || c.size > pdfs[best].size) {
				best = i
			}
		}
		if best < 0 {
			return ""
		}
		return pdfs[best].path
	}
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if hit := largest(func(c candidate) bool { return strings.Contains(c.name, kw) }); hit != "" {
			return hit
		}
	}
	return largest(func(candidate) bool { return true })
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
