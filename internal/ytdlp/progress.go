package ytdlp

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	rePct   = regexp.MustCompile(`([0-9]+(?:\.[0-9]+)?)%`)
	reSpeed = regexp.MustCompile(`\bat\s+([^\s]+)`)
	reETA   = regexp.MustCompile(`\bETA\s+([0-9:]+)`)
	reOf    = regexp.MustCompile(`\bof\s+~?\s*([^\s]+)`)
)

// Progress is what a single "[download]" status line reports.
type Progress struct {
	Percent float64
	Size    string
	Speed   string
	ETA     string
}

// ParseProgress extracts download progress from one downloader output line.
// It reports false for lines that carry no percentage.
func ParseProgress(line string) (Progress, bool) {
	l := strings.TrimSpace(line)
	if !strings.HasPrefix(l, "[download]") {
		return Progress{}, false
	}
	m := rePct.FindStringSubmatch(l)
	if len(m) < 2 {
		return Progress{}, false
	}
	pct, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return Progress{}, false
	}
	p := Progress{Percent: min(max(pct, 0), 100)}
	if m := reSpeed.FindStringSubmatch(l); len(m) > 1 && !strings.HasPrefix(m[1], "Unknown") {
		p.Speed = m[1]
	}
	if m := reETA.FindStringSubmatch(l); len(m) > 1 {
		p.ETA = m[1]
	}
	if m := reOf.FindStringSubmatch(l); len(m) > 1 {
		p.Size = m[1]
	}
	return p, true
}
