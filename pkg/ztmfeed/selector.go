package ztmfeed

import (
	"strings"
	"time"
)

const dateLayout = "20060102"

// ArchiveFile is a successfully parsed listing entry: a filename of the
// form STARTDATE_ENDDATE.<ext> with both 8-digit dates decoded.
type ArchiveFile struct {
	Name  string
	Start time.Time
	End   time.Time
}

// Covers reports whether day falls within the archive's validity range,
// both ends inclusive. Comparison is by calendar date, not instant.
func (f ArchiveFile) Covers(day time.Time) bool {
	d := day.Format(dateLayout)
	return d >= f.Start.Format(dateLayout) && d <= f.End.Format(dateLayout)
}

// ParseArchiveName decodes a listing filename into its date range.
// It returns ok=false for anything that does not match
// STARTDATE_ENDDATE.<ext>; callers skip those entries instead of
// aborting selection.
func ParseArchiveName(name string) (ArchiveFile, bool) {
	base := name
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[:i]
	}

	parts := strings.Split(base, "_")
	if len(parts) != 2 || len(parts[0]) != 8 || len(parts[1]) != 8 {
		return ArchiveFile{}, false
	}

	start, err := time.Parse(dateLayout, parts[0])
	if err != nil {
		return ArchiveFile{}, false
	}
	end, err := time.Parse(dateLayout, parts[1])
	if err != nil {
		return ArchiveFile{}, false
	}

	return ArchiveFile{Name: name, Start: start, End: end}, true
}

// SelectForDate picks the first listed filename whose date range covers
// day. Malformed names are skipped. ok=false means no entry covers day
// and the caller should fall back to the default feed URL.
func SelectForDate(names []string, day time.Time) (string, bool) {
	for _, name := range names {
		file, ok := ParseArchiveName(name)
		if !ok {
			continue
		}
		if file.Covers(day) {
			return file.Name, true
		}
	}
	return "", false
}
