// Package grouper walks a source tree once and reconstructs logical media
// units — a primary plus its satellites — from the flat directory tree,
// the way a Live Photo's .HEIC/.MOV pair or a .HEIC/.AAE edit record are
// really one unit on disk even though they're separate files.
package grouper

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"photox/internal/hasher"
	"photox/internal/pathutil"
)

// MediaFile is one classified path with the filesystem facts the rest of
// the pipeline needs without re-stating.
type MediaFile struct {
	Path    string
	Kind    pathutil.Kind
	Size    int64
	ModTime time.Time
}

// MediaGroup is a logical unit placed atomically: a primary plus zero or
// more satellites (a paired Live Photo motion file, editing sidecars).
// CaptureTime and Fingerprint are attached later by the prober and hasher;
// both are zero valued immediately after grouping.
type MediaGroup struct {
	Primary     MediaFile
	Satellites  []MediaFile
	CaptureTime time.Time
	Fingerprint hasher.Fingerprint
}

// AllFiles returns the primary followed by its satellites, the order
// group-wide operations (quarantine moves, error rows) iterate in.
func (g *MediaGroup) AllFiles() []MediaFile {
	files := make([]MediaFile, 0, 1+len(g.Satellites))
	files = append(files, g.Primary)
	files = append(files, g.Satellites...)
	return files
}

// Walk scans root once, sorted within each directory for reproducibility,
// and returns the media groups it reconstructed plus any sidecar files
// that bound to no group in their own directory (orphans).
func Walk(root string) ([]MediaGroup, []MediaFile, error) {
	var groups []MediaGroup
	var orphans []MediaFile

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		dirGroups, dirOrphans, werr := groupDirectory(path)
		if werr != nil {
			return werr
		}
		groups = append(groups, dirGroups...)
		orphans = append(orphans, dirOrphans...)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return groups, orphans, nil
}

// groupDirectory partitions the immediate (non-recursive) entries of dir
// by stem and kind, and applies the pairing/sidecar-binding rules to just
// that directory.
func groupDirectory(dir string) ([]MediaGroup, []MediaFile, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	stills := map[string][]MediaFile{}
	videos := map[string][]MediaFile{}
	sidecars := map[string][]MediaFile{}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, nil, err
		}
		path := filepath.Join(dir, e.Name())
		kind := pathutil.Classify(path)
		if kind == pathutil.Unknown {
			continue
		}
		mf := MediaFile{Path: path, Kind: kind, Size: info.Size(), ModTime: info.ModTime()}
		stem := strings.ToLower(pathutil.Stem(path))
		switch kind {
		case pathutil.PrimaryImage:
			stills[stem] = append(stills[stem], mf)
		case pathutil.PrimaryVideo:
			videos[stem] = append(videos[stem], mf)
		case pathutil.Sidecar:
			sidecars[stem] = append(sidecars[stem], mf)
		}
	}

	var groups []MediaGroup
	groupByStem := map[string]int{}

	// Map iteration order is randomized per run, so every range over
	// stills/videos/sidecars below goes through a sorted key slice instead —
	// group order within a directory must stay reproducible across runs,
	// matching the sorted os.ReadDir above.
	stillStems := sortedKeys(stills)
	videoStems := sortedKeys(videos)
	sidecarStems := sortedKeys(sidecars)

	// Still images: an unambiguous single still pairs with a lone
	// same-stem video; ambiguous stems (more than one still) degrade to
	// independent primaries per the spec's mandated tie-break, and do not
	// consume the video — the video is left to stand alone below.
	for _, stem := range stillStems {
		files := stills[stem]
		if len(files) == 1 {
			g := MediaGroup{Primary: files[0]}
			if vids := videos[stem]; len(vids) == 1 {
				g.Satellites = append(g.Satellites, vids[0])
				delete(videos, stem)
			}
			groups = append(groups, g)
			groupByStem[stem] = len(groups) - 1
			continue
		}
		for _, f := range files {
			groups = append(groups, MediaGroup{Primary: f})
		}
		// Ambiguous stem: no pairing is attempted, and the stem is not
		// registered here, so a same-stem sidecar is never bound to one of
		// these images: it binds to a standalone same-stem video registered
		// below, or else becomes an orphan.
	}

	// Remaining videos (not consumed as a Live Photo satellite) stand as
	// their own primaries.
	for _, stem := range videoStems {
		files, ok := videos[stem]
		if !ok {
			continue // consumed as a Live Photo satellite above
		}
		for _, f := range files {
			groups = append(groups, MediaGroup{Primary: f})
			groupByStem[stem] = len(groups) - 1
		}
	}

	// Sidecar binding happens only after every primary group for this
	// directory exists, since groupByStem indexes into the final slice.
	var orphans []MediaFile
	for _, stem := range sidecarStems {
		files := sidecars[stem]
		idx, ok := groupByStem[stem]
		if !ok {
			orphans = append(orphans, files...)
			continue
		}
		groups[idx].Satellites = append(groups[idx].Satellites, files...)
	}

	return groups, orphans, nil
}

// sortedKeys returns m's keys in ascending order, so a range over them
// produces deterministic output independent of Go's randomized map
// iteration order.
func sortedKeys(m map[string][]MediaFile) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
