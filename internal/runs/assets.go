package runs

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

// PlotPolicy decides what happens to per-epoch plot snapshots such as
// loss_curves_epoch_7.png.
type PlotPolicy string

const (
	// PlotsLatestEpoch keeps, per base name, only the highest-numbered epoch snapshot.
	PlotsLatestEpoch PlotPolicy = "latest-epoch"
	// PlotsDropEpoch hides every epoch snapshot.
	PlotsDropEpoch PlotPolicy = "drop-epoch"
)

const epochMarker = "_epoch_"

func ParsePlotPolicy(s string) (PlotPolicy, error) {
	switch p := PlotPolicy(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PlotsLatestEpoch, nil
	case PlotsLatestEpoch, PlotsDropEpoch:
		return p, nil
	default:
		return "", fmt.Errorf("unknown plot policy %q", s)
	}
}

func isImage(name string) bool {
	switch filepath.Ext(name) {
	case ".png", ".jpg", ".jpeg":
		return true
	}
	return false
}

// listImages returns image file names directly under dir. A missing dir is empty.
func listImages(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return []string{}
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !isImage(e.Name()) {
			continue
		}
		out = append(out, e.Name())
	}
	return out
}

// ListSamples returns every image in runDir/samples, sorted.
func ListSamples(runDir string) []string {
	names := listImages(filepath.Join(runDir, SamplesDir))
	slices.Sort(names)
	return names
}

// ListPlots returns the images in runDir/plots after applying policy, sorted.
func ListPlots(runDir string, policy PlotPolicy) []string {
	return filterPlots(listImages(filepath.Join(runDir, PlotsDir)), policy)
}

type epochPlot struct {
	name  string
	epoch int
}

func filterPlots(names []string, policy PlotPolicy) []string {
	out := make([]string, 0, len(names))
	latest := map[string]epochPlot{}
	for _, name := range names {
		base, epoch, marked := splitEpoch(name)
		if !marked {
			out = append(out, name)
			continue
		}
		if policy == PlotsDropEpoch || epoch < 0 {
			continue
		}
		cur, seen := latest[base]
		if !seen || epoch > cur.epoch || (epoch == cur.epoch && name < cur.name) {
			latest[base] = epochPlot{name: name, epoch: epoch}
		}
	}
	for _, p := range latest {
		out = append(out, p.name)
	}
	slices.Sort(out)
	return out
}

// splitEpoch parses "<base>_epoch_<n>.<ext>". epoch is -1 when the name
// carries the marker but no integer suffix.
func splitEpoch(name string) (base string, epoch int, marked bool) {
	i := strings.LastIndex(name, epochMarker)
	if i < 0 {
		return "", 0, false
	}
	suffix := strings.TrimSuffix(name[i+len(epochMarker):], filepath.Ext(name))
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 {
		return name[:i], -1, true
	}
	return name[:i], n, true
}
