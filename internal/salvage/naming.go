package salvage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

const defaultExt = ".tif"

// ObjectBase returns the last path element of an object key. Destination
// keys are built from it, so two keys with the same base share a destination.
func ObjectBase(key string) (string, error) {
	base := path.Base(strings.TrimRight(key, "/"))
	if base == "" || base == "." || base == "/" || base == ".." {
		return "", fmt.Errorf("object key %q has no file name", key)
	}
	return base, nil
}

// splitName splits a raster file name into stem and extension. The stem
// ends at the first ".tif" (so ".tiff" and ".tif.ovr" style names keep
// their full suffix); other names split on the last dot.
func splitName(name string) (stem, ext string) {
	if i := strings.Index(strings.ToLower(name), ".tif"); i > 0 {
		return name[:i], name[i:]
	}
	ext = filepath.Ext(name)
	if ext == "" || ext == name {
		return name, defaultExt
	}
	return strings.TrimSuffix(name, ext), ext
}

// siblingPath returns a path next to p whose name carries suffix before
// the extension: /x/scene.tif + "_forthelulz" -> /x/scene_forthelulz.tif.
func siblingPath(p, suffix string) string {
	stem, ext := splitName(filepath.Base(p))
	return filepath.Join(filepath.Dir(p), stem+suffix+ext)
}
