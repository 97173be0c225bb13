package ingest

import (
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/card-scanner/constants"
)

// AllowedExt checks if a file extension is in the allowed image set.
func AllowedExt(ext string) bool {
	_, ok := constants.AllowedExtensions[constants.NormalizeExt(ext)]
	return ok
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// SanitizeFilename keeps the base name of a client supplied filename and
// replaces characters that are awkward in paths.
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r < 0x20, r == 0x7f:
			return -1
		case strings.ContainsRune(`<>:"|?*`, r), r == ' ':
			return '_'
		}
		return r
	}, name)
}

// excludedDirs holds absolute directories whose contents are never ingested,
// such as the upload store when it sits inside a watched tree.
type excludedDirs []string

func newExcludedDirs(dirs []string) excludedDirs {
	var out excludedDirs
	for _, d := range dirs {
		if strings.TrimSpace(d) == "" {
			continue
		}
		abs, err := filepath.Abs(d)
		if err != nil {
			continue
		}
		out = append(out, abs)
	}
	return out
}

// contains reports whether path is one of the directories or lies below one.
func (e excludedDirs) contains(path string) bool {
	if len(e) == 0 {
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	for _, d := range e {
		if abs == d || strings.HasPrefix(abs, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
