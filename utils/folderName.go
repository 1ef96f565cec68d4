package utils

import (
	"strings"
	"unicode"
)

const (
	FolderNameSourceUser      = "user"
	FolderNameSourceGenerated = "generated"

	GenericFolderLabel = "Folder"
)

var humanFolderKeywords = []string{
	"photos", "photo", "edited", "edit", "raw", "final", "hdr", "export",
	"high", "resolution", "web", "print", "drone", "aerial", "video",
	"floorplan", "floor", "twilight", "exterior", "interior", "selects",
}

// IsRootFolder: a path without "/" or a single segment after "folders/".
func IsRootFolder(folderPath string) bool {
	p := strings.Trim(strings.TrimSpace(folderPath), "/")
	if p == "" {
		return false
	}
	if rest, ok := strings.CutPrefix(p, "folders/"); ok {
		return rest != "" && !strings.Contains(rest, "/")
	}
	return !strings.Contains(p, "/")
}

// LastFolderSegment returns the final path segment.
func LastFolderSegment(folderPath string) string {
	p := strings.Trim(strings.TrimSpace(folderPath), "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// LooksLikeGeneratedToken guesses whether a folder name was machine generated.
// Only used for legacy rows that lack a persisted name source.
func LooksLikeGeneratedToken(name string) bool {
	name = strings.TrimSpace(name)
	if name == "" {
		return false
	}
	if strings.ContainsAny(name, " \t") {
		return false
	}
	lower := strings.ToLower(name)
	for _, kw := range humanFolderKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}

	var letters, digits, vowels int
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z':
			letters++
			if strings.ContainsRune("aeiou", r) {
				vowels++
			}
		case unicode.IsDigit(r):
			digits++
		case r == '-' || r == '_':
		default:
			return false
		}
	}

	if len(lower) >= 16 && letters+digits >= 16 {
		return true
	}
	if len(lower) < 10 || letters == 0 || digits == 0 {
		return false
	}
	return float64(vowels)/float64(letters) < 0.3
}

// FolderDisplayName resolves the label shown for a folder. A persisted
// nameSource wins; otherwise the token heuristic applies.
func FolderDisplayName(editorFolderName, folderPath, nameSource string) string {
	name := strings.TrimSpace(editorFolderName)
	if name == "" {
		name = LastFolderSegment(folderPath)
	}
	switch nameSource {
	case FolderNameSourceGenerated:
		return GenericFolderLabel
	case FolderNameSourceUser:
		return name
	}
	if name == "" || LooksLikeGeneratedToken(name) {
		return GenericFolderLabel
	}
	return name
}

// SlugFolderSegment lowercases and keeps [a-z0-9-_], collapsing separators.
func SlugFolderSegment(name string) string {
	var b strings.Builder
	lastDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_':
			b.WriteRune(r)
			lastDash = false
		case r == '-' || unicode.IsSpace(r) || r == '/' || r == '.':
			if !lastDash && b.Len() > 0 {
				b.WriteRune('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
