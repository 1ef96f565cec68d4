package utils

import "testing"

func TestFolderDisplayName_TokenHeuristic(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"abc123xyz789", GenericFolderLabel},
		{"High Resolution", "High Resolution"},
		{"k9x2m4p8q7w3z5r1", GenericFolderLabel},
		{"twilight-shots", "twilight-shots"},
		{"Kitchen", "Kitchen"},
		{"", GenericFolderLabel},
	}
	for _, tc := range cases {
		if got := FolderDisplayName(tc.name, "", ""); got != tc.want {
			t.Fatalf("FolderDisplayName(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestFolderDisplayName_PersistedSourceWins(t *testing.T) {
	if got := FolderDisplayName("abc123xyz789", "", FolderNameSourceUser); got != "abc123xyz789" {
		t.Fatalf("user source should be verbatim, got %q", got)
	}
	if got := FolderDisplayName("Edited Photos", "", FolderNameSourceGenerated); got != GenericFolderLabel {
		t.Fatalf("generated source should be generic, got %q", got)
	}
	if got := FolderDisplayName("", "folders/High Resolution", FolderNameSourceUser); got != "High Resolution" {
		t.Fatalf("should fall back to last path segment, got %q", got)
	}
}

func TestIsRootFolder(t *testing.T) {
	cases := map[string]bool{
		"edited":               true,
		"folders/edited":       true,
		"folders/edited/web":   false,
		"edited/web":           false,
		"/edited/":             true,
		"":                     false,
		"folders/a1b2c3d4e5f6": true,
	}
	for p, want := range cases {
		if got := IsRootFolder(p); got != want {
			t.Fatalf("IsRootFolder(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestSlugFolderSegment(t *testing.T) {
	if got := SlugFolderSegment("  High Resolution / Web "); got != "high-resolution-web" {
		t.Fatalf("unexpected slug %q", got)
	}
	if got := SlugFolderSegment("!!!"); got != "" {
		t.Fatalf("expected empty slug, got %q", got)
	}
}
