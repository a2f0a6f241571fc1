package constants

import (
	"strings"
)

type Platform string

const (
	Spotify      Platform = "Spotify"
	AppleMusic   Platform = "Apple Music"
	YouTubeMusic Platform = "YouTube Music"
	AmazonMusic  Platform = "Amazon Music"
	Tidal        Platform = "Tidal"
	Deezer       Platform = "Deezer"
	Pandora      Platform = "Pandora"
	Unknown      Platform = "Unknown"
)

var allPlatforms = []Platform{
	Spotify,
	AppleMusic,
	YouTubeMusic,
	AmazonMusic,
	Tidal,
	Deezer,
	Pandora,
	Unknown,
}

func AsStringSlice() []string {
	result := make([]string, len(allPlatforms))
	for i, p := range allPlatforms {
		result[i] = string(p)
	}
	return result
}

// CanonicalizePlatform maps distributor spellings to a canonical platform name.
// Unrecognized names are kept verbatim so valuation grouping still works,
// with ok=false signalling the name was not in the known set.
func CanonicalizePlatform(input string) (string, bool) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return string(Unknown), false
	}

	normalized := strings.ToLower(trimmed)

	// synonyms map
	synonyms := map[string]Platform{
		"spotify premium":  Spotify,
		"itunes":           AppleMusic,
		"apple":            AppleMusic,
		"applemusic":       AppleMusic,
		"youtube":          YouTubeMusic,
		"yt music":         YouTubeMusic,
		"amazon":           AmazonMusic,
		"amazon unlimited": AmazonMusic,
	}

	if p, ok := synonyms[normalized]; ok {
		return string(p), true
	}

	for _, p := range allPlatforms {
		if normalized == strings.ToLower(string(p)) {
			return string(p), true
		}
	}

	return trimmed, false
}
