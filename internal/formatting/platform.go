// Package formatting renders content items for each supported output platform.
package formatting

import (
	"fmt"
	"strings"
)

// Platform identifies one output channel
type Platform string

// Supported platforms
const (
	PlatformBlog       Platform = "blog"
	PlatformNewsletter Platform = "newsletter"
	PlatformFacebook   Platform = "facebook"
	PlatformTwitter    Platform = "twitter"
	PlatformLinkedIn   Platform = "linkedin"
	PlatformInstagram  Platform = "instagram"
	PlatformAd         Platform = "ad"
	PlatformShowNotes  Platform = "show_notes"
	PlatformWebsite    Platform = "website"
	PlatformSEO        Platform = "seo"
	PlatformEmail      Platform = "email"
)

// AllPlatforms returns every supported platform in declaration order
func AllPlatforms() []Platform {
	return []Platform{
		PlatformBlog,
		PlatformNewsletter,
		PlatformFacebook,
		PlatformTwitter,
		PlatformLinkedIn,
		PlatformInstagram,
		PlatformAd,
		PlatformShowNotes,
		PlatformWebsite,
		PlatformSEO,
		PlatformEmail,
	}
}

// ParsePlatform resolves a platform name, case-insensitively
func ParsePlatform(name string) (Platform, error) {
	p := Platform(strings.ToLower(strings.TrimSpace(name)))
	for _, known := range AllPlatforms() {
		if p == known {
			return p, nil
		}
	}
	return "", &UnsupportedPlatformError{Platform: name}
}

// UnsupportedPlatformError is returned for a platform outside the enumeration
type UnsupportedPlatformError struct {
	Platform string
}

func (e *UnsupportedPlatformError) Error() string {
	return fmt.Sprintf("unsupported platform: %q", e.Platform)
}
