package update

import (
	"fmt"
	"net/url"
	"strings"
)

// Roles used when rejecting URLs, for diagnostics.
const (
	RoleAppcastFeed  = "appcast feed"
	RoleReleaseNotes = "release notes"
	RoleUpdateFile   = "update file"
)

// URLPolicy rejects URLs whose scheme is not allow-listed
type URLPolicy struct {
	AllowedSchemes []string // Defaults to https only
}

// Check returns a KindInsecureURL error if rawURL may not be used for role.
// It never touches the network.
func (p URLPolicy) Check(rawURL, role string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return newError(KindInsecureURL, fmt.Sprintf("invalid %s URL %q", role, rawURL), err)
	}

	scheme := strings.ToLower(u.Scheme)
	for _, allowed := range p.schemes() {
		if scheme == strings.ToLower(allowed) {
			return nil
		}
	}

	return newError(KindInsecureURL, fmt.Sprintf("refusing to use insecure %s URL %q (scheme %q not allowed)", role, rawURL, u.Scheme), nil)
}

func (p URLPolicy) schemes() []string {
	if len(p.AllowedSchemes) == 0 {
		return []string{"https"}
	}
	return p.AllowedSchemes
}
