// Package appcast reads Sparkle-style RSS update feeds.
package appcast

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	logging "github.com/ipfs/go-log/v2"

	"github.com/adamancini/updraft/internal/update"
)

var log = logging.Logger("updraft/appcast")

// SparkleNamespace is the XML namespace of the sparkle: elements and attributes.
const SparkleNamespace = "http://www.andymatuschak.org/xml-namespaces/sparkle"

// ErrNoChannel is returned for documents without an RSS channel.
var ErrNoChannel = errors.New("appcast has no channel")

type feed struct {
	XMLName xml.Name `xml:"rss"`
	Channel *channel `xml:"channel"`
}

type channel struct {
	Title string `xml:"title"`
	Items []item `xml:"item"`
}

type item struct {
	Title            string      `xml:"title"`
	Description      string      `xml:"description"`
	Link             string      `xml:"link"`
	ReleaseNotesLink string      `xml:"http://www.andymatuschak.org/xml-namespaces/sparkle releaseNotesLink"`
	Version          string      `xml:"http://www.andymatuschak.org/xml-namespaces/sparkle version"`
	ShortVersion     string      `xml:"http://www.andymatuschak.org/xml-namespaces/sparkle shortVersionString"`
	SilentInstall    string      `xml:"http://www.andymatuschak.org/xml-namespaces/sparkle silentInstall"`
	Enclosures       []enclosure `xml:"enclosure"`
}

type enclosure struct {
	URL          string `xml:"url,attr"`
	Version      string `xml:"http://www.andymatuschak.org/xml-namespaces/sparkle version,attr"`
	ShortVersion string `xml:"http://www.andymatuschak.org/xml-namespaces/sparkle shortVersionString,attr"`
	OS           string `xml:"http://www.andymatuschak.org/xml-namespaces/sparkle os,attr"`
	EdSignature  string `xml:"http://www.andymatuschak.org/xml-namespaces/sparkle edSignature,attr"`
	DSASignature string `xml:"http://www.andymatuschak.org/xml-namespaces/sparkle dsaSignature,attr"`
	Silent       string `xml:"http://www.andymatuschak.org/xml-namespaces/sparkle silent,attr"`
}

// Parser implements update.FeedParser
type Parser struct {
	Platform update.Platform // Zero value means the running platform
}

var _ update.FeedParser = Parser{}

// NewParser creates a parser for the running platform
func NewParser() Parser {
	return Parser{Platform: update.Detect()}
}

// Parse returns the newest release in data that applies to the parser's
// platform. A feed with no applicable release yields an empty Appcast.
func (p Parser) Parse(data []byte) (update.Appcast, error) {
	platform := p.Platform
	if platform.OS == "" {
		platform = update.Detect()
	}

	var doc feed
	decoder := xml.NewDecoder(bytes.NewReader(data))
	if err := decoder.Decode(&doc); err != nil {
		return update.Appcast{}, fmt.Errorf("failed to parse appcast: %w", err)
	}
	if doc.Channel == nil {
		return update.Appcast{}, ErrNoChannel
	}

	var best update.Appcast
	for _, it := range doc.Channel.Items {
		candidate, ok := it.appcastFor(platform)
		if !ok {
			continue
		}
		if best.Version == "" || update.CompareVersions(candidate.Version, best.Version) > 0 {
			best = candidate
		}
	}

	if best.Version == "" {
		log.Debugw("no applicable release in appcast", "items", len(doc.Channel.Items), "platform", platform)
	}
	return best, nil
}

// appcastFor converts an item, picking its first enclosure for platform.
// Items whose enclosures all target other platforms are not applicable.
func (it item) appcastFor(platform update.Platform) (update.Appcast, bool) {
	a := update.Appcast{
		Version:         strings.TrimSpace(it.Version),
		ShortVersion:    strings.TrimSpace(it.ShortVersion),
		Title:           strings.TrimSpace(it.Title),
		Description:     strings.TrimSpace(it.Description),
		WebBrowserURL:   strings.TrimSpace(it.Link),
		ReleaseNotesURL: strings.TrimSpace(it.ReleaseNotesLink),
		SilentInstall:   parseBool(it.SilentInstall),
	}

	if len(it.Enclosures) > 0 {
		enc, ok := pickEnclosure(it.Enclosures, platform)
		if !ok {
			return update.Appcast{}, false
		}
		a.DownloadURL = strings.TrimSpace(enc.URL)
		a.OS = enc.OS
		if v := strings.TrimSpace(enc.Version); v != "" {
			a.Version = v
		}
		if v := strings.TrimSpace(enc.ShortVersion); v != "" {
			a.ShortVersion = v
		}
		a.Signature = strings.TrimSpace(enc.EdSignature)
		if a.Signature == "" {
			a.Signature = strings.TrimSpace(enc.DSASignature)
		}
		if parseBool(enc.Silent) {
			a.SilentInstall = true
		}
	}

	if a.Version == "" {
		return update.Appcast{}, false
	}
	return a, true
}

func pickEnclosure(encs []enclosure, platform update.Platform) (enclosure, bool) {
	for _, enc := range encs {
		if platform.Matches(enc.OS) {
			return enc, true
		}
	}
	return enclosure{}, false
}

func parseBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "1":
		return true
	default:
		return false
	}
}
