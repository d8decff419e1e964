// Package webstore decides whether an input names a hosted extension and
// builds the deterministic download URL for it.
package webstore

import (
	"fmt"
	"net/url"
	"regexp"
)

const (
	endpoint     = "https://clients2.google.com/service/update2/crx"
	prodVersion  = "120.0.6099.109"
	acceptFormat = "crx2,crx3"

	// UserAgent mimics a desktop Chrome; the update service serves
	// interstitial HTML to unrecognized clients.
	UserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// idPattern matches a Chrome extension identifier: exactly 32 lowercase
// letters, not embedded in a longer lowercase run.
var idPattern = regexp.MustCompile(`(^|[^a-z])([a-z]{32})([^a-z]|$)`)

// ExtensionID extracts an extension identifier from input. It matches
// anywhere in the string, so full Web Store URLs work as inputs. A miss
// means the input should be treated as a local file path.
func ExtensionID(input string) (string, bool) {
	m := idPattern.FindStringSubmatch(input)
	if m == nil {
		return "", false
	}
	return m[2], true
}

// DownloadURL builds the update-service URL that redirects to the CRX
// artifact for id.
func DownloadURL(id string) string {
	q := url.Values{}
	q.Set("response", "redirect")
	q.Set("prodversion", prodVersion)
	q.Set("acceptformat", acceptFormat)
	q.Set("x", fmt.Sprintf("id=%s&installsource=ondemand&uc", id))
	return endpoint + "?" + q.Encode()
}
