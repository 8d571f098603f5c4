package antibot

import (
	"math/rand"
	"net/http"
)

// Header sets that make requests resemble an interactive browser session.
// The user agents are a small pool of current desktop browsers; one is picked
// per provider instance and kept stable, since a session whose user agent
// changes between requests is its own fingerprint.

var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:127.0) Gecko/20100101 Firefox/127.0",
}

func pickUserAgent() string {
	return userAgents[rand.Intn(len(userAgents))]
}

// applyStealthHeaders sets the headers a real browser sends on a top-level
// navigation. The referer carries the previous page in the session, forming
// the click chain a human would produce.
func applyStealthHeaders(req *http.Request, userAgent, referer string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "same-origin")
	req.Header.Set("Sec-Fetch-User", "?1")

	if referer != "" {
		req.Header.Set("Referer", referer)
	} else {
		req.Header.Set("Sec-Fetch-Site", "none")
	}
}
