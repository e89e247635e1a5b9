// Package images guarantees a displayable image URL for every product.
package images

import (
	"fmt"
	"html"
	"net/url"
	"strings"
)

// PlaceholderDomains hosts known to serve placeholder art; candidates from
// them are skipped in favour of the generated fallback.
var PlaceholderDomains = []string{"example.com"}

// searchMediaHost is the shopping-search provider's own media CDN. Images
// hosted there expire, so any other candidate wins first.
const searchMediaHost = "serpapi.com"

// Resolver normalizes and ranks image candidates.
type Resolver struct {
	// ForceHTTPS upgrades plain http candidates to https unless the host
	// is local/loopback.
	ForceHTTPS bool
}

// Normalize trims a candidate and upgrades its scheme. Empty or non-string
// shapes collapse to "".
func (r Resolver) Normalize(candidate string) string {
	trimmed := strings.TrimSpace(candidate)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "//") {
		return "https:" + trimmed
	}
	if strings.HasPrefix(trimmed, "http://") && r.ForceHTTPS {
		host := hostOf(trimmed)
		if host != "" && !isLocalHost(host) {
			return "https://" + strings.TrimPrefix(trimmed, "http://")
		}
	}
	return trimmed
}

// Pick returns the most suitable candidate: the first normalized URL not
// hosted on the search provider's media host, else the first one that is,
// else "".
func (r Resolver) Pick(candidates []string) string {
	var preferred, fallback []string
	for _, candidate := range candidates {
		normalized := r.Normalize(candidate)
		if normalized == "" {
			continue
		}
		if isSearchMediaHost(normalized) {
			fallback = append(fallback, normalized)
		} else {
			preferred = append(preferred, normalized)
		}
	}
	if len(preferred) > 0 {
		return preferred[0]
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}

// IsPlaceholder reports whether a candidate is unusable: empty, or hosted
// on a known placeholder domain. Data URLs are always usable.
func (r Resolver) IsPlaceholder(candidate string) bool {
	normalized := r.Normalize(candidate)
	if normalized == "" {
		return true
	}
	if strings.HasPrefix(normalized, "data:") {
		return false
	}
	host := hostOf(normalized)
	if host == "" {
		return false
	}
	for _, domain := range PlaceholderDomains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// Resolve never returns empty: when no usable candidate exists it
// synthesizes an inline SVG placeholder carrying the brand and name.
func (r Resolver) Resolve(candidates []string, name, brand string) string {
	if candidate := r.Pick(candidates); candidate != "" && !r.IsPlaceholder(candidate) {
		return candidate
	}
	return Placeholder(name, brand)
}

// Placeholder builds a deterministic vector image as a data URL, with the
// brand as headline and the product name below it.
func Placeholder(name, brand string) string {
	brandLabel := strings.TrimSpace(brand)
	if brandLabel == "" {
		brandLabel = "Protéines"
	}
	nameLabel := strings.TrimSpace(name)
	if nameLabel == "" {
		nameLabel = "Comparateur"
	}

	primary := html.EscapeString(truncate(brandLabel, 28))
	secondary := html.EscapeString(truncate(nameLabel, 48))

	svg := fmt.Sprintf(`
<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 600 400' preserveAspectRatio='xMidYMid meet'>
  <defs>
    <linearGradient id='g' x1='0%%' y1='0%%' x2='100%%' y2='100%%'>
      <stop offset='0%%' stop-color='#0f172a'/>
      <stop offset='100%%' stop-color='#1f2937'/>
    </linearGradient>
  </defs>
  <rect width='600' height='400' rx='32' fill='url(#g)'/>
  <text x='50%%' y='45%%' fill='#fbbf24' font-family='"Segoe UI", "Helvetica Neue", sans-serif' font-size='40' font-weight='600' text-anchor='middle'>%s</text>
  <text x='50%%' y='63%%' fill='#e2e8f0' font-family='"Segoe UI", "Helvetica Neue", sans-serif' font-size='26' text-anchor='middle'>%s</text>
</svg>
`, primary, secondary)

	return "data:image/svg+xml," + url.PathEscape(svg)
}

func isSearchMediaHost(raw string) bool {
	host := hostOf(raw)
	return host == searchMediaHost || strings.HasSuffix(host, "."+searchMediaHost)
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func isLocalHost(host string) bool {
	return host == "localhost" ||
		strings.HasPrefix(host, "127.") ||
		strings.HasSuffix(host, ".local")
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
