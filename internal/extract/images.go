package extract

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// mediaSelectors locate product images in order of confidence. Earlier
// selectors look inside explicit product media regions; later ones
// admit any product-ish image on the page.
var mediaSelectors = []string{
	".product-image img",
	".product-photo img",
	".product-gallery img",
	".gallery img",
	"img[itemprop=\"image\"]",
	"main img[src*=\"product\"]",
	"img[src*=\"product\"]",
	"img[data-src*=\"product\"]",
	"[class*=\"product\"] img",
}

// lazyAttrs are attribute names used by lazy-loading image markup.
var lazyAttrs = []string{"src", "data-src", "data-lazy-src", "data-original"}

// skipFragments mark icons, logos, and other chrome we never want.
var skipFragments = []string{"icon", "logo", "avatar", "badge", "button", "sprite", "placeholder"}

// collectImageURLs gathers product image URLs from the page's media
// region, resolved to absolute URLs and de-duplicated, in document
// order. Falls back to the largest image on the page when no media
// region matches.
func collectImageURLs(doc *goquery.Document, baseURL string) []string {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var urls []string

	add := func(sel *goquery.Selection) {
		raw := imageAttr(sel)
		if raw == "" {
			return
		}
		abs := resolveURL(base, raw)
		if abs == "" || isChrome(abs) || tooSmall(sel) {
			return
		}
		if !seen[abs] {
			seen[abs] = true
			urls = append(urls, abs)
		}
	}

	for _, selector := range mediaSelectors {
		doc.Find(selector).Each(func(_ int, sel *goquery.Selection) {
			add(sel)
		})
		if len(urls) > 0 {
			break
		}
	}

	if len(urls) == 0 {
		if largest := largestImage(doc, base); largest != "" {
			urls = append(urls, largest)
		}
	}

	return urls
}

// imageAttr returns the first populated image URL attribute.
func imageAttr(sel *goquery.Selection) string {
	for _, attr := range lazyAttrs {
		if v, ok := sel.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// resolveURL absolutizes an image reference against the page URL.
func resolveURL(base *url.URL, raw string) string {
	if strings.HasPrefix(raw, "data:") {
		return ""
	}
	if strings.HasPrefix(raw, "//") {
		raw = base.Scheme + ":" + raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}

// isChrome filters out site chrome by URL fragment.
func isChrome(imgURL string) bool {
	lower := strings.ToLower(imgURL)
	for _, frag := range skipFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

// tooSmall rejects images with declared dimensions under 100px.
func tooSmall(sel *goquery.Selection) bool {
	w, okW := dimension(sel, "width")
	h, okH := dimension(sel, "height")
	if okW && okH {
		return w < 100 || h < 100
	}
	return false
}

func dimension(sel *goquery.Selection, attr string) (int, bool) {
	v, ok := sel.Attr(attr)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimSpace(v), "px"))
	if err != nil {
		return 0, false
	}
	return n, true
}

// largestImage returns the page image with the largest declared area.
// Images without dimensions count as a mid-size fallback.
func largestImage(doc *goquery.Document, base *url.URL) string {
	var best string
	var bestArea int

	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		raw := imageAttr(sel)
		if raw == "" {
			return
		}
		abs := resolveURL(base, raw)
		if abs == "" || isChrome(abs) {
			return
		}

		area := 10000 // undeclared dimensions rank above icons
		if w, okW := dimension(sel, "width"); okW {
			if h, okH := dimension(sel, "height"); okH {
				area = w * h
			}
		}
		if area > bestArea {
			bestArea = area
			best = abs
		}
	})

	return best
}
