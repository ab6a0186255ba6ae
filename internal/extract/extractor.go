package extract

import (
	"bytes"
	"log/slog"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/kmarsden/fabricstash/internal/types"
)

// Extractor parses a fetched product detail page into a Fabric record.
// Each field has an ordered list of extraction strategies; the first
// non-empty match wins. Only the name is mandatory: a page with no
// extractable name fails with ExtractError, everything else degrades
// to the field's zero value.
type Extractor struct {
	logger *slog.Logger
}

// New creates a detail extractor.
func New(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger.With("component", "extractor")}
}

// pageCtx bundles the parsed views of one page that strategies draw from.
type pageCtx struct {
	doc  *goquery.Document
	node *html.Node // root for XPath strategies; nil if body didn't re-parse
	text string     // full page text, whitespace-collapsed
	url  string
}

// strategy produces a candidate value for a field, or "" on no match.
type strategy func(*pageCtx) string

// Extract builds a Fabric from a detail page. The returned record has
// no ID and the default unrated rating; persistence is the caller's job.
func (e *Extractor) Extract(page *types.Page) (*types.Fabric, error) {
	doc, err := page.Document()
	if err != nil {
		return nil, &types.ExtractError{URL: page.FinalURL, Field: "document"}
	}

	ctx := &pageCtx{
		doc: doc,
		url: page.FinalURL,
	}
	if node, err := htmlquery.Parse(bytes.NewReader(page.Body)); err == nil {
		ctx.node = node
	}
	ctx.text = CollapseWhitespace(doc.Text())

	name := firstMatch(ctx, nameStrategies)
	if name == "" {
		return nil, &types.ExtractError{URL: page.FinalURL, Field: "name"}
	}

	fabric := &types.Fabric{
		Name:   name,
		URL:    types.CanonicalURL(page.FinalURL),
		Origin: types.Origin(page.FinalURL),
		Rating: types.RatingUnrated,
	}

	if priceText := firstMatch(ctx, priceStrategies); priceText != "" {
		fabric.Price, fabric.Currency = ParsePrice(priceText)
		if fabric.Price > 0 && fabric.Currency == "" {
			if code, ok := doc.Find("meta[itemprop=\"priceCurrency\"]").First().Attr("content"); ok {
				fabric.Currency = strings.ToUpper(CollapseWhitespace(code))
			}
		}
	}

	fabric.Composition = firstMatch(ctx, compositionStrategies)
	fabric.Description = firstMatch(ctx, descriptionStrategies)
	fabric.Width = firstMatch(ctx, widthStrategies)
	fabric.Weight = firstMatch(ctx, weightStrategies)
	fabric.Color = firstMatch(ctx, colorStrategies)
	fabric.Pattern = firstMatch(ctx, patternStrategies)
	fabric.Brand = firstMatch(ctx, brandStrategies)
	fabric.Care = firstMatch(ctx, careStrategies)

	fabric.ImageURLs = collectImageURLs(doc, page.FinalURL)

	e.logger.Debug("detail extracted",
		"url", fabric.URL,
		"name", fabric.Name,
		"price", fabric.Price,
		"currency", fabric.Currency,
		"images", len(fabric.ImageURLs),
	)

	return fabric, nil
}

// firstMatch runs strategies in order and returns the first non-empty,
// cleaned value.
func firstMatch(ctx *pageCtx, strategies []strategy) string {
	for _, s := range strategies {
		if v := CollapseWhitespace(s(ctx)); v != "" {
			return v
		}
	}
	return ""
}

// --- Field strategy tables ---

var nameStrategies = []strategy{
	cssText("h1"),
	cssText(".product-name, .product-title, [class*=\"product-name\"], [class*=\"product-title\"]"),
	cssAttr("meta[property=\"og:title\"]", "content"),
	xpathText("//nav[contains(@class,'breadcrumb')]//li[last()]"),
	titleTag,
}

var priceStrategies = []strategy{
	cssAttr("meta[itemprop=\"price\"]", "content"),
	cssText("[itemprop=\"price\"]"),
	cssText(".price, .product-price, [class*=\"price\"]"),
	cssText("[id*=\"price\"]"),
	regexText(`[$£€]\s?\d[\d.,\s]*`),
}

var compositionStrategies = []strategy{
	cssText(".composition, [class*=\"composition\"], [class*=\"material\"]"),
	labelledValue("Composition"),
	labelledValue("Material"),
	regexText(`(?i)(?:\d{1,3}%\s*(?:virgin\s+)?(?:wool|cotton|silk|linen|cashmere|viscose|polyester|polyamide|elastane|bamboo|modal|tencel)(?:[,/\s]*)?)+`),
}

var descriptionStrategies = []strategy{
	cssText(".product-description, .description"),
	cssText("[class*=\"description\"]"),
	cssAttr("meta[name=\"description\"]", "content"),
}

var widthStrategies = []strategy{
	labelledValue("Width"),
	regexText(`(?i)width[:\s]+(\d+(?:[.,]\d+)?\s*(?:cm|mm|in|"))`),
}

var weightStrategies = []strategy{
	labelledValue("Weight"),
	regexText(`(?i)weight[:\s]+(\d+(?:[.,]\d+)?\s*(?:g/m²|g/m2|g/m|gsm|oz))`),
}

var colorStrategies = []strategy{
	cssText("[itemprop=\"color\"]"),
	labelledValue("Color"),
	labelledValue("Colour"),
}

var patternStrategies = []strategy{
	labelledValue("Pattern"),
	labelledValue("Design"),
}

var brandStrategies = []strategy{
	cssText("[itemprop=\"brand\"]"),
	cssAttr("meta[property=\"og:brand\"]", "content"),
	labelledValue("Brand"),
}

var careStrategies = []strategy{
	cssText(".care, [class*=\"care-instructions\"]"),
	labelledValue("Care"),
}

// --- Strategy constructors ---

// cssText takes the text of the first element matching the selector.
func cssText(selector string) strategy {
	return func(ctx *pageCtx) string {
		return ctx.doc.Find(selector).First().Text()
	}
}

// cssAttr takes an attribute of the first element matching the selector.
func cssAttr(selector, attr string) strategy {
	return func(ctx *pageCtx) string {
		v, _ := ctx.doc.Find(selector).First().Attr(attr)
		return v
	}
}

// xpathText evaluates an XPath expression against the page.
func xpathText(expr string) strategy {
	return func(ctx *pageCtx) string {
		if ctx.node == nil {
			return ""
		}
		n, err := htmlquery.Query(ctx.node, expr)
		if err != nil || n == nil {
			return ""
		}
		return htmlquery.InnerText(n)
	}
}

// regexText matches a pattern against the collapsed page text. With a
// capture group the group wins, otherwise the whole match.
func regexText(pattern string) strategy {
	re := regexp.MustCompile(pattern)
	return func(ctx *pageCtx) string {
		m := re.FindStringSubmatch(ctx.text)
		if m == nil {
			return ""
		}
		if len(m) > 1 && m[1] != "" {
			return m[1]
		}
		return m[0]
	}
}

// labelledValue finds "Label: value" pairs either in definition lists
// and spec tables or in the raw page text.
func labelledValue(label string) strategy {
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label) + `\s*[:\s]\s*([^|;\n]{1,80}?)(?:\s{2,}|$|[|;])`)
	return func(ctx *pageCtx) string {
		var out string
		ctx.doc.Find("dt, th, .spec-label, [class*=\"label\"]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
			if !strings.EqualFold(CollapseWhitespace(sel.Text()), label) {
				return true
			}
			val := sel.Next()
			if val.Length() > 0 {
				out = val.Text()
				return false
			}
			return true
		})
		if out != "" {
			return out
		}
		if m := re.FindStringSubmatch(ctx.text); m != nil {
			return m[1]
		}
		return ""
	}
}

// titleTag takes the <title> element, trimming a "| Site Name" suffix.
func titleTag(ctx *pageCtx) string {
	title := ctx.doc.Find("title").First().Text()
	for _, sep := range []string{"|", "–", " - "} {
		if i := strings.Index(title, sep); i > 0 {
			title = title[:i]
			break
		}
	}
	return title
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// CollapseWhitespace trims text and collapses runs of whitespace to a
// single space.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}
