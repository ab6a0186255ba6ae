package types

import (
	"net/url"
	"strings"
	"time"
)

// Rating is the user's verdict on a catalogued fabric.
type Rating string

const (
	RatingUnrated Rating = "unrated"
	RatingYes     Rating = "yes"
	RatingMaybe   Rating = "maybe"
	RatingNo      Rating = "no"
)

// Valid reports whether r is one of the four known ratings.
func (r Rating) Valid() bool {
	switch r {
	case RatingUnrated, RatingYes, RatingMaybe, RatingNo:
		return true
	}
	return false
}

// Fabric is a catalogued fabric product. The canonical source URL is the
// sole deduplication key; ID is assigned by the store on first insert.
type Fabric struct {
	ID     int64  `bson:"id"             json:"id"`
	Name   string `bson:"name"           json:"name"`
	URL    string `bson:"url"            json:"url"`
	Origin string `bson:"origin"         json:"origin"`
	Rating Rating `bson:"rating"         json:"rating"`

	Price    float64 `bson:"price,omitempty"    json:"price,omitempty"`
	Currency string  `bson:"currency,omitempty" json:"currency,omitempty"`

	Composition string `bson:"composition,omitempty" json:"composition,omitempty"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`
	Width       string `bson:"width,omitempty"       json:"width,omitempty"`
	Weight      string `bson:"weight,omitempty"      json:"weight,omitempty"`
	Color       string `bson:"color,omitempty"       json:"color,omitempty"`
	Pattern     string `bson:"pattern,omitempty"     json:"pattern,omitempty"`
	Brand       string `bson:"brand,omitempty"       json:"brand,omitempty"`
	Care        string `bson:"care,omitempty"        json:"care,omitempty"`
	ExtraInfo   string `bson:"extra_info,omitempty"  json:"extra_info,omitempty"`

	// ImageURLs are the source image URLs found on the product page,
	// in extraction order.
	ImageURLs []string `bson:"image_urls,omitempty" json:"image_urls,omitempty"`

	// ImagePaths are relative paths into the image store, in the same
	// order as ImageURLs minus any failed downloads.
	ImagePaths []string `bson:"image_paths,omitempty" json:"image_paths,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Origin derives the catalog origin (host without a www prefix) from a URL.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// HasPrice reports whether a price was extracted for this fabric.
// A zero price means the page had no parseable price element.
func (f *Fabric) HasPrice() bool {
	return f.Price > 0
}
