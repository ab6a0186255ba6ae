package types

import "testing"

func TestCanonicalURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"HTTPS://Shop.Example.COM/Fabric/Linen", "https://shop.example.com/Fabric/Linen"},
		{"https://shop.example.com/fabric/linen/", "https://shop.example.com/fabric/linen"},
		{"https://shop.example.com/fabric/linen#reviews", "https://shop.example.com/fabric/linen"},
		{"https://shop.example.com:443/fabric", "https://shop.example.com/fabric"},
		{"http://shop.example.com:80/fabric", "http://shop.example.com/fabric"},
		{"http://shop.example.com:8080/fabric", "http://shop.example.com:8080/fabric"},
		{"https://shop.example.com/list?b=2&a=1", "https://shop.example.com/list?a=1&b=2"},
		{"https://shop.example.com", "https://shop.example.com/"},
		{"https://shop.example.com/", "https://shop.example.com/"},
	}

	for _, tc := range cases {
		if got := CanonicalURL(tc.in); got != tc.want {
			t.Errorf("CanonicalURL(%q) = %q, expected %q", tc.in, got, tc.want)
		}
	}
}

func TestCanonicalURLEquivalence(t *testing.T) {
	a := CanonicalURL("https://Shop.Example.com/fabric/wool/?order=new&p=1#top")
	b := CanonicalURL("https://shop.example.com/fabric/wool?p=1&order=new")
	if a != b {
		t.Errorf("equivalent URLs canonicalize differently: %q vs %q", a, b)
	}
}

func TestValidateURL(t *testing.T) {
	valid := []string{
		"https://shop.example.com/fabric",
		"http://localhost:8080/page",
	}
	for _, u := range valid {
		if err := ValidateURL(u); err != nil {
			t.Errorf("ValidateURL(%q) = %v, expected nil", u, err)
		}
	}

	invalid := []string{
		"",
		"not-a-url",
		"ftp://example.com/file",
		"/relative/path",
	}
	for _, u := range invalid {
		if err := ValidateURL(u); err == nil {
			t.Errorf("ValidateURL(%q) = nil, expected error", u)
		}
	}
}

func TestOrigin(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"https://www.fabricshop.com/product/1", "fabricshop.com"},
		{"https://shop.example.co.uk/x", "shop.example.co.uk"},
		{"not a url at all \x7f", ""},
	}
	for _, tc := range cases {
		if got := Origin(tc.in); got != tc.want {
			t.Errorf("Origin(%q) = %q, expected %q", tc.in, got, tc.want)
		}
	}
}

func TestRatingValid(t *testing.T) {
	for _, r := range []Rating{RatingUnrated, RatingYes, RatingMaybe, RatingNo} {
		if !r.Valid() {
			t.Errorf("expected %q to be valid", r)
		}
	}
	if Rating("great").Valid() {
		t.Error("expected unknown rating to be invalid")
	}
}
