package extract

import "testing"

func TestParsePrice(t *testing.T) {
	cases := []struct {
		text     string
		amount   float64
		currency string
	}{
		{"$42.50", 42.50, "USD"},
		{"£18.00", 18.00, "GBP"},
		{"€ 21,90", 21.90, "EUR"},
		{"1.234,56 €", 1234.56, "EUR"},
		{"1,234.56 USD", 1234.56, "USD"},
		{"42.50 USD", 42.50, "USD"},
		{"Price: 19,95 EUR / metre", 19.95, "EUR"},
		{"¥1200", 1200, "¥"},
		{"199 kr", 199, "kr"},
		{"12", 12, ""},
		{"sold out", 0, ""},
		{"", 0, ""},
	}

	for _, tc := range cases {
		amount, currency := ParsePrice(tc.text)
		if amount != tc.amount || currency != tc.currency {
			t.Errorf("ParsePrice(%q) = (%v, %q), expected (%v, %q)",
				tc.text, amount, currency, tc.amount, tc.currency)
		}
	}
}

func TestParseAmountStyles(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"42.50", 42.50, true},
		{"21,90", 21.90, true},
		{"1.234", 1234, true},
		{"1,234", 1234, true},
		{"4.50", 4.50, true},
		{"0", 0, false},
	}

	for _, tc := range cases {
		got, ok := parseAmount(tc.in)
		if got != tc.want || ok != tc.ok {
			t.Errorf("parseAmount(%q) = (%v, %v), expected (%v, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}
