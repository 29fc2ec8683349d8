package taxonomy

import "testing"

func TestClassify_KoreanNames(t *testing.T) {
	cases := []struct {
		name string
		want Category
	}{
		{"여성 와이드팬츠", Lower},
		{"니트 가디건", Upper},
		{"가죽 크로스백", Accessory},
		{"롱원피스", Dress},
		{"화이트 스니커즈", Shoes},
	}
	for _, tc := range cases {
		if got := Classify(tc.name); got != tc.want {
			t.Errorf("Classify(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestClassify_ShoesPriority(t *testing.T) {
	// WHAT: A name matching both a shoe keyword and another set resolves
	// to Shoes.
	// WHY: Keyword sets are evaluated in strict priority order; footwear
	// wins over apparel by design.
	cases := []string{
		"니트 부츠",         // shoes + upper
		"denim boots",   // lower + shoes
		"dress sneakers", // dress + shoes
	}
	for _, name := range cases {
		if got := Classify(name); got != Shoes {
			t.Errorf("Classify(%q) = %q, want Shoes", name, got)
		}
	}
}

func TestClassify_BagCompounds(t *testing.T) {
	// Compound bag names never contain the bare "가방" term, so they need
	// their own keywords.
	for _, name := range []string{"가죽 크로스백", "캔버스 토트백", "미니 숄더백", "데일리 백팩"} {
		if got := Classify(name); got != Accessory {
			t.Errorf("Classify(%q) = %q, want Accessory", name, got)
		}
	}
}

func TestClassify_AccessoryBeatsApparel(t *testing.T) {
	if got := Classify("니트 가방"); got != Accessory {
		t.Errorf("got %q, want Accessory", got)
	}
}

func TestClassify_NoMatchIsUnknown(t *testing.T) {
	for _, name := range []string{"", "기본 상품", "gift card"} {
		if got := Classify(name); got != Unknown {
			t.Errorf("Classify(%q) = %q, want Unknown", name, got)
		}
	}
}

func TestClassify_CaseInsensitive(t *testing.T) {
	if got := Classify("Wool COAT"); got != Upper {
		t.Errorf("got %q, want Upper", got)
	}
}

func TestMaskOffset(t *testing.T) {
	// Only Lower garments get the 100px offset hint.
	if got := MaskOffset(Lower); got != 100 {
		t.Errorf("MaskOffset(Lower) = %d, want 100", got)
	}
	for _, c := range []Category{Upper, Dress, Shoes, Accessory, Unknown} {
		if got := MaskOffset(c); got != 0 {
			t.Errorf("MaskOffset(%q) = %d, want 0", c, got)
		}
	}
}

func TestFittable(t *testing.T) {
	fittable := []Category{Upper, Lower, Dress}
	for _, c := range fittable {
		if !Fittable(c) {
			t.Errorf("Fittable(%q) = false, want true", c)
		}
	}
	for _, c := range []Category{Shoes, Accessory, Unknown} {
		if Fittable(c) {
			t.Errorf("Fittable(%q) = true, want false", c)
		}
	}
}

func TestParse_LocalizedLabels(t *testing.T) {
	cases := map[string]Category{
		"상의":    Upper,
		"하의":    Lower,
		"원피스":   Dress,
		"Upper": Upper,
		"junk":  Unknown,
		"":      Unknown,
	}
	for label, want := range cases {
		if got := Parse(label); got != want {
			t.Errorf("Parse(%q) = %q, want %q", label, got, want)
		}
	}
}
