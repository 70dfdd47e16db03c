package prompt

import (
	"strings"
	"testing"
)

func TestFourO_ColorWithHex(t *testing.T) {
	got := FourO(FourOOptions{Hairstyle: "bob cut", Haircolor: "auburn", HaircolorHex: "#A52A2A"})
	want := "Change the current hairstyle to a bob cut with auburn hair color (hex: #A52A2A)."
	if !strings.HasPrefix(got, want) {
		t.Errorf("first line = %q, want prefix %q", got, want)
	}
}

func TestFourO_NoColorKeepsOriginal(t *testing.T) {
	got := FourO(FourOOptions{Hairstyle: "pixie cut"})
	want := "Change the current hairstyle to a pixie cut and keep the person hair color and skin tone."
	if !strings.HasPrefix(got, want) {
		t.Errorf("first line = %q, want prefix %q", got, want)
	}
	if strings.Contains(got, "hex") {
		t.Error("prompt mentions hex without a color")
	}
}

func TestFourO_AttachmentOrdering(t *testing.T) {
	tests := []struct {
		name       string
		style      bool
		color      bool
		wantSecond string
		wantThird  bool
	}{
		{"style only", true, false, "second image attachment as the hairstyle reference", false},
		{"color only", false, true, "second image attachment as a hair color reference", false},
		{"both", true, true, "second image attachment as the hairstyle reference", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := FourO(FourOOptions{
				Hairstyle:          "bob cut",
				WithStyleReference: tc.style,
				WithColorReference: tc.color,
			})
			if !strings.Contains(got, tc.wantSecond) {
				t.Errorf("prompt missing %q:\n%s", tc.wantSecond, got)
			}
			hasThird := strings.Contains(got, "third image attachment as a color reference")
			if hasThird != tc.wantThird {
				t.Errorf("third-slot reference = %v, want %v:\n%s", hasThird, tc.wantThird, got)
			}
		})
	}
}

func TestFourO_DetailAppendsSpecialRequests(t *testing.T) {
	got := FourO(FourOOptions{Hairstyle: "bob cut", Detail: "add subtle waves"})
	if !strings.Contains(got, "\n\nSpecial Requests\nadd subtle waves") {
		t.Errorf("special requests block missing:\n%s", got)
	}

	without := FourO(FourOOptions{Hairstyle: "bob cut"})
	if strings.Contains(without, "Special Requests") {
		t.Error("special requests block present without detail")
	}
}

func TestFourO_AlwaysConstrainsIdentity(t *testing.T) {
	got := FourO(FourOOptions{Hairstyle: "bob cut"})
	for _, want := range []string{
		"Keep the person's face, facial features, and expression exactly the same.",
		"The new hairstyle should look natural and realistic",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("prompt missing constraint %q", want)
		}
	}
}

func TestKontext_ColorVariants(t *testing.T) {
	withColor := Kontext(KontextOptions{Hairstyle: "man bun", Haircolor: "platinum blonde"})
	if !strings.HasPrefix(withColor, "Change the current hairstyle to a man bun with platinum blonde hair color.") {
		t.Errorf("unexpected first line:\n%s", withColor)
	}

	noColor := Kontext(KontextOptions{Hairstyle: "man bun"})
	if !strings.HasPrefix(noColor, "Change the current hairstyle to a man bun and keep the person hair color.") {
		t.Errorf("unexpected first line:\n%s", noColor)
	}
}

func TestKontext_PreservesBackground(t *testing.T) {
	got := Kontext(KontextOptions{Hairstyle: "man bun"})
	if !strings.Contains(got, "Maintain the rest of the image the same") {
		t.Errorf("background constraint missing:\n%s", got)
	}
}

func TestKontext_Detail(t *testing.T) {
	got := Kontext(KontextOptions{Hairstyle: "man bun", Detail: "slightly messy"})
	if !strings.HasSuffix(got, "Other ideas about how to edit my image: slightly messy") {
		t.Errorf("detail line missing:\n%s", got)
	}
}

func TestBuildersAreDeterministic(t *testing.T) {
	opts := FourOOptions{Hairstyle: "bob cut", Haircolor: "auburn", WithStyleReference: true, Detail: "x"}
	if FourO(opts) != FourO(opts) {
		t.Error("FourO is not deterministic")
	}
}
