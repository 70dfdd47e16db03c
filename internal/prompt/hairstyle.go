// Package prompt builds the natural-language instructions sent to each
// generation backend. Builders are pure: same options, same string.
package prompt

import (
	"fmt"
	"strings"
)

// FourOOptions selects the wording of the gpt-4o instruction. The
// reference flags matter because the provider consumes image
// attachments positionally: user photo first, then the style reference,
// then the color reference.
type FourOOptions struct {
	Hairstyle          string
	Haircolor          string
	HaircolorHex       string
	WithStyleReference bool
	WithColorReference bool
	Detail             string
}

// FourO renders the gpt-4o hairstyle-change instruction.
func FourO(opts FourOOptions) string {
	var lines []string

	if opts.Haircolor != "" {
		hex := "."
		if opts.HaircolorHex != "" {
			hex = fmt.Sprintf(" (hex: %s).", opts.HaircolorHex)
		}
		lines = append(lines, fmt.Sprintf("Change the current hairstyle to a %s with %s hair color%s", opts.Hairstyle, opts.Haircolor, hex))
	} else {
		lines = append(lines, fmt.Sprintf("Change the current hairstyle to a %s and keep the person hair color and skin tone.", opts.Hairstyle))
	}

	if opts.WithStyleReference {
		lines = append(lines, "Use the second image attachment as the hairstyle reference. The first image attachment is the original photo of the user.")
	}
	if opts.WithColorReference {
		if opts.WithStyleReference {
			// Style reference occupies the second slot, pushing the
			// color reference to the third.
			lines = append(lines, "Use the third image attachment as a color reference")
		} else {
			lines = append(lines, "Use the second image attachment as a hair color reference. The first image attachment is the original photo of the user.")
		}
	}

	lines = append(lines,
		"Keep the person's face, facial features, and expression exactly the same.",
		"The new hairstyle should look natural and realistic, blending seamlessly with the original lighting and photo style.",
	)

	if opts.Detail != "" {
		lines = append(lines, "", "Special Requests", opts.Detail)
	}

	return strings.Join(lines, "\n")
}

// KontextOptions selects the wording of the flux-kontext instruction.
// Kontext takes a single input image, so there are no reference flags.
type KontextOptions struct {
	Hairstyle string
	Haircolor string
	Detail    string
}

// Kontext renders the flux-kontext hairstyle-change instruction.
func Kontext(opts KontextOptions) string {
	var lines []string

	if opts.Haircolor != "" {
		lines = append(lines, fmt.Sprintf("Change the current hairstyle to a %s with %s hair color.", opts.Hairstyle, opts.Haircolor))
	} else {
		lines = append(lines, fmt.Sprintf("Change the current hairstyle to a %s and keep the person hair color.", opts.Hairstyle))
	}

	lines = append(lines, "Maintain the rest of the image the same, and do not modify the background or the proportions of the character's body.")

	if opts.Detail != "" {
		lines = append(lines, "Other ideas about how to edit my image: "+opts.Detail)
	}

	return strings.Join(lines, "\n")
}
