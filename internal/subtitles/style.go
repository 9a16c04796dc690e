package subtitles

import (
	"fmt"
	"strings"

	"subburn/internal/services"
)

// Alignment codes use the ASS numpad layout consumed by the renderer.
const (
	AlignBottom = 2
	AlignCenter = 5
	AlignTop    = 8
)

const (
	defaultFontName = "Arial"
	defaultFontSize = 28
	defaultPrimary  = "ffffff"

	// colorPrefix is the fixed alpha prefix the renderer expects in front of
	// the BGR channel bytes.
	colorPrefix = "&H00"
)

// Options carries the optional user-supplied style fields from the upload
// form. Empty strings mean "not supplied".
type Options struct {
	FontName     string
	FontSize     int
	Bold         bool
	PrimaryColor string
	OutlineColor string
	Alignment    string
}

// Style is the resolved renderer-consumable style descriptor.
type Style struct {
	FontName      string
	FontSize      int
	Bold          bool
	PrimaryColour string
	// OutlineColour is empty when the user supplied no outline color; the
	// attribute is then omitted from the renderer style string entirely,
	// which renders differently from any explicit value.
	OutlineColour string
	Alignment     int
}

// Resolve merges user options with defaults and converts colors into the
// renderer's prefixed BGR form.
func Resolve(opts Options) (Style, error) {
	style := Style{
		FontName:  strings.TrimSpace(opts.FontName),
		FontSize:  opts.FontSize,
		Bold:      opts.Bold,
		Alignment: mapAlignment(opts.Alignment),
	}
	if style.FontName == "" {
		style.FontName = defaultFontName
	}
	if style.FontSize <= 0 {
		style.FontSize = defaultFontSize
	}

	primary := strings.TrimSpace(opts.PrimaryColor)
	if primary == "" {
		primary = defaultPrimary
	}
	converted, err := HexToRendererColor(primary)
	if err != nil {
		return Style{}, services.Wrap(services.ErrValidation, "style", "primary color", "", err)
	}
	style.PrimaryColour = converted

	if outline := strings.TrimSpace(opts.OutlineColor); outline != "" {
		converted, err := HexToRendererColor(outline)
		if err != nil {
			return Style{}, services.Wrap(services.ErrValidation, "style", "outline color", "", err)
		}
		style.OutlineColour = converted
	}

	return style, nil
}

// mapAlignment resolves a user-facing alignment label to a renderer code.
// Unknown or absent labels fall back to the bottom of the screen.
func mapAlignment(label string) int {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "top":
		return AlignTop
	case "center":
		return AlignCenter
	case "bottom":
		return AlignBottom
	default:
		return AlignBottom
	}
}

// HexToRendererColor converts a 6-hex-digit RGB string into the renderer's
// prefixed reversed-channel form: RRGGBB becomes &H00BBGGRR.
func HexToRendererColor(hex string) (string, error) {
	hex = strings.TrimPrefix(strings.TrimSpace(hex), "#")
	if len(hex) != 6 {
		return "", fmt.Errorf("color %q: want 6 hex digits", hex)
	}
	for _, r := range hex {
		if !isHexDigit(r) {
			return "", fmt.Errorf("color %q: invalid hex digit %q", hex, r)
		}
	}
	r, g, b := hex[0:2], hex[2:4], hex[4:6]
	return colorPrefix + strings.ToLower(b+g+r), nil
}

func isHexDigit(r rune) bool {
	switch {
	case r >= '0' && r <= '9':
		return true
	case r >= 'a' && r <= 'f':
		return true
	case r >= 'A' && r <= 'F':
		return true
	default:
		return false
	}
}

// ForceStyle renders the style as an ffmpeg subtitles filter force_style
// fragment. Values pass through escapeStyleValue so user-controlled fields
// cannot break out of the filter argument.
func (s Style) ForceStyle() string {
	parts := []string{
		"FontName=" + escapeStyleValue(s.FontName),
		fmt.Sprintf("FontSize=%d", s.FontSize),
		"PrimaryColour=" + s.PrimaryColour,
	}
	if s.OutlineColour != "" {
		parts = append(parts, "OutlineColour="+s.OutlineColour)
	}
	bold := 0
	if s.Bold {
		bold = -1
	}
	parts = append(parts,
		fmt.Sprintf("Bold=%d", bold),
		fmt.Sprintf("Alignment=%d", s.Alignment),
	)
	return strings.Join(parts, ",")
}

// escapeStyleValue strips characters that carry meaning inside an ffmpeg
// filter graph or an ASS style override from user-controlled values.
func escapeStyleValue(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch r {
		case ',', ':', ';', '\'', '"', '\\', '[', ']', '{', '}', '\n', '\r':
			continue
		default:
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}
