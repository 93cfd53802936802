package utils

// RGBComponents splits a packed 24-bit RGB integer into its channels.
// MoonReader stores colors as signed ARGB integers; only the low 24 bits
// carry color information.
func RGBComponents(color int) (r, g, b uint8) {
	c := uint32(color)
	return uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// CalloutForColor classifies a packed RGB highlight color into an Obsidian
// callout type by dominant channel. The checks are order-sensitive and the
// first match wins: yellow maps to quote, blue to info, green to tip and
// red/orange to warning. Anything unclassifiable falls back to quote.
func CalloutForColor(color int) string {
	r, g, b := RGBComponents(color)

	switch {
	case r > 180 && g > 180 && b < 120:
		return "quote" // yellow
	case b > r && b > g:
		return "info" // blue
	case g > r && g > b:
		return "tip" // green
	case r > g && r > b:
		return "warning" // red / orange
	default:
		return "quote"
	}
}
