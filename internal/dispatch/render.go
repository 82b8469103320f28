package dispatch

import "strings"

// missingValue is rendered for placeholders with no bound attribute, so one
// incomplete listing field never aborts the whole render.
const missingValue = "N/A"

// defaultTemplate is the fallback body used when the named template is not
// configured in the record store.
const defaultTemplate = "{title}\n\n{description}\n\n💰 {price}\n📍 {location}\n📞 {phone}"

// renderTemplate binds {name} placeholders to listing attributes.
//
// Unknown or empty attributes render as the sentinel; a lone '{' with no
// closing brace is kept literally.
func renderTemplate(body string, attrs map[string]string) string {
	var b strings.Builder
	b.Grow(len(body))

	for {
		open := strings.IndexByte(body, '{')
		if open < 0 {
			b.WriteString(body)
			return b.String()
		}
		closing := strings.IndexByte(body[open:], '}')
		if closing < 0 {
			b.WriteString(body)
			return b.String()
		}
		closing += open

		b.WriteString(body[:open])
		key := body[open+1 : closing]
		if v, ok := attrs[key]; ok && v != "" {
			b.WriteString(v)
		} else {
			b.WriteString(missingValue)
		}
		body = body[closing+1:]
	}
}
