package browser

import (
	"fmt"
	"strings"
)

// TextXPath builds an XPath matching elements under body that directly own a
// text node containing text. Script and style contents never match.
func TextXPath(text string) string {
	return fmt.Sprintf(`//body//*[not(self::script or self::style)][text()[contains(., %s)]]`, xpathLiteral(text))
}

// xpathLiteral quotes s for XPath 1.0, which has no escape sequences
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}

	parts := strings.Split(s, `"`)
	args := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			args = append(args, `'"'`)
		}
		if part != "" {
			args = append(args, `"`+part+`"`)
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}
