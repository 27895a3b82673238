package judge

import (
	"strings"

	"github.com/kimday0326/boj-editor/api/schemas"
)

// languageAliases maps editor display names to the names the judge's submit
// form uses, where they differ.
var languageAliases = map[string]string{
	"Node.js": "node.js",
}

// FindLanguageID resolves a display name against the scraped language
// options. Exact name match wins; otherwise the first option whose name
// contains the alias is taken. Returns "" when nothing matches.
func FindLanguageID(options []schemas.LanguageOption, displayName string) string {
	name := displayName
	if alias, ok := languageAliases[displayName]; ok {
		name = alias
	}

	for _, opt := range options {
		if opt.Name == name {
			return opt.ID
		}
	}
	for _, opt := range options {
		if strings.Contains(opt.Name, name) {
			return opt.ID
		}
	}
	return ""
}
