package bundler

import (
	"regexp"
	"strconv"
)

var placeholderPattern = regexp.MustCompile(`\[(\w+)(?::(\d+))?\]`)

// pathData is the set of values a filename template can reference.
type pathData struct {
	Name        string
	ID          string
	Ext         string
	Hash        string
	ContentHash string
}

// renderFilename substitutes [name], [id], [ext], [hash], [fullhash],
// [contenthash] and [chunkhash] placeholders. Hash placeholders accept a
// length, as in [contenthash:8]. Unknown placeholders are kept verbatim.
func renderFilename(tmpl string, data pathData) string {
	return placeholderPattern.ReplaceAllStringFunc(tmpl, func(match string) string {
		parts := placeholderPattern.FindStringSubmatch(match)
		var value string
		switch parts[1] {
		case "name":
			return data.Name
		case "id":
			return data.ID
		case "ext":
			return data.Ext
		case "hash", "fullhash":
			value = data.Hash
		case "contenthash", "chunkhash":
			value = data.ContentHash
		default:
			return match
		}
		if parts[2] != "" {
			if n, err := strconv.Atoi(parts[2]); err == nil && n < len(value) {
				value = value[:n]
			}
		}
		return value
	})
}
