package upload

import (
	"path"
	"strconv"
	"strings"
	"time"
)

const fallbackName = "upload"

// StoredName derives the on-disk name <basename><epoch-millis><ext> from a client supplied file name.
// Directory components are dropped, so the result always stays inside the upload directory.
func StoredName(original string, now time.Time) string {
	base, ext := splitName(original)
	return base + strconv.FormatInt(now.UnixMilli(), 10) + ext
}

// withSuffix inserts -n before the extension; n == 0 returns name unchanged.
func withSuffix(name string, n int) string {
	if n == 0 {
		return name
	}
	base, ext := splitName(name)
	return base + "-" + strconv.Itoa(n) + ext
}

func splitName(original string) (base, ext string) {
	name := path.Base(strings.ReplaceAll(original, "\\", "/"))
	switch name {
	case ".", "..", "/":
		name = fallbackName
	}

	ext = path.Ext(name)
	base = strings.TrimSuffix(name, ext)
	if base == "" {
		// dotfiles such as .env have no extension
		return name, ""
	}
	return base, ext
}
