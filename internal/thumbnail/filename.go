// internal/thumbnail/filename.go
package thumbnail

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// Cache filenames encode everything needed to judge an entry after a
// process restart: <modID>-<expiryUnixSeconds>-<maturity>.png. No
// auxiliary metadata store exists; a name that fails to decode is a miss.

const fileExt = ".png"

const (
	maturityNSFW = "nsfw"
	maturitySafe = "sfw"
)

// encodeName builds the canonical cache filename for an entry.
func encodeName(modID, expiry int64, nsfw bool) string {
	maturity := maturitySafe
	if nsfw {
		maturity = maturityNSFW
	}
	return fmt.Sprintf("%d-%d-%s%s", modID, expiry, maturity, fileExt)
}

// decodeName parses a cache filename back into its triple. The error
// marks a malformed name; callers treat that as a cache miss.
func decodeName(name string) (modID, expiry int64, nsfw bool, err error) {
	base := strings.TrimSuffix(filepath.Base(name), fileExt)
	parts := strings.Split(base, "-")
	if len(parts) != 3 {
		return 0, 0, false, fmt.Errorf("thumbnail: malformed cache name %q", name)
	}
	modID, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("thumbnail: malformed mod id in %q", name)
	}
	expiry, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("thumbnail: malformed expiry in %q", name)
	}
	return modID, expiry, strings.HasPrefix(parts[2], maturityNSFW), nil
}
