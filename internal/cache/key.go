package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

const keyPrefix = "strava"

// Key derives a deterministic cache key from the logical request. Params
// are serialized in sorted order so logically-equal requests hit the same
// entry regardless of insertion order.
func Key(athleteID int64, endpoint string, params url.Values) string {
	var b strings.Builder
	b.WriteString(endpoint)

	if len(params) > 0 {
		names := make([]string, 0, len(params))
		for name := range params {
			names = append(names, name)
		}
		sort.Strings(names)

		b.WriteByte('?')
		for i, name := range names {
			if i > 0 {
				b.WriteByte('&')
			}
			values := append([]string(nil), params[name]...)
			sort.Strings(values)
			for j, v := range values {
				if j > 0 {
					b.WriteByte('&')
				}
				b.WriteString(name)
				b.WriteByte('=')
				b.WriteString(v)
			}
		}
	}

	sum := sha256.Sum256([]byte(b.String()))
	hash := hex.EncodeToString(sum[:])[:16]

	segment := strings.Trim(strings.ReplaceAll(endpoint, "/", ":"), ":")
	return keyPrefix + ":" + formatAthleteID(athleteID) + ":" + segment + ":" + hash
}

func formatAthleteID(id int64) string {
	if id <= 0 {
		return "anon"
	}
	return strconv.FormatInt(id, 10)
}
