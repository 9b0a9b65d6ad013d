// Package keys defines Redis key formats used by the caching layer.
package keys

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Key generate a cache key for the given parameters
func Key(layer string, res int, cell, filters string) string {
	layerNorm := sanitizeLayer(strings.TrimSpace(layer))
	filterText := normalizeFilters(filters)
	filterSafe := sanitizeForKey(filterText)

	const maxFilterTextLen = 160
	if len(filterSafe) > maxFilterTextLen {
		filterSafe = filterSafe[:maxFilterTextLen]
	}

	sum := xxhash.Sum64String(filterText)

	return fmt.Sprintf("%s:%d:%s:filters=%s:f=%016x", layerNorm, res, cell, filterSafe, sum)
}

// normalize spacing around operators
func normalizeFilters(s string) string {
	if s == "" {
		return ""
	}
	s = collapseASCIIWhitespace(strings.TrimSpace(s))
	re := regexp.MustCompile(`\s*([=<>!\.,\(\)])\s*`)
	return re.ReplaceAllString(s, "$1")
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-' || r == '=':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func sanitizeLayer(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f':
			out = '_'
		case isAlphaNum(r) || r == ':' || r == '_' || r == '-':
			out = r
		default:
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func collapseASCIIWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	wasWS := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\v' || r == '\f' {
			if !wasWS {
				b.WriteByte(' ')
				wasWS = true
			}
			continue
		}
		b.WriteRune(r)
		wasWS = false
	}
	return strings.TrimSpace(b.String())
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		unicode.IsDigit(r)
}

// latlonTag rounds a coordinate to 4 decimal places (~11m) for a stable,
// readable key fragment — finer precision would fragment the cache across
// near-duplicate queries without improving hit quality.
func latlonTag(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// WeatherKey identifies a cached weather lookup for a point and forecast
// window, per the weather:{lat}:{lon}:{days} family.
func WeatherKey(lat, lon float64, days int) string {
	return fmt.Sprintf("weather:%s:%s:%d", latlonTag(lat), latlonTag(lon), days)
}

// PollutantMovementKey identifies a cached wind-shift lookup for a point.
func PollutantMovementKey(lat, lon float64) string {
	return fmt.Sprintf("pollutant_movement:%s:%s", latlonTag(lat), latlonTag(lon))
}

// HotspotsKey identifies a cached hotspot query for a point, radius, and gas
// set. Gases are sorted before hashing so the key is independent of the
// caller's slice order.
func HotspotsKey(lat, lon, radiusKm float64, gases []string) string {
	sorted := append([]string(nil), gases...)
	sort.Strings(sorted)
	sum := xxhash.Sum64String(strings.Join(sorted, ","))
	return fmt.Sprintf("hotspots:%s:%s:%s:%016x", latlonTag(lat), latlonTag(lon), latlonTag(radiusKm), sum)
}

// RouteExposureKey identifies a cached exposure sample for a fixed route.
func RouteExposureKey(routeID string) string {
	return "route_exposure:" + sanitizeForKey(routeID)
}

// RouteOptKey identifies a cached route-optimization result for an
// origin/destination/mode triple.
func RouteOptKey(origin, dest [2]float64, mode string) string {
	return fmt.Sprintf("route_opt:%s,%s:%s,%s:%s",
		latlonTag(origin[0]), latlonTag(origin[1]),
		latlonTag(dest[0]), latlonTag(dest[1]),
		sanitizeForKey(mode))
}
