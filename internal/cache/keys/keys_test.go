package keys

import (
	"regexp"
	"strings"
	"testing"
	"unicode"
)

func TestDeterminism_SameInputsSameKey(t *testing.T) {
	k1 := Key("demo:places", 8, "892a100d2b3ffff", "name='Stockholm' AND type IN('city','town')")
	k2 := Key("demo:places", 8, "892a100d2b3ffff", "name='Stockholm' AND type IN('city','town')")
	if k1 != k2 {
		t.Fatalf("determinism failed:\n k1=%s\n k2=%s", k1, k2)
	}
}

func TestNormalization_SpacingVariantsProduceSameKey(t *testing.T) {
	fA := "  name  =    'Stockholm'   AND  type IN('city','town')  "
	fB := "name='Stockholm' AND type IN ( 'city' , 'town' )"
	k1 := Key(" demo:places ", 8, "892a100d2b3ffff", fA)
	k2 := Key("demo:places", 8, "892a100d2b3ffff", fB)
	if k1 != k2 {
		t.Fatalf("normalized keys differ:\n k1=%s\n k2=%s", k1, k2)
	}
	if !regexp.MustCompile(`^[A-Za-z0-9:_=\-]+$`).MatchString(k1) {
		t.Fatalf("key contains disallowed characters: %s", k1)
	}
}

func TestDifference_DifferentFiltersAreDifferent(t *testing.T) {
	f1 := "a=1 AND b=2"
	f2 := "b=2 AND a=1"
	k1 := Key("demo:places", 8, "892a100d2b3ffff", f1)
	k2 := Key("demo:places", 8, "892a100d2b3ffff", f2)
	if k1 == k2 {
		t.Fatalf("different filters must produce different keys")
	}
}

func TestUnicodeSafety_NoPanicAndHashSuffixPresent(t *testing.T) {
	f := "name = 'Göteborg' AND note = '雪'"
	k := Key("demo:places", 8, "892a100d2b3ffff", f)

	for _, r := range k {
		if r > unicode.MaxASCII {
			t.Fatalf("non-ASCII rune leaked into key: %q in %s", r, k)
		}
	}

	m := regexp.MustCompile(`:f=([0-9a-f]{16})$`).FindStringSubmatch(k)
	if len(m) != 2 {
		t.Fatalf("missing or invalid :f=<hex64> suffix in key: %s", k)
	}

	if !strings.Contains(k, ":filters=") {
		t.Fatalf("missing filters= segment in key: %s", k)
	}
}

func TestWeatherKey_StableAcrossCalls(t *testing.T) {
	k1 := WeatherKey(40.7128, -74.0060, 3)
	k2 := WeatherKey(40.7128, -74.0060, 3)
	if k1 != k2 {
		t.Fatalf("weather key not stable: %s vs %s", k1, k2)
	}
	if k1 != "weather:40.7128:-74.0060:3" {
		t.Fatalf("unexpected weather key shape: %s", k1)
	}
}

func TestHotspotsKey_OrderIndependent(t *testing.T) {
	k1 := HotspotsKey(40.0, -74.0, 25, []string{"no2", "pm"})
	k2 := HotspotsKey(40.0, -74.0, 25, []string{"pm", "no2"})
	if k1 != k2 {
		t.Fatalf("hotspot key should not depend on gas slice order: %s vs %s", k1, k2)
	}
}

func TestRouteOptKey_DistinctModesDiffer(t *testing.T) {
	origin := [2]float64{40.0, -74.0}
	dest := [2]float64{40.1, -74.1}
	k1 := RouteOptKey(origin, dest, "commute")
	k2 := RouteOptKey(origin, dest, "jog")
	if k1 == k2 {
		t.Fatalf("different modes must produce different route_opt keys")
	}
}
