package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type memCache struct {
	data map[string][]byte
}

func newMemCache() *memCache { return &memCache{data: map[string][]byte{}} }

func (m *memCache) MGet(keys []string) (map[string][]byte, error) {
	out := map[string][]byte{}
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}
func (m *memCache) Set(key string, val []byte, ttl time.Duration) error {
	m.data[key] = val
	return nil
}
func (m *memCache) Del(keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestCurrent_NoAPIKeyReturnsErrNotConfigured(t *testing.T) {
	c := New("", Options{})
	_, err := c.Current(context.Background(), 34.05, -118.25)
	if err != ErrNotConfigured {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestCurrent_ParsesWindAndAirQuality(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"current":{"temp_c":21.0,"humidity":55,"wind_kph":12.5,"wind_degree":270,"condition":{"text":"Clear"},"air_quality":{"co":200.5,"no2":15.2,"o3":30.1,"pm2_5":8.4,"pm10":12.1,"us-epa-index":2}}}`))
	}))
	defer srv.Close()

	c := New("test-key", Options{BaseURL: srv.URL})
	r, err := c.Current(context.Background(), 34.05, -118.25)
	if err != nil {
		t.Fatalf("Current: %v", err)
	}
	if r.WindKph != 12.5 || r.WindDegree != 270 {
		t.Fatalf("wind = %+v, want 12.5kph @ 270deg", r)
	}
	if !r.HasAirQuality || r.AirQuality.NO2 != 15.2 {
		t.Fatalf("air quality = %+v", r)
	}
}

func TestCurrent_CachesAcrossCalls(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"current":{"temp_c":21.0,"humidity":55,"wind_kph":8,"wind_degree":90,"condition":{"text":"Clear"}}}`))
	}))
	defer srv.Close()

	mc := newMemCache()
	c := New("test-key", Options{BaseURL: srv.URL, Cache: mc})

	if _, err := c.Current(context.Background(), 34.05, -118.25); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Current(context.Background(), 34.05, -118.25); err != nil {
		t.Fatal(err)
	}
	if hits != 1 {
		t.Fatalf("expected one upstream request, got %d (second call should have hit cache)", hits)
	}
}

func TestCurrent_NonOKStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New("test-key", Options{BaseURL: srv.URL})
	if _, err := c.Current(context.Background(), 0, 0); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}
