package redisstore

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/aeris-platform/aeris/internal/core/observability"
)

func newMini(t *testing.T) *Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	t.Cleanup(cancel)

	rc, err := New(ctx, mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = rc.Close() })
	return rc
}

func TestSetMGetDel_HappyPath_AndMGetFiltersMissing(t *testing.T) {
	rc := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, rc.Set(ctx, "k1", []byte("v1"), 5*time.Minute))
	require.NoError(t, rc.Set(ctx, "k2", []byte("v2"), time.Minute))

	got, err := rc.MGet(ctx, []string{"k1", "k2", "missing"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "v1", string(got["k1"]))
	require.Equal(t, "v2", string(got["k2"]))

	require.NoError(t, rc.Del(ctx, "k1", "k2"))
}

func TestContextDeadline_IsRespected(t *testing.T) {
	rc := newMini(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Error(t, rc.Set(ctx, "k", []byte("v"), time.Second))
	_, err := rc.MGet(ctx, []string{"k"})
	require.Error(t, err)
	require.Error(t, rc.Del(ctx, "k"))
}

func TestMetrics_Incremented(t *testing.T) {
	reg := prometheus.NewRegistry()
	observability.Init(reg, true)
	observability.SetScenario("test")

	rc := newMini(t)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_ = rc.Set(ctx, "m1", []byte("x"), time.Minute)
	_, _ = rc.MGet(ctx, []string{"m1"})
	_ = rc.Del(ctx, "m1")

	families, err := reg.Gather()
	require.NoError(t, err)

	seenOps := map[string]bool{}
	for _, fam := range families {
		if fam.GetName() != "aeris_cache_op_total" {
			continue
		}
		for _, m := range fam.GetMetric() {
			for _, lbl := range m.GetLabel() {
				if lbl.GetName() == "op" {
					seenOps[lbl.GetValue()] = true
				}
			}
		}
	}
	require.True(t, seenOps["set"])
	require.True(t, seenOps["mget"])
	require.True(t, seenOps["del"])
}
