package codec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T, opts ...Option) *Codec {
	t.Helper()
	c, err := NewCodec(DefaultLabelSpace(), opts...)
	require.NoError(t, err)
	return c
}

func TestEncode(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name   string
		labels []string
		want   uint64
	}{
		{"empty set", nil, 1},
		{"explicit none", []string{"none"}, 1},
		{"single label", []string{"timeout"}, 2},
		{"two labels", []string{"timeout", "network_error"}, 14},
		{"order independent", []string{"network_error", "timeout"}, 14},
		{"duplicates collapse", []string{"timeout", "timeout", "network_error"}, 14},
		{"three labels", []string{"timeout", "file_not_found", "disk_full"}, 110},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Encode(tt.labels)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("unregistered label", func(t *testing.T) {
		_, err := c.Encode([]string{"gpu_oom"})
		require.Error(t, err)
		assert.True(t, IsInvalidLabelError(err))
	})

	t.Run("none conflicts with real labels", func(t *testing.T) {
		_, err := c.Encode([]string{"none", "timeout"})
		require.Error(t, err)
		assert.True(t, IsConflictingLabelError(err))
	})
}

func TestEncodeUniqueness(t *testing.T) {
	c := newTestCodec(t)

	// Every subset of a handful of labels must map to a distinct composite.
	labels := []string{"timeout", "permission_denied", "file_not_found", "network_error", "disk_full"}
	seen := map[uint64][]string{}
	for mask := 0; mask < 1<<len(labels); mask++ {
		var subset []string
		for i, l := range labels {
			if mask&(1<<i) != 0 {
				subset = append(subset, l)
			}
		}
		composite, err := c.Encode(subset)
		require.NoError(t, err)
		if prior, dup := seen[composite]; dup {
			t.Fatalf("composite %d produced by both %v and %v", composite, prior, subset)
		}
		seen[composite] = subset
	}
}

func TestEncodeLog(t *testing.T) {
	c := newTestCodec(t)

	got, err := c.EncodeLog([]string{"timeout", "network_error"})
	require.NoError(t, err)
	assert.InDelta(t, 2.639057, got, 1e-6)

	t.Run("empty set is log 1", func(t *testing.T) {
		got, err := c.EncodeLog(nil)
		require.NoError(t, err)
		assert.Equal(t, 0.0, got)
	})

	t.Run("additivity of disjoint sets", func(t *testing.T) {
		a, err := c.EncodeLog([]string{"timeout"})
		require.NoError(t, err)
		b, err := c.EncodeLog([]string{"network_error"})
		require.NoError(t, err)
		both, err := c.EncodeLog([]string{"timeout", "network_error"})
		require.NoError(t, err)
		assert.InDelta(t, a+b, both, 1e-12)
	})
}

func TestDecode(t *testing.T) {
	c := newTestCodec(t)

	tests := []struct {
		name      string
		composite uint64
		want      []string
	}{
		{"identity", 1, []string{"none"}},
		{"single prime", 2, []string{"timeout"}},
		{"product of two", 14, []string{"timeout", "network_error"}},
		{"product of three", 110, []string{"timeout", "file_not_found", "disk_full"}},
		{"multiplicity reported once", 4, []string{"timeout"}},
		{"unknown residue folds", 2 * 59, []string{"timeout", "unknown"}},
		{"pure unknown residue", 59, []string{"unknown"}},
		{"unknown label and residue dedupe", 17 * 59, []string{"unknown"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Decode(tt.composite)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("zero is invalid", func(t *testing.T) {
		_, err := c.Decode(0)
		require.Error(t, err)
		assert.True(t, IsInvalidCompositeError(err))
	})
}

func TestDecodeCaching(t *testing.T) {
	c := newTestCodec(t, WithCacheSize(8))

	first, err := c.Decode(14)
	require.NoError(t, err)

	// Mutating a returned slice must not poison later decodes.
	first[0] = "mutated"

	second, err := c.Decode(14)
	require.NoError(t, err)
	assert.Equal(t, []string{"timeout", "network_error"}, second)
}

func TestDecodeLog(t *testing.T) {
	c := newTestCodec(t)

	t.Run("recovers labels from log 14", func(t *testing.T) {
		labels, err := c.DecodeLog(math.Log(14))
		require.NoError(t, err)
		assert.Equal(t, []string{"timeout", "network_error"}, labels)
	})

	t.Run("zero log is the identity", func(t *testing.T) {
		labels, err := c.DecodeLog(0)
		require.NoError(t, err)
		assert.Equal(t, []string{"none"}, labels)
	})

	t.Run("survives float noise", func(t *testing.T) {
		labels, err := c.DecodeLog(math.Log(14) + 1e-12)
		require.NoError(t, err)
		assert.Equal(t, []string{"timeout", "network_error"}, labels)
	})

	t.Run("rejects negative and non-finite", func(t *testing.T) {
		for _, v := range []float64{-1, math.NaN(), math.Inf(1)} {
			_, err := c.DecodeLog(v)
			require.Error(t, err)
			assert.True(t, IsInvalidCompositeError(err))
		}
	})

	t.Run("beyond uint64 returns unknown with advisory", func(t *testing.T) {
		// About 2^80, far past anything a uint64 can hold.
		labels, err := c.DecodeLog(80 * math.Ln2)
		require.Error(t, err)
		assert.True(t, IsPrecisionBoundaryError(err))
		assert.Equal(t, []string{"unknown"}, labels)
	})

	t.Run("above precision boundary is best-effort with advisory", func(t *testing.T) {
		// Near 2^54 the recovered integer may drift by a few ulps, but it
		// stays even, so the factor 2 survives and the advisory fires.
		labels, err := c.DecodeLog(54 * math.Ln2)
		require.Error(t, err)
		assert.True(t, IsPrecisionBoundaryError(err))
		assert.Contains(t, labels, "timeout")
	})
}

func TestRoundTrip(t *testing.T) {
	c := newTestCodec(t)

	sets := [][]string{
		nil,
		{"none"},
		{"timeout"},
		{"timeout", "network_error"},
		{"http_500", "http_502", "http_503", "http_504"},
		{"auth_failed", "permission_denied"},
		{"execution_error", "disk_full", "file_not_found"},
	}
	for _, labels := range sets {
		composite, err := c.Encode(labels)
		require.NoError(t, err)

		viaComposite, err := c.Decode(composite)
		require.NoError(t, err)
		assert.ElementsMatch(t, canonicalize(labels), viaComposite, "composite path for %v", labels)

		viaLog, err := c.DecodeLog(LogValue(composite))
		require.NoError(t, err)
		assert.ElementsMatch(t, canonicalize(labels), viaLog, "log path for %v", labels)
	}
}

func TestVerify(t *testing.T) {
	c := newTestCodec(t)

	ok, err := c.Verify([]string{"timeout", "auth_failed"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.Verify(nil)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.Verify([]string{"not_a_label"})
	require.Error(t, err)
}

func TestEncodeOverflow(t *testing.T) {
	// A space with enough primes that the full set overflows uint64.
	labels := []string{
		"a", "b", "c", "d", "e", "f", "g", "h",
		"i", "j", "k", "l", "m", "n", "o", "p",
	}
	space, err := NewLabelSpace(labels)
	require.NoError(t, err)
	c, err := NewCodec(space)
	require.NoError(t, err)

	// Product of the first 16 primes is about 3.3e19, past MaxUint64.
	_, err = c.Encode(labels)
	require.Error(t, err)
	assert.True(t, IsPrecisionBoundaryError(err))
}
