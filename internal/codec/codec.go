// Package codec implements the prime-factorization encoding of condition
// label sets. Each label owns a distinct prime; a set of labels is encoded
// as the product of their primes, and that composite travels through the
// numeric pipeline as its natural logarithm. Factoring the composite back
// into primes recovers the exact label set, because prime factorization
// is unique.
//
// The log representation is exact up to 2^53, the largest integer range a
// float64 covers densely. Composites beyond that boundary decode on a
// best-effort basis and carry a PrecisionBoundaryError advisory.
package codec

import (
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/moolen/primeline/internal/logging"
)

// PrecisionBoundary is the largest composite whose log-space round trip
// is guaranteed exact. Above it, consecutive integers are no longer
// representable in a float64 mantissa.
const PrecisionBoundary = uint64(1) << 53

const defaultDecodeCacheSize = 1024

// Codec encodes and decodes label sets against a fixed LabelSpace.
// Decoding caches factorizations in an LRU, since event streams repeat a
// small set of composites heavily.
type Codec struct {
	space       *LabelSpace
	decodeCache *lru.Cache[uint64, []string]
	logger      *logging.Logger
}

// Option configures a Codec.
type Option func(*options)

type options struct {
	cacheSize int
}

// WithCacheSize overrides the decode cache capacity. A size of zero
// disables caching.
func WithCacheSize(size int) Option {
	return func(o *options) {
		o.cacheSize = size
	}
}

// NewCodec builds a codec over the given label space.
func NewCodec(space *LabelSpace, opts ...Option) (*Codec, error) {
	if space == nil {
		return nil, NewInvalidLabelError("label space must not be nil")
	}
	o := options{cacheSize: defaultDecodeCacheSize}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Codec{
		space:  space,
		logger: logging.GetLogger("codec"),
	}
	if o.cacheSize > 0 {
		cache, err := lru.New[uint64, []string](o.cacheSize)
		if err != nil {
			return nil, err
		}
		c.decodeCache = cache
	}
	return c, nil
}

// Space returns the label space this codec encodes against.
func (c *Codec) Space() *LabelSpace {
	return c.space
}

// Encode maps a set of labels to the product of their primes. Duplicate
// labels collapse to one occurrence. The empty set and {"none"} both
// encode to 1; "none" combined with any other label is a conflict.
func (c *Codec) Encode(labels []string) (uint64, error) {
	seen := make(map[string]struct{}, len(labels))
	hasNone := false
	composite := uint64(1)

	for _, label := range labels {
		if _, dup := seen[label]; dup {
			continue
		}
		seen[label] = struct{}{}

		if label == LabelNone {
			hasNone = true
			continue
		}
		prime, ok := c.space.PrimeOf(label)
		if !ok {
			return 0, NewInvalidLabelError("label %q is not registered", label)
		}
		if composite > math.MaxUint64/prime {
			return 0, NewPrecisionBoundaryError("product of %d labels overflows uint64", len(seen))
		}
		composite *= prime
	}

	if hasNone && composite != 1 {
		return 0, NewConflictingLabelError("label %q cannot combine with other labels", LabelNone)
	}
	return composite, nil
}

// EncodeLog encodes a label set directly to log space.
func (c *Codec) EncodeLog(labels []string) (float64, error) {
	composite, err := c.Encode(labels)
	if err != nil {
		return 0, err
	}
	return LogValue(composite), nil
}

// Decode factors a composite back into labels by trial division over the
// space's primes in ascending order. Multiplicities beyond one are divided
// out but reported once. Any residue left after all known primes folds
// into a single "unknown" label.
func (c *Codec) Decode(composite uint64) ([]string, error) {
	if composite == 0 {
		return nil, NewInvalidCompositeError("composite must be positive, got 0")
	}
	if composite == 1 {
		return []string{LabelNone}, nil
	}
	if c.decodeCache != nil {
		if cached, ok := c.decodeCache.Get(composite); ok {
			return append([]string(nil), cached...), nil
		}
	}

	labels := make([]string, 0, 4)
	remainder := composite
	for _, lp := range c.space.byPrime {
		if remainder%lp.prime != 0 {
			continue
		}
		for remainder%lp.prime == 0 {
			remainder /= lp.prime
		}
		labels = append(labels, lp.label)
	}
	if remainder > 1 {
		c.logger.DebugWithFields("unrecognized residue after factoring",
			logging.Field("composite", composite),
			logging.Field("residue", remainder))
		labels = appendUnique(labels, LabelUnknown)
	}

	if c.decodeCache != nil {
		c.decodeCache.Add(composite, append([]string(nil), labels...))
	}
	return labels, nil
}

// DecodeLog recovers a label set from a log-space value by rounding
// exp(logValue) to the nearest integer. Values whose composite exceeds
// PrecisionBoundary still decode, paired with a PrecisionBoundaryError
// advisory; values beyond uint64 range return {"unknown"} with the same
// error.
func (c *Codec) DecodeLog(logValue float64) ([]string, error) {
	if math.IsNaN(logValue) || math.IsInf(logValue, 0) || logValue < 0 {
		return nil, NewInvalidCompositeError("log value %v does not map to a positive integer", logValue)
	}

	raw := math.Round(math.Exp(logValue))
	if raw >= float64(math.MaxUint64) {
		return []string{LabelUnknown}, NewPrecisionBoundaryError(
			"log value %v exceeds uint64 range", logValue)
	}

	composite := uint64(raw)
	if composite == 0 {
		return nil, NewInvalidCompositeError("log value %v rounds to 0", logValue)
	}

	labels, err := c.Decode(composite)
	if err != nil {
		return nil, err
	}
	if composite > PrecisionBoundary {
		c.logger.WarnWithFields("composite above precision boundary, decode is best-effort",
			logging.Field("composite", composite))
		return labels, NewPrecisionBoundaryError(
			"composite %d exceeds the 2^53 precision boundary", composite)
	}
	return labels, nil
}

// Verify round-trips a label set through encode and decode and reports
// whether the canonical set survives intact.
func (c *Codec) Verify(labels []string) (bool, error) {
	composite, err := c.Encode(labels)
	if err != nil {
		return false, err
	}
	decoded, err := c.Decode(composite)
	if err != nil {
		return false, err
	}
	return equalLabelSets(canonicalize(labels), decoded), nil
}

// LogValue converts a composite to its log-space form.
func LogValue(composite uint64) float64 {
	return math.Log(float64(composite))
}

func appendUnique(labels []string, label string) []string {
	for _, l := range labels {
		if l == label {
			return labels
		}
	}
	return append(labels, label)
}

func canonicalize(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if _, dup := seen[l]; dup {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	if len(out) == 0 {
		return []string{LabelNone}
	}
	sort.Strings(out)
	return out
}

func equalLabelSets(want, got []string) bool {
	if len(want) != len(got) {
		return false
	}
	sorted := append([]string(nil), got...)
	sort.Strings(sorted)
	for i := range want {
		if want[i] != sorted[i] {
			return false
		}
	}
	return true
}
