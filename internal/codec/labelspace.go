package codec

import (
	"fmt"
	"sort"
)

const (
	// LabelNone is the reserved "no condition" label, always mapped to 1.
	LabelNone = "none"
	// LabelUnknown is the catch-all label for unrecognized prime residues.
	LabelUnknown = "unknown"
)

// LabelSpace is an explicit, versioned mapping from condition labels to
// distinct primes. It is a value passed into codec operations, never
// process-global state: every artifact persists its full map, so old
// composites are never reinterpreted under a different assignment.
//
// Primes are assigned in increasing order of registration and never reused
// or altered. "none" is pinned to 1 and asserted to never co-occur with
// any other label. A LabelSpace is safe for concurrent reads; AddLabel
// must not race with readers.
type LabelSpace struct {
	version int
	labels  []string          // registration order, "none" first
	primes  map[string]uint64 // label -> prime
	byPrime []labelPrime      // real labels ascending by prime, excludes "none"
}

type labelPrime struct {
	label string
	prime uint64
}

// DefaultLabelSpace returns the built-in condition set used when no
// artifact supplies its own mapping.
func DefaultLabelSpace() *LabelSpace {
	space, _ := NewLabelSpace([]string{
		"timeout",
		"permission_denied",
		"file_not_found",
		"network_error",
		"disk_full",
		"auth_failed",
		LabelUnknown,
		"execution_error",
		"http_400",
		"http_401",
		"http_403",
		"http_404",
		"http_500",
		"http_502",
		"http_503",
		"http_504",
	})
	return space
}

// NewLabelSpace builds a space assigning ascending primes to the given
// labels in order. "none" is implicit and must not be listed explicitly.
func NewLabelSpace(labels []string) (*LabelSpace, error) {
	space := &LabelSpace{
		version: 1,
		labels:  []string{LabelNone},
		primes:  map[string]uint64{LabelNone: 1},
	}
	prime := uint64(1)
	for _, label := range labels {
		if label == LabelNone {
			return nil, NewInvalidLabelError("label %q is reserved and registered implicitly", LabelNone)
		}
		if _, exists := space.primes[label]; exists {
			return nil, NewInvalidLabelError("duplicate label %q", label)
		}
		prime = NextPrimeAfter(prime)
		space.labels = append(space.labels, label)
		space.primes[label] = prime
		space.byPrime = append(space.byPrime, labelPrime{label: label, prime: prime})
	}
	return space, nil
}

// LabelSpaceFromPrimes rebuilds a space from a persisted label->prime map,
// for example the prime_map block of an event artifact. The map must be
// injective, use only primes (besides the reserved 1), and map "none" to 1
// when present.
func LabelSpaceFromPrimes(primeMap map[string]uint64) (*LabelSpace, error) {
	space := &LabelSpace{
		version: 1,
		labels:  []string{LabelNone},
		primes:  map[string]uint64{LabelNone: 1},
	}

	seen := map[uint64]string{1: LabelNone}
	for label, prime := range primeMap {
		if label == LabelNone {
			if prime != 1 {
				return nil, NewConflictingLabelError("label %q must map to 1, got %d", LabelNone, prime)
			}
			continue
		}
		if !IsPrime(prime) {
			return nil, NewInvalidLabelError("label %q maps to %d, which is not prime", label, prime)
		}
		if other, dup := seen[prime]; dup {
			return nil, NewConflictingLabelError("labels %q and %q both map to prime %d", other, label, prime)
		}
		seen[prime] = label
		space.primes[label] = prime
		space.byPrime = append(space.byPrime, labelPrime{label: label, prime: prime})
	}

	// Registration order is recovered from prime order: primes are always
	// assigned ascending.
	sort.Slice(space.byPrime, func(i, j int) bool {
		return space.byPrime[i].prime < space.byPrime[j].prime
	})
	for _, lp := range space.byPrime {
		space.labels = append(space.labels, lp.label)
	}
	return space, nil
}

// Version returns the in-memory lineage counter, bumped on every AddLabel.
func (s *LabelSpace) Version() int {
	return s.version
}

// Len returns the number of labels including the reserved "none".
func (s *LabelSpace) Len() int {
	return len(s.labels)
}

// Labels returns all labels in registration order, "none" first.
func (s *LabelSpace) Labels() []string {
	return append([]string(nil), s.labels...)
}

// PrimeOf returns the prime assigned to a label.
func (s *LabelSpace) PrimeOf(label string) (uint64, bool) {
	prime, ok := s.primes[label]
	return prime, ok
}

// LabelOf returns the label assigned to a prime.
func (s *LabelSpace) LabelOf(prime uint64) (string, bool) {
	if prime == 1 {
		return LabelNone, true
	}
	for _, lp := range s.byPrime {
		if lp.prime == prime {
			return lp.label, true
		}
	}
	return "", false
}

// PrimeMap returns a copy of the full label->prime map for persistence.
func (s *LabelSpace) PrimeMap() map[string]uint64 {
	out := make(map[string]uint64, len(s.primes))
	for label, prime := range s.primes {
		out[label] = prime
	}
	return out
}

// AddLabel registers a new label under the next unassigned prime and bumps
// the version. Existing assignments are never altered.
func (s *LabelSpace) AddLabel(label string) (uint64, error) {
	if label == LabelNone {
		return 0, NewInvalidLabelError("label %q is reserved", LabelNone)
	}
	if _, exists := s.primes[label]; exists {
		return 0, NewInvalidLabelError("label %q is already registered", label)
	}

	highest := uint64(1)
	if n := len(s.byPrime); n > 0 {
		highest = s.byPrime[n-1].prime
	}
	prime := NextPrimeAfter(highest)

	s.labels = append(s.labels, label)
	s.primes[label] = prime
	s.byPrime = append(s.byPrime, labelPrime{label: label, prime: prime})
	s.version++
	return prime, nil
}

func (s *LabelSpace) String() string {
	return fmt.Sprintf("LabelSpace(v%d, %d labels)", s.version, len(s.labels))
}
