package registry

import (
	"sort"
	"strconv"
	"strings"

	"github.com/moolen/primeline/internal/codec"
)

// DefaultRelationPrimes returns the built-in relation kind to prime
// assignments. The relation prime namespace is disjoint from the label
// prime namespace; overlapping values are legal because the two maps are
// never mixed in one composite.
func DefaultRelationPrimes() map[string]uint64 {
	return map[string]uint64{
		"sync":         2,
		"async":        3,
		"event":        5,
		"config":       7,
		"rpc":          17,
		"db_query":     19,
		"file_io":      23,
		"http_request": 29,
		"pipeline":     31,
		"cache":        61,
	}
}

// ParseRelationSpec parses an override string of the form
// "sync=2,async=3,rpc=17" into a relation prime map. Every value must be
// prime and every pair well formed.
func ParseRelationSpec(spec string) (map[string]uint64, error) {
	relations := make(map[string]uint64)
	for _, pair := range strings.Split(spec, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		key, value, found := strings.Cut(pair, "=")
		if !found {
			return nil, NewRegistryError("relation override %q is not of the form kind=prime", pair)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, NewRegistryError("relation override %q has an empty kind", pair)
		}
		prime, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, NewRegistryError("relation override %q: %v", pair, err)
		}
		if !codec.IsPrime(prime) {
			return nil, NewRegistryError("relation %q maps to %d, which is not prime", key, prime)
		}
		if other, ok := findPrime(relations, prime); ok {
			return nil, NewRegistryError("relations %q and %q share prime %d", other, key, prime)
		}
		relations[key] = prime
	}
	if len(relations) == 0 {
		return nil, NewRegistryError("relation override %q declares no relations", spec)
	}
	return relations, nil
}

func findPrime(relations map[string]uint64, prime uint64) (string, bool) {
	for name, p := range relations {
		if p == prime {
			return name, true
		}
	}
	return "", false
}

func validateRelationPrimes(relations map[string]uint64) error {
	if len(relations) == 0 {
		return NewRegistryError("relation prime map must not be empty")
	}
	names := make([]string, 0, len(relations))
	for name := range relations {
		names = append(names, name)
	}
	sort.Strings(names)

	byPrime := make(map[uint64]string, len(names))
	for _, name := range names {
		prime := relations[name]
		if !codec.IsPrime(prime) {
			return NewRegistryError("relation %q maps to %d, which is not prime", name, prime)
		}
		if other, ok := byPrime[prime]; ok {
			return NewRegistryError("relations %q and %q share prime %d", other, name, prime)
		}
		byPrime[prime] = name
	}
	return nil
}
