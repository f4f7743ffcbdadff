package codec

// IsPrime reports whether n is prime, by trial division up to sqrt(n).
// Inputs here are small (label and relation primes), so no sieve is needed.
func IsPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for d := uint64(3); d*d <= n; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}

// NextPrimeAfter returns the smallest prime strictly greater than n.
func NextPrimeAfter(n uint64) uint64 {
	candidate := n + 1
	if candidate < 2 {
		return 2
	}
	for !IsPrime(candidate) {
		candidate++
	}
	return candidate
}

// GCD returns the greatest common divisor of a and b.
func GCD(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// LCM returns the least common multiple of a and b. Merging two
// squarefree composites through LCM keeps each shared prime factor at
// multiplicity one, where plain multiplication would square it.
func LCM(a, b uint64) uint64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a / GCD(a, b) * b
}
