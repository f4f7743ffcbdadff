package codec

import "testing"

func TestIsPrime(t *testing.T) {
	tests := []struct {
		n    uint64
		want bool
	}{
		{0, false},
		{1, false},
		{2, true},
		{3, true},
		{4, false},
		{5, true},
		{9, false},
		{17, true},
		{25, false},
		{53, true},
		{121, false},
		{7919, true},
	}

	for _, tt := range tests {
		if got := IsPrime(tt.n); got != tt.want {
			t.Errorf("IsPrime(%d) = %v, want %v", tt.n, got, tt.want)
		}
	}
}

func TestNextPrimeAfter(t *testing.T) {
	tests := []struct {
		n    uint64
		want uint64
	}{
		{0, 2},
		{1, 2},
		{2, 3},
		{3, 5},
		{7, 11},
		{13, 17},
		{53, 59},
		{7907, 7919},
	}

	for _, tt := range tests {
		if got := NextPrimeAfter(tt.n); got != tt.want {
			t.Errorf("NextPrimeAfter(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestNextPrimeAfterChainsAscending(t *testing.T) {
	prime := uint64(1)
	var primes []uint64
	for i := 0; i < 16; i++ {
		prime = NextPrimeAfter(prime)
		primes = append(primes, prime)
	}

	want := []uint64{2, 3, 5, 7, 11, 13, 17, 19, 23, 29, 31, 37, 41, 43, 47, 53}
	for i := range want {
		if primes[i] != want[i] {
			t.Fatalf("prime chain position %d = %d, want %d", i, primes[i], want[i])
		}
	}
}

func TestLCM(t *testing.T) {
	tests := []struct {
		a, b uint64
		want uint64
	}{
		{0, 5, 0},
		{1, 1, 1},
		{2, 3, 6},
		{2, 6, 6},
		{6, 10, 30},
		{14, 21, 42},
		{17, 17, 17},
	}

	for _, tt := range tests {
		if got := LCM(tt.a, tt.b); got != tt.want {
			t.Errorf("LCM(%d, %d) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := LCM(tt.b, tt.a); got != tt.want {
			t.Errorf("LCM(%d, %d) = %d, want %d", tt.b, tt.a, got, tt.want)
		}
	}
}
