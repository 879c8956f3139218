package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jihwankim/fuzzbroker/pkg/generator"
)

func TestSeedSourceEnumeratesMutationsOfTheSeed(t *testing.T) {
	seed := []byte("ABCD")

	source, err := seedSource(seed, 1, 1, false, false)
	require.NoError(t, err)

	cases := generator.Collect(source)
	require.NotEmpty(t, cases)

	var sawOriginal, sawMutated bool
	for _, c := range cases {
		if string(c) == string(seed) {
			sawOriginal = true
		} else {
			sawMutated = true
		}
	}
	require.True(t, sawMutated, "mutation source must produce variants different from the seed")
	_ = sawOriginal
}

func TestSeedSourcePreserveLengthKeepsCaseSizes(t *testing.T) {
	seed := []byte("ABCD")

	source, err := seedSource(seed, 1, 1, true, false)
	require.NoError(t, err)

	for _, c := range generator.Collect(source) {
		require.Len(t, c, len(seed), "preserve-length mode must not grow or shrink the seed")
	}
}
