// Package mutate implements the mutation engine: per-field-type generator
// registries and the structure-level fuzz driver that walks a binstruct
// tree and yields mutated encodings of it.
package mutate

import (
	"github.com/jihwankim/fuzzbroker/pkg/binstruct"
	"github.com/jihwankim/fuzzbroker/pkg/generator"
)

// InjectionGeneratorFunc builds a byte generator of content to splice
// around a field, bounded by maxLen.
type InjectionGeneratorFunc func(maxLen int) generator.Generator[[]byte]

// ReplacementGeneratorFunc builds a byte generator of replacement content
// for a specific field.
type ReplacementGeneratorFunc func(f *binstruct.Field, maxLen int, preserveLength bool, randomCases, fuzzLevel int) generator.Generator[[]byte]

var injectionGenerators = map[binstruct.Kind]InjectionGeneratorFunc{}
var replacementGenerators = map[binstruct.Kind]ReplacementGeneratorFunc{}

func init() {
	RegisterInjectionGenerator(binstruct.KindString, defaultStringInjectionGenerator)
}

// RegisterInjectionGenerator installs the injection generator builder for
// a field-type string, overriding any prior registration for that kind.
func RegisterInjectionGenerator(k binstruct.Kind, fn InjectionGeneratorFunc) {
	injectionGenerators[k] = fn
}

// RegisterReplacementGenerator installs the replacement generator builder
// for a field-type string, overriding any prior registration for that
// kind.
func RegisterReplacementGenerator(k binstruct.Kind, fn ReplacementGeneratorFunc) {
	replacementGenerators[k] = fn
}

func injectionGeneratorFor(k binstruct.Kind, maxLen int) generator.Generator[[]byte] {
	if fn, ok := injectionGenerators[k]; ok {
		return fn(maxLen)
	}
	return defaultInjectionGenerator(maxLen)
}

func replacementGeneratorFor(f *binstruct.Field, maxLen int, preserveLength bool, randomCases, fuzzLevel int) generator.Generator[[]byte] {
	if fn, ok := replacementGenerators[f.Kind()]; ok {
		return fn(f, maxLen, preserveLength, randomCases, fuzzLevel)
	}
	return defaultReplacementGenerator(f, maxLen, preserveLength, randomCases, fuzzLevel)
}
