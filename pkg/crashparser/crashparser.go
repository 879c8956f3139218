// Package crashparser turns raw debugger text into a structured crash
// record. Every extractor is pure and stateless: it locates a labelled
// region in the text and returns a zero value when the region is absent,
// rather than failing.
package crashparser

import (
	"regexp"
	"strconv"
	"strings"
)

// IndexedLine is one captured line along with its position among lines of
// the same kind (stack frames, disassembly instructions).
type IndexedLine struct {
	Index int
	Text  string
}

// LoadedModule describes one entry from a loaded-modules listing.
type LoadedModule struct {
	BaseAddress string
	SymsLoaded  bool
	Name        string
	Size        string
	Timestamp   string
	Version     string
	Checksum    string
}

// Record is the full set of fields extracted from one debugger text blob.
type Record struct {
	StackTrace        []IndexedLine
	LoadedModules     map[string]LoadedModule
	Registers         map[string]uint64
	Disassembly       []IndexedLine
	Classification    string
	ExceptionType     string
	ExceptionSubtype  string
	LongDesc          string
	Hash              string
}

var (
	stackFrameRe = regexp.MustCompile(`(?m)^STACK_FRAME:(.*)$`)
	basicBlockRe = regexp.MustCompile(`(?m)^BASIC_BLOCK_INSTRUCTION:(.*)$`)

	moduleHeaderRe = regexp.MustCompile(`(?m)^([0-9a-f]{8}) [0-9a-f]{8}\s+\S+\s+\(([^)]*)\)`)
	moduleKVRe     = regexp.MustCompile(`(?m)^\s*([A-Za-z ]+?):\s*(.+)$`)

	registerBlockRe = regexp.MustCompile(`(?s)eax=.*?iopl=\S*[^\n]*`)
	registerPairRe  = regexp.MustCompile(`\b(e[a-z]{2})=([0-9a-fA-F]+)\b`)

	classificationRe = regexp.MustCompile(`(?m)^CLASSIFICATION:(.*)$`)
	exceptionTypeRe  = regexp.MustCompile(`(?m)^EXCEPTION_TYPE:(.*)$`)
	exceptionSubRe   = regexp.MustCompile(`(?m)^EXCEPTION_SUBTYPE:(.*)$`)
	longDescRe       = regexp.MustCompile(`(?m)^SHORT_DESCRIPTION:(.*)$`)

	majorHashRe = regexp.MustCompile(`(?m)^MAJOR_HASH:(.*)$`)
	minorHashRe = regexp.MustCompile(`(?m)^MINOR_HASH:(.*)$`)
	plainHashRe = regexp.MustCompile(`Hash=(\S+)`)
)

// Parse extracts every field this package knows how to find from text.
func Parse(text string) Record {
	return Record{
		StackTrace:       StackTrace(text),
		LoadedModules:    LoadedModules(text),
		Registers:        Registers(text),
		Disassembly:      Disassembly(text),
		Classification:   Classification(text),
		ExceptionType:    ExceptionType(text),
		ExceptionSubtype: ExceptionSubtype(text),
		LongDesc:         LongDesc(text),
		Hash:             Hash(text),
	}
}

// StackTrace enumerates STACK_FRAME: lines in file order.
func StackTrace(text string) []IndexedLine {
	return indexedMatches(stackFrameRe, text)
}

// Disassembly enumerates BASIC_BLOCK_INSTRUCTION: lines in file order.
func Disassembly(text string) []IndexedLine {
	return indexedMatches(basicBlockRe, text)
}

func indexedMatches(re *regexp.Regexp, text string) []IndexedLine {
	matches := re.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]IndexedLine, 0, len(matches))
	for i, m := range matches {
		out = append(out, IndexedLine{Index: i, Text: strings.TrimSpace(m[1])})
	}
	return out
}

// LoadedModules walks every module header block and collects entries that
// carry an "Image name" key/value line.
func LoadedModules(text string) map[string]LoadedModule {
	headers := moduleHeaderRe.FindAllStringSubmatchIndex(text, -1)
	if len(headers) == 0 {
		return nil
	}

	out := make(map[string]LoadedModule)
	for i, h := range headers {
		start := h[1]
		end := len(text)
		if i+1 < len(headers) {
			end = headers[i+1][0]
		}
		baseAddr := text[h[2]:h[3]]
		status := text[h[4]:h[5]]
		block := text[start:end]

		kv := make(map[string]string)
		for _, m := range moduleKVRe.FindAllStringSubmatch(block, -1) {
			kv[strings.TrimSpace(m[1])] = strings.TrimSpace(m[2])
		}
		name, ok := kv["Image name"]
		if !ok {
			continue
		}

		out[baseAddr] = LoadedModule{
			BaseAddress: baseAddr,
			SymsLoaded:  strings.Contains(status, "pdb"),
			Name:        name,
			Size:        kv["ImageSize"],
			Timestamp:   kv["Timestamp"],
			Version:     kv["File version"],
			Checksum:    kv["CheckSum"],
		}
	}
	return out
}

// Registers finds the last eax..iopl register dump and returns each e-name
// register's hex value parsed to an integer.
func Registers(text string) map[string]uint64 {
	blocks := registerBlockRe.FindAllString(text, -1)
	if len(blocks) == 0 {
		return nil
	}
	last := blocks[len(blocks)-1]

	pairs := registerPairRe.FindAllStringSubmatch(last, -1)
	if len(pairs) == 0 {
		return nil
	}
	out := make(map[string]uint64, len(pairs))
	for _, p := range pairs {
		v, err := strconv.ParseUint(p[2], 16, 64)
		if err != nil {
			continue
		}
		out[p[1]] = v
	}
	return out
}

// Classification reads the tail of the single CLASSIFICATION: line.
func Classification(text string) string { return singleLabel(classificationRe, text) }

// ExceptionType reads the tail of the single EXCEPTION_TYPE: line.
func ExceptionType(text string) string { return singleLabel(exceptionTypeRe, text) }

// ExceptionSubtype reads the tail of the single EXCEPTION_SUBTYPE: line.
func ExceptionSubtype(text string) string { return singleLabel(exceptionSubRe, text) }

// LongDesc reads the tail of the single SHORT_DESCRIPTION: line.
func LongDesc(text string) string { return singleLabel(longDescRe, text) }

func singleLabel(re *regexp.Regexp, text string) string {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// Hash concatenates MAJOR_HASH and MINOR_HASH as "major.minor", falling
// back to a Hash=<value> pattern, else the empty string.
func Hash(text string) string {
	major := majorHashRe.FindStringSubmatch(text)
	minor := minorHashRe.FindStringSubmatch(text)
	if major != nil && minor != nil {
		return strings.TrimSpace(major[1]) + "." + strings.TrimSpace(minor[1])
	}
	if m := plainHashRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
