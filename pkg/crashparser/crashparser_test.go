package crashparser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndExceptionType(t *testing.T) {
	text := "EXCEPTION_TYPE:X\nMAJOR_HASH:a\nMINOR_HASH:b\n"
	require.Equal(t, "X", ExceptionType(text))
	require.Equal(t, "a.b", Hash(text))
}

func TestHashFallsBackToPlainPattern(t *testing.T) {
	text := "no structured hash here\nHash=deadbeef\n"
	require.Equal(t, "deadbeef", Hash(text))
}

func TestHashEmptyWhenAbsent(t *testing.T) {
	require.Equal(t, "", Hash("nothing of interest"))
}

func TestStackTraceOrder(t *testing.T) {
	text := "STACK_FRAME:ntdll!RtlpWaitForCriticalSection+0x1a\nnoise\nSTACK_FRAME:kernel32!BaseThreadInitThunk+0xd\n"
	frames := StackTrace(text)
	require.Len(t, frames, 2)
	require.Equal(t, 0, frames[0].Index)
	require.Equal(t, "ntdll!RtlpWaitForCriticalSection+0x1a", frames[0].Text)
	require.Equal(t, "kernel32!BaseThreadInitThunk+0xd", frames[1].Text)
}

func TestDisassembly(t *testing.T) {
	text := "BASIC_BLOCK_INSTRUCTION:00401000 mov eax, ebx\nBASIC_BLOCK_INSTRUCTION:00401002 ret\n"
	insns := Disassembly(text)
	require.Len(t, insns, 2)
	require.Equal(t, "00401000 mov eax, ebx", insns[0].Text)
}

func TestLoadedModulesKeepsOnlyImageNamedEntries(t *testing.T) {
	text := "" +
		"77690000 777e0000   ntdll      (pdb symbols)          c:\\sym\\ntdll.pdb\n" +
		"    Image name: ntdll.dll\n" +
		"    Timestamp: 12345\n" +
		"    CheckSum: abcdef\n" +
		"    ImageSize: 1000\n" +
		"    File version: 6.1.7601.1\n" +
		"10000000 10010000   partial    (export symbols)\n" +
		"    Timestamp: 1\n"

	mods := LoadedModules(text)
	require.Len(t, mods, 1)
	m, ok := mods["77690000"]
	require.True(t, ok)
	require.Equal(t, "ntdll.dll", m.Name)
	require.True(t, m.SymsLoaded)
	require.Equal(t, "1000", m.Size)
}

func TestRegistersTakesLastBlock(t *testing.T) {
	text := "eax=00000001 ebx=00000002\niopl=0 nv up\n" +
		"some text in between\n" +
		"eax=deadbeef ebx=cafef00d ecx=00000003\niopl=0 nv up ei pl zr na pe nc\n"

	regs := Registers(text)
	require.Equal(t, uint64(0xdeadbeef), regs["eax"])
	require.Equal(t, uint64(0xcafef00d), regs["ebx"])
	require.Equal(t, uint64(3), regs["ecx"])
}

func TestExtractorsFailGracefullyWhenAbsent(t *testing.T) {
	require.Nil(t, StackTrace(""))
	require.Nil(t, LoadedModules(""))
	require.Nil(t, Registers(""))
	require.Nil(t, Disassembly(""))
	require.Equal(t, "", Classification(""))
	require.Equal(t, "", ExceptionType(""))
	require.Equal(t, "", ExceptionSubtype(""))
	require.Equal(t, "", LongDesc(""))
	require.Equal(t, "", Hash(""))
}
