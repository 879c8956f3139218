package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(context.Background(), filepath.Join(dir, "results.db"),
		filepath.Join(dir, "crashfiles"), filepath.Join(dir, "crashdata"), filepath.Join(dir, "templates"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertPlainResult(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	out, err := s.InsertResult(ctx, ResultInput{
		Stream:        "default",
		ProducerAckID: 1,
		ResultString:  "success",
	})
	require.NoError(t, err)
	require.NotZero(t, out.ResultID)
	require.Zero(t, out.CrashID)
}

func TestInsertCrashResultWritesFilesAndRows(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	out, err := s.InsertResult(ctx, ResultInput{
		Stream:        "default",
		ProducerAckID: 2,
		ResultString:  "crash",
		Crash: &CrashInput{
			RawData:        []byte("\x00\x01"),
			RawDebugDetail: "EXCEPTION_TYPE:X\nMAJOR_HASH:a\nMINOR_HASH:b\n",
		},
	})
	require.NoError(t, err)
	require.NotZero(t, out.CrashID)

	raw, err := os.ReadFile(s.crashfilePath(out.CrashID))
	require.NoError(t, err)
	require.Equal(t, []byte("\x00\x01"), raw)

	detail, err := os.ReadFile(s.crashdataPath(out.CrashID))
	require.NoError(t, err)
	require.Contains(t, string(detail), "EXCEPTION_TYPE:X")

	summaries, err := s.RecentCrashes(ctx, 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, "a.b", summaries[0].Hash)
	require.Equal(t, "X", summaries[0].ExceptionType)
}

func TestInternIDIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id1, err := internID(ctx, s.db, "streams", "default")
	require.NoError(t, err)
	id2, err := internID(ctx, s.db, "streams", "default")
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	id3, err := internID(ctx, s.db, "streams", "other")
	require.NoError(t, err)
	require.NotEqual(t, id1, id3)
}

func TestDistinctHashCount(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, hash := range []string{"a.b", "a.b", "c.d"} {
		_, err := s.InsertResult(ctx, ResultInput{
			Stream:        "default",
			ProducerAckID: 1,
			ResultString:  "crash",
			Crash: &CrashInput{
				RawData:        []byte("x"),
				RawDebugDetail: "MAJOR_HASH:" + hash[:1] + "\nMINOR_HASH:" + hash[2:] + "\n",
			},
		})
		require.NoError(t, err)
	}

	n, err := s.DistinctHashCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}
