package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jihwankim/fuzzbroker/pkg/crashparser"
)

// CrashInput carries the raw debugger text and triggering payload for a
// crash result. TemplateName, when non-empty, is interned and associated
// with the crash row (the seed input this test case was derived from).
type CrashInput struct {
	RawData        []byte
	RawDebugDetail string
	TemplateName   string
}

// ResultInput is one producer test case's outcome, as handed to the store
// by the broker's result-store writer pool.
type ResultInput struct {
	Stream        string
	ProducerAckID int64
	ResultString  string
	Crash         *CrashInput
}

// InsertOutcome reports the allocated ids for a stored result.
type InsertOutcome struct {
	ResultID int64
	CrashID  int64 // zero if the result was not a crash
}

// InsertResult persists one result as a single atomic unit: string
// interning, crash detail, and the two raw files. Any failure, including
// a raw file write, rolls back every row written for this result.
func (s *Store) InsertResult(ctx context.Context, in ResultInput) (InsertOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return InsertOutcome{}, fmt.Errorf("store: begin tx: %w", err)
	}

	committed := false
	var writtenFiles []string
	defer func() {
		if !committed {
			_ = tx.Rollback()
			for _, f := range writtenFiles {
				_ = os.Remove(f)
			}
		}
	}()

	streamID, err := internID(ctx, tx, "streams", in.Stream)
	if err != nil {
		return InsertOutcome{}, err
	}
	resultStringID, err := internID(ctx, tx, "result_strings", in.ResultString)
	if err != nil {
		return InsertOutcome{}, err
	}

	var crashID int64
	if in.Crash != nil {
		crashID, err = s.insertCrash(ctx, tx, streamID, *in.Crash)
		if err != nil {
			return InsertOutcome{}, err
		}

		cfPath := s.crashfilePath(crashID)
		if err := os.WriteFile(cfPath, in.Crash.RawData, 0o644); err != nil {
			return InsertOutcome{}, fmt.Errorf("store: write crashfile: %w", err)
		}
		writtenFiles = append(writtenFiles, cfPath)

		cdPath := s.crashdataPath(crashID)
		if err := os.WriteFile(cdPath, []byte(in.Crash.RawDebugDetail), 0o644); err != nil {
			return InsertOutcome{}, fmt.Errorf("store: write crashdata: %w", err)
		}
		writtenFiles = append(writtenFiles, cdPath)
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO results (timestamp, stream_id, producer_ack_id, result_string_id, crash_id)
		VALUES (?, ?, ?, ?, ?)`,
		nowUnix(), streamID, in.ProducerAckID, resultStringID, nullableID(crashID))
	if err != nil {
		return InsertOutcome{}, fmt.Errorf("store: insert result: %w", err)
	}
	resultID, err := res.LastInsertId()
	if err != nil {
		return InsertOutcome{}, fmt.Errorf("store: read result id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return InsertOutcome{}, fmt.Errorf("store: commit: %w", err)
	}
	committed = true

	return InsertOutcome{ResultID: resultID, CrashID: crashID}, nil
}

func (s *Store) insertCrash(ctx context.Context, tx *sql.Tx, streamID int64, in CrashInput) (int64, error) {
	rec := crashparser.Parse(in.RawDebugDetail)

	hashID, err := internID(ctx, tx, "hash_strings", rec.Hash)
	if err != nil {
		return 0, err
	}
	descID, err := internID(ctx, tx, "descs", rec.LongDesc)
	if err != nil {
		return 0, err
	}
	excTypeID, err := internID(ctx, tx, "exception_types", rec.ExceptionType)
	if err != nil {
		return 0, err
	}
	excSubID, err := internID(ctx, tx, "exception_subtypes", rec.ExceptionSubtype)
	if err != nil {
		return 0, err
	}
	classID, err := internID(ctx, tx, "classifications", rec.Classification)
	if err != nil {
		return 0, err
	}

	var templateID int64
	if in.TemplateName != "" {
		templateID, err = internID(ctx, tx, "templates", in.TemplateName)
		if err != nil {
			return 0, err
		}
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO crashes (
			timestamp, hash_string_id, short_desc_id, exception_type_id,
			exception_subtype_id, classification_id, template_id, stream_id,
			raw_crash_file, raw_debug_detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nowUnix(), hashID, descID, excTypeID, excSubID, classID,
		nullableID(templateID), streamID, "", "")
	if err != nil {
		return 0, fmt.Errorf("store: insert crash: %w", err)
	}
	crashID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("store: read crash id: %w", err)
	}

	// Now that crashID is known, backfill the raw file paths the caller
	// will write to after this function returns.
	if _, err := tx.ExecContext(ctx, `UPDATE crashes SET raw_crash_file = ?, raw_debug_detail = ? WHERE id = ?`,
		s.crashfilePath(crashID), s.crashdataPath(crashID), crashID); err != nil {
		return 0, fmt.Errorf("store: backfill crash paths: %w", err)
	}

	for i, f := range rec.StackTrace {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stacktraces (crash_id, ordinal, raw_text) VALUES (?, ?, ?)`,
			crashID, i, f.Text); err != nil {
			return 0, fmt.Errorf("store: insert stacktrace: %w", err)
		}

		moduleName, funcName, offset := splitFrame(f.Text)
		var moduleID, functionID sql.NullInt64
		if moduleName != "" {
			id, err := internID(ctx, tx, "modules", moduleName)
			if err != nil {
				return 0, err
			}
			moduleID = sql.NullInt64{Int64: id, Valid: true}
		}
		if funcName != "" {
			id, err := internID(ctx, tx, "functions", funcName)
			if err != nil {
				return 0, err
			}
			functionID = sql.NullInt64{Int64: id, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO stackframes (crash_id, ordinal, module_id, function_id, offset, raw_text)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			crashID, i, moduleID, functionID, offset, f.Text); err != nil {
			return 0, fmt.Errorf("store: insert stackframe: %w", err)
		}
	}

	for baseAddr, mod := range rec.LoadedModules {
		moduleID, err := internID(ctx, tx, "modules", mod.Name)
		if err != nil {
			return 0, err
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO loaded_modules (crash_id, module_id, base_address, syms_loaded, size, timestamp, version, checksum)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(module_id, checksum) DO NOTHING`,
			crashID, moduleID, baseAddr, boolToInt(mod.SymsLoaded), mod.Size, mod.Timestamp, mod.Version, mod.Checksum)
		if err != nil {
			return 0, fmt.Errorf("store: insert loaded_module: %w", err)
		}
	}

	for name, value := range rec.Registers {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO register_dumps (crash_id, name, value) VALUES (?, ?, ?)`,
			crashID, name, value); err != nil {
			return 0, fmt.Errorf("store: insert register_dump: %w", err)
		}
	}

	for i, ins := range rec.Disassembly {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO disasm (crash_id, ordinal, raw_text) VALUES (?, ?, ?)`,
			crashID, i, ins.Text); err != nil {
			return 0, fmt.Errorf("store: insert disasm: %w", err)
		}
	}

	return crashID, nil
}

// splitFrame splits a "module!function+offset" stack frame into its three
// parts; any part absent from the text comes back empty.
func splitFrame(text string) (module, function, offset string) {
	rest := text
	if bang := strings.IndexByte(rest, '!'); bang >= 0 {
		module = rest[:bang]
		rest = rest[bang+1:]
	}
	if plus := strings.LastIndexByte(rest, '+'); plus >= 0 {
		function = rest[:plus]
		offset = rest[plus+1:]
	} else {
		function = rest
	}
	return module, function, offset
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableID(id int64) sql.NullInt64 {
	if id == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: id, Valid: true}
}

func nowUnix() int64 { return time.Now().Unix() }
