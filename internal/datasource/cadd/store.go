// Package cadd provides CADD deleteriousness score lookups backed by DuckDB
// and the annotator that attaches them to variant records.
package cadd

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "github.com/marcboeker/go-duckdb"
	"go.uber.org/zap"
)

// DefaultCacheSize is the default number of point lookups kept in the LRU.
const DefaultCacheSize = 100_000

// Key identifies a scored allele. Chromosomes are stored without "chr".
type Key struct {
	Chrom string
	Pos   int64
	Ref   string
	Alt   string
}

// Score holds the raw and PHRED-scaled CADD scores exactly as written in
// the source file.
type Score struct {
	Raw    string
	Scaled string
}

type cached struct {
	score Score
	ok    bool
}

// Store provides CADD score lookups backed by DuckDB.
// Lookups are safe for concurrent use; Load and PreloadToMemory are not.
type Store struct {
	db       *sql.DB
	lookupPS *sql.Stmt
	cache    *lru.Cache[Key, cached]
	logger   *zap.Logger

	// Set by PreloadToMemory.
	mem MapLookup
}

// Option configures a Store.
type Option func(*Store) error

// WithCacheSize sets the size of the point lookup LRU. Zero disables it.
func WithCacheSize(n int) Option {
	return func(s *Store) error {
		if n <= 0 {
			s.cache = nil
			return nil
		}
		c, err := lru.New[Key, cached](n)
		if err != nil {
			return err
		}
		s.cache = c
		return nil
	}
}

// WithLogger sets the logger for load and preload messages.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) error {
		s.logger = l
		return nil
	}
}

// Open opens or creates a DuckDB database for CADD scores at the given path.
// Use an empty string for an in-memory database.
func Open(dbPath string, opts ...Option) (*Store, error) {
	if dbPath != "" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	s := &Store{db: db, logger: zap.NewNop()}
	opts = append([]Option{WithCacheSize(DefaultCacheSize)}, opts...)
	for _, opt := range opts {
		if err := opt(s); err != nil {
			db.Close()
			return nil, fmt.Errorf("configure cadd store: %w", err)
		}
	}

	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	s.lookupPS, err = db.Prepare(
		"SELECT raw, phred FROM cadd WHERE chrom=? AND pos=? AND ref=? AND alt=? LIMIT 1",
	)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("prepare lookup: %w", err)
	}

	return s, nil
}

func (s *Store) ensureSchema() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS cadd (
		chrom VARCHAR,
		pos BIGINT,
		ref VARCHAR,
		alt VARCHAR,
		raw VARCHAR,
		phred VARCHAR
	)`); err != nil {
		return err
	}
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS cadd_source (
		path VARCHAR,
		size BIGINT,
		mod_time BIGINT
	)`); err != nil {
		return err
	}
	// Index for fast point lookups. Lookups still work without it.
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_cadd_lookup ON cadd (chrom, pos, ref, alt)`); err != nil {
		s.logger.Warn("create cadd lookup index", zap.Error(err))
	}
	return nil
}

// Loaded returns true if the CADD table has data.
func (s *Store) Loaded() bool {
	n, err := s.Count()
	return err == nil && n > 0
}

// Count returns the number of rows in the CADD table.
func (s *Store) Count() (int64, error) {
	var count int64
	if err := s.db.QueryRow("SELECT COUNT(*) FROM cadd").Scan(&count); err != nil {
		return 0, fmt.Errorf("count cadd rows: %w", err)
	}
	return count, nil
}

// Load bulk-loads CADD scores from a TSV file (optionally gzipped) using
// DuckDB's read_csv. Comment lines are skipped, so both the "## CADD ..."
// banner and the header are ignored:
//
//	## CADD GRCh37-v1.4 (c) University of Washington, Hudson-Alpha Institute for Biotechnology and Berlin Institute of Health 2013-2018. All rights reserved.
//	#Chrom	Pos	Ref	Alt	RawScore	PHRED
//	1	10001	T	A	0.337819	6.887
//
// Any data already in the store is replaced.
func (s *Store) Load(tsvPath string) error {
	fp, err := StatFile(tsvPath)
	if err != nil {
		return fmt.Errorf("stat cadd file: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin load: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM cadd`); err != nil {
		return fmt.Errorf("clear cadd table: %w", err)
	}

	query := fmt.Sprintf(`INSERT INTO cadd
		SELECT regexp_replace(column0, '^chr', ''), column1, column2, column3, column4, column5
		FROM read_csv('%s', delim='\t', header=false, comment='#', auto_detect=false,
			columns={
				'column0': 'VARCHAR',
				'column1': 'BIGINT',
				'column2': 'VARCHAR',
				'column3': 'VARCHAR',
				'column4': 'VARCHAR',
				'column5': 'VARCHAR'
			})`, strings.ReplaceAll(tsvPath, "'", "''"))
	if _, err := tx.Exec(query); err != nil {
		return fmt.Errorf("loading CADD data: %w", err)
	}

	if _, err := tx.Exec(`DELETE FROM cadd_source`); err != nil {
		return fmt.Errorf("clear cadd source: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO cadd_source VALUES (?, ?, ?)`,
		fp.Path, fp.Size, fp.ModTime.UnixNano()); err != nil {
		return fmt.Errorf("record cadd source: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit load: %w", err)
	}

	s.mem = nil
	if s.cache != nil {
		s.cache.Purge()
	}

	if n, err := s.Count(); err == nil {
		s.logger.Info("loaded cadd scores", zap.String("path", tsvPath), zap.Int64("rows", n))
	}
	return nil
}

// LoadIfChanged loads tsvPath unless the store already holds data from a
// file with the same path, size and modification time. It reports whether
// a load happened.
func (s *Store) LoadIfChanged(tsvPath string) (bool, error) {
	fp, err := StatFile(tsvPath)
	if err != nil {
		return false, fmt.Errorf("stat cadd file: %w", err)
	}
	if prev, ok, err := s.Source(); err != nil {
		return false, err
	} else if ok && prev.Matches(fp) && s.Loaded() {
		s.logger.Debug("cadd scores up to date", zap.String("path", tsvPath))
		return false, nil
	}
	if err := s.Load(tsvPath); err != nil {
		return false, err
	}
	return true, nil
}

// Source returns the fingerprint of the file the store was last loaded from.
func (s *Store) Source() (FileFingerprint, bool, error) {
	var fp FileFingerprint
	var modTime int64
	err := s.db.QueryRow(`SELECT path, size, mod_time FROM cadd_source LIMIT 1`).
		Scan(&fp.Path, &fp.Size, &modTime)
	if errors.Is(err, sql.ErrNoRows) {
		return FileFingerprint{}, false, nil
	}
	if err != nil {
		return FileFingerprint{}, false, fmt.Errorf("read cadd source: %w", err)
	}
	fp.ModTime = unixNanoTime(modTime)
	return fp, true, nil
}

// PreloadToMemory loads all scores into a map so lookups skip DuckDB.
func (s *Store) PreloadToMemory() error {
	rows, err := s.db.Query("SELECT chrom, pos, ref, alt, raw, phred FROM cadd")
	if err != nil {
		return fmt.Errorf("query cadd for preload: %w", err)
	}
	defer rows.Close()

	mem := make(MapLookup)
	for rows.Next() {
		var k Key
		var sc Score
		if err := rows.Scan(&k.Chrom, &k.Pos, &k.Ref, &k.Alt, &sc.Raw, &sc.Scaled); err != nil {
			return fmt.Errorf("scan preload row: %w", err)
		}
		if _, dup := mem[k]; !dup {
			mem[k] = sc
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("preload rows: %w", err)
	}

	s.mem = mem
	s.logger.Info("preloaded cadd scores", zap.Int("rows", len(mem)))
	return nil
}

// MemCacheSize returns the number of preloaded scores, or 0 if not preloaded.
func (s *Store) MemCacheSize() int {
	return len(s.mem)
}

// Lookup returns the score of a single allele. Uses the preloaded map when
// available, then the LRU, then DuckDB.
func (s *Store) Lookup(k Key) (Score, bool, error) {
	k.Chrom = NormalizeChrom(k.Chrom)

	if s.mem != nil {
		return s.mem.Lookup(k)
	}

	if s.cache != nil {
		if c, ok := s.cache.Get(k); ok {
			return c.score, c.ok, nil
		}
	}

	var sc Score
	err := s.lookupPS.QueryRow(k.Chrom, k.Pos, k.Ref, k.Alt).Scan(&sc.Raw, &sc.Scaled)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if s.cache != nil {
			s.cache.Add(k, cached{})
		}
		return Score{}, false, nil
	case err != nil:
		return Score{}, false, fmt.Errorf("cadd lookup %s:%d %s>%s: %w", k.Chrom, k.Pos, k.Ref, k.Alt, err)
	}

	if s.cache != nil {
		s.cache.Add(k, cached{score: sc, ok: true})
	}
	return sc, true, nil
}

// BatchLookup queries scores for many alleles with one join per chunk.
// Alleles without a score are absent from the result.
func (s *Store) BatchLookup(keys []Key) (map[Key]Score, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	if s.mem != nil {
		return s.mem.BatchLookup(keys)
	}

	const chunkSize = 1000
	results := make(map[Key]Score, len(keys))
	for i := 0; i < len(keys); i += chunkSize {
		chunk := keys[i:min(i+chunkSize, len(keys))]

		var sb strings.Builder
		args := make([]any, 0, 4*len(chunk))
		sb.WriteString("SELECT b.chrom, b.pos, b.ref, b.alt, c.raw, c.phred FROM (VALUES ")
		for j, k := range chunk {
			if j > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString("(?,CAST(? AS BIGINT),?,?)")
			args = append(args, NormalizeChrom(k.Chrom), k.Pos, k.Ref, k.Alt)
		}
		sb.WriteString(`) b(chrom, pos, ref, alt)
			JOIN cadd c ON c.chrom=b.chrom AND c.pos=b.pos AND c.ref=b.ref AND c.alt=b.alt`)

		if err := s.collectBatch(sb.String(), args, results); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *Store) collectBatch(query string, args []any, results map[Key]Score) error {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return fmt.Errorf("batch lookup query: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k Key
		var sc Score
		if err := rows.Scan(&k.Chrom, &k.Pos, &k.Ref, &k.Alt, &sc.Raw, &sc.Scaled); err != nil {
			return fmt.Errorf("scan batch result: %w", err)
		}
		if _, exists := results[k]; !exists {
			results[k] = sc
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("batch lookup rows: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.lookupPS != nil {
		s.lookupPS.Close()
	}
	return s.db.Close()
}

// NormalizeChrom strips a leading "chr".
func NormalizeChrom(chrom string) string {
	if len(chrom) > 3 && chrom[:3] == "chr" {
		return chrom[3:]
	}
	return chrom
}
