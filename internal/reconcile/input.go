package reconcile

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Input file names inside the data directory.
const (
	GeoFile         = "chiplay_institutions_geo.json"
	PapersFile      = "chiplay_papers.json"
	PapersWithDOI   = "chiplay_papers_with_doi.json"
	AuthorshipsFile = "openalex_authorships.jsonl"
)

// MaxLineCapacity bounds a single line of the authorships stream. OpenAlex
// works with hundreds of authors run well past the usual 64KB scanner limit.
const MaxLineCapacity = 16 * 1024 * 1024

// ErrPapersFileMissing is returned when neither papers file exists.
var ErrPapersFileMissing = errors.New("missing papers JSON")

// Inputs locates the three source files of a pass.
type Inputs struct {
	GeoPath         string
	PapersPath      string
	AuthorshipsPath string
}

// DefaultInputs resolves the standard file names under dir. The DOI-enriched
// papers file is preferred when present.
func DefaultInputs(dir string) Inputs {
	papers := filepath.Join(dir, PapersWithDOI)
	if !fileExists(papers) {
		papers = filepath.Join(dir, PapersFile)
	}
	return Inputs{
		GeoPath:         filepath.Join(dir, GeoFile),
		PapersPath:      papers,
		AuthorshipsPath: filepath.Join(dir, AuthorshipsFile),
	}
}

// ReadGeoFile parses the institutions geo file, a JSON array.
func ReadGeoFile(path string) ([]GeoRecord, error) {
	var records []GeoRecord
	if err := readJSONArray(path, &records); err != nil {
		return nil, fmt.Errorf("reading geo file: %w", err)
	}
	return records, nil
}

// ReadPapersFile parses the papers file, a JSON array. A missing file is
// reported as ErrPapersFileMissing. Elements that do not decode as a paper
// object become empty records, which SeedPapers drops.
func ReadPapersFile(path string) ([]PaperRecord, error) {
	if !fileExists(path) {
		return nil, fmt.Errorf("%w: %s", ErrPapersFileMissing, path)
	}
	var raw []json.RawMessage
	if err := readJSONArray(path, &raw); err != nil {
		return nil, fmt.Errorf("reading papers file: %w", err)
	}
	records := make([]PaperRecord, len(raw))
	for i, elem := range raw {
		if err := json.Unmarshal(elem, &records[i]); err != nil {
			records[i] = PaperRecord{}
		}
	}
	return records, nil
}

func readJSONArray(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := json.NewDecoder(bufio.NewReader(f)).Decode(v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// CountLines counts newline-terminated lines, plus a trailing unterminated
// one, without holding the file in memory.
func CountLines(r io.Reader) (int, error) {
	buf := make([]byte, 64*1024)
	count := 0
	last := byte('\n')
	for {
		n, err := r.Read(buf)
		for _, b := range buf[:n] {
			if b == '\n' {
				count++
			}
		}
		if n > 0 {
			last = buf[n-1]
		}
		if err == io.EOF {
			if last != '\n' {
				count++
			}
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("counting lines: %w", err)
		}
	}
}

// CountFileLines is CountLines over the file at path.
func CountFileLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return CountLines(f)
}

func newLineScanner(r io.Reader) *bufio.Scanner {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), MaxLineCapacity)
	return s
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
