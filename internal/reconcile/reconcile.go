// Package reconcile loads the bibliographic source files into the store.
//
// A pass runs three steps in order: curated institution coordinates, DBLP
// papers, then OpenAlex authorships. Every step is an idempotent
// create-or-update, so a pass can be re-run over the same files at any time.
// Store calls go through a storage.Supervisor, which reconnects and retries
// on transient connection failures.
package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gameleadership/leadmap/internal/directory"
	"github.com/gameleadership/leadmap/internal/storage"
	"github.com/rs/zerolog"
)

// DefaultProgressEvery is how many papers or lines pass between progress logs.
const DefaultProgressEvery = 200

// UnknownAuthor names authors whose record carries no display name.
const UnknownAuthor = "Unknown"

// Outcome tags what happened to one line of the authorships stream.
type Outcome int

const (
	OutcomeBlank Outcome = iota
	OutcomeMalformed
	OutcomeNoKey
	OutcomePaperMiss
	OutcomeLinked
)

func (o Outcome) String() string {
	switch o {
	case OutcomeBlank:
		return "blank"
	case OutcomeMalformed:
		return "malformed"
	case OutcomeNoKey:
		return "no-key"
	case OutcomePaperMiss:
		return "paper-miss"
	case OutcomeLinked:
		return "linked"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// GeoStats reports the institutions geo step.
type GeoStats struct {
	FileMissing bool `json:"file_missing,omitempty"`
	Upserted    int  `json:"upserted"`
	Skipped     int  `json:"skipped"`
}

// PaperStats reports the papers step.
type PaperStats struct {
	Upserted     int `json:"upserted"`
	Dropped      int `json:"dropped"`
	DOIConflicts int `json:"doi_conflicts"`
}

// AuthorshipStats reports the authorships step. Skipped includes malformed
// lines; Linked counts every triple processed, Created only new rows.
type AuthorshipStats struct {
	FileMissing   bool `json:"file_missing,omitempty"`
	Lines         int  `json:"lines"`
	Processed     int  `json:"processed"`
	Linked        int  `json:"linked"`
	Created       int  `json:"created"`
	Skipped       int  `json:"skipped"`
	Malformed     int  `json:"malformed"`
	PapersMissing int  `json:"papers_missing"`
	IDConflicts   int  `json:"id_conflicts"`
}

// Summary is the result of a full pass.
type Summary struct {
	Institutions GeoStats        `json:"institutions"`
	Papers       PaperStats      `json:"papers"`
	Authorships  AuthorshipStats `json:"authorships"`
}

// Reconciler runs reconciliation steps against a supervised store.
type Reconciler struct {
	sup           *storage.Supervisor
	log           zerolog.Logger
	progressEvery int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the logger for progress and conflict reports.
func WithLogger(log zerolog.Logger) Option {
	return func(r *Reconciler) {
		r.log = log
	}
}

// WithProgressEvery sets the progress log interval. Values below 1 are ignored.
func WithProgressEvery(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.progressEvery = n
		}
	}
}

// New creates a Reconciler over sup.
func New(sup *storage.Supervisor, opts ...Option) *Reconciler {
	r := &Reconciler{
		sup:           sup,
		log:           zerolog.Nop(),
		progressEvery: DefaultProgressEvery,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes the geo, papers and authorships steps in order. A missing geo
// or authorships file skips that step; a missing papers file aborts with
// ErrPapersFileMissing. The summary is filled in as far as the pass got.
func (r *Reconciler) Run(ctx context.Context, in Inputs) (Summary, error) {
	var sum Summary

	if fileExists(in.GeoPath) {
		records, err := ReadGeoFile(in.GeoPath)
		if err != nil {
			return sum, err
		}
		sum.Institutions, err = r.SeedInstitutionsGeo(ctx, records)
		if err != nil {
			return sum, err
		}
	} else {
		sum.Institutions.FileMissing = true
		r.log.Info().Str("path", in.GeoPath).Msg("no geo file, skipping")
	}

	papers, err := ReadPapersFile(in.PapersPath)
	if err != nil {
		return sum, err
	}
	sum.Papers, err = r.SeedPapers(ctx, papers)
	if err != nil {
		return sum, err
	}

	if !fileExists(in.AuthorshipsPath) {
		sum.Authorships.FileMissing = true
		r.log.Info().Str("path", in.AuthorshipsPath).Msg("no OpenAlex JSONL, skipping authorships")
		return sum, nil
	}
	total, err := CountFileLines(in.AuthorshipsPath)
	if err != nil {
		return sum, err
	}
	f, err := os.Open(in.AuthorshipsPath)
	if err != nil {
		return sum, fmt.Errorf("opening authorships file: %w", err)
	}
	defer f.Close()

	sum.Authorships, err = r.SeedAuthorships(ctx, f, total)
	return sum, err
}

// SeedInstitutionsGeo upserts the curated institutions. Records without an
// id are skipped.
func (r *Reconciler) SeedInstitutionsGeo(ctx context.Context, records []GeoRecord) (GeoStats, error) {
	var stats GeoStats
	for _, g := range records {
		id := strings.TrimSpace(g.ID)
		if id == "" {
			stats.Skipped++
			continue
		}
		err := r.sup.Do(ctx, "upsert geo institution", func(db *storage.DB) error {
			return db.UpsertInstitution(ctx, id, g.InstitutionFields)
		})
		if err != nil {
			return stats, err
		}
		stats.Upserted++
	}
	r.log.Info().Int("upserted", stats.Upserted).Int("skipped", stats.Skipped).Msg("institutions (geo) upserted")
	return stats, nil
}

// SeedPapers upserts papers by DBLP key. Records without a key are dropped.
// A DOI already owned by another paper is left off the write.
func (r *Reconciler) SeedPapers(ctx context.Context, records []PaperRecord) (PaperStats, error) {
	var stats PaperStats
	for _, rec := range records {
		up := rec.Upsert()
		if up.DBLPKey == "" {
			stats.Dropped++
			continue
		}

		if up.DOI != "" {
			owner, err := storage.Call(ctx, r.sup, "get paper by doi", func(db *storage.DB) (*directory.Paper, error) {
				return db.GetPaperByDOI(ctx, up.DOI)
			})
			if err != nil {
				return stats, err
			}
			if owner != nil && owner.DBLPKey != up.DBLPKey {
				r.log.Info().
					Str("doi", up.DOI).
					Str("dblp_key", up.DBLPKey).
					Str("owner", owner.DBLPKey).
					Msg("skip DOI, in use")
				stats.DOIConflicts++
				up.DOI = ""
			}
		}

		err := r.sup.Do(ctx, "upsert paper", func(db *storage.DB) error {
			_, err := db.UpsertPaper(ctx, up)
			return err
		})
		if err != nil {
			return stats, err
		}
		stats.Upserted++
		if stats.Upserted%r.progressEvery == 0 {
			r.log.Info().Int("upserted", stats.Upserted).Msg("papers progress")
		}
	}
	r.log.Info().
		Int("upserted", stats.Upserted).
		Int("dropped", stats.Dropped).
		Int("doi_conflicts", stats.DOIConflicts).
		Msg("papers upserted")
	return stats, nil
}

// PaperIDs are external identifiers to attach to a paper.
type PaperIDs struct {
	DOI        string
	OpenAlexID string
}

// SafeUpdatePaperIDs writes ids onto paper unless another paper already owns
// them. Conflicts are logged and counted, never reassigned.
func (r *Reconciler) SafeUpdatePaperIDs(ctx context.Context, paper *directory.Paper, ids PaperIDs) (conflicts int, err error) {
	var write PaperIDs

	if ids.DOI != "" && ids.DOI != paper.DOI {
		owner, err := storage.Call(ctx, r.sup, "get paper by doi", func(db *storage.DB) (*directory.Paper, error) {
			return db.GetPaperByDOI(ctx, ids.DOI)
		})
		if err != nil {
			return conflicts, err
		}
		if owner == nil || owner.ID == paper.ID {
			write.DOI = ids.DOI
		} else {
			r.log.Info().Str("doi", ids.DOI).Str("owner", owner.DBLPKey).Msg("skip DOI, in use")
			conflicts++
		}
	}

	if ids.OpenAlexID != "" && ids.OpenAlexID != paper.OpenAlexID {
		owner, err := storage.Call(ctx, r.sup, "get paper by openalex id", func(db *storage.DB) (*directory.Paper, error) {
			return db.GetPaperByOpenAlexID(ctx, ids.OpenAlexID)
		})
		if err != nil {
			return conflicts, err
		}
		if owner == nil || owner.ID == paper.ID {
			write.OpenAlexID = ids.OpenAlexID
		} else {
			r.log.Info().Str("openalex_id", ids.OpenAlexID).Str("owner", owner.DBLPKey).Msg("skip OpenAlex ID, in use")
			conflicts++
		}
	}

	if write.DOI == "" && write.OpenAlexID == "" {
		return conflicts, nil
	}
	err = r.sup.Do(ctx, "update paper ids", func(db *storage.DB) error {
		return db.UpdatePaperIDs(ctx, paper.ID, write.DOI, write.OpenAlexID)
	})
	return conflicts, err
}

// SeedAuthorships streams OpenAlex works from in, one JSON object per line.
// total is the expected line count used for progress; 0 disables percentages.
func (r *Reconciler) SeedAuthorships(ctx context.Context, in io.Reader, total int) (AuthorshipStats, error) {
	stats := AuthorshipStats{Lines: total}
	if total > 0 {
		r.log.Info().Int("lines", total).Msg("OpenAlex authorships to process")
	}

	scanner := newLineScanner(in)
	lineNo := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		lineNo++

		res, err := r.processLine(ctx, scanner.Bytes())
		if err != nil {
			return stats, fmt.Errorf("line %d: %w", lineNo, err)
		}

		switch res.outcome {
		case OutcomeBlank:
		case OutcomeMalformed:
			stats.Malformed++
			stats.Skipped++
			r.log.Debug().Int("line", lineNo).Msg("skipping malformed line")
		case OutcomeNoKey:
			stats.Skipped++
		case OutcomePaperMiss:
			stats.PapersMissing++
		case OutcomeLinked:
			stats.Linked += res.links
			stats.Created += res.created
			stats.IDConflicts += res.conflicts
		}
		if res.outcome != OutcomeBlank {
			stats.Processed++
		}

		if lineNo%r.progressEvery == 0 {
			r.logProgress(lineNo, total, stats)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("reading authorships: %w", err)
	}
	if stats.Lines == 0 {
		stats.Lines = lineNo
	}

	r.log.Info().
		Int("linked", stats.Linked).
		Int("created", stats.Created).
		Int("skipped", stats.Skipped).
		Int("malformed", stats.Malformed).
		Int("papers_missing", stats.PapersMissing).
		Msg("authorships done")
	return stats, nil
}

func (r *Reconciler) logProgress(lineNo, total int, stats AuthorshipStats) {
	ev := r.log.Info().Int("line", lineNo).Int("links", stats.Linked)
	if total > 0 {
		ev = ev.Int("total", total).Float64("pct", float64(lineNo)*100/float64(total))
	}
	ev.Msg("authorships progress")
}

type lineResult struct {
	outcome   Outcome
	links     int
	created   int
	conflicts int
}

// processLine reconciles one OpenAlex work. Only store failures are errors.
func (r *Reconciler) processLine(ctx context.Context, line []byte) (lineResult, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return lineResult{outcome: OutcomeBlank}, nil
	}

	var work WorkRecord
	if err := json.Unmarshal(line, &work); err != nil {
		return lineResult{outcome: OutcomeMalformed}, nil
	}

	key := strings.TrimSpace(work.DBLPKey)
	if key == "" {
		return lineResult{outcome: OutcomeNoKey}, nil
	}

	paper, err := storage.Call(ctx, r.sup, "get paper by dblp key", func(db *storage.DB) (*directory.Paper, error) {
		return db.GetPaperByDBLPKey(ctx, key)
	})
	if err != nil {
		return lineResult{}, err
	}
	if paper == nil {
		return lineResult{outcome: OutcomePaperMiss}, nil
	}

	res := lineResult{outcome: OutcomeLinked}

	ids := PaperIDs{OpenAlexID: strings.TrimSpace(work.ID), DOI: StripDOIResolver(work.DOI)}
	if ids.OpenAlexID != "" || ids.DOI != "" {
		if ids.DOI == "" {
			ids.DOI = paper.DOI
		}
		res.conflicts, err = r.SafeUpdatePaperIDs(ctx, paper, ids)
		if err != nil {
			return res, err
		}
	}

	for _, as := range work.Authorships {
		author, err := r.resolveAuthor(ctx, as)
		if err != nil {
			return res, err
		}

		var order *int
		if n, ok := ToOrder(as.AuthorPosition); ok {
			order = &n
		}

		for _, inst := range as.Institutions {
			instID := InstIDFromExternal(inst.ROR, inst.DisplayName)
			if instID == "" {
				continue
			}

			err := r.sup.Do(ctx, "upsert authorship institution", func(db *storage.DB) error {
				return db.UpsertInstitution(ctx, instID, inst.Fields())
			})
			if err != nil {
				return res, err
			}

			created, err := storage.Call(ctx, r.sup, "link authorship", func(db *storage.DB) (bool, error) {
				return db.LinkAuthorship(ctx, directory.Authorship{
					PaperID:       paper.ID,
					AuthorID:      author.ID,
					InstitutionID: instID,
					Order:         order,
				})
			})
			if err != nil {
				return res, err
			}
			res.links++
			if created {
				res.created++
			}
		}
	}
	return res, nil
}

// resolveAuthor finds or creates the author of one authorship: by OpenAlex
// id when present, else the first author with exactly the same name.
func (r *Reconciler) resolveAuthor(ctx context.Context, as WorkAuthorship) (*directory.Author, error) {
	name := strings.TrimSpace(as.Author.DisplayName)
	if name == "" {
		name = UnknownAuthor
	}

	if oaID := strings.TrimSpace(as.Author.ID); oaID != "" {
		return storage.Call(ctx, r.sup, "upsert author by openalex id", func(db *storage.DB) (*directory.Author, error) {
			return db.UpsertAuthorByOpenAlexID(ctx, oaID, name)
		})
	}

	author, err := storage.Call(ctx, r.sup, "find author by name", func(db *storage.DB) (*directory.Author, error) {
		return db.FindAuthorByName(ctx, name)
	})
	if err != nil || author != nil {
		return author, err
	}
	return storage.Call(ctx, r.sup, "create author", func(db *storage.DB) (*directory.Author, error) {
		return db.CreateAuthor(ctx, name)
	})
}
