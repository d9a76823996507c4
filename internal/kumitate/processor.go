package kumitate

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/mizumoto/kumitate/internal/pkg/collection"
)

// maxRounds bounds the retry loop for files whose directives reference
// types that do not exist yet. Generated artifacts can appear between
// rounds; a file still deferring after the last round is reported.
const maxRounds = 3

// Processor drives a whole check run: it parses the given files for
// component directives, resolves and validates every declared component,
// and writes the validation reports. Files are parsed concurrently;
// resolution and validation are single-threaded per round.
type Processor struct {
	opts     Options
	out      io.Writer
	showPlan bool
}

// NewProcessor creates a processor writing reports to out.
func NewProcessor(opts Options, out io.Writer, showPlan bool) *Processor {
	return &Processor{
		opts:     opts,
		out:      out,
		showPlan: showPlan,
	}
}

// ProcessFiles checks the given Go files. Files whose directives reference
// not-yet-present types are retried in later rounds; everything else is
// resolved, validated, and reported. The returned error is non-nil when any
// component failed validation or a file never became parseable.
func (p *Processor) ProcessFiles(ctx context.Context, files []string) error {
	pending := collection.NewQueue[string]()
	for _, f := range files {
		pending.Push(f)
	}

	errorCount := 0
	for round := 1; pending.Len() > 0 && round <= maxRounds; round++ {
		batch := make([]string, 0, pending.Len())
		for pending.Len() > 0 {
			batch = append(batch, pending.Pop())
		}
		slog.Debug("processing round", "round", round, "files", len(batch))

		deferred, roundErrors, err := p.processRound(ctx, batch)
		if err != nil {
			return err
		}
		errorCount += roundErrors

		if len(deferred) == len(batch) {
			// No file made progress; retrying cannot help.
			for _, f := range deferred {
				errorCount++
				fmt.Fprintf(p.out, "%s: directives reference types that do not exist\n", f)
			}
			break
		}
		for _, f := range deferred {
			pending.Push(f)
		}
	}

	for pending.Len() > 0 {
		errorCount++
		fmt.Fprintf(p.out, "%s: directives reference types that do not exist\n", pending.Pop())
	}

	if errorCount > 0 {
		return fmt.Errorf("validation failed with %d error(s)", errorCount)
	}
	return nil
}

type fileDirectives struct {
	filename    string
	descriptors []*ComponentDescriptor
	deferred    bool
}

// processRound parses the batch concurrently, then resolves and validates
// every parsed component against one shared inject registry. It returns the
// files deferred to the next round and the number of validation errors.
func (p *Processor) processRound(ctx context.Context, files []string) ([]string, int, error) {
	results := make([]*fileDirectives, len(files))

	g, _ := errgroup.WithContext(ctx)
	for i, filename := range files {
		g.Go(func() error {
			// Each file gets its own parser; package loading does not share
			// state safely across goroutines.
			descriptors, err := NewParser().ParseFile(filename)
			if err != nil {
				if errors.Is(err, ErrTypeNotPresent) {
					slog.Debug("deferring file to next round", "file", filename, "reason", err)
					results[i] = &fileDirectives{filename: filename, deferred: true}
					return nil
				}
				return fmt.Errorf("parse file %s: %w", filename, err)
			}
			results[i] = &fileDirectives{filename: filename, descriptors: descriptors}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	// One registry per round: implicit injection bindings are memoized
	// across every component checked in the round and discarded afterwards.
	registry := NewInjectRegistry(StructInjectSupplier{})
	validator := NewValidator(p.opts)

	var deferred []string
	errorCount := 0
	for _, result := range results {
		if result.deferred {
			deferred = append(deferred, result.filename)
			continue
		}
		if len(result.descriptors) == 0 {
			continue
		}
		slog.Info("found component directives", "file", result.filename, "count", len(result.descriptors))

		output, fileErrors, fileDeferred, err := p.checkDescriptors(result.descriptors, registry, validator)
		if err != nil {
			return nil, 0, err
		}
		if fileDeferred {
			slog.Debug("deferring file to next round", "file", result.filename)
			deferred = append(deferred, result.filename)
			continue
		}
		if _, err := p.out.Write(output); err != nil {
			return nil, 0, fmt.Errorf("write report: %w", err)
		}
		errorCount += fileErrors
	}

	return deferred, errorCount, nil
}

// checkDescriptors resolves and validates one file's components, buffering
// the rendered reports. A deferral discards everything rendered for the
// file so a retry in a later round does not report or count the same
// components twice.
func (p *Processor) checkDescriptors(descriptors []*ComponentDescriptor, registry *InjectRegistry, validator *Validator) ([]byte, int, bool, error) {
	var buf bytes.Buffer
	errorCount := 0
	for _, desc := range descriptors {
		graph, err := ResolveGraph(desc, registry)
		if err != nil {
			if errors.Is(err, ErrTypeNotPresent) {
				return nil, 0, true, nil
			}
			return nil, 0, false, fmt.Errorf("resolve component %s: %w", desc.Name, err)
		}

		report := validator.Validate(graph)
		if err := report.Write(&buf); err != nil {
			return nil, 0, false, fmt.Errorf("write report: %w", err)
		}
		errorCount += report.Count(SeverityError)

		if p.showPlan && !report.HasErrors() {
			if err := writePlan(&buf, PlanInitialization(graph), 0); err != nil {
				return nil, 0, false, fmt.Errorf("write plan: %w", err)
			}
		}
	}
	return buf.Bytes(), errorCount, false, nil
}

// writePlan renders an initialization plan, one indented block per
// component in hierarchy order.
func writePlan(w io.Writer, plan *Plan, depth int) error {
	indent := strings.Repeat("  ", depth)
	if _, err := fmt.Fprintf(w, "%splan %s\n", indent, plan.Component.Name); err != nil {
		return err
	}
	for _, step := range plan.Steps {
		if _, err := fmt.Fprintf(w, "%s  %s\n", indent, step); err != nil {
			return err
		}
	}
	for _, child := range plan.Children {
		if err := writePlan(w, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}
