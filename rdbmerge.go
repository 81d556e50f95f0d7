// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package rdbmerge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgryski/go-farm"

	"github.com/rdbtools/rdbmerge/internal/mmap"
	"github.com/rdbtools/rdbmerge/rdb"
)

const (
	partPrefix = "PART_"
	mergeName  = "MERGE"
	dumpExt    = ".rdb"
)

// Option configures a Merger.
type Option func(*Merger)

// WithLogger sets an optional logger for progress updates.  If not provided,
// no logging output will be produced.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Merger) {
		m.logger = logger
	}
}

// WithDuplicatePolicy sets how duplicate keys across (and within) inputs are
// handled.  The default rejects them.
func WithDuplicatePolicy(p rdb.DuplicatePolicy) Option {
	return func(m *Merger) {
		m.policy = p
	}
}

// WithFragmentDatabases selects the database indices that additionally get a
// PART_<index>.rdb fragment.  Indices absent from the merge produce nothing.
func WithFragmentDatabases(indices ...uint64) Option {
	return func(m *Merger) {
		for _, n := range indices {
			m.fragments.Add(n)
		}
	}
}

// WithoutChecksumVerification downgrades input checksum mismatches from
// fatal errors to warnings.
func WithoutChecksumVerification() Option {
	return func(m *Merger) {
		m.verifyChecksum = false
	}
}

// WithCompression makes the output writers LZF-compress large strings.
func WithCompression() Option {
	return func(m *Merger) {
		m.compress = true
	}
}

// Merger reads input dumps, merges them, and writes the merged outputs into
// an existing output directory.
type Merger struct {
	outputDir      string
	policy         rdb.DuplicatePolicy
	fragments      dbSet
	verifyChecksum bool
	compress       bool
	logger         *slog.Logger
}

func NewMerger(outputDir string, opts ...Option) (*Merger, error) {
	stats, err := os.Stat(outputDir)
	if err != nil {
		return nil, fmt.Errorf("output directory: %w", err)
	}
	if !stats.IsDir() {
		return nil, fmt.Errorf("output directory %q is not a directory", outputDir)
	}
	m := &Merger{
		outputDir:      outputDir,
		policy:         rdb.RejectDuplicates,
		fragments:      make(dbSet),
		verifyChecksum: true,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Run merges the input dump files and writes MERGE.rdb plus any requested
// fragments.  No output file appears unless every input decoded and every
// output was produced: a partial merge must not be mistakable for a complete
// one.
func (m *Merger) Run(inputs ...string) error {
	if len(inputs) == 0 {
		return errors.New("rdbmerge: no input files")
	}

	images, err := m.readAll(inputs)
	if err != nil {
		return err
	}

	merged, err := Merge(images, m.policy)
	if err != nil {
		return err
	}
	return m.writeOutputs(merged)
}

// readAll decodes every input on its own goroutine.  Readers share nothing,
// so this needs no locking; errors are reported in input order.
func (m *Merger) readAll(paths []string) ([]*rdb.DumpImage, error) {
	images := make([]*rdb.DumpImage, len(paths))
	errs := make([]error, len(paths))

	var wg sync.WaitGroup
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			images[i], errs[i] = m.readFile(path)
		}(i, path)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("%s: %w", paths[i], err)
		}
	}
	return images, nil
}

func (m *Merger) readFile(path string) (*rdb.DumpImage, error) {
	m.logger.Info("reading dump", "path", path)

	f, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = f.Close()
	}()

	r := rdb.NewReader(f.Data(), rdb.WithDuplicatePolicy(m.policy))
	img, err := r.ReadImage()
	if err != nil {
		if errors.Is(err, rdb.ErrChecksumMismatch) && !m.verifyChecksum {
			m.logger.Warn("ignoring checksum mismatch", "path", path, "err", err)
		} else {
			return nil, err
		}
	}

	records := 0
	for _, db := range img.Databases() {
		records += db.Len()
	}
	m.logger.Info("read dump", "path", path, "databases", len(img.Databases()), "records", records)
	return img, nil
}

type output struct {
	name string
	data []byte
}

// writeOutputs encodes the merged image into every requested artifact in
// parallel, then places them all atomically: temp files first, renames only
// once every write succeeded.
func (m *Merger) writeOutputs(img *rdb.DumpImage) error {
	outputs := []*output{{name: mergeName + dumpExt}}
	var fragDBs []*rdb.DatabaseSet
	for _, db := range img.Databases() {
		if m.fragments.Contains(db.Index) {
			outputs = append(outputs, &output{name: partFileName(db.Index)})
			fragDBs = append(fragDBs, db)
		}
	}

	errs := make([]error, len(outputs))
	var wg sync.WaitGroup
	for i, out := range outputs {
		wg.Add(1)
		go func(i int, out *output) {
			defer wg.Done()
			if i == 0 {
				out.data, errs[i] = m.encodeFull(img)
			} else {
				out.data, errs[i] = m.encodeFragment(fragDBs[i-1])
			}
		}(i, out)
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("%s: %w", outputs[i].name, err)
		}
	}

	return m.placeOutputs(outputs)
}

func (m *Merger) encodeFull(img *rdb.DumpImage) ([]byte, error) {
	var buf bytes.Buffer
	if err := rdb.NewWriter(&buf, m.writerOptions()...).WriteImage(img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Merger) encodeFragment(db *rdb.DatabaseSet) ([]byte, error) {
	var buf bytes.Buffer
	if err := rdb.NewWriter(&buf, m.writerOptions()...).WriteFragment(db); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (m *Merger) writerOptions() []rdb.WriterOption {
	if m.compress {
		return []rdb.WriterOption{rdb.WithCompression()}
	}
	return nil
}

// placeOutputs writes every artifact to a temp file in the output directory,
// then renames them all into place.
func (m *Merger) placeOutputs(outputs []*output) error {
	temps := make([]string, 0, len(outputs))
	cleanup := func() {
		for _, tmp := range temps {
			_ = os.Remove(tmp)
		}
	}

	for _, out := range outputs {
		f, err := os.CreateTemp(m.outputDir, "rdbmerge.*.tmp")
		if err != nil {
			cleanup()
			return fmt.Errorf("os.CreateTemp: %w", err)
		}
		temps = append(temps, f.Name())
		if _, err := f.Write(out.data); err != nil {
			_ = f.Close()
			cleanup()
			return fmt.Errorf("write %s: %w", out.name, err)
		}
		if err := f.Close(); err != nil {
			cleanup()
			return fmt.Errorf("close %s: %w", out.name, err)
		}
	}

	for i, out := range outputs {
		path := filepath.Join(m.outputDir, out.name)
		if err := os.Rename(temps[i], path); err != nil {
			cleanup()
			return fmt.Errorf("os.Rename: %w", err)
		}
		m.logger.Info("wrote output",
			"path", path,
			"bytes", len(out.data),
			"fingerprint", fmt.Sprintf("%016x", farm.Fingerprint64(out.data)))
	}
	return nil
}

func partFileName(index uint64) string {
	return fmt.Sprintf("%s%08x%s", partPrefix, index, dumpExt)
}
