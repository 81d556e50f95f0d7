// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package rdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/rdbtools/rdbmerge/internal/crc64"
)

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithCompression makes the writer LZF-compress large string payloads.  Off
// by default: uncompressed output is deterministic and loads identically.
func WithCompression() WriterOption {
	return func(w *Writer) {
		w.compress = true
	}
}

// Writer serializes dump data to w.  A Writer is single-use: it accumulates
// the running checksum of everything written, so each output stream needs
// its own Writer.
type Writer struct {
	w        io.Writer
	crc      *crc64.Digest
	compress bool
	used     bool
	n        int64
}

func NewWriter(w io.Writer, opts ...WriterOption) *Writer {
	out := &Writer{
		w:   w,
		crc: crc64.New(),
	}
	for _, opt := range opts {
		opt(out)
	}
	return out
}

// BytesWritten reports the number of bytes emitted so far.
func (w *Writer) BytesWritten() int64 {
	return w.n
}

// WriteImage emits img as a complete dump file: header, aux fields, every
// database in ascending index order, the EOF opcode, and the checksum
// trailer.  The result is independently loadable.
func (w *Writer) WriteImage(img *DumpImage) error {
	if err := w.begin(); err != nil {
		return err
	}
	if err := w.write([]byte(header)); err != nil {
		return err
	}

	for _, aux := range img.Aux {
		buf := []byte{opAux}
		buf, err := appendString(buf, aux.Name, w.compress)
		if err != nil {
			return err
		}
		if buf, err = appendString(buf, aux.Value, w.compress); err != nil {
			return err
		}
		if err := w.write(buf); err != nil {
			return err
		}
	}

	for _, db := range img.Databases() {
		if err := w.writeDatabase(db); err != nil {
			return err
		}
	}

	if err := w.write([]byte{opEOF}); err != nil {
		return err
	}

	// the trailer itself is excluded from the checksum
	var trailer [8]byte
	binary.LittleEndian.PutUint64(trailer[:], w.crc.Sum64())
	n, err := w.w.Write(trailer[:])
	w.n += int64(n)
	if err != nil {
		return fmt.Errorf("rdb: write checksum: %w", err)
	}
	return nil
}

// WriteFragment emits only db's records: no header, no SELECTDB, no EOF
// opcode, no checksum.  Fragments are reassembly input, not loadable dumps.
func (w *Writer) WriteFragment(db *DatabaseSet) error {
	if err := w.begin(); err != nil {
		return err
	}
	for _, rec := range db.Records() {
		if err := w.writeRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeDatabase(db *DatabaseSet) error {
	buf := []byte{opSelectDB}
	buf, err := appendLength(buf, db.Index)
	if err != nil {
		return err
	}
	if hint := db.ResizeHint; hint != nil {
		buf = append(buf, opResizeDB)
		if buf, err = appendLength(buf, hint.TableSize); err != nil {
			return err
		}
		if buf, err = appendLength(buf, hint.ExpiresSize); err != nil {
			return err
		}
	}
	if err := w.write(buf); err != nil {
		return err
	}
	for _, rec := range db.Records() {
		if err := w.writeRecord(rec); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) writeRecord(rec *Record) error {
	var buf []byte
	if rec.HasExpiry {
		buf = append(buf, opExpireMS)
		buf = binary.LittleEndian.AppendUint64(buf, rec.ExpireAtMillis)
	}
	tag, payload, err := encodeValue(rec.Value, w.compress)
	if err != nil {
		return fmt.Errorf("key %q: %w", rec.Key, err)
	}
	buf = append(buf, tag)
	if buf, err = appendString(buf, rec.Key, w.compress); err != nil {
		return err
	}
	buf = append(buf, payload...)
	return w.write(buf)
}

func (w *Writer) begin() error {
	if w.used {
		return errors.New("rdb: Writer is single-use")
	}
	w.used = true
	return nil
}

// write feeds the running checksum before handing bytes to the destination.
func (w *Writer) write(p []byte) error {
	_, _ = w.crc.Write(p)
	n, err := w.w.Write(p)
	w.n += int64(n)
	if err != nil {
		return fmt.Errorf("rdb: write: %w", err)
	}
	return nil
}
