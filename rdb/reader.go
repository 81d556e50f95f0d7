// Copyright 2025 The rdbmerge Authors. All rights reserved.
// Use of this source code is governed by the MIT License
// that can be found in the LICENSE file.

package rdb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"

	"github.com/rdbtools/rdbmerge/internal/crc64"
)

// readerState tracks the reader's position in the opcode stream.
type readerState uint8

const (
	stateStart readerState = iota // header not yet validated
	stateBody                     // reading opcodes
	stateEnd                      // EOF opcode and trailer consumed
)

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithDuplicatePolicy sets how a key that appears twice within the same
// database of one input is handled.  The default is RejectDuplicates.
func WithDuplicatePolicy(p DuplicatePolicy) ReaderOption {
	return func(r *Reader) {
		r.policy = p
	}
}

// Reader decodes one dump file's byte stream into a DumpImage.  It owns its
// cursor and in-progress state, so independent Readers may run on separate
// goroutines without synchronization.
type Reader struct {
	c      cursor
	state  readerState
	policy DuplicatePolicy

	img *DumpImage
	cur *DatabaseSet

	pendingExpiry uint64
	hasExpiry     bool
}

func NewReader(data []byte, opts ...ReaderOption) *Reader {
	r := &Reader{
		c:   cursor{buf: data},
		img: &DumpImage{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ReadImage runs the state machine to completion and returns the decoded
// image.  On ErrChecksumMismatch the returned image is still complete and
// usable; callers that do not verify checksums may proceed with it.  Every
// other error aborts the read and returns a nil image.
func (r *Reader) ReadImage() (*DumpImage, error) {
	for r.state != stateEnd {
		if err := r.step(); err != nil {
			if r.state == stateEnd && errors.Is(err, ErrChecksumMismatch) {
				return r.img, err
			}
			return nil, err
		}
	}
	return r.img, nil
}

// step performs exactly one state-machine transition.
func (r *Reader) step() error {
	switch r.state {
	case stateStart:
		return r.readHeader()
	case stateBody:
		return r.readOpcode()
	default:
		return errors.New("rdb: reader already consumed its input")
	}
}

func (r *Reader) readHeader() error {
	hdr, err := r.c.take(len(header))
	if err != nil {
		return err
	}
	if string(hdr[:len(magic)]) != magic {
		return fmt.Errorf("rdb: not a dump file: bad magic %q", hdr[:len(magic)])
	}
	version, err := strconv.Atoi(string(hdr[len(magic):]))
	if err != nil || version != Version {
		return fmt.Errorf("%w: %q", ErrUnsupportedVersion, hdr[len(magic):])
	}
	r.state = stateBody
	return nil
}

func (r *Reader) readOpcode() error {
	off := r.c.off
	op, err := r.c.u8()
	if err != nil {
		return err
	}

	switch op {
	case opSelectDB:
		if err := r.checkNoPendingExpiry(off); err != nil {
			return err
		}
		index, err := decodeActualLength(&r.c)
		if err != nil {
			return fmt.Errorf("SELECTDB at offset %d: %w", off, err)
		}
		r.cur = r.img.EnsureDatabase(index)
		return nil

	case opResizeDB:
		if err := r.checkNoPendingExpiry(off); err != nil {
			return err
		}
		if r.cur == nil {
			return fmt.Errorf("rdb: RESIZEDB before any SELECTDB at offset %d", off)
		}
		tableSize, err := decodeActualLength(&r.c)
		if err != nil {
			return fmt.Errorf("RESIZEDB at offset %d: %w", off, err)
		}
		expiresSize, err := decodeActualLength(&r.c)
		if err != nil {
			return fmt.Errorf("RESIZEDB at offset %d: %w", off, err)
		}
		r.cur.ResizeHint = &ResizeHint{TableSize: tableSize, ExpiresSize: expiresSize}
		return nil

	case opExpireMS:
		raw, err := r.c.take(8)
		if err != nil {
			return err
		}
		return r.setPendingExpiry(binary.LittleEndian.Uint64(raw), off)

	case opExpire:
		raw, err := r.c.take(4)
		if err != nil {
			return err
		}
		return r.setPendingExpiry(uint64(binary.LittleEndian.Uint32(raw))*1000, off)

	case opAux:
		if err := r.checkNoPendingExpiry(off); err != nil {
			return err
		}
		name, err := decodeString(&r.c)
		if err != nil {
			return fmt.Errorf("AUX at offset %d: %w", off, err)
		}
		value, err := decodeString(&r.c)
		if err != nil {
			return fmt.Errorf("AUX %q at offset %d: %w", name, off, err)
		}
		r.img.Aux = append(r.img.Aux, AuxPair{Name: name, Value: value})
		return nil

	case opEOF:
		if err := r.checkNoPendingExpiry(off); err != nil {
			return err
		}
		return r.readTrailer()

	default:
		if op > maxTypeTag {
			return fmt.Errorf("%w: 0x%02x at offset %d", ErrUnknownOpcode, op, off)
		}
		return r.readRecord(op, off)
	}
}

// readRecord handles a value-type opcode: key, value, and any pending expiry.
func (r *Reader) readRecord(tag byte, off int) error {
	if r.cur == nil {
		return fmt.Errorf("%w: type 0x%02x at offset %d", ErrRecordBeforeSelectDB, tag, off)
	}
	key, err := decodeString(&r.c)
	if err != nil {
		return fmt.Errorf("record at offset %d: %w", off, err)
	}
	value, err := decodeValue(tag, &r.c)
	if err != nil {
		return fmt.Errorf("key %q in db %d at offset %d: %w", key, r.cur.Index, off, err)
	}
	rec := &Record{Key: key, Value: value}
	if r.hasExpiry {
		rec.ExpireAtMillis = r.pendingExpiry
		rec.HasExpiry = true
		r.hasExpiry = false
	}
	return r.cur.Set(rec, r.policy == OverwriteDuplicates)
}

// readTrailer consumes the 8-byte checksum and verifies it against the bytes
// read so far.  An all-zero trailer means the producer did not checksum.
func (r *Reader) readTrailer() error {
	bodyEnd := r.c.off // includes the EOF opcode byte
	raw, err := r.c.take(8)
	if err != nil {
		return err
	}
	if n := r.c.remaining(); n != 0 {
		return fmt.Errorf("rdb: %d trailing bytes after checksum", n)
	}
	r.state = stateEnd

	expected := binary.LittleEndian.Uint64(raw)
	if expected == 0 {
		return nil
	}
	if actual := crc64.Checksum(r.c.buf[:bodyEnd]); actual != expected {
		return fmt.Errorf("%w: file declares %016x, computed %016x", ErrChecksumMismatch, expected, actual)
	}
	return nil
}

func (r *Reader) setPendingExpiry(atMillis uint64, off int) error {
	if r.hasExpiry {
		return fmt.Errorf("rdb: consecutive expiry opcodes at offset %d", off)
	}
	r.pendingExpiry = atMillis
	r.hasExpiry = true
	return nil
}

func (r *Reader) checkNoPendingExpiry(off int) error {
	if r.hasExpiry {
		return fmt.Errorf("rdb: expiry opcode not followed by a record (offset %d)", off)
	}
	return nil
}
