package registry

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"

	"github.com/lspecian/vexfs-sub000/internal/hash"
)

// Op identifies a journal record type.
type Op uint8

const (
	OpCreate  Op = 1
	OpDelete  Op = 2
	OpAdvance Op = 3
)

// Record is one registry mutation.
//
// OpCreate carries Dimensions and Metric; OpAdvance carries the kernel IDs
// asserted by one successful batch insert so replay can rebuild the
// per-collection ID bitmaps; OpDelete carries only the name.
type Record struct {
	Op         Op
	Name       string
	Dimensions uint32
	Metric     uint32
	IDs        []uint64
}

var (
	errShortRecord  = errors.New("short journal record")
	errRecordTooBig = errors.New("journal record too large")
	errUnknownOp    = errors.New("unknown journal op")
)

const maxJournalRecord = 1 << 24

// Frame: [CRC32C: 4][PayloadLen: 4][Payload].
// Payload: [Op: 1][NameLen: 2][Name][Dims: 4][Metric: 4][IDCount: 4][IDs: 8 each].
// All integers little-endian. CRC covers the payload only.

func (r *Record) payloadSize() int {
	return 1 + 2 + len(r.Name) + 4 + 4 + 4 + 8*len(r.IDs)
}

func (r *Record) encodePayload(buf []byte) {
	buf[0] = byte(r.Op)
	binary.LittleEndian.PutUint16(buf[1:], uint16(len(r.Name)))
	copy(buf[3:], r.Name)
	off := 3 + len(r.Name)
	binary.LittleEndian.PutUint32(buf[off:], r.Dimensions)
	binary.LittleEndian.PutUint32(buf[off+4:], r.Metric)
	binary.LittleEndian.PutUint32(buf[off+8:], uint32(len(r.IDs)))
	off += 12
	for _, id := range r.IDs {
		binary.LittleEndian.PutUint64(buf[off:], id)
		off += 8
	}
}

func decodePayload(buf []byte) (Record, error) {
	var r Record
	if len(buf) < 3 {
		return r, errShortRecord
	}
	r.Op = Op(buf[0])
	if r.Op != OpCreate && r.Op != OpDelete && r.Op != OpAdvance {
		return r, errUnknownOp
	}
	nameLen := int(binary.LittleEndian.Uint16(buf[1:]))
	if len(buf) < 3+nameLen+12 {
		return r, errShortRecord
	}
	r.Name = string(buf[3 : 3+nameLen])
	off := 3 + nameLen
	r.Dimensions = binary.LittleEndian.Uint32(buf[off:])
	r.Metric = binary.LittleEndian.Uint32(buf[off+4:])
	idCount := int(binary.LittleEndian.Uint32(buf[off+8:]))
	off += 12
	if len(buf) < off+8*idCount {
		return r, errShortRecord
	}
	if idCount > 0 {
		r.IDs = make([]uint64, idCount)
		for i := range r.IDs {
			r.IDs[i] = binary.LittleEndian.Uint64(buf[off:])
			off += 8
		}
	}
	return r, nil
}

// JournalOptions configures the registry journal.
type JournalOptions struct {
	// Compressed enables zstd stream compression. Appends after reopen
	// start a new zstd frame; the decoder reads concatenated frames.
	Compressed bool

	// SyncOnAppend fsyncs after every record. Slower, but a crash loses at
	// most the record being written. Ignored when Compressed is set, since
	// the encoder buffers across records.
	SyncOnAppend bool
}

// Journal is an append-only log of registry mutations backed by a local
// file. Records are CRC32C-checked; replay stops at the first torn or
// corrupt record, which recovers cleanly from a crash mid-append.
type Journal struct {
	file *os.File
	buf  *bufio.Writer
	enc  *zstd.Encoder
	w    io.Writer
	opts JournalOptions
}

// OpenJournal opens (creating if absent) the journal at path, replays all
// intact records into replay, and leaves the journal positioned for append.
func OpenJournal(path string, replay func(Record) error, opts JournalOptions) (*Journal, error) {
	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		if err := replayAll(data, opts.Compressed, replay); err != nil {
			return nil, err
		}
	} else if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}

	j := &Journal{file: file, opts: opts}
	if opts.Compressed {
		enc, err := zstd.NewWriter(file)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("create journal compressor: %w", err)
		}
		j.enc = enc
		j.buf = bufio.NewWriter(enc)
	} else {
		j.buf = bufio.NewWriter(file)
	}
	j.w = j.buf
	return j, nil
}

func replayAll(data []byte, compressed bool, replay func(Record) error) error {
	if compressed {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return err
		}
		defer dec.Close()
		data, err = dec.DecodeAll(data, nil)
		if err != nil {
			// Torn compressed tail: replay what decoded.
			if len(data) == 0 {
				return nil
			}
		}
	}

	for len(data) > 0 {
		if len(data) < 8 {
			return nil // torn tail
		}
		crc := binary.LittleEndian.Uint32(data[0:])
		payloadLen := int(binary.LittleEndian.Uint32(data[4:]))
		if payloadLen > maxJournalRecord || len(data) < 8+payloadLen {
			return nil // torn tail
		}
		payload := data[8 : 8+payloadLen]
		if hash.CRC32C(payload) != crc {
			return nil // corrupt tail
		}
		rec, err := decodePayload(payload)
		if err != nil {
			return nil
		}
		if err := replay(rec); err != nil {
			return err
		}
		data = data[8+payloadLen:]
	}
	return nil
}

// Append writes one record and flushes it to the OS.
func (j *Journal) Append(r Record) error {
	size := r.payloadSize()
	if size > maxJournalRecord {
		return errRecordTooBig
	}
	payload := make([]byte, size)
	r.encodePayload(payload)

	var header [8]byte
	binary.LittleEndian.PutUint32(header[0:], hash.CRC32C(payload))
	binary.LittleEndian.PutUint32(header[4:], uint32(size))

	if _, err := j.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := j.w.Write(payload); err != nil {
		return err
	}
	if err := j.buf.Flush(); err != nil {
		return err
	}
	if j.enc != nil {
		if err := j.enc.Flush(); err != nil {
			return err
		}
	} else if j.opts.SyncOnAppend {
		return j.file.Sync()
	}
	return nil
}

// Reset truncates the journal. Called after a snapshot makes the logged
// history redundant.
func (j *Journal) Reset() error {
	if err := j.closeWriters(); err != nil {
		return err
	}
	if err := j.file.Truncate(0); err != nil {
		return err
	}
	if _, err := j.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if j.opts.Compressed {
		enc, err := zstd.NewWriter(j.file)
		if err != nil {
			return err
		}
		j.enc = enc
		j.buf = bufio.NewWriter(enc)
	} else {
		j.buf = bufio.NewWriter(j.file)
	}
	j.w = j.buf
	return nil
}

func (j *Journal) closeWriters() error {
	if err := j.buf.Flush(); err != nil {
		return err
	}
	if j.enc != nil {
		if err := j.enc.Close(); err != nil {
			return err
		}
		j.enc = nil
	}
	return nil
}

// Close flushes and closes the journal file.
func (j *Journal) Close() error {
	if err := j.closeWriters(); err != nil {
		j.file.Close()
		return err
	}
	return j.file.Close()
}
