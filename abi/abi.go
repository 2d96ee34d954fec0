// Package abi defines the fixed-layout binary records and constants of the
// VexFS kernel module's ioctl interface.
//
// Field order, field sizes, and byte order are an external contract: every
// record is packed little-endian with no reordering, and the reserved padding
// words are written as zero byte-for-byte. Records that embed raw buffer
// addresses (BatchInsert, Search) are modeled here as structs carrying Go
// slices; only the device boundary converts those slices to addresses and
// calls Pack. The rest of the codebase never touches raw pointers.
package abi

import "encoding/binary"

// Record sizes in bytes. Part of the external contract.
const (
	VectorFileInfoSize = 40
	BatchInsertSize    = 32
	SearchSize         = 48
)

// Element types.
const (
	ElementTypeFloat32 = 0x01
)

// Storage formats and compression types. The current kernel module supports
// exactly one of each.
const (
	StorageFormatDense = 0x01
	CompressionNone    = 0x00
)

// DefaultAlignment is the vector data alignment in bytes required by the
// kernel's SIMD paths.
const DefaultAlignment = 32

// Insert flags. Overwrite and Append select the write mode; Validate requests
// duplicate-ID checking before the write.
const (
	FlagOverwrite = 0x01
	FlagAppend    = 0x02
	FlagValidate  = 0x04
)

// Dimension and search-limit bounds enforced before any record is packed.
const (
	MinDimensions = 1
	MaxDimensions = 65536
	MinLimit      = 1
	MaxLimit      = 1000
)

// VectorFileInfo describes a collection's vector file metadata.
//
// Layout (40 bytes, little-endian):
//
//	off  size  field
//	  0     4  dimensions
//	  4     4  element type
//	  8     4  vector count
//	 12     4  storage format
//	 16     8  data offset
//	 24     8  index offset
//	 32     4  compression type
//	 36     4  alignment bytes
type VectorFileInfo struct {
	Dimensions      uint32
	ElementType     uint32
	VectorCount     uint32
	StorageFormat   uint32
	DataOffset      uint64
	IndexOffset     uint64
	CompressionType uint32
	AlignmentBytes  uint32
}

// Marshal packs the record into dst.
func (i *VectorFileInfo) Marshal(dst *[VectorFileInfoSize]byte) {
	binary.LittleEndian.PutUint32(dst[0:], i.Dimensions)
	binary.LittleEndian.PutUint32(dst[4:], i.ElementType)
	binary.LittleEndian.PutUint32(dst[8:], i.VectorCount)
	binary.LittleEndian.PutUint32(dst[12:], i.StorageFormat)
	binary.LittleEndian.PutUint64(dst[16:], i.DataOffset)
	binary.LittleEndian.PutUint64(dst[24:], i.IndexOffset)
	binary.LittleEndian.PutUint32(dst[32:], i.CompressionType)
	binary.LittleEndian.PutUint32(dst[36:], i.AlignmentBytes)
}

// Unmarshal decodes the record from src.
func (i *VectorFileInfo) Unmarshal(src *[VectorFileInfoSize]byte) {
	i.Dimensions = binary.LittleEndian.Uint32(src[0:])
	i.ElementType = binary.LittleEndian.Uint32(src[4:])
	i.VectorCount = binary.LittleEndian.Uint32(src[8:])
	i.StorageFormat = binary.LittleEndian.Uint32(src[12:])
	i.DataOffset = binary.LittleEndian.Uint64(src[16:])
	i.IndexOffset = binary.LittleEndian.Uint64(src[24:])
	i.CompressionType = binary.LittleEndian.Uint32(src[32:])
	i.AlignmentBytes = binary.LittleEndian.Uint32(src[36:])
}

// BatchInsert carries one batch of vectors for insertion.
//
// VectorBits is the flattened bit representation of all vectors (row-major,
// vector-major); IDs is the parallel 64-bit identifier array.
//
// Packed layout (32 bytes, little-endian):
//
//	off  size  field
//	  0     8  vector bits buffer address
//	  8     4  vector count
//	 12     4  dimensions
//	 16     8  ID buffer address
//	 24     4  flags
//	 28     4  reserved (zero)
type BatchInsert struct {
	VectorBits []uint32
	IDs        []uint64
	Dimensions uint32
	Flags      uint32
}

// VectorCount returns the number of vectors in the batch.
func (r *BatchInsert) VectorCount() uint32 {
	return uint32(len(r.IDs))
}

// Pack writes the ioctl record into dst. bitsAddr and idsAddr are the
// addresses of the pinned VectorBits and IDs buffers; the caller must keep
// both buffers alive and unmoved for the full duration of the device call.
func (r *BatchInsert) Pack(dst *[BatchInsertSize]byte, bitsAddr, idsAddr uint64) {
	binary.LittleEndian.PutUint64(dst[0:], bitsAddr)
	binary.LittleEndian.PutUint32(dst[8:], r.VectorCount())
	binary.LittleEndian.PutUint32(dst[12:], r.Dimensions)
	binary.LittleEndian.PutUint64(dst[16:], idsAddr)
	binary.LittleEndian.PutUint32(dst[24:], r.Flags)
	binary.LittleEndian.PutUint32(dst[28:], 0)
}

// Search carries one search request. ResultBits and ResultIDs are
// caller-allocated output buffers sized to K; the kernel writes up to K
// entries and reports the actual count in the packed record.
//
// Packed layout (48 bytes, little-endian):
//
//	off  size  field
//	  0     8  query bits buffer address
//	  8     4  dimensions
//	 12     4  k
//	 16     4  search type (distance code)
//	 20     4  reserved (zero)
//	 24     8  result bits buffer address
//	 32     8  result ID buffer address
//	 40     4  result count (written by the kernel)
//	 44     4  reserved (zero)
type Search struct {
	QueryBits  []uint32
	Dimensions uint32
	K          uint32
	SearchType uint32
	ResultBits []uint32
	ResultIDs  []uint64
}

// Pack writes the ioctl record into dst. The three addresses must point at
// the pinned QueryBits, ResultBits, and ResultIDs buffers; all three must
// stay alive and unmoved until the device call returns.
func (r *Search) Pack(dst *[SearchSize]byte, queryAddr, resultsAddr, idsAddr uint64) {
	binary.LittleEndian.PutUint64(dst[0:], queryAddr)
	binary.LittleEndian.PutUint32(dst[8:], r.Dimensions)
	binary.LittleEndian.PutUint32(dst[12:], r.K)
	binary.LittleEndian.PutUint32(dst[16:], r.SearchType)
	binary.LittleEndian.PutUint32(dst[20:], 0)
	binary.LittleEndian.PutUint64(dst[24:], resultsAddr)
	binary.LittleEndian.PutUint64(dst[32:], idsAddr)
	binary.LittleEndian.PutUint32(dst[40:], 0)
	binary.LittleEndian.PutUint32(dst[44:], 0)
}

// ReadResultCount reads the kernel-written result count back out of the
// packed search record after the device call.
func ReadResultCount(src *[SearchSize]byte) uint32 {
	return binary.LittleEndian.Uint32(src[40:])
}
