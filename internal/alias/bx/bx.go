// stand for bytes helper
package bx

import (
	"encoding/binary"
	"math"
)

// LE is the byte order of every on-disk integer and float.
var LE = binary.LittleEndian

// --- read ---
func U32(b []byte) uint32  { return LE.Uint32(b) }
func U64(b []byte) uint64  { return LE.Uint64(b) }
func F64(b []byte) float64 { return math.Float64frombits(U64(b)) }

// --- write ---
func PutU32(b []byte, v uint32)  { LE.PutUint32(b, v) }
func PutU64(b []byte, v uint64)  { LE.PutUint64(b, v) }
func PutF64(b []byte, v float64) { PutU64(b, math.Float64bits(v)) }

// --- At (offset) ---
func U32At(b []byte, off int) uint32        { return U32(b[off:]) }
func F64At(b []byte, off int) float64       { return F64(b[off:]) }
func PutU32At(b []byte, off int, v uint32)  { PutU32(b[off:], v) }
func PutF64At(b []byte, off int, v float64) { PutF64(b[off:], v) }
