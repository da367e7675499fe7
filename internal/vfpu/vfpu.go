// Package vfpu decodes the guest vector unit register numbering.
//
// The VFPU register file is 128 scalar lanes organised as 8 matrices of 4x4. A 7-bit register operand
// selects a matrix, a column and a row, and whether the vector runs along the row or the column.
// Lane indices here are in 0-127 and are the ones the register cache sees (offset by 32).
package vfpu

import "fmt"

// NumLanes is the number of scalar lanes in the VFPU register file.
const NumLanes = 128

// VectorSize is the length of a vector operand.
type VectorSize byte

const (
	VectorSizeInvalid VectorSize = iota
	VectorSizeSingle
	VectorSizePair
	VectorSizeTriple
	VectorSizeQuad
)

// Elements returns the number of lanes in a vector of this size.
func (v VectorSize) Elements() int {
	switch v {
	case VectorSizeSingle:
		return 1
	case VectorSizePair:
		return 2
	case VectorSizeTriple:
		return 3
	case VectorSizeQuad:
		return 4
	}
	return 0
}

// String implements fmt.Stringer.
func (v VectorSize) String() string {
	switch v {
	case VectorSizeSingle:
		return "s"
	case VectorSizePair:
		return "p"
	case VectorSizeTriple:
		return "t"
	case VectorSizeQuad:
		return "q"
	}
	return "invalid"
}

// VectorSizeOf returns the VectorSize with n elements.
func VectorSizeOf(n int) (VectorSize, error) {
	if n < 1 || n > 4 {
		return VectorSizeInvalid, fmt.Errorf("invalid vector length %d", n)
	}
	return VectorSize(n), nil
}

// MatrixSize is the side of a square matrix operand.
type MatrixSize byte

const (
	MatrixSizeInvalid MatrixSize = iota
	MatrixSize1x1
	MatrixSize2x2
	MatrixSize3x3
	MatrixSize4x4
)

// Side returns the number of rows (and columns) of a matrix of this size.
func (m MatrixSize) Side() int {
	if m < MatrixSize1x1 || m > MatrixSize4x4 {
		return 0
	}
	return int(m)
}

// VectorRegs decodes the vector register operand reg of the given size into its lane indices.
func VectorRegs(size VectorSize, reg int) []uint8 {
	mtx := (reg >> 2) & 7
	col := reg & 3
	row := 0
	length := 0
	transpose := (reg >> 5) & 1

	switch size {
	case VectorSizeSingle:
		transpose = 0
		row = (reg >> 5) & 3
		length = 1
	case VectorSizePair:
		row = (reg >> 5) & 2
		length = 2
	case VectorSizeTriple:
		row = (reg >> 6) & 1
		length = 3
	case VectorSizeQuad:
		row = (reg >> 5) & 2
		length = 4
	}

	ret := make([]uint8, length)
	for i := 0; i < length; i++ {
		index := mtx * 4
		if transpose != 0 {
			index += ((row + i) & 3) + col*32
		} else {
			index += col + ((row+i)&3)*32
		}
		ret[i] = uint8(index)
	}
	return ret
}

// MatrixRegs decodes the matrix register operand reg of the given size into 16 lane slots laid out
// as ret[column*4+row]. Slots outside the matrix side are left zero.
func MatrixRegs(size MatrixSize, reg int) [16]uint8 {
	mtx := (reg >> 2) & 7
	col := reg & 3
	row := 0
	side := 0
	transpose := (reg >> 5) & 1

	switch size {
	case MatrixSize1x1:
		transpose = 0
		row = (reg >> 5) & 3
		side = 1
	case MatrixSize2x2:
		row = (reg >> 5) & 2
		side = 2
	case MatrixSize3x3:
		row = (reg >> 6) & 1
		side = 3
	case MatrixSize4x4:
		row = (reg >> 5) & 2
		side = 4
	}

	var ret [16]uint8
	for i := 0; i < side; i++ {
		for j := 0; j < side; j++ {
			index := mtx * 4
			if transpose != 0 {
				index += ((row + i) & 3) + ((col+j)&3)*32
			} else {
				index += ((col + j) & 3) + ((row+i)&3)*32
			}
			ret[j*4+i] = uint8(index)
		}
	}
	return ret
}

// VOffset maps a lane index to its word slot in the guest state VFPU block.
// The guest state stores each matrix contiguously, column by column, while lane indices step
// through columns first and rows every 32 lanes.
var VOffset [NumLanes]int

// FromVOffset is the inverse of VOffset.
var FromVOffset [NumLanes]int

func init() {
	for m := 0; m < 8; m++ {
		for i := 0; i < 4; i++ {
			for j := 0; j < 4; j++ {
				lane := m*4 + j*32 + i
				slot := m*16 + i*4 + j
				VOffset[lane] = slot
				FromVOffset[slot] = lane
			}
		}
	}
}

// LaneName returns the guest assembler name of a lane, e.g. "S012" for matrix 0, column 1, row 2.
func LaneName(lane int) string {
	mtx := (lane >> 2) & 7
	col := lane & 3
	row := (lane >> 5) & 3
	return fmt.Sprintf("S%d%d%d", mtx, col, row)
}
