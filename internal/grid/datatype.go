package grid

import (
	"fmt"
	"math"
	"strings"
)

// DataType is the cell storage type of a raster band. Names follow GDAL.
type DataType int

const (
	Unknown DataType = iota
	Byte
	UInt16
	Int16
	UInt32
	Int32
	Float32
	Float64
)

var dataTypeNames = [...]string{
	Unknown: "Unknown",
	Byte:    "Byte",
	UInt16:  "UInt16",
	Int16:   "Int16",
	UInt32:  "UInt32",
	Int32:   "Int32",
	Float32: "Float32",
	Float64: "Float64",
}

func (d DataType) String() string {
	if d < 0 || int(d) >= len(dataTypeNames) {
		return fmt.Sprintf("DataType(%d)", int(d))
	}
	return dataTypeNames[d]
}

func ParseDataType(s string) (DataType, error) {
	s = strings.TrimSpace(s)
	for i, n := range dataTypeNames {
		if strings.EqualFold(n, s) {
			return DataType(i), nil
		}
	}
	return Unknown, fmt.Errorf("unknown data type %q", s)
}

// Clamp converts v to the nearest value representable by d. Floating types
// are returned unchanged apart from the float32 narrowing.
func (d DataType) Clamp(v float64) float64 {
	switch d {
	case Byte:
		return clampRound(v, 0, math.MaxUint8)
	case UInt16:
		return clampRound(v, 0, math.MaxUint16)
	case Int16:
		return clampRound(v, math.MinInt16, math.MaxInt16)
	case UInt32:
		return clampRound(v, 0, math.MaxUint32)
	case Int32:
		return clampRound(v, math.MinInt32, math.MaxInt32)
	case Float32:
		return float64(float32(v))
	default:
		return v
	}
}

func (d DataType) IsInteger() bool {
	switch d {
	case Byte, UInt16, Int16, UInt32, Int32:
		return true
	}
	return false
}

func clampRound(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
