package common

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

// ClipSpaceCorrection remaps OpenGL-style clip depth in [-w, w] to the WebGPU range [0, w].
// Projection matrices built with mgl32 are left-multiplied by this matrix before upload.
var ClipSpaceCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// SliceToBytes converts any slice to a byte slice for GPU buffer uploads.
// Uses unsafe pointer operations to create a view into the original data.
// WARNING: The returned slice shares memory with the input - do not modify.
//
// Parameters:
//   - data: source slice of any type
//
// Returns:
//   - []byte: byte slice view of the input data, or nil if input is empty
func SliceToBytes[T any](data []T) []byte {
	if len(data) == 0 {
		return nil
	}
	var zero T
	size := unsafe.Sizeof(zero)
	totalBytes := int(size) * len(data)
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), totalBytes)
}

// BytesToFloat32s decodes little-endian float32 values from a byte slice.
// Trailing bytes that do not form a whole value are ignored.
//
// Parameters:
//   - data: the raw bytes to decode
//
// Returns:
//   - []float32: the decoded values
func BytesToFloat32s(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// PutFloat32s writes values into dst starting at offset as little-endian float32s.
// Writes that would overrun dst are truncated.
//
// Parameters:
//   - dst: the destination byte slice
//   - offset: the byte offset of the first value
//   - values: the values to write
func PutFloat32s(dst []byte, offset int, values ...float32) {
	for i, v := range values {
		at := offset + i*4
		if at < 0 || at+4 > len(dst) {
			return
		}
		binary.LittleEndian.PutUint32(dst[at:], math.Float32bits(v))
	}
}

// PutInt32 writes a little-endian int32 into dst at offset. Out of range writes are dropped.
//
// Parameters:
//   - dst: the destination byte slice
//   - offset: the byte offset to write at
//   - v: the value to write
func PutInt32(dst []byte, offset int, v int32) {
	if offset < 0 || offset+4 > len(dst) {
		return
	}
	binary.LittleEndian.PutUint32(dst[offset:], uint32(v))
}

// Float32At reads a little-endian float32 from src at offset, returning 0 when out of range.
func Float32At(src []byte, offset int) float32 {
	if offset < 0 || offset+4 > len(src) {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(src[offset:]))
}

// Int32At reads a little-endian int32 from src at offset, returning 0 when out of range.
func Int32At(src []byte, offset int) int32 {
	if offset < 0 || offset+4 > len(src) {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(src[offset:]))
}

// Mat4At reads a column-major 4x4 matrix from src at offset.
func Mat4At(src []byte, offset int) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = Float32At(src, offset+i*4)
	}
	return m
}

// Vec3At reads a vec3 from src at offset.
func Vec3At(src []byte, offset int) mgl32.Vec3 {
	return mgl32.Vec3{Float32At(src, offset), Float32At(src, offset+4), Float32At(src, offset+8)}
}

// Vec2At reads a vec2 from src at offset.
func Vec2At(src []byte, offset int) mgl32.Vec2 {
	return mgl32.Vec2{Float32At(src, offset), Float32At(src, offset+4)}
}

// TransformPoint multiplies a point (w = 1) by m and returns the full homogeneous result.
//
// Parameters:
//   - m: the transform matrix
//   - p: the point to transform
//
// Returns:
//   - mgl32.Vec4: the transformed homogeneous point
func TransformPoint(m mgl32.Mat4, p mgl32.Vec3) mgl32.Vec4 {
	return m.Mul4x1(p.Vec4(1))
}

// TransformDirection multiplies a direction (w = 0) by m.
func TransformDirection(m mgl32.Mat4, d mgl32.Vec3) mgl32.Vec3 {
	return m.Mul4x1(d.Vec4(0)).Vec3()
}

// ApproxEqual reports whether a and b differ by at most epsilon.
func ApproxEqual(a, b, epsilon float32) bool {
	return float32(math.Abs(float64(a-b))) <= epsilon
}
