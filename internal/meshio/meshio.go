package meshio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"MarchingTerrain/internal/marching"
	"MarchingTerrain/internal/voxel"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/klauspost/compress/zstd"
)

const (
	magic   uint32 = 0x4D455348 // "MESH"
	version uint32 = 2

	flagNormals uint32 = 1
)

var ErrBadHeader = errors.New("meshio: not a mesh file")

// SerializedMesh contains everything needed to place and draw one chunk mesh
type SerializedMesh struct {
	Coord    voxel.Coord
	Origin   mgl32.Vec3
	Vertices []mgl32.Vec3
	Normals  []mgl32.Vec3 // optional, one per vertex
	Indices  []uint32
}

// FromMesh packages a chunk mesh with its placement and face normals
func FromMesh(coord voxel.Coord, origin mgl32.Vec3, mesh *marching.Mesh) *SerializedMesh {
	return &SerializedMesh{
		Coord:    coord,
		Origin:   origin,
		Vertices: mesh.Vertices,
		Normals:  mesh.Normals(),
		Indices:  mesh.Indices,
	}
}

// Mesh returns the triangle data without placement
func (s *SerializedMesh) Mesh() *marching.Mesh {
	return &marching.Mesh{Vertices: s.Vertices, Indices: s.Indices}
}

// Encode writes mesh data in zstd-compressed little-endian binary form
func Encode(w io.Writer, mesh *SerializedMesh) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(enc)

	flags := uint32(0)
	if len(mesh.Normals) > 0 {
		flags |= flagNormals
	}
	header := []any{
		magic, version, flags,
		int32(mesh.Coord.X), int32(mesh.Coord.Y), int32(mesh.Coord.Z),
		[3]float32(mesh.Origin),
	}
	for _, v := range header {
		if err := binary.Write(bw, binary.LittleEndian, v); err != nil {
			enc.Close()
			return err
		}
	}

	if err := writeVec3Slice(bw, mesh.Vertices); err != nil {
		enc.Close()
		return err
	}
	if flags&flagNormals != 0 {
		if err := writeVec3Slice(bw, mesh.Normals); err != nil {
			enc.Close()
			return err
		}
	}
	if err := writeUint32Slice(bw, mesh.Indices); err != nil {
		enc.Close()
		return err
	}

	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// EncodeBytes is Encode into a fresh buffer
func EncodeBytes(mesh *SerializedMesh) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, mesh); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads mesh data written by Encode
func Decode(r io.Reader) (*SerializedMesh, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)

	var head struct {
		Magic, Version, Flags uint32
		X, Y, Z               int32
		Origin                [3]float32
	}
	if err := binary.Read(br, binary.LittleEndian, &head); err != nil {
		return nil, fmt.Errorf("meshio: read header: %w", err)
	}
	if head.Magic != magic {
		return nil, ErrBadHeader
	}
	if head.Version != version {
		return nil, fmt.Errorf("meshio: unsupported version %d", head.Version)
	}

	mesh := &SerializedMesh{
		Coord:  voxel.Coord{X: int(head.X), Y: int(head.Y), Z: int(head.Z)},
		Origin: mgl32.Vec3(head.Origin),
	}
	if mesh.Vertices, err = readVec3Slice(br); err != nil {
		return nil, err
	}
	if head.Flags&flagNormals != 0 {
		if mesh.Normals, err = readVec3Slice(br); err != nil {
			return nil, err
		}
	}
	if mesh.Indices, err = readUint32Slice(br); err != nil {
		return nil, err
	}
	return mesh, nil
}

// WriteFile encodes mesh to path, replacing any existing file
func WriteFile(path string, mesh *SerializedMesh) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if err := Encode(f, mesh); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// ReadFile decodes the mesh stored at path
func ReadFile(path string) (*SerializedMesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

func writeVec3Slice(w io.Writer, data []mgl32.Vec3) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return binary.Write(w, binary.LittleEndian, data)
}

func writeUint32Slice(w io.Writer, data []uint32) error {
	if err := binary.Write(w, binary.LittleEndian, int32(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return binary.Write(w, binary.LittleEndian, data)
}

func readVec3Slice(r io.Reader) ([]mgl32.Vec3, error) {
	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fmt.Errorf("meshio: negative length %d", length)
	}
	data := make([]mgl32.Vec3, length)
	if length > 0 {
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func readUint32Slice(r io.Reader) ([]uint32, error) {
	var length int32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fmt.Errorf("meshio: negative length %d", length)
	}
	data := make([]uint32, length)
	if length > 0 {
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return nil, err
		}
	}
	return data, nil
}
