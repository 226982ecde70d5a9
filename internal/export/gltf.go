// Package export writes CPU chunk meshes to binary glTF (.glb) files so a
// streamed region can be inspected in any model viewer.
package export

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"voxel-stream/internal/meshing"
	"voxel-stream/internal/world"
)

// Scene accumulates meshes into one glTF document, one node per mesh.
type Scene struct {
	doc *gltf.Document
}

// NewScene creates an empty document with a single scene.
func NewScene() *Scene {
	return &Scene{doc: gltf.NewDocument()}
}

// Document returns the document built so far.
func (s *Scene) Document() *gltf.Document { return s.doc }

// AddMesh appends m as a named mesh and node. Vertices are expected in world
// space with the meshing vertex layout. Empty meshes are skipped and report
// false.
func (s *Scene) AddMesh(name string, m *meshing.MeshData) (bool, error) {
	if m.Empty() {
		return false, nil
	}
	if len(m.Vertices)%meshing.VertexStride != 0 {
		return false, errors.Errorf("export: mesh %s: %d floats is not a whole number of vertices", name, len(m.Vertices))
	}

	n := m.VertexCount()
	positions := make([][3]float32, n)
	normals := make([][3]float32, n)
	colors := make([][4]uint8, n)
	for i := 0; i < n; i++ {
		v := m.Vertices[i*meshing.VertexStride : (i+1)*meshing.VertexStride]
		positions[i] = [3]float32{v[0], v[1], v[2]}
		normals[i] = [3]float32{v[3], v[4], v[5]}
		colors[i] = world.BlockType(v[6]).Color()
	}
	for _, idx := range m.Indices {
		if int(idx) >= n {
			return false, errors.Errorf("export: mesh %s: index %d out of range", name, idx)
		}
	}

	pos := modeler.WritePosition(s.doc, positions)
	nrm := modeler.WriteNormal(s.doc, normals)
	col := modeler.WriteColor(s.doc, colors)
	ind := modeler.WriteIndices(s.doc, m.Indices)

	meshIndex := uint32(len(s.doc.Meshes))
	s.doc.Meshes = append(s.doc.Meshes, &gltf.Mesh{
		Name: name,
		Primitives: []*gltf.Primitive{{
			Indices: gltf.Index(ind),
			Attributes: map[string]uint32{
				gltf.POSITION: pos,
				gltf.NORMAL:   nrm,
				gltf.COLOR_0:  col,
			},
		}},
	})
	nodeIndex := uint32(len(s.doc.Nodes))
	s.doc.Nodes = append(s.doc.Nodes, &gltf.Node{Name: name, Mesh: gltf.Index(meshIndex)})
	s.doc.Scenes[0].Nodes = append(s.doc.Scenes[0].Nodes, nodeIndex)
	return true, nil
}

// AddChunks meshes every generated chunk of the set on the CPU and adds its
// solid and water meshes. Neighbours are looked up within the same set, so
// faces on the outer border of the set stay visible. It returns the number
// of meshes added.
func (s *Scene) AddChunks(chunks []*world.Chunk) (int, error) {
	byCoord := make(map[world.ChunkCoord]*world.Chunk, len(chunks))
	for _, c := range chunks {
		byCoord[c.Coord] = c
	}

	added := 0
	for _, c := range chunks {
		if !c.IsGenerated() {
			continue
		}
		var neighbors [4]*world.Chunk
		for _, side := range world.Sides {
			neighbors[side] = byCoord[c.Coord.Neighbor(side)]
		}
		solid, water := meshing.BuildChunkMeshes(meshing.Capture(c, neighbors))

		name := fmt.Sprintf("chunk_%d_%d", c.Coord.X, c.Coord.Z)
		for _, part := range []struct {
			suffix string
			mesh   *meshing.MeshData
		}{{"", &solid}, {"_water", &water}} {
			ok, err := s.AddMesh(name+part.suffix, part.mesh)
			if err != nil {
				return added, err
			}
			if ok {
				added++
			}
		}
	}
	return added, nil
}

// Save writes the document as a .glb file.
func (s *Scene) Save(path string) error {
	if err := gltf.SaveBinary(s.doc, path); err != nil {
		return errors.Wrapf(err, "export: save %s", path)
	}
	return nil
}
