package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type (
	MeshID     uint64
	TextureID  uint64
	MaterialID uint64
	ObjectID   uint64
)

// table is an ID-keyed store that iterates in insertion order.
type table[K ~uint64, V any] struct {
	ids   core.HandleGenerator
	items map[K]V
	order []K
}

func newTable[K ~uint64, V any]() *table[K, V] {
	return &table[K, V]{items: make(map[K]V)}
}

func (t *table[K, V]) insert(v V) K {
	id := K(t.ids.Next())
	t.items[id] = v
	t.order = append(t.order, id)
	return id
}

func (t *table[K, V]) get(id K) (V, bool) {
	v, ok := t.items[id]
	return v, ok
}

func (t *table[K, V]) set(id K, v V) bool {
	if _, ok := t.items[id]; !ok {
		return false
	}
	t.items[id] = v
	return true
}

func (t *table[K, V]) remove(id K) (V, bool) {
	v, ok := t.items[id]
	if !ok {
		return v, false
	}
	delete(t.items, id)
	if i := slices.Index(t.order, id); i >= 0 {
		t.order = slices.Delete(t.order, i, i+1)
	}
	return v, true
}

func (t *table[K, V]) each(fn func(K, V)) {
	for _, id := range t.order {
		fn(id, t.items[id])
	}
}

func (t *table[K, V]) len() int {
	return len(t.order)
}

// Mesh is an indexed triangle list in device-local memory.
type Mesh struct {
	ID          MeshID
	Name        string
	Vertices    *AllocatedBuffer
	Indices     *AllocatedBuffer
	VertexCount uint32
	IndexCount  uint32
}

func (m *Mesh) Destroy() {
	m.Vertices.Destroy()
	m.Indices.Destroy()
}

// Material binds a pipeline kind to the descriptor set of its texture.
type Material struct {
	ID      MaterialID
	Kind    metadata.PipelineKind
	Texture TextureID
	Set     gpu.DescriptorSet
}

// DrawObject is one instance of a mesh drawn with a material.
type DrawObject struct {
	ID        ObjectID
	Mesh      MeshID
	Material  MaterialID
	Transform mgl32.Mat4
}

// DrawTable holds the draw objects. Mutating or deleting an unknown ID does
// nothing; IDs are never reused.
type DrawTable struct {
	objects *table[ObjectID, DrawObject]
}

func NewDrawTable() *DrawTable {
	return &DrawTable{objects: newTable[ObjectID, DrawObject]()}
}

func (d *DrawTable) Create(mesh MeshID, material MaterialID, transform mgl32.Mat4) ObjectID {
	id := d.objects.insert(DrawObject{Mesh: mesh, Material: material, Transform: transform})
	obj, _ := d.objects.get(id)
	obj.ID = id
	d.objects.set(id, obj)
	return id
}

func (d *DrawTable) update(id ObjectID, fn func(*DrawObject)) {
	obj, ok := d.objects.get(id)
	if !ok {
		return
	}
	fn(&obj)
	d.objects.set(id, obj)
}

func (d *DrawTable) SetTransform(id ObjectID, transform mgl32.Mat4) {
	d.update(id, func(o *DrawObject) { o.Transform = transform })
}

func (d *DrawTable) SetMesh(id ObjectID, mesh MeshID) {
	d.update(id, func(o *DrawObject) { o.Mesh = mesh })
}

func (d *DrawTable) SetMaterial(id ObjectID, material MaterialID) {
	d.update(id, func(o *DrawObject) { o.Material = material })
}

func (d *DrawTable) Delete(id ObjectID) {
	d.objects.remove(id)
}

func (d *DrawTable) Object(id ObjectID) (DrawObject, bool) {
	return d.objects.get(id)
}

func (d *DrawTable) Len() int {
	return d.objects.len()
}

// Each visits the objects in creation order.
func (d *DrawTable) Each(fn func(DrawObject)) {
	d.objects.each(func(_ ObjectID, o DrawObject) { fn(o) })
}

// Scene owns the meshes, textures and materials the draw table refers to.
type Scene struct {
	allocator *Allocator
	device    gpu.Device
	pool      gpu.DescriptorPool
	layouts   *DescriptorLayouts

	meshes    *table[MeshID, *Mesh]
	textures  *table[TextureID, *Texture]
	materials *table[MaterialID, *Material]
	objects   *DrawTable
}

func newScene(allocator *Allocator, dev gpu.Device, pool gpu.DescriptorPool, layouts *DescriptorLayouts) *Scene {
	return &Scene{
		allocator: allocator,
		device:    dev,
		pool:      pool,
		layouts:   layouts,
		meshes:    newTable[MeshID, *Mesh](),
		textures:  newTable[TextureID, *Texture](),
		materials: newTable[MaterialID, *Material](),
		objects:   NewDrawTable(),
	}
}

// CreateMesh uploads vertices and 32-bit indices into device-local buffers.
func (s *Scene) CreateMesh(data metadata.MeshData) (MeshID, error) {
	if len(data.Vertices) == 0 || len(data.Indices) == 0 {
		return 0, errors.Newf("mesh %q has no geometry", data.Name)
	}
	for _, idx := range data.Indices {
		if int(idx) >= len(data.Vertices) {
			return 0, errors.Newf("mesh %q: index %d out of range of %d vertices", data.Name, idx, len(data.Vertices))
		}
	}

	vertexBytes := metadata.VertexBytes(data.Vertices)
	vertices, err := s.allocator.CreateBuffer(uint64(len(vertexBytes)),
		vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit|vk.BufferUsageTransferDstBit|vk.BufferUsageTransferSrcBit))
	if err != nil {
		return 0, err
	}
	if err := s.allocator.UploadViaStaging(vertices, vertexBytes); err != nil {
		vertices.Destroy()
		return 0, errors.Wrapf(err, "uploading vertices of %q", data.Name)
	}

	indexBytes := metadata.IndexBytes(data.Indices)
	indices, err := s.allocator.CreateBuffer(uint64(len(indexBytes)),
		vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit|vk.BufferUsageTransferDstBit|vk.BufferUsageTransferSrcBit))
	if err != nil {
		vertices.Destroy()
		return 0, err
	}
	if err := s.allocator.UploadViaStaging(indices, indexBytes); err != nil {
		vertices.Destroy()
		indices.Destroy()
		return 0, errors.Wrapf(err, "uploading indices of %q", data.Name)
	}

	mesh := &Mesh{
		Name:        data.Name,
		Vertices:    vertices,
		Indices:     indices,
		VertexCount: uint32(len(data.Vertices)),
		IndexCount:  uint32(len(data.Indices)),
	}
	mesh.ID = s.meshes.insert(mesh)
	core.LogDebug("Mesh %q uploaded: %d vertices, %d indices.", data.Name, mesh.VertexCount, mesh.IndexCount)
	return mesh.ID, nil
}

func (s *Scene) Mesh(id MeshID) (*Mesh, bool) {
	return s.meshes.get(id)
}

func (s *Scene) CreateTexture(data metadata.TextureData) (TextureID, error) {
	tex, err := s.allocator.CreateTexture(data.Width, data.Height, data.Format, data.Pixels)
	if err != nil {
		return 0, err
	}
	tex.ID = s.textures.insert(tex)
	return tex.ID, nil
}

func (s *Scene) Texture(id TextureID) (*Texture, bool) {
	return s.textures.get(id)
}

// CreateMaterial allocates and writes the texture set of a geometry material.
func (s *Scene) CreateMaterial(kind metadata.PipelineKind, texture TextureID) (MaterialID, error) {
	if kind != metadata.PipelineGeometry {
		return 0, errors.Newf("materials cannot use the %s pipeline", kind)
	}
	tex, ok := s.textures.get(texture)
	if !ok {
		return 0, errors.Newf("unknown texture %d", texture)
	}
	sets, err := s.device.AllocateDescriptorSets(s.pool, []gpu.DescriptorSetLayout{s.layouts.Texture})
	if err != nil {
		return 0, errors.Wrap(err, "allocating material descriptor set")
	}
	writeTextureSet(s.device, sets[0], tex)

	mat := &Material{Kind: kind, Texture: texture, Set: sets[0]}
	mat.ID = s.materials.insert(mat)
	return mat.ID, nil
}

func (s *Scene) Material(id MaterialID) (*Material, bool) {
	return s.materials.get(id)
}

// CreateObject adds a draw object. Both the mesh and the material must exist.
func (s *Scene) CreateObject(mesh MeshID, material MaterialID, transform mgl32.Mat4) (ObjectID, error) {
	if _, ok := s.meshes.get(mesh); !ok {
		return 0, errors.Newf("unknown mesh %d", mesh)
	}
	if _, ok := s.materials.get(material); !ok {
		return 0, errors.Newf("unknown material %d", material)
	}
	return s.objects.Create(mesh, material, transform), nil
}

func (s *Scene) SetTransform(id ObjectID, transform mgl32.Mat4) {
	s.objects.SetTransform(id, transform)
}

// SetMesh is ignored when either ID is unknown.
func (s *Scene) SetMesh(id ObjectID, mesh MeshID) {
	if _, ok := s.meshes.get(mesh); !ok {
		return
	}
	s.objects.SetMesh(id, mesh)
}

// SetMaterial is ignored when either ID is unknown.
func (s *Scene) SetMaterial(id ObjectID, material MaterialID) {
	if _, ok := s.materials.get(material); !ok {
		return
	}
	s.objects.SetMaterial(id, material)
}

func (s *Scene) DeleteObject(id ObjectID) {
	s.objects.Delete(id)
}

func (s *Scene) Object(id ObjectID) (DrawObject, bool) {
	return s.objects.Object(id)
}

func (s *Scene) Len() int {
	return s.objects.Len()
}

// record draws every object, rebinding the pipeline and sets only when the
// material changes and the buffers only when the mesh changes.
func (s *Scene) record(cb gpu.CommandBuffer, pipelines *Pipelines, uniformSet gpu.DescriptorSet, viewport gpu.Viewport, scissor gpu.Rect2D) int {
	var (
		lastMaterial MaterialID
		lastMesh     MeshID
		mesh         *Mesh
		pipeline     Pipeline
		draws        int
	)
	s.objects.Each(func(obj DrawObject) {
		mat, ok := s.materials.get(obj.Material)
		if !ok {
			return
		}
		m, ok := s.meshes.get(obj.Mesh)
		if !ok {
			return
		}
		if obj.Material != lastMaterial {
			pipeline = pipelines.Get(mat.Kind)
			s.device.CmdBindPipeline(cb, pipeline.Handle)
			s.device.CmdSetViewport(cb, viewport)
			s.device.CmdSetScissor(cb, scissor)
			s.device.CmdBindDescriptorSets(cb, pipeline.Layout, 0, []gpu.DescriptorSet{uniformSet, mat.Set})
			lastMaterial = obj.Material
		}
		if obj.Mesh != lastMesh {
			mesh = m
			s.device.CmdBindVertexBuffer(cb, mesh.Vertices.Handle, 0)
			s.device.CmdBindIndexBuffer(cb, mesh.Indices.Handle, 0, vk.IndexTypeUint32)
			lastMesh = obj.Mesh
		}
		push := metadata.PushConstants{Model: obj.Transform}
		s.device.CmdPushConstants(cb, pipeline.Layout, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, push.Bytes())
		s.device.CmdDrawIndexed(cb, mesh.IndexCount, 1, 0, 0, 0)
		draws++
	})
	return draws
}

func (s *Scene) destroy() {
	s.meshes.each(func(_ MeshID, m *Mesh) { m.Destroy() })
	s.textures.each(func(_ TextureID, t *Texture) { t.Destroy() })
	s.meshes = newTable[MeshID, *Mesh]()
	s.textures = newTable[TextureID, *Texture]()
	s.materials = newTable[MaterialID, *Material]()
	s.objects = NewDrawTable()
}
