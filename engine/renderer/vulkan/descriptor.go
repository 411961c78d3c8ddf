package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	vkBindings := make([]vk.DescriptorSetLayoutBinding, len(bindings))
	for i, b := range bindings {
		vkBindings[i] = vk.DescriptorSetLayoutBinding{
			Binding:         b.Binding,
			DescriptorType:  b.Type,
			DescriptorCount: max(b.Count, 1),
			StageFlags:      b.Stages,
		}
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(vkBindings)),
		PBindings:    vkBindings,
	}
	var layout vk.DescriptorSetLayout
	if err := gpu.Check("vkCreateDescriptorSetLayout", vk.CreateDescriptorSetLayout(d.handle, &info, nil, &layout)); err != nil {
		return 0, err
	}
	return d.setLayouts.put(layout), nil
}

func (d *Device) DestroyDescriptorSetLayout(h gpu.DescriptorSetLayout) {
	if layout, ok := d.setLayouts.take(h); ok {
		vk.DestroyDescriptorSetLayout(d.handle, layout, nil)
	}
}

func (d *Device) CreateDescriptorPool(desc gpu.DescriptorPoolDescriptor) (gpu.DescriptorPool, error) {
	sizes := make([]vk.DescriptorPoolSize, len(desc.Sizes))
	for i, s := range desc.Sizes {
		sizes[i] = vk.DescriptorPoolSize{Type: s.Type, DescriptorCount: s.Count}
	}
	info := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		MaxSets:       desc.MaxSets,
		PoolSizeCount: uint32(len(sizes)),
		PPoolSizes:    sizes,
	}
	var pool vk.DescriptorPool
	if err := gpu.Check("vkCreateDescriptorPool", vk.CreateDescriptorPool(d.handle, &info, nil, &pool)); err != nil {
		return 0, err
	}
	return d.descriptorPools.put(&descriptorPool{handle: pool}), nil
}

// DestroyDescriptorPool also invalidates every set allocated from the pool.
func (d *Device) DestroyDescriptorPool(h gpu.DescriptorPool) {
	pool, ok := d.descriptorPools.take(h)
	if !ok {
		return
	}
	for _, set := range pool.sets {
		d.sets.take(set)
	}
	vk.DestroyDescriptorPool(d.handle, pool.handle, nil)
}

func (d *Device) AllocateDescriptorSets(h gpu.DescriptorPool, layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error) {
	pool, err := d.descriptorPools.get(h)
	if err != nil {
		return nil, err
	}
	if len(layouts) == 0 {
		return nil, nil
	}
	vkLayouts := make([]vk.DescriptorSetLayout, len(layouts))
	for i, l := range layouts {
		if vkLayouts[i], err = d.setLayouts.get(l); err != nil {
			return nil, err
		}
	}
	info := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool.handle,
		DescriptorSetCount: uint32(len(vkLayouts)),
		PSetLayouts:        vkLayouts,
	}
	sets := make([]vk.DescriptorSet, len(vkLayouts))
	if err := gpu.Check("vkAllocateDescriptorSets", vk.AllocateDescriptorSets(d.handle, &info, &sets[0])); err != nil {
		return nil, err
	}
	out := make([]gpu.DescriptorSet, len(sets))
	for i, s := range sets {
		out[i] = d.sets.put(s)
	}
	pool.sets = append(pool.sets, out...)
	return out, nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	vkWrites := make([]vk.WriteDescriptorSet, 0, len(writes))
	for _, w := range writes {
		write := vk.WriteDescriptorSet{
			SType:           vk.StructureTypeWriteDescriptorSet,
			DstSet:          d.sets.must(w.Set),
			DstBinding:      w.Binding,
			DstArrayElement: 0,
			DescriptorCount: 1,
			DescriptorType:  w.Type,
		}
		switch w.Type {
		case vk.DescriptorTypeUniformBuffer, vk.DescriptorTypeStorageBuffer:
			write.PBufferInfo = []vk.DescriptorBufferInfo{{
				Buffer: d.buffers.must(w.Buffer).handle,
				Offset: vk.DeviceSize(w.Offset),
				Range:  vk.DeviceSize(w.Range),
			}}
		default:
			info := vk.DescriptorImageInfo{ImageLayout: w.Layout}
			if w.ImageView != 0 {
				info.ImageView = d.views.must(w.ImageView)
			}
			if w.Sampler != 0 {
				info.Sampler = d.samplers.must(w.Sampler)
			}
			write.PImageInfo = []vk.DescriptorImageInfo{info}
		}
		vkWrites = append(vkWrites, write)
	}
	if len(vkWrites) == 0 {
		return
	}
	vk.UpdateDescriptorSets(d.handle, uint32(len(vkWrites)), vkWrites, 0, nil)
}
