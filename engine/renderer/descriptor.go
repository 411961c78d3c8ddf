package renderer

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// MaxMaterials bounds the texture sets the descriptor pool can hand out.
const MaxMaterials = 64

// DescriptorLayouts are the three fixed set layouts: per-frame camera
// uniforms, a material's texture and the post-process input attachment.
type DescriptorLayouts struct {
	Uniform gpu.DescriptorSetLayout
	Texture gpu.DescriptorSetLayout
	Input   gpu.DescriptorSetLayout
}

func NewDescriptorLayouts(dev gpu.Device) (*DescriptorLayouts, error) {
	vertex := vk.ShaderStageFlags(vk.ShaderStageVertexBit)
	fragment := vk.ShaderStageFlags(vk.ShaderStageFragmentBit)

	l := &DescriptorLayouts{}
	var err error
	if l.Uniform, err = dev.CreateDescriptorSetLayout([]gpu.DescriptorBinding{
		{Binding: 0, Type: vk.DescriptorTypeUniformBuffer, Count: 1, Stages: vertex},
	}); err != nil {
		return nil, errors.Wrap(err, "creating uniform set layout")
	}
	if l.Texture, err = dev.CreateDescriptorSetLayout([]gpu.DescriptorBinding{
		{Binding: 0, Type: vk.DescriptorTypeSampledImage, Count: 1, Stages: fragment},
		{Binding: 1, Type: vk.DescriptorTypeSampler, Count: 1, Stages: fragment},
	}); err != nil {
		l.Destroy(dev)
		return nil, errors.Wrap(err, "creating texture set layout")
	}
	if l.Input, err = dev.CreateDescriptorSetLayout([]gpu.DescriptorBinding{
		{Binding: 0, Type: vk.DescriptorTypeInputAttachment, Count: 1, Stages: fragment},
	}); err != nil {
		l.Destroy(dev)
		return nil, errors.Wrap(err, "creating input attachment set layout")
	}
	return l, nil
}

func (l *DescriptorLayouts) Destroy(dev gpu.Device) {
	for _, layout := range []*gpu.DescriptorSetLayout{&l.Uniform, &l.Texture, &l.Input} {
		if *layout != 0 {
			dev.DestroyDescriptorSetLayout(*layout)
			*layout = 0
		}
	}
}

// NewDescriptorPool sizes one pool for every set the renderer allocates: a
// uniform and an input set per frame slot plus one texture set per material.
func NewDescriptorPool(dev gpu.Device) (gpu.DescriptorPool, error) {
	pool, err := dev.CreateDescriptorPool(gpu.DescriptorPoolDescriptor{
		MaxSets: 2*MaxFramesInFlight + MaxMaterials,
		Sizes: []gpu.DescriptorPoolSize{
			{Type: vk.DescriptorTypeUniformBuffer, Count: MaxFramesInFlight},
			{Type: vk.DescriptorTypeInputAttachment, Count: MaxFramesInFlight},
			{Type: vk.DescriptorTypeSampledImage, Count: MaxMaterials},
			{Type: vk.DescriptorTypeSampler, Count: MaxMaterials},
		},
	})
	if err != nil {
		return 0, errors.Wrap(err, "creating descriptor pool")
	}
	return pool, nil
}

func writeUniformSet(dev gpu.Device, set gpu.DescriptorSet, buf *AllocatedBuffer) {
	dev.UpdateDescriptorSets([]gpu.DescriptorWrite{{
		Set:     set,
		Binding: 0,
		Type:    vk.DescriptorTypeUniformBuffer,
		Buffer:  buf.Handle,
		Range:   metadata.CameraUniformSize,
	}})
}

func writeTextureSet(dev gpu.Device, set gpu.DescriptorSet, tex *Texture) {
	dev.UpdateDescriptorSets([]gpu.DescriptorWrite{
		{
			Set:       set,
			Binding:   0,
			Type:      vk.DescriptorTypeSampledImage,
			ImageView: tex.Image.View,
			Layout:    vk.ImageLayoutShaderReadOnlyOptimal,
		},
		{
			Set:     set,
			Binding: 1,
			Type:    vk.DescriptorTypeSampler,
			Sampler: tex.Sampler,
		},
	})
}

func writeInputSet(dev gpu.Device, set gpu.DescriptorSet, view gpu.ImageView) {
	dev.UpdateDescriptorSets([]gpu.DescriptorWrite{{
		Set:       set,
		Binding:   0,
		Type:      vk.DescriptorTypeInputAttachment,
		ImageView: view,
		Layout:    vk.ImageLayoutShaderReadOnlyOptimal,
	}})
}
