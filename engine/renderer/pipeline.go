package renderer

import (
	"context"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/shader"
)

// Pipeline is a compiled graphics pipeline and the layout it was built with.
type Pipeline struct {
	Kind   metadata.PipelineKind
	Handle gpu.Pipeline
	Layout gpu.PipelineLayout
}

// Pipelines holds one pipeline per kind, indexed by the kind itself.
type Pipelines struct {
	device     gpu.Device
	layouts    *DescriptorLayouts
	renderPass gpu.RenderPass
	byKind     [metadata.PipelineKindCount]Pipeline
}

func programFor(kind metadata.PipelineKind) string {
	if kind == metadata.PipelinePostProcess {
		return shader.ProgramPostProcess
	}
	return shader.ProgramGeometry
}

// NewPipelines creates the pipeline layouts and builds every pipeline kind
// from the compiled programs.
func NewPipelines(dev gpu.Device, layouts *DescriptorLayouts, renderPass gpu.RenderPass, compiled map[string]*shader.Compiled) (*Pipelines, error) {
	p := &Pipelines{device: dev, layouts: layouts, renderPass: renderPass}

	geometryLayout, err := dev.CreatePipelineLayout(gpu.PipelineLayoutDescriptor{
		SetLayouts: []gpu.DescriptorSetLayout{layouts.Uniform, layouts.Texture},
		PushConstants: []gpu.PushConstantRange{{
			Stages: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
			Offset: 0,
			Size:   metadata.PushConstantSize,
		}},
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating geometry pipeline layout")
	}
	p.byKind[metadata.PipelineGeometry] = Pipeline{Kind: metadata.PipelineGeometry, Layout: geometryLayout}

	postLayout, err := dev.CreatePipelineLayout(gpu.PipelineLayoutDescriptor{
		SetLayouts: []gpu.DescriptorSetLayout{layouts.Input},
	})
	if err != nil {
		p.Destroy()
		return nil, errors.Wrap(err, "creating post-process pipeline layout")
	}
	p.byKind[metadata.PipelinePostProcess] = Pipeline{Kind: metadata.PipelinePostProcess, Layout: postLayout}

	for kind := metadata.PipelineKind(0); kind < metadata.PipelineKindCount; kind++ {
		handle, err := p.build(kind, compiled)
		if err != nil {
			p.Destroy()
			return nil, err
		}
		p.byKind[kind].Handle = handle
	}
	return p, nil
}

func (p *Pipelines) Get(kind metadata.PipelineKind) Pipeline {
	return p.byKind[kind]
}

// Rebuild recompiles the named programs (all when none) and replaces the
// pipelines built from them. The caller must have waited for device idle.
// Every new pipeline is built before any old one is replaced, so on error the
// previous pipelines stay in place.
func (p *Pipelines) Rebuild(ctx context.Context, library *shader.Library, programs ...string) error {
	compiled, err := library.Compile(ctx, programs...)
	if err != nil {
		return err
	}
	var fresh [metadata.PipelineKindCount]gpu.Pipeline
	for kind := metadata.PipelineKind(0); kind < metadata.PipelineKindCount; kind++ {
		if _, ok := compiled[programFor(kind)]; !ok {
			continue
		}
		if fresh[kind], err = p.build(kind, compiled); err != nil {
			for _, h := range fresh {
				if h != 0 {
					p.device.DestroyPipeline(h)
				}
			}
			return err
		}
	}
	for kind, h := range fresh {
		if h == 0 {
			continue
		}
		if old := p.byKind[kind].Handle; old != 0 {
			p.device.DestroyPipeline(old)
		}
		p.byKind[kind].Handle = h
		core.LogInfo("Rebuilt %s pipeline.", metadata.PipelineKind(kind))
	}
	return nil
}

func (p *Pipelines) build(kind metadata.PipelineKind, compiled map[string]*shader.Compiled) (gpu.Pipeline, error) {
	program, ok := compiled[programFor(kind)]
	if !ok {
		return 0, errors.Newf("%s pipeline: program %s was not compiled", kind, programFor(kind))
	}

	var stages []gpu.ShaderStage
	defer func() {
		for _, s := range stages {
			p.device.DestroyShaderModule(s.Module)
		}
	}()
	for _, bin := range program.Stages {
		if err := shader.ValidateSPIRV(bin.Code); err != nil {
			return 0, errors.Wrapf(err, "%s pipeline %s stage", kind, bin.Stage)
		}
		module, err := p.device.CreateShaderModule(bin.Code)
		if err != nil {
			return 0, errors.Wrapf(err, "creating %s shader module", bin.Stage)
		}
		stages = append(stages, gpu.ShaderStage{Module: module, Stage: bin.Stage.Flag(), EntryPoint: bin.Entry})
	}

	desc := gpu.GraphicsPipelineDescriptor{
		Label:         kind.String(),
		Layout:        p.byKind[kind].Layout,
		RenderPass:    p.renderPass,
		Subpass:       kind.Subpass(),
		Stages:        stages,
		Topology:      vk.PrimitiveTopologyTriangleList,
		FrontFace:     vk.FrontFaceCounterClockwise,
		DynamicStates: []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
	}
	switch kind {
	case metadata.PipelineGeometry:
		desc.VertexBindings = metadata.VertexBindings()
		desc.Attributes = metadata.VertexAttributes()
		desc.CullMode = vk.CullModeFlags(vk.CullModeBackBit)
		desc.DepthTest = true
		desc.DepthWrite = true
		desc.DepthCompare = vk.CompareOpLessOrEqual
	case metadata.PipelinePostProcess:
		desc.CullMode = vk.CullModeFlags(vk.CullModeNone)
	}

	handle, err := p.device.CreateGraphicsPipeline(desc)
	if err != nil {
		return 0, errors.Wrapf(err, "creating %s pipeline", kind)
	}
	return handle, nil
}

func (p *Pipelines) Destroy() {
	for i := range p.byKind {
		if p.byKind[i].Handle != 0 {
			p.device.DestroyPipeline(p.byKind[i].Handle)
			p.byKind[i].Handle = 0
		}
		if p.byKind[i].Layout != 0 {
			p.device.DestroyPipelineLayout(p.byKind[i].Layout)
			p.byKind[i].Layout = 0
		}
	}
}
