package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func attachmentReferences(refs []gpu.AttachmentReference) []vk.AttachmentReference {
	if len(refs) == 0 {
		return nil
	}
	out := make([]vk.AttachmentReference, len(refs))
	for i, r := range refs {
		out[i] = vk.AttachmentReference{Attachment: r.Attachment, Layout: r.Layout}
	}
	return out
}

func (d *Device) CreateRenderPass(desc gpu.RenderPassDescriptor) (gpu.RenderPass, error) {
	attachments := make([]vk.AttachmentDescription, len(desc.Attachments))
	for i, a := range desc.Attachments {
		samples := a.Samples
		if samples == 0 {
			samples = vk.SampleCount1Bit
		}
		attachments[i] = vk.AttachmentDescription{
			Format:         a.Format,
			Samples:        samples,
			LoadOp:         a.LoadOp,
			StoreOp:        a.StoreOp,
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  a.InitialLayout,
			FinalLayout:    a.FinalLayout,
		}
	}

	subpasses := make([]vk.SubpassDescription, len(desc.Subpasses))
	for i, s := range desc.Subpasses {
		subpass := vk.SubpassDescription{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: uint32(len(s.Color)),
			PColorAttachments:    attachmentReferences(s.Color),
			InputAttachmentCount: uint32(len(s.Input)),
			PInputAttachments:    attachmentReferences(s.Input),
		}
		if s.Depth != nil {
			subpass.PDepthStencilAttachment = &vk.AttachmentReference{
				Attachment: s.Depth.Attachment,
				Layout:     s.Depth.Layout,
			}
		}
		subpasses[i] = subpass
	}

	dependencies := make([]vk.SubpassDependency, len(desc.Dependencies))
	for i, dep := range desc.Dependencies {
		dependencies[i] = vk.SubpassDependency{
			SrcSubpass:      dep.SrcSubpass,
			DstSubpass:      dep.DstSubpass,
			SrcStageMask:    dep.SrcStageMask,
			DstStageMask:    dep.DstStageMask,
			SrcAccessMask:   dep.SrcAccessMask,
			DstAccessMask:   dep.DstAccessMask,
			DependencyFlags: dep.Flags,
		}
	}

	info := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
		DependencyCount: uint32(len(dependencies)),
		PDependencies:   dependencies,
	}
	var pass vk.RenderPass
	if err := gpu.Check("vkCreateRenderPass", vk.CreateRenderPass(d.handle, &info, nil, &pass)); err != nil {
		return 0, err
	}
	return d.renderPasses.put(pass), nil
}

func (d *Device) DestroyRenderPass(h gpu.RenderPass) {
	if pass, ok := d.renderPasses.take(h); ok {
		vk.DestroyRenderPass(d.handle, pass, nil)
	}
}

func (d *Device) CreateFramebuffer(desc gpu.FramebufferDescriptor) (gpu.Framebuffer, error) {
	pass, err := d.renderPasses.get(desc.RenderPass)
	if err != nil {
		return 0, err
	}
	views := make([]vk.ImageView, len(desc.Attachments))
	for i, v := range desc.Attachments {
		if views[i], err = d.views.get(v); err != nil {
			return 0, err
		}
	}
	info := vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      pass,
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           desc.Width,
		Height:          desc.Height,
		Layers:          1,
	}
	var fb vk.Framebuffer
	if err := gpu.Check("vkCreateFramebuffer", vk.CreateFramebuffer(d.handle, &info, nil, &fb)); err != nil {
		return 0, err
	}
	return d.framebuffers.put(fb), nil
}

func (d *Device) DestroyFramebuffer(h gpu.Framebuffer) {
	if fb, ok := d.framebuffers.take(h); ok {
		vk.DestroyFramebuffer(d.handle, fb, nil)
	}
}
