package mock

import (
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// Commands returns what is currently recorded in cb.
func (d *Device) Commands(cb gpu.CommandBuffer) []Command {
	st, ok := d.commandBuffers[cb]
	if !ok {
		return nil
	}
	return append([]Command(nil), st.commands...)
}

// LastSubmitted flattens the command lists of the most recent submission.
func (d *Device) LastSubmitted() []Command {
	if len(d.Submissions) == 0 {
		return nil
	}
	var out []Command
	for _, cmds := range d.Submissions[len(d.Submissions)-1].Commands {
		out = append(out, cmds...)
	}
	return out
}

// EventsOf filters the event log by kind.
func (d *Device) EventsOf(kind EventKind) []Event {
	var out []Event
	for _, e := range d.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (d *Device) IsAliveImageView(v gpu.ImageView) bool {
	_, ok := d.views[v]
	return ok
}

func (d *Device) IsAliveImage(img gpu.Image) bool {
	_, ok := d.images[img]
	return ok
}

func (d *Device) IsAliveBuffer(b gpu.Buffer) bool {
	_, ok := d.buffers[b]
	return ok
}

func (d *Device) IsAliveFramebuffer(fb gpu.Framebuffer) bool {
	_, ok := d.framebuffers[fb]
	return ok
}

func (d *Device) IsAliveSwapchain(sc gpu.Swapchain) bool {
	_, ok := d.swapchains[sc]
	return ok
}

func (d *Device) FramebufferDesc(fb gpu.Framebuffer) (gpu.FramebufferDescriptor, bool) {
	desc, ok := d.framebuffers[fb]
	return desc, ok
}

func (d *Device) RenderPassDesc(rp gpu.RenderPass) (gpu.RenderPassDescriptor, bool) {
	desc, ok := d.renderPasses[rp]
	return desc, ok
}

func (d *Device) PipelineDesc(p gpu.Pipeline) (gpu.GraphicsPipelineDescriptor, bool) {
	desc, ok := d.pipelines[p]
	return desc, ok
}

func (d *Device) ImageDesc(img gpu.Image) (gpu.ImageDescriptor, bool) {
	st, ok := d.images[img]
	if !ok {
		return gpu.ImageDescriptor{}, false
	}
	return st.desc, true
}

func (d *Device) SamplerDesc(s gpu.Sampler) (gpu.SamplerDescriptor, bool) {
	desc, ok := d.samplers[s]
	return desc, ok
}

// ImageData is what the last buffer-to-image copy left in img.
func (d *Device) ImageData(img gpu.Image) []byte {
	st, ok := d.images[img]
	if !ok {
		return nil
	}
	return st.data
}

// DescriptorWrites returns the current binding contents of a set.
func (d *Device) DescriptorWrites(set gpu.DescriptorSet) map[uint32]gpu.DescriptorWrite {
	st, ok := d.sets[set]
	if !ok {
		return nil
	}
	return st.writes
}

// Live counts every handle that has not been destroyed, swapchain images excluded.
func (d *Device) Live() int {
	n := len(d.buffers) + len(d.views) + len(d.samplers) + len(d.modules) +
		len(d.setLayouts) + len(d.pools) + len(d.pipelineLayouts) + len(d.pipelines) +
		len(d.renderPasses) + len(d.framebuffers) + len(d.swapchains) +
		len(d.commandBuffers) + len(d.fences) + len(d.semaphores)
	for _, img := range d.images {
		if img.swapchain == 0 {
			n++
		}
	}
	return n
}
