package mock

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type Op int

const (
	OpBeginRenderPass Op = iota
	OpNextSubpass
	OpEndRenderPass
	OpBindPipeline
	OpSetViewport
	OpSetScissor
	OpBindVertexBuffer
	OpBindIndexBuffer
	OpBindDescriptorSets
	OpPushConstants
	OpDraw
	OpDrawIndexed
	OpCopyBuffer
	OpCopyBufferToImage
	OpImageBarrier
	OpBlitImage
)

var opNames = [...]string{
	"BeginRenderPass", "NextSubpass", "EndRenderPass", "BindPipeline",
	"SetViewport", "SetScissor", "BindVertexBuffer", "BindIndexBuffer",
	"BindDescriptorSets", "PushConstants", "Draw", "DrawIndexed",
	"CopyBuffer", "CopyBufferToImage", "ImageBarrier", "BlitImage",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "Unknown"
}

// Command is one recorded vkCmd* call. Only the fields relevant to Op are set.
type Command struct {
	Op Op

	Begin    gpu.RenderPassBegin
	Pipeline gpu.Pipeline
	Viewport gpu.Viewport
	Scissor  gpu.Rect2D

	Buffer    gpu.Buffer
	DstBuffer gpu.Buffer
	Offset    uint64
	Size      uint64
	IndexType vk.IndexType

	Layout   gpu.PipelineLayout
	FirstSet uint32
	Sets     []gpu.DescriptorSet
	Stages   vk.ShaderStageFlags
	Data     []byte

	Count         uint32
	InstanceCount uint32
	First         uint32
	VertexOffset  int32

	Image   gpu.Image
	Extent  gpu.Extent2D
	Barrier gpu.ImageBarrier
	Blit    gpu.ImageBlit
}

type EventKind int

const (
	EventWaitFence EventKind = iota
	EventResetFence
	EventResetCommandBuffer
	EventBeginCommandBuffer
	EventSubmit
	EventAcquire
	EventPresent
	EventDeviceWaitIdle
	EventQueueWaitIdle
)

// Event is one entry of the device's synchronization log.
type Event struct {
	Kind           EventKind
	Fence          gpu.Fence
	CommandBuffer  gpu.CommandBuffer
	CommandBuffers []gpu.CommandBuffer
	Swapchain      gpu.Swapchain
	ImageIndex     uint32
	Result         vk.Result
}

// Submission is a queue submit with the commands as they were at submit time.
type Submission struct {
	Info     gpu.SubmitInfo
	Commands [][]Command
}

func (d *Device) AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	if count <= 0 {
		return nil, errors.Newf("cannot allocate %d command buffers", count)
	}
	out := make([]gpu.CommandBuffer, count)
	for i := range out {
		h := gpu.CommandBuffer(d.handle())
		d.commandBuffers[h] = &commandBufferState{}
		out[i] = h
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(buffers []gpu.CommandBuffer) {
	for _, cb := range buffers {
		if _, ok := d.commandBuffers[cb]; !ok {
			d.misuse("free of unknown command buffer %d", cb)
			continue
		}
		delete(d.commandBuffers, cb)
	}
}

func (d *Device) BeginCommandBuffer(cb gpu.CommandBuffer, oneTimeSubmit bool) error {
	st, ok := d.commandBuffers[cb]
	if !ok {
		return errors.Newf("begin of unknown command buffer %d", cb)
	}
	if st.recording {
		d.misuse("begin of command buffer %d that is already recording", cb)
	}
	d.event(Event{Kind: EventBeginCommandBuffer, CommandBuffer: cb})
	st.recording = true
	st.commands = st.commands[:0]
	return nil
}

func (d *Device) EndCommandBuffer(cb gpu.CommandBuffer) error {
	st, ok := d.commandBuffers[cb]
	if !ok {
		return errors.Newf("end of unknown command buffer %d", cb)
	}
	if !st.recording {
		d.misuse("end of command buffer %d that is not recording", cb)
	}
	st.recording = false
	return nil
}

func (d *Device) ResetCommandBuffer(cb gpu.CommandBuffer) error {
	st, ok := d.commandBuffers[cb]
	if !ok {
		return errors.Newf("reset of unknown command buffer %d", cb)
	}
	if f, ok := d.fences[st.pendingFence]; ok && !f.waited {
		d.misuse("command buffer %d reset while its submission is pending", cb)
	}
	d.event(Event{Kind: EventResetCommandBuffer, CommandBuffer: cb})
	st.commands = nil
	st.recording = false
	st.pendingFence = 0
	return nil
}

func (d *Device) record(cb gpu.CommandBuffer, c Command) {
	st, ok := d.commandBuffers[cb]
	if !ok {
		d.misuse("%s recorded into unknown command buffer %d", c.Op, cb)
		return
	}
	if !st.recording {
		d.misuse("%s recorded into command buffer %d outside begin/end", c.Op, cb)
	}
	st.commands = append(st.commands, c)
}

func (d *Device) CmdBeginRenderPass(cb gpu.CommandBuffer, begin gpu.RenderPassBegin) {
	if _, ok := d.framebuffers[begin.Framebuffer]; !ok {
		d.misuse("render pass begun on dead framebuffer %d", begin.Framebuffer)
	}
	begin.ClearValues = append([]gpu.ClearValue(nil), begin.ClearValues...)
	d.record(cb, Command{Op: OpBeginRenderPass, Begin: begin})
}

func (d *Device) CmdNextSubpass(cb gpu.CommandBuffer) {
	d.record(cb, Command{Op: OpNextSubpass})
}

func (d *Device) CmdEndRenderPass(cb gpu.CommandBuffer) {
	d.record(cb, Command{Op: OpEndRenderPass})
}

func (d *Device) CmdBindPipeline(cb gpu.CommandBuffer, pipeline gpu.Pipeline) {
	if _, ok := d.pipelines[pipeline]; !ok {
		d.misuse("bind of dead pipeline %d", pipeline)
	}
	d.record(cb, Command{Op: OpBindPipeline, Pipeline: pipeline})
}

func (d *Device) CmdSetViewport(cb gpu.CommandBuffer, viewport gpu.Viewport) {
	d.record(cb, Command{Op: OpSetViewport, Viewport: viewport})
}

func (d *Device) CmdSetScissor(cb gpu.CommandBuffer, scissor gpu.Rect2D) {
	d.record(cb, Command{Op: OpSetScissor, Scissor: scissor})
}

func (d *Device) CmdBindVertexBuffer(cb gpu.CommandBuffer, buffer gpu.Buffer, offset uint64) {
	d.record(cb, Command{Op: OpBindVertexBuffer, Buffer: buffer, Offset: offset})
}

func (d *Device) CmdBindIndexBuffer(cb gpu.CommandBuffer, buffer gpu.Buffer, offset uint64, indexType vk.IndexType) {
	d.record(cb, Command{Op: OpBindIndexBuffer, Buffer: buffer, Offset: offset, IndexType: indexType})
}

func (d *Device) CmdBindDescriptorSets(cb gpu.CommandBuffer, layout gpu.PipelineLayout, firstSet uint32, sets []gpu.DescriptorSet) {
	for _, s := range sets {
		if _, ok := d.sets[s]; !ok {
			d.misuse("bind of dead descriptor set %d", s)
		}
	}
	d.record(cb, Command{
		Op:       OpBindDescriptorSets,
		Layout:   layout,
		FirstSet: firstSet,
		Sets:     append([]gpu.DescriptorSet(nil), sets...),
	})
}

func (d *Device) CmdPushConstants(cb gpu.CommandBuffer, layout gpu.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	d.record(cb, Command{
		Op:     OpPushConstants,
		Layout: layout,
		Stages: stages,
		Offset: uint64(offset),
		Data:   append([]byte(nil), data...),
	})
}

func (d *Device) CmdDraw(cb gpu.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	d.record(cb, Command{Op: OpDraw, Count: vertexCount, InstanceCount: instanceCount, First: firstVertex})
}

func (d *Device) CmdDrawIndexed(cb gpu.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	d.record(cb, Command{
		Op:            OpDrawIndexed,
		Count:         indexCount,
		InstanceCount: instanceCount,
		First:         firstIndex,
		VertexOffset:  vertexOffset,
	})
}

func (d *Device) CmdCopyBuffer(cb gpu.CommandBuffer, src, dst gpu.Buffer, size uint64) {
	d.record(cb, Command{Op: OpCopyBuffer, Buffer: src, DstBuffer: dst, Size: size})
}

func (d *Device) CmdCopyBufferToImage(cb gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, extent gpu.Extent2D) {
	d.record(cb, Command{Op: OpCopyBufferToImage, Buffer: src, Image: dst, Extent: extent})
}

func (d *Device) CmdImageBarrier(cb gpu.CommandBuffer, barrier gpu.ImageBarrier) {
	d.record(cb, Command{Op: OpImageBarrier, Image: barrier.Image, Barrier: barrier})
}

func (d *Device) CmdBlitImage(cb gpu.CommandBuffer, blit gpu.ImageBlit) {
	d.record(cb, Command{Op: OpBlitImage, Image: blit.Image, Blit: blit})
}
