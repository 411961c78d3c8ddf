package renderer

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/mock"
)

// newMockInstanceWithout builds a mock instance whose adapter cannot use format at all.
func newMockInstanceWithout(format vk.Format) gpu.Instance {
	inst := mock.NewInstance(640, 480)
	adapter := &unsupportedFormatAdapter{Adapter: inst.AdapterList[0], format: format}
	return &adapterOverride{Instance: inst, adapter: adapter}
}

type unsupportedFormatAdapter struct {
	*mock.Adapter
	format vk.Format
}

func (a *unsupportedFormatAdapter) FormatProperties(format vk.Format) gpu.FormatProperties {
	if format == a.format {
		return gpu.FormatProperties{}
	}
	return a.Adapter.FormatProperties(format)
}

type adapterOverride struct {
	*mock.Instance
	adapter gpu.Adapter
}

func (i *adapterOverride) Adapters() ([]gpu.Adapter, error) {
	return []gpu.Adapter{i.adapter}, nil
}

func (i *adapterOverride) CreateDevice(adapter gpu.Adapter, desc gpu.DeviceDescriptor) (gpu.Device, error) {
	if a, ok := adapter.(*unsupportedFormatAdapter); ok {
		adapter = a.Adapter
	}
	return i.Instance.CreateDevice(adapter, desc)
}

func TestSelectAdapter(t *testing.T) {
	capable := func(name string) *mock.Adapter { return mock.NewAdapter(name) }
	noGraphics := func() *mock.Adapter {
		a := mock.NewAdapter("compute only")
		a.Families = []gpu.QueueFamily{{Flags: vk.QueueFlags(vk.QueueComputeBit), Count: 1}}
		return a
	}
	noPresent := func() *mock.Adapter {
		a := mock.NewAdapter("headless")
		a.PresentFamily = map[uint32]bool{}
		return a
	}
	noSwapchain := func() *mock.Adapter {
		a := mock.NewAdapter("no swapchain")
		a.DeviceExtensions = nil
		return a
	}
	noAnisotropy := func() *mock.Adapter {
		a := mock.NewAdapter("no anisotropy")
		a.Feats.SamplerAnisotropy = false
		return a
	}
	splitQueues := func() *mock.Adapter {
		a := mock.NewAdapter("split")
		a.Families = []gpu.QueueFamily{
			{Flags: vk.QueueFlags(vk.QueueGraphicsBit), Count: 1},
			{Flags: vk.QueueFlags(vk.QueueTransferBit), Count: 1},
		}
		a.PresentFamily = map[uint32]bool{1: true}
		return a
	}

	tests := []struct {
		name     string
		adapters []*mock.Adapter
		want     string
		queues   QueueFamilyIndices
		wantErr  error
	}{
		{name: "first capable wins", adapters: []*mock.Adapter{capable("a"), capable("b")}, want: "a"},
		{name: "skips missing graphics", adapters: []*mock.Adapter{noGraphics(), capable("b")}, want: "b"},
		{name: "skips missing present", adapters: []*mock.Adapter{noPresent(), capable("b")}, want: "b"},
		{name: "skips missing extension", adapters: []*mock.Adapter{noSwapchain(), capable("b")}, want: "b"},
		{name: "skips missing anisotropy", adapters: []*mock.Adapter{noAnisotropy(), capable("b")}, want: "b"},
		{name: "separate present family", adapters: []*mock.Adapter{splitQueues()}, want: "split", queues: QueueFamilyIndices{Graphics: 0, Present: 1}},
		{name: "nothing suitable", adapters: []*mock.Adapter{noGraphics(), noPresent(), noSwapchain(), noAnisotropy()}, wantErr: core.ErrNoSuitableDevice},
		{name: "no adapters", wantErr: core.ErrNoSuitableDevice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapters := make([]gpu.Adapter, len(tt.adapters))
			for i, a := range tt.adapters {
				adapters[i] = a
			}
			got, queues, err := SelectAdapter(adapters, DefaultDeviceRequirements())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("SelectAdapter() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("SelectAdapter() error = %v", err)
			}
			if name := got.Properties().Name; name != tt.want {
				t.Errorf("SelectAdapter() = %q, want %q", name, tt.want)
			}
			if queues != tt.queues {
				t.Errorf("queues = %+v, want %+v", queues, tt.queues)
			}
		})
	}
}

func TestQueueFamiliesDeduplicates(t *testing.T) {
	if got := (QueueFamilyIndices{Graphics: 0, Present: 0}).Families(); len(got) != 1 {
		t.Errorf("Families() = %v, want one family", got)
	}
	if got := (QueueFamilyIndices{Graphics: 0, Present: 2}).Families(); len(got) != 2 {
		t.Errorf("Families() = %v, want two families", got)
	}
}

func TestDetectDepthFormat(t *testing.T) {
	a := &unsupportedFormatAdapter{Adapter: mock.NewAdapter("gpu"), format: vk.FormatD32Sfloat}
	got, err := DetectDepthFormat(a)
	if err != nil {
		t.Fatalf("DetectDepthFormat() error = %v", err)
	}
	if got != vk.FormatD32SfloatS8Uint {
		t.Errorf("DetectDepthFormat() = %v, want D32_SFLOAT_S8_UINT", got)
	}
}
