// Package vkbackend implements gpu.Backend on a headless Vulkan device.
// Meshes live in host-visible buffers; every frame ends with an empty queue
// submission carrying a VkFence, which the reclaimer polls through
// vkGetFenceStatus.
package vkbackend

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"voxel-stream/internal/gpu"
	"voxel-stream/internal/meshing"
)

// Device owns a Vulkan instance, logical device and one queue.
type Device struct {
	instance vk.Instance
	physical vk.PhysicalDevice
	device   vk.Device
	queue    vk.Queue
	memProps vk.PhysicalDeviceMemoryProperties

	frame     uint64
	syncs     *gpu.FrameSyncs[vk.Fence]
	graveyard gpu.Graveyard
	lost      bool
}

var _ gpu.Backend = (*Device)(nil)

func vkErr(ret vk.Result, op string) error {
	switch ret {
	case vk.Success:
		return nil
	case vk.ErrorDeviceLost:
		return errors.Wrapf(gpu.ErrDeviceLost, "vkbackend: %s", op)
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory:
		return errors.Wrapf(gpu.ErrUploadFailed, "vkbackend: %s: out of memory", op)
	default:
		return errors.Errorf("vkbackend: %s: VkResult %d", op, ret)
	}
}

// New loads the Vulkan loader and creates a device on the first physical
// device that has a graphics queue.
func New(appName string) (*Device, error) {
	if err := vk.SetDefaultGetInstanceProcAddr(); err != nil {
		return nil, errors.Wrap(err, "vkbackend: load vulkan")
	}
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vkbackend: init")
	}

	d := &Device{syncs: gpu.NewFrameSyncs[vk.Fence](0)}
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:            vk.StructureTypeApplicationInfo,
			PApplicationName: appName + "\x00",
			PEngineName:      "voxel-stream\x00",
			ApiVersion:       vk.MakeVersion(1, 0, 0),
		},
	}, nil, &d.instance)
	if err := vkErr(ret, "create instance"); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(d.instance); err != nil {
		vk.DestroyInstance(d.instance, nil)
		return nil, errors.Wrap(err, "vkbackend: init instance")
	}

	family, err := d.pickDevice()
	if err != nil {
		vk.DestroyInstance(d.instance, nil)
		return nil, err
	}

	ret = vk.CreateDevice(d.physical, &vk.DeviceCreateInfo{
		SType:                vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount: 1,
		PQueueCreateInfos: []vk.DeviceQueueCreateInfo{{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1},
		}},
	}, nil, &d.device)
	if err := vkErr(ret, "create device"); err != nil {
		vk.DestroyInstance(d.instance, nil)
		return nil, err
	}
	vk.GetDeviceQueue(d.device, family, 0, &d.queue)

	vk.GetPhysicalDeviceMemoryProperties(d.physical, &d.memProps)
	d.memProps.Deref()
	return d, nil
}

func (d *Device) pickDevice() (uint32, error) {
	var count uint32
	if err := vkErr(vk.EnumeratePhysicalDevices(d.instance, &count, nil), "enumerate devices"); err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, errors.New("vkbackend: no physical devices")
	}
	devices := make([]vk.PhysicalDevice, count)
	if err := vkErr(vk.EnumeratePhysicalDevices(d.instance, &count, devices), "enumerate devices"); err != nil {
		return 0, err
	}

	for _, pd := range devices {
		var n uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &n, nil)
		families := make([]vk.QueueFamilyProperties, n)
		vk.GetPhysicalDeviceQueueFamilyProperties(pd, &n, families)
		for i := range families {
			families[i].Deref()
			if families[i].QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
				d.physical = pd
				return uint32(i), nil
			}
		}
	}
	return 0, errors.New("vkbackend: no device with a graphics queue")
}

// CurrentFrameIndex is the index of the frame being recorded.
func (d *Device) CurrentFrameIndex() uint64 { return d.frame }

// EndFrame submits the frame's fence and starts the next frame.
func (d *Device) EndFrame() error {
	var f vk.Fence
	ret := vk.CreateFence(d.device, &vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}, nil, &f)
	if err := vkErr(ret, "create fence"); err != nil {
		return err
	}
	// An empty submission signals the fence once earlier work on the queue
	// has completed.
	if err := vkErr(vk.QueueSubmit(d.queue, 0, nil, f), "queue submit"); err != nil {
		vk.DestroyFence(d.device, f, nil)
		d.markLost(err)
		return err
	}
	d.syncs.Submit(d.frame, f)
	d.frame++
	d.graveyard.Dig()
	return nil
}

func (d *Device) markLost(err error) {
	if errors.Is(err, gpu.ErrDeviceLost) {
		d.lost = true
	}
}

func (d *Device) destroyFence(f vk.Fence) { vk.DestroyFence(d.device, f, nil) }

func (d *Device) checkFence(f vk.Fence) (bool, error) {
	switch ret := vk.GetFenceStatus(d.device, f); ret {
	case vk.Success:
		return true, nil
	case vk.NotReady:
		return false, nil
	default:
		err := vkErr(ret, "fence status")
		d.markLost(err)
		return false, err
	}
}

// FrameFence returns the fence of frame.
func (d *Device) FrameFence(frame uint64) gpu.Fence {
	return fence{dev: d, frame: frame}
}

type fence struct {
	dev   *Device
	frame uint64
}

func (f fence) Signaled() (bool, error) {
	if f.dev.lost {
		return false, errors.Wrap(gpu.ErrDeviceLost, "vkbackend: fence")
	}
	return f.dev.syncs.Poll(f.frame, f.dev.checkFence, f.dev.destroyFence)
}

// WaitIdle blocks in vkDeviceWaitIdle.
func (d *Device) WaitIdle() error {
	if d.lost {
		return errors.Wrap(gpu.ErrDeviceLost, "vkbackend: wait idle")
	}
	if err := vkErr(vk.DeviceWaitIdle(d.device), "device wait idle"); err != nil {
		d.markLost(err)
		return err
	}
	d.syncs.Drain(d.destroyFence)
	d.graveyard.Dig()
	return nil
}

// Close waits for the device and destroys it. Buffers still referenced by
// mesh handles must have been released before.
func (d *Device) Close() error {
	err := d.WaitIdle()
	d.graveyard.Dig()
	vk.DestroyDevice(d.device, nil)
	vk.DestroyInstance(d.instance, nil)
	return err
}

// Buffer is one host-visible allocation holding vertices followed by indices.
type Buffer struct {
	dev         *Device
	buffer      vk.Buffer
	memory      vk.DeviceMemory
	IndexOffset vk.DeviceSize
}

func (d *Device) memoryType(bits uint32, want vk.MemoryPropertyFlags) (uint32, bool) {
	for i := uint32(0); i < d.memProps.MemoryTypeCount; i++ {
		mt := d.memProps.MemoryTypes[i]
		mt.Deref()
		if bits&(1<<i) != 0 && mt.PropertyFlags&want == want {
			return i, true
		}
	}
	return 0, false
}

// UploadMesh copies vertices and indices into a new host-visible buffer.
func (d *Device) UploadMesh(vertices []float32, indices []uint32) (*gpu.MeshHandle, error) {
	if d.lost {
		return nil, errors.Wrap(gpu.ErrDeviceLost, "vkbackend: upload")
	}
	if len(vertices) == 0 || len(indices) == 0 {
		return nil, errors.Wrap(gpu.ErrUploadFailed, "vkbackend: empty mesh")
	}
	vbytes := unsafe.Slice((*byte)(unsafe.Pointer(&vertices[0])), len(vertices)*4)
	ibytes := unsafe.Slice((*byte)(unsafe.Pointer(&indices[0])), len(indices)*4)
	size := vk.DeviceSize(len(vbytes) + len(ibytes))

	b := &Buffer{dev: d, IndexOffset: vk.DeviceSize(len(vbytes))}
	ret := vk.CreateBuffer(d.device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageIndexBufferBit),
		SharingMode: vk.SharingModeExclusive,
	}, nil, &b.buffer)
	if err := vkErr(ret, "create buffer"); err != nil {
		d.markLost(err)
		return nil, uploadErr(err)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.device, b.buffer, &req)
	req.Deref()
	typeIndex, ok := d.memoryType(req.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit))
	if !ok {
		vk.DestroyBuffer(d.device, b.buffer, nil)
		return nil, errors.Wrap(gpu.ErrUploadFailed, "vkbackend: no host-visible memory type")
	}

	ret = vk.AllocateMemory(d.device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: typeIndex,
	}, nil, &b.memory)
	if err := vkErr(ret, "allocate memory"); err != nil {
		vk.DestroyBuffer(d.device, b.buffer, nil)
		d.markLost(err)
		return nil, uploadErr(err)
	}
	if err := vkErr(vk.BindBufferMemory(d.device, b.buffer, b.memory, 0), "bind memory"); err != nil {
		b.free()
		d.markLost(err)
		return nil, uploadErr(err)
	}

	var data unsafe.Pointer
	if err := vkErr(vk.MapMemory(d.device, b.memory, 0, size, 0, &data), "map memory"); err != nil {
		b.free()
		d.markLost(err)
		return nil, uploadErr(err)
	}
	vk.Memcopy(data, vbytes)
	vk.Memcopy(unsafe.Add(data, len(vbytes)), ibytes)
	vk.UnmapMemory(d.device, b.memory)

	return gpu.NewMeshHandle(b, len(vertices)/meshing.VertexStride, len(indices)), nil
}

// uploadErr keeps device loss visible and classifies everything else as an
// upload failure.
func uploadErr(err error) error {
	if errors.Is(err, gpu.ErrDeviceLost) || errors.Is(err, gpu.ErrUploadFailed) {
		return err
	}
	return errors.Wrapf(gpu.ErrUploadFailed, "%v", err)
}

// Destroy schedules the buffer and its memory for deletion at the end of the
// current frame. Safe from any goroutine.
func (b *Buffer) Destroy() {
	b.dev.graveyard.Bury(b.free)
}

func (b *Buffer) free() {
	vk.DestroyBuffer(b.dev.device, b.buffer, nil)
	vk.FreeMemory(b.dev.device, b.memory, nil)
}
