package main

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// ============================================================================
// Pixel Sink
// ============================================================================
// The render loop produces frames addressed by logical (x,y); a Display
// applies the physical panel remapping internally and pushes the result to
// hardware. The framebuffer sink targets /dev/fb0; the memory sink backs
// tests and dry runs.
// ============================================================================

// PixelBuffer is a logical-coordinates RGB frame.
type PixelBuffer struct {
	W, H int
	Pix  []byte // 3 bytes per pixel, row-major
}

func NewPixelBuffer(w, h int) *PixelBuffer {
	return &PixelBuffer{W: w, H: h, Pix: make([]byte, w*h*3)}
}

// SetRGB writes one pixel. Out-of-bounds coordinates are ignored.
func (b *PixelBuffer) SetRGB(x, y int, r, g, bl byte) {
	if x < 0 || x >= b.W || y < 0 || y >= b.H {
		return
	}
	i := (y*b.W + x) * 3
	b.Pix[i] = r
	b.Pix[i+1] = g
	b.Pix[i+2] = bl
}

// RGBAt reads one pixel back; out of bounds reads black.
func (b *PixelBuffer) RGBAt(x, y int) (byte, byte, byte) {
	if x < 0 || x >= b.W || y < 0 || y >= b.H {
		return 0, 0, 0
	}
	i := (y*b.W + x) * 3
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

// Display consumes logical frames and owns the physical output.
type Display interface {
	Frame(buf *PixelBuffer) error
	Blank() error
	Close() error
}

// panelMap translates logical coordinates to physical panel coordinates.
type panelMap struct {
	w, h   int
	panelW int

	// mirrorTop mirrors X on the first (top) panel so the arc flow lines
	// up across the physical arrangement.
	mirrorTop bool

	flipX         bool
	flipY         bool
	reversePanels bool
}

func (m panelMap) mapXY(x, y int) (int, int) {
	mx, my := x, y

	if m.mirrorTop && mx < m.panelW {
		mx = m.panelW - 1 - mx
	}

	if m.flipX {
		mx = (m.w - 1) - mx
	}
	if m.flipY {
		my = (m.h - 1) - my
	}

	if m.reversePanels && m.panelW > 0 {
		panels := m.w / m.panelW
		panel := mx / m.panelW
		inPanel := mx % m.panelW
		mx = (panels-1-panel)*m.panelW + inPanel
	}

	return mx, my
}

// ============================================================================
// Memory sink (tests, -dry-run)
// ============================================================================

type memDisplay struct {
	remap panelMap

	frames  int
	blanks  int
	last    []byte
	lastW   int
	lastH   int
	blanked bool
}

func newMemDisplay(remap panelMap) *memDisplay {
	return &memDisplay{remap: remap}
}

func (d *memDisplay) Frame(buf *PixelBuffer) error {
	if d.last == nil || d.lastW != buf.W || d.lastH != buf.H {
		d.last = make([]byte, len(buf.Pix))
		d.lastW, d.lastH = buf.W, buf.H
	}
	for y := 0; y < buf.H; y++ {
		for x := 0; x < buf.W; x++ {
			mx, my := d.remap.mapXY(x, y)
			r, g, b := buf.RGBAt(x, y)
			i := (my*buf.W + mx) * 3
			d.last[i], d.last[i+1], d.last[i+2] = r, g, b
		}
	}
	d.frames++
	d.blanked = false
	return nil
}

func (d *memDisplay) Blank() error {
	for i := range d.last {
		d.last[i] = 0
	}
	d.blanks++
	d.blanked = true
	return nil
}

func (d *memDisplay) Close() error { return nil }

// ============================================================================
// Linux framebuffer sink
// ============================================================================

const (
	ioctlFBIOGetVScreenInfo = 0x4600
)

type fbBitfield struct {
	Offset   uint32
	Length   uint32
	MsbRight uint32
}

// fbVarScreeninfo mirrors the kernel's fb_var_screeninfo layout.
type fbVarScreeninfo struct {
	Xres         uint32
	Yres         uint32
	XresVirtual  uint32
	YresVirtual  uint32
	Xoffset      uint32
	Yoffset      uint32
	BitsPerPixel uint32
	Grayscale    uint32
	Red          fbBitfield
	Green        fbBitfield
	Blue         fbBitfield
	Transp       fbBitfield
	Nonstd       uint32
	Activate     uint32
	Height       uint32
	Width        uint32
	AccelFlags   uint32
	Pixclock     uint32
	LeftMargin   uint32
	RightMargin  uint32
	UpperMargin  uint32
	LowerMargin  uint32
	HsyncLen     uint32
	VsyncLen     uint32
	Sync         uint32
	Vmode        uint32
	Rotate       uint32
	Colorspace   uint32
	Reserved     [4]uint32
}

// fbdevDisplay writes frames into a memory-mapped framebuffer device.
type fbdevDisplay struct {
	fd    int
	mem   []byte
	remap panelMap

	xres   int
	yres   int
	stride int // bytes per row
	bpp    int // bytes per pixel
}

// openFbdev opens and maps the framebuffer device. Failing here is fatal to
// startup; there is no retry.
func openFbdev(path string, remap panelMap) (*fbdevDisplay, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	var info fbVarScreeninfo
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), ioctlFBIOGetVScreenInfo, uintptr(unsafe.Pointer(&info))); errno != 0 {
		unix.Close(fd)
		return nil, fmt.Errorf("FBIOGET_VSCREENINFO %s: %w", path, errno)
	}

	if info.BitsPerPixel != 16 && info.BitsPerPixel != 32 {
		unix.Close(fd)
		return nil, fmt.Errorf("unsupported framebuffer depth %d bpp on %s", info.BitsPerPixel, path)
	}
	if int(info.Xres) < remap.w || int(info.Yres) < remap.h {
		unix.Close(fd)
		return nil, fmt.Errorf("framebuffer %dx%d smaller than matrix %dx%d", info.Xres, info.Yres, remap.w, remap.h)
	}

	bpp := int(info.BitsPerPixel) / 8
	stride := int(info.XresVirtual) * bpp
	size := stride * int(info.YresVirtual)

	mem, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}

	return &fbdevDisplay{
		fd:     fd,
		mem:    mem,
		remap:  remap,
		xres:   int(info.Xres),
		yres:   int(info.Yres),
		stride: stride,
		bpp:    bpp,
	}, nil
}

func (d *fbdevDisplay) Frame(buf *PixelBuffer) error {
	for y := 0; y < buf.H; y++ {
		for x := 0; x < buf.W; x++ {
			mx, my := d.remap.mapXY(x, y)
			r, g, b := buf.RGBAt(x, y)
			d.putPixel(mx, my, r, g, b)
		}
	}
	return nil
}

func (d *fbdevDisplay) putPixel(x, y int, r, g, b byte) {
	if x < 0 || x >= d.xres || y < 0 || y >= d.yres {
		return
	}
	i := y*d.stride + x*d.bpp
	switch d.bpp {
	case 4:
		// XRGB8888, little-endian: B G R X
		d.mem[i] = b
		d.mem[i+1] = g
		d.mem[i+2] = r
		d.mem[i+3] = 0
	case 2:
		// RGB565
		v := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
		d.mem[i] = byte(v)
		d.mem[i+1] = byte(v >> 8)
	}
}

func (d *fbdevDisplay) Blank() error {
	for i := range d.mem {
		d.mem[i] = 0
	}
	return nil
}

func (d *fbdevDisplay) Close() error {
	mem := d.mem
	d.mem = nil
	if mem != nil {
		if err := unix.Munmap(mem); err != nil {
			unix.Close(d.fd)
			return fmt.Errorf("munmap: %w", err)
		}
	}
	if err := unix.Close(d.fd); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
