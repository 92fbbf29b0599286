package main

import "testing"

func TestPixelBufferBounds(t *testing.T) {
	buf := NewPixelBuffer(4, 2)

	buf.SetRGB(3, 1, 10, 20, 30)
	if r, g, b := buf.RGBAt(3, 1); r != 10 || g != 20 || b != 30 {
		t.Errorf("RGBAt(3,1) = (%d,%d,%d), want (10,20,30)", r, g, b)
	}

	// Out-of-bounds writes are dropped, reads come back black.
	buf.SetRGB(-1, 0, 255, 255, 255)
	buf.SetRGB(4, 0, 255, 255, 255)
	buf.SetRGB(0, 2, 255, 255, 255)
	for i, v := range buf.Pix {
		if v != 0 && i != (1*4+3)*3 && i != (1*4+3)*3+1 && i != (1*4+3)*3+2 {
			t.Fatalf("stray write at byte %d", i)
		}
	}
	if r, g, b := buf.RGBAt(99, 99); r != 0 || g != 0 || b != 0 {
		t.Errorf("out-of-bounds read = (%d,%d,%d), want black", r, g, b)
	}
}

func TestPanelMapIdentity(t *testing.T) {
	m := panelMap{w: 192, h: 64, panelW: 64}
	if x, y := m.mapXY(100, 30); x != 100 || y != 30 {
		t.Errorf("identity map moved pixel to (%d,%d)", x, y)
	}
}

func TestPanelMapMirrorTop(t *testing.T) {
	m := panelMap{w: 192, h: 64, panelW: 64, mirrorTop: true}

	// First panel mirrors in X.
	if x, _ := m.mapXY(0, 0); x != 63 {
		t.Errorf("mapXY(0,0).x = %d, want 63", x)
	}
	if x, _ := m.mapXY(63, 10); x != 0 {
		t.Errorf("mapXY(63,10).x = %d, want 0", x)
	}

	// Later panels pass through.
	if x, _ := m.mapXY(64, 0); x != 64 {
		t.Errorf("mapXY(64,0).x = %d, want 64", x)
	}
	if x, _ := m.mapXY(191, 0); x != 191 {
		t.Errorf("mapXY(191,0).x = %d, want 191", x)
	}
}

func TestPanelMapFlips(t *testing.T) {
	m := panelMap{w: 192, h: 64, panelW: 64, flipX: true, flipY: true}
	x, y := m.mapXY(0, 0)
	if x != 191 || y != 63 {
		t.Errorf("mapXY(0,0) = (%d,%d), want (191,63)", x, y)
	}
}

func TestPanelMapReversePanels(t *testing.T) {
	m := panelMap{w: 192, h: 64, panelW: 64, reversePanels: true}

	// Pixel 10 in panel 0 lands at offset 10 in panel 2.
	if x, _ := m.mapXY(10, 0); x != 2*64+10 {
		t.Errorf("mapXY(10,0).x = %d, want %d", x, 2*64+10)
	}
	// Middle panel stays put.
	if x, _ := m.mapXY(64+5, 0); x != 64+5 {
		t.Errorf("middle panel moved: x = %d", x)
	}
}

func TestMemDisplayAppliesRemap(t *testing.T) {
	m := panelMap{w: 8, h: 2, panelW: 4, mirrorTop: true}
	d := newMemDisplay(m)

	buf := NewPixelBuffer(8, 2)
	buf.SetRGB(0, 0, 200, 0, 0)

	if err := d.Frame(buf); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if d.frames != 1 {
		t.Errorf("frames = %d, want 1", d.frames)
	}

	// (0,0) mirrors to (3,0) within the first panel.
	i := (0*8 + 3) * 3
	if d.last[i] != 200 {
		t.Errorf("remapped pixel missing: last[%d] = %d", i, d.last[i])
	}
}

func TestMemDisplayBlank(t *testing.T) {
	d := newMemDisplay(panelMap{w: 4, h: 1, panelW: 4})
	buf := NewPixelBuffer(4, 1)
	buf.SetRGB(1, 0, 9, 9, 9)
	if err := d.Frame(buf); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	if err := d.Blank(); err != nil {
		t.Fatalf("Blank: %v", err)
	}
	if !d.blanked || d.blanks != 1 {
		t.Errorf("blanked=%v blanks=%d, want true/1", d.blanked, d.blanks)
	}
	for i, v := range d.last {
		if v != 0 {
			t.Fatalf("byte %d not cleared: %d", i, v)
		}
	}
}
