package ppu

import "gobound/internal/gbmath"

// renderScanline composites background, window, and sprites for one
// completed line into OutputBuffer. It runs once per line, at the
// mode-3-to-mode-0 transition, rather than dot-by-dot; per-pixel mid-line
// register changes (common in a handful of demanding games) aren't
// modeled.
func (p *PPU) renderScanline(line uint8) {
	if line >= ScreenHeight {
		return
	}

	var bgLine, objLine [ScreenWidth]uint8
	bgOpaque := [ScreenWidth]bool{}

	if p.LCDC&0x01 != 0 {
		p.renderBackground(line, &bgLine, &bgOpaque)
	}
	if p.LCDC&0x20 != 0 && p.WY <= line {
		p.renderWindow(line, &bgLine, &bgOpaque)
	}
	objOpaque := [ScreenWidth]bool{}
	if p.LCDC&0x02 != 0 {
		p.renderSprites(line, &objLine, &objOpaque, bgOpaque)
	}

	base := int(line) * ScreenWidth
	for x := 0; x < ScreenWidth; x++ {
		if objOpaque[x] {
			p.OutputBuffer[base+x] = objLine[x]
		} else {
			p.OutputBuffer[base+x] = bgLine[x]
		}
	}
}

// tileRow returns the eight shade values for row `row` (0-7) of the tile
// identified by tileIdx, using LCDC bit 4 to choose between the 0x8000
// unsigned and 0x8800 signed tile-data addressing modes.
func (p *PPU) tileRow(tileIdx uint8, row uint8, signedAddressing bool) [8]uint8 {
	var base uint16
	if signedAddressing {
		base = uint16(0x1000 + int16(int8(tileIdx))*16)
	} else {
		base = uint16(tileIdx) * 16
	}
	addr := base + uint16(row)*2
	return gbmath.PackPlanes(p.VRAM[addr], p.VRAM[addr+1])
}

func applyPalette(palette uint8, shade uint8) uint8 {
	return (palette >> (shade * 2)) & 0x03
}

func (p *PPU) renderBackground(line uint8, out *[ScreenWidth]uint8, opaque *[ScreenWidth]bool) {
	signed := p.LCDC&0x10 == 0
	mapBase := uint16(0x1800)
	if p.LCDC&0x08 != 0 {
		mapBase = 0x1C00
	}

	y := line + p.SCY
	tileRow := y / 8
	rowInTile := y % 8

	for x := 0; x < ScreenWidth; x++ {
		srcX := uint8(x) + p.SCX
		tileCol := srcX / 8
		colInTile := srcX % 8

		mapAddr := mapBase + uint16(tileRow)*32 + uint16(tileCol)
		tileIdx := p.VRAM[mapAddr]

		shade := p.tileRow(tileIdx, rowInTile, signed)[colInTile]

		out[x] = applyPalette(p.BGP, shade)
		opaque[x] = shade != 0
	}
}

func (p *PPU) renderWindow(line uint8, out *[ScreenWidth]uint8, opaque *[ScreenWidth]bool) {
	signed := p.LCDC&0x10 == 0
	mapBase := uint16(0x1800)
	if p.LCDC&0x40 != 0 {
		mapBase = 0x1C00
	}

	windowY := line - p.WY
	tileRow := windowY / 8
	rowInTile := windowY % 8

	wx := int(p.WX) - 7
	for x := 0; x < ScreenWidth; x++ {
		if x < wx {
			continue
		}
		winX := uint8(x - wx)
		tileCol := winX / 8
		colInTile := winX % 8

		mapAddr := mapBase + uint16(tileRow)*32 + uint16(tileCol)
		tileIdx := p.VRAM[mapAddr]

		shade := p.tileRow(tileIdx, rowInTile, signed)[colInTile]

		out[x] = applyPalette(p.BGP, shade)
		opaque[x] = shade != 0
	}
}

// renderSprites scans all 40 OAM entries for ones intersecting this line,
// keeps at most the first 10 in OAM order (the real scanning limit), and
// draws them back-to-front by X so lower OAM index wins ties, matching
// DMG sprite priority rules.
func (p *PPU) renderSprites(line uint8, out *[ScreenWidth]uint8, opaque *[ScreenWidth]bool, bgOpaque [ScreenWidth]bool) {
	tall := p.LCDC&0x04 != 0
	height := uint8(8)
	if tall {
		height = 16
	}

	type visible struct {
		x, y, tile, attr uint8
		oamIndex         int
	}
	var candidates []visible
	for i := 0; i < 40 && len(candidates) < 10; i++ {
		y := p.OAM[i*4+0] - 16
		x := p.OAM[i*4+1] - 8
		tile := p.OAM[i*4+2]
		attr := p.OAM[i*4+3]

		if line < y || line >= y+height {
			continue
		}
		candidates = append(candidates, visible{x, y, tile, attr, i})
	}

	// Stable insertion sort by OAM X (x+8 undoes the -8 offset), keeping
	// OAM order among equal X.
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].x+8 < candidates[j-1].x+8; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}

	// Draw lowest-priority first so higher priority (lower X, then lower
	// OAM index) overwrites it.
	for pass := len(candidates) - 1; pass >= 0; pass-- {
		s := candidates[pass]
		row := line - s.y
		if s.attr&0x40 != 0 { // Y flip
			row = height - 1 - row
		}
		tile := s.tile
		if tall {
			tile &^= 0x01
			if row >= 8 {
				tile |= 0x01
				row -= 8
			}
		}

		shades := p.tileRow(tile, row, false)
		palette := p.OBP0
		if s.attr&0x10 != 0 {
			palette = p.OBP1
		}

		for col := uint8(0); col < 8; col++ {
			screenX := int(s.x) + int(col)
			if screenX < 0 || screenX >= ScreenWidth {
				continue
			}
			bit := col
			if s.attr&0x20 != 0 { // X flip
				bit = 7 - col
			}
			shade := shades[bit]
			if shade == 0 {
				continue
			}
			if s.attr&0x80 != 0 && bgOpaque[screenX] {
				continue // behind background, BG-over-OBJ priority bit set
			}
			out[screenX] = applyPalette(palette, shade)
			opaque[screenX] = true
		}
	}
}
