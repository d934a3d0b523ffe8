// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package atlas

// shelf is one horizontal band of the shelf-packing chain.
type shelf struct {
	y      int // top Y coordinate of this shelf
	height int // height of this shelf (tallest item so far)
	nextX  int // next available X position on this shelf
}

// shelfPacker places rectangles into a bounded area by dividing it into
// horizontal shelves: each rectangle goes onto the first shelf it fits,
// or opens a new shelf below. The bounds may grow while packing — existing
// placements stay valid because coordinates never move.
//
// No locking: the packer inherits the atlas's single-owner discipline.
type shelfPacker struct {
	width   int
	height  int
	padding int

	shelves []shelf

	allocCount int
	usedArea   int
}

// newShelfPacker creates a packer for the given initial bounds.
func newShelfPacker(width, height, padding int) *shelfPacker {
	if padding < 0 {
		padding = 0
	}
	return &shelfPacker{
		width:   width,
		height:  height,
		padding: padding,
		shelves: make([]shelf, 0, 16),
	}
}

// grow widens the packable bounds. Shrinking is ignored.
func (p *shelfPacker) grow(width, height int) {
	if width > p.width {
		p.width = width
	}
	if height > p.height {
		p.height = height
	}
}

// addRect places a w x h rectangle, returning its top-left corner.
// ok is false when no shelf can take it within the current bounds.
func (p *shelfPacker) addRect(w, h int) (x, y int, ok bool) {
	if w <= 0 || h <= 0 {
		return 0, 0, false
	}

	pw := w + p.padding
	ph := h + p.padding
	if pw > p.width || ph > p.height {
		return 0, 0, false
	}

	// First shelf with room wins.
	for i := range p.shelves {
		s := &p.shelves[i]
		if s.nextX+pw > p.width {
			continue
		}
		// A shelf cannot get taller once items sit on it.
		if ph > s.height && s.nextX > 0 {
			continue
		}
		x = s.nextX
		y = s.y
		s.nextX += pw
		if ph > s.height {
			s.height = ph
		}
		p.allocCount++
		p.usedArea += w * h
		return x, y, true
	}

	// Open a new shelf below the last one.
	newY := 0
	if n := len(p.shelves); n > 0 {
		last := p.shelves[n-1]
		newY = last.y + last.height
	}
	if newY+ph > p.height {
		return 0, 0, false
	}
	p.shelves = append(p.shelves, shelf{y: newY, height: ph, nextX: pw})
	p.allocCount++
	p.usedArea += w * h
	return 0, newY, true
}

// utilization returns the fraction of area used (0.0 to 1.0).
func (p *shelfPacker) utilization() float64 {
	total := p.width * p.height
	if total == 0 {
		return 0
	}
	return float64(p.usedArea) / float64(total)
}
