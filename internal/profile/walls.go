package profile

// Walls are the High-Volume-Node price levels nearest to spot. Either wall
// may be absent; when both exist, SupportWall < spot < ResistanceWall.
type Walls struct {
	SupportWall    *float64
	ResistanceWall *float64
	AllHVNs        []float64
}

// FindHVNWalls identifies HVN walls relative to the spot price. A bin
// qualifies as an HVN when its volume is at least HVNMult times the mean
// bin volume.
func (e *Engine) FindHVNWalls(p *VolumeProfile, spot float64) Walls {
	if p == nil || len(p.Bins) == 0 {
		return Walls{}
	}

	mean := p.TotalVolume / float64(len(p.Bins))
	threshold := mean * e.cfg.HVNMult

	var hvns []float64
	for _, b := range p.Bins {
		if b.Volume >= threshold {
			hvns = append(hvns, b.Price)
		}
	}

	walls := Walls{AllHVNs: hvns}
	for _, price := range hvns {
		if price < spot {
			p := price
			walls.SupportWall = &p // keep the highest HVN below spot
		} else if price > spot && walls.ResistanceWall == nil {
			p := price
			walls.ResistanceWall = &p
		}
	}

	e.logger.Debug().
		Int("hvn_count", len(hvns)).
		Interface("support", walls.SupportWall).
		Interface("resistance", walls.ResistanceWall).
		Msg("HVN walls detected")
	return walls
}
