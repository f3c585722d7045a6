package grid

// Euclidean distributes hits over steps with a bucket accumulator. Each
// position adds hits to the bucket; when it reaches steps the bucket is
// drained by steps and the position is a hit. The bucket starts primed at
// steps-hits so the first position is always a hit.
func Euclidean(hits, steps int) []Step {
	if steps <= 0 {
		return nil
	}
	out := make([]Step, steps)
	if hits <= 0 {
		return out
	}
	if hits >= steps {
		for i := range out {
			out[i] = Hit
		}
		return out
	}

	bucket := steps - hits
	for i := 0; i < steps; i++ {
		bucket += hits
		if bucket >= steps {
			bucket -= steps
			out[i] = Hit
		}
	}
	return out
}

// ApplyEuclidean fills every bar of g with the same euclidean bar and returns that bar
func (g *Grid) ApplyEuclidean(hits int) []Step {
	bar := Euclidean(hits, g.StepsPerBar)
	for b := 0; b < g.NumBars; b++ {
		for s, step := range bar {
			g.SetStep(b*g.StepsPerBar+s, step)
		}
	}
	return bar
}
