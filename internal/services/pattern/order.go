package pattern

import "slices"

// orderSteps returns the step order for one cycle. The input slice is never modified.
func (s *Sequencer) orderSteps(steps []ColorStep, cycle int, patternType PatternType) []ColorStep {
	switch patternType {
	case PatternRandom:
		shuffled := slices.Clone(steps)
		s.shuffle(shuffled)
		return shuffled
	case PatternPingPong:
		if cycle%2 == 1 {
			reversed := slices.Clone(steps)
			slices.Reverse(reversed)
			return reversed
		}
	}
	return steps
}

// shuffle permutes steps uniformly using the sequencer's random source.
func (s *Sequencer) shuffle(steps []ColorStep) {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	s.rng.Shuffle(len(steps), func(i, j int) {
		steps[i], steps[j] = steps[j], steps[i]
	})
}
