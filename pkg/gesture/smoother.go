package gesture

import "time"

type observation struct {
	label string
	at    time.Time
}

// Stabilized describes the smoothing outcome for one observation.
type Stabilized struct {
	Label       string
	Stable      bool
	Support     int
	StableSince time.Time
}

// Smoother stabilizes noisy per-frame classifications over a sliding time
// window using raw occurrence counts, not confidence weighting. A label
// replaces the current stable one only once it reaches the minimum support
// within the window. Callers guard it with the client mutex.
type Smoother struct {
	window     time.Duration
	minSupport int

	observations []observation
	stableLabel  string
	stableSince  time.Time
}

func newSmoother(window time.Duration, minSupport int) *Smoother {
	if window <= 0 {
		window = time.Second
	}
	if minSupport <= 0 {
		minSupport = 3
	}
	return &Smoother{window: window, minSupport: minSupport}
}

// Observe records one raw classification and returns the label to surface.
// Ties in occurrence count break toward the label first inserted into the
// counting pass; observations iterate in time order, so first-inserted equals
// earliest-observed within the window.
func (s *Smoother) Observe(label string, at time.Time) Stabilized {
	s.prune(at)
	s.observations = append(s.observations, observation{label: label, at: at})

	counts := make(map[string]int, 4)
	order := make([]string, 0, 4)
	for _, obs := range s.observations {
		if _, seen := counts[obs.label]; !seen {
			order = append(order, obs.label)
		}
		counts[obs.label]++
	}

	majority := order[0]
	for _, candidate := range order[1:] {
		if counts[candidate] > counts[majority] {
			majority = candidate
		}
	}

	if counts[majority] >= s.minSupport {
		if majority != s.stableLabel {
			s.stableLabel = majority
			s.stableSince = at
		}
		return Stabilized{
			Label:       s.stableLabel,
			Stable:      true,
			Support:     counts[majority],
			StableSince: s.stableSince,
		}
	}

	if s.stableLabel != "" {
		return Stabilized{
			Label:       s.stableLabel,
			Stable:      true,
			Support:     counts[s.stableLabel],
			StableSince: s.stableSince,
		}
	}

	return Stabilized{Label: majority, Stable: false, Support: counts[majority]}
}

func (s *Smoother) prune(now time.Time) {
	cutoff := now.Add(-s.window)
	keep := 0
	for keep < len(s.observations) && !s.observations[keep].at.After(cutoff) {
		keep++
	}
	if keep > 0 {
		s.observations = s.observations[keep:]
	}
}

// Reset drops the observation history and the stable label.
func (s *Smoother) Reset() {
	s.observations = nil
	s.stableLabel = ""
	s.stableSince = time.Time{}
}
