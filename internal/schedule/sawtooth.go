package schedule

// Sawtooth is an additive-increase, multiplicative-decrease learning-rate
// controller.
//
// While the batch loss keeps matching or beating its best value the rate
// grows by Add. Inside the patience window the increase shrinks to
// Add/(since+1). Once patience is exhausted the rate is multiplied by Scale.
//
// The zero value has no best loss yet; the first observed loss always
// counts as an improvement.
type Sawtooth struct {
	Add      float64
	Scale    float64
	Patience int

	best  float64
	seen  bool
	since int
}

// NewSawtooth returns a controller with the given parameters.
func NewSawtooth(add, scale float64, patience int) *Sawtooth {
	return &Sawtooth{Add: add, Scale: scale, Patience: patience}
}

// Reset forgets the best loss and the since-improvement counter.
func (s *Sawtooth) Reset() {
	s.best = 0
	s.seen = false
	s.since = 0
}

// Next returns the rate to use after observing loss with current rate lr.
func (s *Sawtooth) Next(loss, lr float64) float64 {
	switch {
	case !s.seen || loss <= s.best:
		s.best = loss
		s.seen = true
		s.since = 0
		return lr + s.Add
	case s.since < s.Patience:
		s.since++
		return lr + s.Add/float64(s.since+1)
	default:
		s.since++
		return lr * s.Scale
	}
}

// Best returns the best loss seen since the last Reset.
func (s *Sawtooth) Best() (float64, bool) {
	return s.best, s.seen
}

// SinceImprovement returns the number of batches since the best loss.
func (s *Sawtooth) SinceImprovement() int {
	return s.since
}
