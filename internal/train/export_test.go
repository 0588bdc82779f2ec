package train

// ResetStop clears the stop flag the way every dispatch does.
func (t *Trainer) ResetStop() { t.stop = false }
