package train

// UnfreezeMode selects which counter a ModelUnfreezer schedule is keyed by.
type UnfreezeMode int

const (
	ByEpoch UnfreezeMode = iota // epoch index, applied in OnEpochBegin
	ByBatch                     // global batch index, applied in OnBatchBegin
)

// ModelUnfreezer gradually unfreezes a model during training. Schedule
// maps a 0-based epoch or global batch index to the number of trailing
// units to make trainable at that point.
//
//	NewModelUnfreezer(map[int]int{0: 1, 3: 2, 6: 3}, Groups, ByEpoch)
type ModelUnfreezer struct {
	Base

	Schedule map[int]int
	Unit     Unit
	Mode     UnfreezeMode
}

// NewModelUnfreezer returns a ModelUnfreezer with the default order.
func NewModelUnfreezer(schedule map[int]int, unit Unit, mode UnfreezeMode) *ModelUnfreezer {
	return &ModelUnfreezer{
		Base:     NewBase(OrderCheckpoint),
		Schedule: schedule,
		Unit:     unit,
		Mode:     mode,
	}
}

func (u *ModelUnfreezer) OnEpochBegin(t *Trainer, epoch int) error {
	if u.Mode != ByEpoch {
		return nil
	}
	if n, ok := u.Schedule[epoch]; ok {
		return t.unfreeze(u.Unit, n, "epoch", epoch)
	}
	return nil
}

func (u *ModelUnfreezer) OnBatchBegin(t *Trainer, b *BatchState) error {
	if u.Mode != ByBatch {
		return nil
	}
	if n, ok := u.Schedule[b.Global]; ok {
		return t.unfreeze(u.Unit, n, "global_batch", b.Global)
	}
	return nil
}
