package train

import (
	"context"
	"time"

	"github.com/born-ml/kindle/internal/stats"
	"github.com/born-ml/kindle/internal/upload"
)

// DefaultUploadTimeout bounds the train-end upload.
const DefaultUploadTimeout = 10 * time.Minute

// Uploader mirrors the output directory through an upload.Uploader once
// training ends. Failures are logged and never fail the run.
type Uploader struct {
	Base

	Uploader upload.Uploader
	Timeout  time.Duration
}

// NewUploader returns an Uploader with the default order and timeout.
func NewUploader(u upload.Uploader) *Uploader {
	return &Uploader{
		Base:     NewBase(OrderUploader),
		Uploader: u,
		Timeout:  DefaultUploadTimeout,
	}
}

// OnTrainEnd runs with a fresh context: the one passed to Fit may already
// be cancelled by an interrupt.
func (u *Uploader) OnTrainEnd(t *Trainer, _ int, _ *stats.Aggregator) error {
	if u.Uploader == nil {
		return nil
	}
	timeout := u.Timeout
	if timeout <= 0 {
		timeout = DefaultUploadTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	t.Logger().Info("Uploading output directory", "dir", t.OutDir())
	if err := u.Uploader.UploadDir(ctx, t.OutDir()); err != nil {
		t.Logger().Error(err, "Upload failed", "dir", t.OutDir())
	}
	return nil
}
