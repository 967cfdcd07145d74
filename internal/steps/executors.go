package steps

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/model"
	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/errors"
)

// scratch downloads the step input into a fresh temp directory. The caller
// removes the directory when done.
func (d *Deps) scratch(ctx context.Context, step string, inputKey string) (dir, inPath string, err error) {
	dir, err = os.MkdirTemp("", "step-"+step+"-")
	if err != nil {
		return "", "", errors.Wrap(err, "steps.scratch", "create temp dir")
	}

	inPath = filepath.Join(dir, "input"+path.Ext(inputKey))
	if err := d.Gateway.Download(ctx, inputKey, inPath); err != nil {
		os.RemoveAll(dir)
		return "", "", err
	}
	return dir, inPath, nil
}

func (d *Deps) uploadFile(ctx context.Context, localPath, key, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return errors.Wrap(err, "steps.upload", "open output file")
	}
	defer f.Close()
	return d.Gateway.Upload(ctx, key, f, contentType)
}

// alreadyDone implements check-and-skip: when the deterministic output key
// is already in storage, a previous (possibly crashed) attempt finished the
// work and the step returns its output without re-running.
func (d *Deps) alreadyDone(ctx context.Context, step, key string) (bool, error) {
	ok, err := d.Gateway.Exists(ctx, key)
	if err != nil {
		return false, err
	}
	if ok {
		d.Log.WithStep(step).Info("output already present, skipping", "key", key)
	}
	return ok, nil
}

type thumbnailStep struct{ deps Deps }

func (s *thumbnailStep) Name() string { return model.StepThumbnail }

// Execute produces a 512px JPEG thumbnail of the input frame.
func (s *thumbnailStep) Execute(ctx context.Context, req Request) (model.Output, error) {
	key := OutputKey(req.JobID, s.Name(), req.InputKey, req.Params, ".jpg")
	out := model.Output{Type: s.Name(), S3Key: key}

	if done, err := s.deps.alreadyDone(ctx, s.Name(), key); err != nil || done {
		return out, err
	}

	dir, in, err := s.deps.scratch(ctx, s.Name(), req.InputKey)
	if err != nil {
		return model.Output{}, err
	}
	defer os.RemoveAll(dir)

	dst := filepath.Join(dir, "thumb.jpg")
	if err := runFfmpeg(ctx, s.deps.FfmpegPath, thumbnailArgs(in, dst), dir); err != nil {
		return model.Output{}, err
	}
	if err := s.deps.uploadFile(ctx, dst, key, "image/jpeg"); err != nil {
		return model.Output{}, err
	}
	return out, nil
}

type watermarkStep struct{ deps Deps }

func (s *watermarkStep) Name() string { return model.StepWatermark }

// Execute overlays the configured text bottom-right and re-encodes as JPEG.
func (s *watermarkStep) Execute(ctx context.Context, req Request) (model.Output, error) {
	text := req.Params["text"]
	if text == "" {
		text = s.deps.WatermarkText
	}
	// The effective text is part of the idempotency key: changing the
	// watermark must change the output key.
	params := map[string]string{"text": text}

	key := OutputKey(req.JobID, s.Name(), req.InputKey, params, ".jpg")
	out := model.Output{Type: s.Name(), S3Key: key}

	if done, err := s.deps.alreadyDone(ctx, s.Name(), key); err != nil || done {
		return out, err
	}

	dir, in, err := s.deps.scratch(ctx, s.Name(), req.InputKey)
	if err != nil {
		return model.Output{}, err
	}
	defer os.RemoveAll(dir)

	dst := filepath.Join(dir, "wm.jpg")
	if err := runFfmpeg(ctx, s.deps.FfmpegPath, watermarkArgs(in, dst, text), dir); err != nil {
		return model.Output{}, err
	}
	if err := s.deps.uploadFile(ctx, dst, key, "image/jpeg"); err != nil {
		return model.Output{}, err
	}
	return out, nil
}

type transcodeStep struct{ deps Deps }

func (s *transcodeStep) Name() string { return model.StepTranscode720 }

// Execute transcodes to an H.264/AAC 720p MP4.
func (s *transcodeStep) Execute(ctx context.Context, req Request) (model.Output, error) {
	key := OutputKey(req.JobID, s.Name(), req.InputKey, req.Params, ".mp4")
	out := model.Output{Type: s.Name(), S3Key: key}

	if done, err := s.deps.alreadyDone(ctx, s.Name(), key); err != nil || done {
		return out, err
	}

	dir, in, err := s.deps.scratch(ctx, s.Name(), req.InputKey)
	if err != nil {
		return model.Output{}, err
	}
	defer os.RemoveAll(dir)

	dst := filepath.Join(dir, "out.mp4")
	if err := runFfmpeg(ctx, s.deps.FfmpegPath, transcode720Args(in, dst), dir); err != nil {
		return model.Output{}, err
	}
	if err := s.deps.uploadFile(ctx, dst, key, "video/mp4"); err != nil {
		return model.Output{}, err
	}
	return out, nil
}

type hlsStep struct{ deps Deps }

func (s *hlsStep) Name() string { return model.StepHLS720 }

// Execute packages the input as 720p HLS. The playlist is the canonical
// output; segments live beside it under the same prefix and are referenced
// only through the playlist.
func (s *hlsStep) Execute(ctx context.Context, req Request) (model.Output, error) {
	prefix := OutputPrefix(req.JobID, s.Name(), req.InputKey, req.Params)
	playlistKey := prefix + "/index.m3u8"
	out := model.Output{Type: s.Name(), S3Key: playlistKey}

	// UploadDir writes the playlist last, so its presence implies every
	// segment it references is already uploaded.
	if done, err := s.deps.alreadyDone(ctx, s.Name(), playlistKey); err != nil || done {
		return out, err
	}

	dir, in, err := s.deps.scratch(ctx, s.Name(), req.InputKey)
	if err != nil {
		return model.Output{}, err
	}
	defer os.RemoveAll(dir)

	outDir := filepath.Join(dir, "hls")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return model.Output{}, errors.Wrap(err, "steps.hls", "create output dir")
	}

	args := hls720Args(in, filepath.Join(outDir, "seg_%04d.ts"), filepath.Join(outDir, "index.m3u8"))
	if err := runFfmpeg(ctx, s.deps.FfmpegPath, args, dir); err != nil {
		return model.Output{}, err
	}
	if err := s.deps.Gateway.UploadDir(ctx, outDir, prefix); err != nil {
		return model.Output{}, err
	}
	return out, nil
}
