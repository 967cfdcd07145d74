package steps

import (
	"bytes"
	"context"
	"os/exec"
	"strings"

	"github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/pkg/errors"
)

// runFfmpeg executes one ffmpeg invocation in dir. Deadline hits are
// transient (a slow transcode may succeed on retry with a fresh lease);
// a nonzero exit with the context still live means ffmpeg rejected the
// input, which is permanent.
func runFfmpeg(ctx context.Context, bin string, args []string, dir string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = dir
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return errors.Timeout("ffmpeg")
		}
		return errors.WrapWithCode(err, errors.CodeInvalidMedia, "steps.ffmpeg", stderrTail(&stderr))
	}
	return nil
}

// Available reports whether the ffmpeg binary can be found, for startup
// checks in the worker.
func Available(bin string) bool {
	if bin == "" {
		bin = "ffmpeg"
	}
	_, err := exec.LookPath(bin)
	return err == nil
}

// stderrTail keeps the last lines of ffmpeg's stderr, where the actual
// failure reason lives.
func stderrTail(buf *bytes.Buffer) string {
	out := strings.TrimSpace(buf.String())
	if out == "" {
		return "ffmpeg failed"
	}
	lines := strings.Split(out, "\n")
	if len(lines) > 5 {
		lines = lines[len(lines)-5:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func thumbnailArgs(in, out string) []string {
	return []string{
		"-y",
		"-i", in,
		"-vf", "scale=512:512:force_original_aspect_ratio=decrease",
		"-frames:v", "1",
		"-q:v", "2",
		out,
	}
}

func watermarkArgs(in, out, text string) []string {
	// drawtext needs the text escaped for ffmpeg's filter syntax.
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`, `:`, `\:`).Replace(text)
	return []string{
		"-y",
		"-i", in,
		"-vf", "drawtext=text='" + escaped + "':fontcolor=white@0.5:fontsize=24:x=w-tw-10:y=h-th-10",
		"-q:v", "2",
		out,
	}
}

func transcode720Args(in, out string) []string {
	return []string{
		"-y",
		"-i", in,
		"-vf", "scale=-2:720",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		out,
	}
}

func hls720Args(in, segmentPattern, playlist string) []string {
	return []string{
		"-y",
		"-i", in,
		"-vf", "scale=-2:720",
		"-c:v", "libx264",
		"-preset", "veryfast",
		"-crf", "23",
		"-c:a", "aac",
		"-b:a", "128k",
		"-f", "hls",
		"-hls_time", "4",
		"-hls_list_size", "0",
		"-hls_flags", "independent_segments",
		"-hls_playlist_type", "vod",
		"-hls_segment_filename", segmentPattern,
		playlist,
	}
}
