package engine

import "github.com/saiprasadgudari/Cloud-Native-Media-Pipeline/internal/model"

// composes lists the step-name pairs where a step consumes its
// predecessor's output instead of the original upload. Chaining is a
// property of the pair, not of pipeline position: an HLS package after a
// 720p transcode reuses the already-transcoded stream, and a thumbnail
// after a watermark should show the watermark. Every other pair works from
// the original input.
var composes = map[[2]string]bool{
	{model.StepTranscode720, model.StepHLS720}: true,
	{model.StepWatermark, model.StepThumbnail}: true,
}

// Composes reports whether step next consumes prev's output.
func Composes(prev, next string) bool {
	return composes[[2]string{prev, next}]
}

// inputKeyFor resolves the input key for step index i. Callers guarantee
// that outputs for all steps before i are present on the job.
func inputKeyFor(job *model.Job, i int) string {
	if i == 0 {
		return job.InputKey
	}
	if Composes(job.Pipeline[i-1], job.Pipeline[i]) {
		return job.Outputs[i-1].S3Key
	}
	return job.InputKey
}
