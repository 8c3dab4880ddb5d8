// Package transcode wraps ffmpeg and ffprobe for resolution conversion with
// streamed progress.
//
// Engine.Convert drives one ffmpeg run: the source duration comes from an
// ffprobe metadata probe, the scale filter fixes the target height while
// computing an even-rounded width, and the machine-readable progress stream on
// stdout is parsed into fractional percentages for the caller's callback. A
// failed or non-numeric probe degrades progress to "unknown" without failing
// the conversion, and a successful run always finishes with a 100% callback.
package transcode
