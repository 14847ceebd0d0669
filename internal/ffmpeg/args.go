// Package ffmpeg provides FFmpeg command building and execution.
package ffmpeg

import "fmt"

// ArgsBuilder builds an ffmpeg argument list with method chaining.
type ArgsBuilder struct {
	args []string
}

// NewArgsBuilder creates an empty builder.
func NewArgsBuilder() *ArgsBuilder {
	return &ArgsBuilder{}
}

// Input adds an input file.
func (b *ArgsBuilder) Input(path string) *ArgsBuilder {
	b.args = append(b.args, "-i", path)
	return b
}

// FilterComplex sets the filter graph.
func (b *ArgsBuilder) FilterComplex(graph string) *ArgsBuilder {
	if graph != "" {
		b.args = append(b.args, "-filter_complex", graph)
	}
	return b
}

// Map selects an output stream label, e.g. "[out]".
func (b *ArgsBuilder) Map(label string) *ArgsBuilder {
	b.args = append(b.args, "-map", label)
	return b
}

// NoAudio strips audio from the output.
func (b *ArgsBuilder) NoAudio() *ArgsBuilder {
	b.args = append(b.args, "-an")
	return b
}

// Codec sets the video codec.
func (b *ArgsBuilder) Codec(codec string) *ArgsBuilder {
	b.args = append(b.args, "-c:v", codec)
	return b
}

// CRF sets the constant rate factor.
func (b *ArgsBuilder) CRF(crf uint8) *ArgsBuilder {
	b.args = append(b.args, "-crf", fmt.Sprintf("%d", crf))
	return b
}

// AddParam adds a flag with a value.
func (b *ArgsBuilder) AddParam(flag, value string) *ArgsBuilder {
	b.args = append(b.args, flag, value)
	return b
}

// Output sets the output path. It should be the last call.
func (b *ArgsBuilder) Output(path string) *ArgsBuilder {
	b.args = append(b.args, path)
	return b
}

// Build returns a copy of the argument list.
func (b *ArgsBuilder) Build() []string {
	return append([]string(nil), b.args...)
}
