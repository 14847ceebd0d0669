// Package filtergraph models render pipelines as typed filter nodes and
// serializes them to ffmpeg -filter_complex syntax.
package filtergraph

import (
	"fmt"
	"strings"
)

// Stream is a labeled edge between nodes.
type Stream struct {
	label string
}

// Label returns the bracketed label, e.g. "[s3]".
func (s Stream) Label() string {
	return "[" + s.label + "]"
}

type step struct {
	node    Node
	inputs  []Stream
	outputs []Stream
}

// Graph is an append-only DAG of filter nodes. Labels are assigned in
// insertion order so serialization is deterministic.
type Graph struct {
	steps []step
	next  int
	err   error
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{}
}

// Source returns the video stream of input file index.
func (g *Graph) Source(index int) Stream {
	return Stream{label: fmt.Sprintf("%d:v", index)}
}

// Apply adds node fed by inputs and returns its outputs. Arity mismatches are
// recorded and reported by Err and Serialize.
func (g *Graph) Apply(n Node, inputs ...Stream) []Stream {
	if g.err == nil && len(inputs) != n.Inputs() {
		g.err = fmt.Errorf("%s takes %d inputs, got %d", n.Filter(), n.Inputs(), len(inputs))
	}
	if g.err == nil && n.Outputs() < 1 {
		g.err = fmt.Errorf("%s produces no outputs", n.Filter())
	}

	outs := make([]Stream, max(n.Outputs(), 0))
	for i := range outs {
		outs[i] = Stream{label: fmt.Sprintf("s%d", g.next)}
		g.next++
	}
	g.steps = append(g.steps, step{node: n, inputs: inputs, outputs: outs})
	return outs
}

// Then adds a single-output node and returns its stream.
func (g *Graph) Then(n Node, inputs ...Stream) Stream {
	outs := g.Apply(n, inputs...)
	if len(outs) == 0 {
		return Stream{}
	}
	return outs[0]
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []Node {
	nodes := make([]Node, len(g.steps))
	for i, s := range g.steps {
		nodes[i] = s.node
	}
	return nodes
}

// Err returns the first construction error.
func (g *Graph) Err() error {
	return g.err
}

// Validate checks that every stream other than out is consumed exactly once
// and out is produced but never consumed.
func (g *Graph) Validate(out Stream) error {
	if g.err != nil {
		return g.err
	}
	if len(g.steps) == 0 {
		return fmt.Errorf("empty filter graph")
	}

	produced := make(map[string]bool)
	consumed := make(map[string]int)
	for _, s := range g.steps {
		for _, in := range s.inputs {
			consumed[in.label]++
		}
		for _, o := range s.outputs {
			produced[o.label] = true
		}
	}

	if !produced[out.label] {
		return fmt.Errorf("output %s is not produced by the graph", out.Label())
	}
	for label, n := range consumed {
		if n > 1 {
			return fmt.Errorf("stream [%s] consumed %d times; split it first", label, n)
		}
		if label == out.label {
			return fmt.Errorf("output %s is consumed inside the graph", out.Label())
		}
		if !produced[label] && !strings.HasSuffix(label, ":v") {
			return fmt.Errorf("stream [%s] is never produced", label)
		}
	}
	for label := range produced {
		if label != out.label && consumed[label] == 0 {
			return fmt.Errorf("stream [%s] is never consumed", label)
		}
	}
	return nil
}

// Serialize renders the graph as a -filter_complex string ending at out.
func (g *Graph) Serialize(out Stream) (string, error) {
	if err := g.Validate(out); err != nil {
		return "", err
	}

	var b strings.Builder
	for i, s := range g.steps {
		if i > 0 {
			b.WriteByte(';')
		}
		for _, in := range s.inputs {
			b.WriteString(in.Label())
		}
		b.WriteString(s.node.Filter())
		for _, o := range s.outputs {
			b.WriteString(o.Label())
		}
	}
	return b.String(), nil
}

// DurationMs evaluates the output length of out when every source stream
// lasts sourceMs. Pass math.Inf(1) for an unbounded source.
func (g *Graph) DurationMs(out Stream, sourceMs float64) (float64, error) {
	if err := g.Validate(out); err != nil {
		return 0, err
	}

	lengths := make(map[string]float64)
	for _, s := range g.steps {
		in := make([]float64, len(s.inputs))
		for i, stream := range s.inputs {
			d, ok := lengths[stream.label]
			if !ok {
				d = sourceMs
			}
			in[i] = d
		}
		d := s.node.duration(in)
		for _, o := range s.outputs {
			lengths[o.label] = d
		}
	}
	return lengths[out.label], nil
}
