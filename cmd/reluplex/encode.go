package main

import (
	"fmt"

	"github.com/crillab/reluplex/nnet"
	"github.com/crillab/reluplex/reluplex"
)

// nodeKind distinguishes the tableau variables a hidden/output node gets:
// its raw weighted sum (b), the binding-row auxiliary fixed at zero (aux)
// and, for hidden nodes, its rectified value (f).
type nodeKind int

const (
	kindB nodeKind = iota
	kindF
	kindAux
)

type nodeKey struct {
	layer int
	node  int
	kind  nodeKind
}

// encoded is the minimal benchmark-driver translation of a parsed network
// into a tableau: input box constraints, one binding row per hidden and
// output node, and one ReLU pair per hidden node. A full verification query
// additionally encodes an output disequality and possibly tighter input
// boxes; that remains the benchmark driver's job and is out of scope here.
type encoded struct {
	solver *reluplex.Solver
	input  []reluplex.Var
	output []reluplex.Var
}

func encodeNetwork(n *nnet.Network, cfg reluplex.Config) (*encoded, error) {
	last := n.NumLayers() - 1
	if last < 1 {
		return nil, fmt.Errorf("network has no layers")
	}
	inputSize := n.LayerSizes[0]

	vars := make(map[nodeKey]reluplex.Var)
	next := 0
	alloc := func(k nodeKey) reluplex.Var {
		v := reluplex.Var(next)
		vars[k] = v
		next++
		return v
	}

	input := make([]reluplex.Var, inputSize)
	for i := 0; i < inputSize; i++ {
		input[i] = alloc(nodeKey{0, i, kindF})
	}
	for layer := 1; layer <= last; layer++ {
		size := n.LayerSizes[layer]
		for t := 0; t < size; t++ {
			alloc(nodeKey{layer, t, kindB})
			alloc(nodeKey{layer, t, kindAux})
			if layer < last {
				alloc(nodeKey{layer, t, kindF})
			}
		}
	}
	constantVar := reluplex.Var(next)
	next++

	s := reluplex.New(next, cfg)

	s.SetLowerBound(constantVar, 1)
	s.SetUpperBound(constantVar, 1)
	s.SetName(constantVar, "const")

	for i := 0; i < inputSize; i++ {
		v := input[i]
		rng := n.Inputs[i]
		lo := (rng.Min - rng.Mean) / rng.Range
		hi := (rng.Max - rng.Mean) / rng.Range
		s.SetLowerBound(v, lo)
		s.SetUpperBound(v, hi)
		s.SetName(v, fmt.Sprintf("in%d", i))
	}

	for layer := 1; layer <= last; layer++ {
		size := n.LayerSizes[layer]
		prevSize := n.LayerSizes[layer-1]
		for t := 0; t < size; t++ {
			b := vars[nodeKey{layer, t, kindB}]
			aux := vars[nodeKey{layer, t, kindAux}]

			s.SetLowerBound(aux, 0)
			s.SetUpperBound(aux, 0)
			s.MarkBasic(aux)
			s.InitializeCell(aux, b, -1)

			for src := 0; src < prevSize; src++ {
				var prevF reluplex.Var
				if layer == 1 {
					prevF = input[src]
				} else {
					prevF = vars[nodeKey{layer - 1, src, kindF}]
				}
				w := n.Tensor[layer][nnet.Weights][t][src]
				s.InitializeCell(aux, prevF, w)
			}
			bias := n.Tensor[layer][nnet.Biases][t][0]
			s.InitializeCell(aux, constantVar, bias)

			s.SetName(b, fmt.Sprintf("b_%d_%d", layer, t))
			s.SetName(aux, fmt.Sprintf("aux_%d_%d", layer, t))

			if layer < last {
				f := vars[nodeKey{layer, t, kindF}]
				s.SetReluPair(b, f)
				s.SetLowerBound(f, 0)
				s.SetName(f, fmt.Sprintf("f_%d_%d", layer, t))
			}
		}
	}

	outputSize := n.LayerSizes[last]
	output := make([]reluplex.Var, outputSize)
	for t := 0; t < outputSize; t++ {
		output[t] = vars[nodeKey{last, t, kindB}]
	}

	return &encoded{solver: s, input: input, output: output}, nil
}
