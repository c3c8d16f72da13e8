// Package nnet describes the data a neural-network parser hands to the
// verification encoder, together with a minimal .nnet text reader (Parse)
// and a forward pass (Evaluate). Encoding a verification query (box
// constraints, output disequalities, ReLU pairings) into a tableau is an
// external collaborator of the Reluplex decision procedure.
package nnet

// WeightKind indexes the second dimension of a Network's Tensor.
type WeightKind int

const (
	// Weights selects the weight matrix of a layer.
	Weights WeightKind = 0
	// Biases selects the bias vector of a layer.
	Biases WeightKind = 1
)

// InputRange describes the normalization applied to one input neuron.
type InputRange struct {
	Min   float64
	Max   float64
	Mean  float64
	Range float64
}

// OutputRange describes the normalization applied to one output neuron.
type OutputRange struct {
	Mean  float64
	Range float64
}

// Network is the parsed representation of a feed-forward ReLU network.
//
// Tensor is indexed as Tensor[layer][kind][targetNeuron][sourceNeuron],
// with kind == Biases tensors ignoring the source-neuron index (any value
// works; by convention the parser uses 0).
type Network struct {
	LayerSizes []int
	Inputs     []InputRange
	Outputs    []OutputRange
	Tensor     [][2][][]float64
}

// NumLayers returns the number of layers described by the network,
// including the input layer.
func (n *Network) NumLayers() int {
	return len(n.LayerSizes)
}

// Evaluate runs the network forward on x, applying a ReLU after every
// layer except the last. It is used independently of the solver to check
// the "SAT output" testable property from the solver's own witness.
func Evaluate(n *Network, x []float64) []float64 {
	cur := make([]float64, len(x))
	copy(cur, x)
	for layer := 1; layer < n.NumLayers(); layer++ {
		size := n.LayerSizes[layer]
		next := make([]float64, size)
		for t := 0; t < size; t++ {
			sum := n.Tensor[layer][Biases][t][0]
			for s, v := range cur {
				sum += n.Tensor[layer][Weights][t][s] * v
			}
			if layer != n.NumLayers()-1 && sum < 0 {
				sum = 0
			}
			next[t] = sum
		}
		cur = next
	}
	return cur
}
