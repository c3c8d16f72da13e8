package nnet

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Parse reads the .nnet text format: a handful of comma-separated header
// lines (layer count/sizes, min/max/mean/range per input and output)
// followed by one comma-separated line per weight row and one per bias
// row, layer by layer. Lines starting with "//" are comments and skipped.
//
// This is a minimal reference reader for the CLI demo only; encoding a
// verification query (box constraints, output disequalities, ReLU
// pairings) into a tableau remains the benchmark driver's job, external to
// this package.
func Parse(path string) (*Network, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "//") {
			continue
		}
		lines = append(lines, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(lines) < 7 {
		return nil, fmt.Errorf("nnet: truncated header in %s", path)
	}

	header, err := splitInts(lines[0])
	if err != nil {
		return nil, err
	}
	if len(header) < 3 {
		return nil, fmt.Errorf("nnet: malformed header line in %s", path)
	}
	numLayers, inputSize, outputSize := header[0], header[1], header[2]

	layerSizes, err := splitInts(lines[1])
	if err != nil {
		return nil, err
	}
	if len(layerSizes) != numLayers+1 {
		return nil, fmt.Errorf("nnet: expected %d layer sizes, got %d", numLayers+1, len(layerSizes))
	}

	mins, err := splitFloats(lines[3])
	if err != nil {
		return nil, err
	}
	maxes, err := splitFloats(lines[4])
	if err != nil {
		return nil, err
	}
	means, err := splitFloats(lines[5])
	if err != nil {
		return nil, err
	}
	ranges, err := splitFloats(lines[6])
	if err != nil {
		return nil, err
	}

	n := &Network{LayerSizes: layerSizes}
	n.Inputs = make([]InputRange, inputSize)
	for i := 0; i < inputSize && i < len(mins) && i < len(maxes) && i < len(means) && i < len(ranges); i++ {
		n.Inputs[i] = InputRange{Min: mins[i], Max: maxes[i], Mean: means[i], Range: ranges[i]}
	}
	n.Outputs = make([]OutputRange, outputSize)
	meanOff, rangeOff := inputSize, inputSize
	for i := 0; i < outputSize; i++ {
		m, r := 0.0, 1.0
		if meanOff+i < len(means) {
			m = means[meanOff+i]
		}
		if rangeOff+i < len(ranges) {
			r = ranges[rangeOff+i]
		}
		n.Outputs[i] = OutputRange{Mean: m, Range: r}
	}

	n.Tensor = make([][2][][]float64, numLayers+1)
	row := 7
	for layer := 1; layer <= numLayers; layer++ {
		targetSize := layerSizes[layer]
		sourceSize := layerSizes[layer-1]

		weights := make([][]float64, targetSize)
		for t := 0; t < targetSize; t++ {
			if row >= len(lines) {
				return nil, fmt.Errorf("nnet: truncated weight rows at layer %d", layer)
			}
			vals, err := splitFloats(lines[row])
			if err != nil {
				return nil, err
			}
			if len(vals) < sourceSize {
				return nil, fmt.Errorf("nnet: weight row %d too short at layer %d", t, layer)
			}
			weights[t] = vals[:sourceSize]
			row++
		}

		biases := make([][]float64, targetSize)
		for t := 0; t < targetSize; t++ {
			if row >= len(lines) {
				return nil, fmt.Errorf("nnet: truncated bias rows at layer %d", layer)
			}
			vals, err := splitFloats(lines[row])
			if err != nil {
				return nil, err
			}
			if len(vals) < 1 {
				return nil, fmt.Errorf("nnet: empty bias row at layer %d", layer)
			}
			biases[t] = vals[:1]
			row++
		}

		n.Tensor[layer][Weights] = weights
		n.Tensor[layer][Biases] = biases
	}

	return n, nil
}

func splitInts(line string) ([]int, error) {
	fields := splitFields(line)
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func splitFloats(line string) ([]float64, error) {
	fields := splitFields(line)
	out := make([]float64, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func splitFields(line string) []string {
	raw := strings.Split(line, ",")
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		out = append(out, f)
	}
	return out
}
