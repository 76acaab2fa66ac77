package ocr

import (
	"bufio"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
)

// blankIndex is the CTC blank class, by convention class 0.
const blankIndex = 0

// loadDictionary reads the recognition character set, one entry per line.
// Line order must match the model's class order; class k maps to line k-1.
func loadDictionary(path string) ([]string, error) {
	if path == "" {
		return nil, errors.New("dictionary path is empty")
	}

	f, err := os.Open(path) //nolint:gosec // G304: dictionary path comes from run configuration
	if err != nil {
		return nil, fmt.Errorf("failed to open dictionary %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var dict []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		dict = append(dict, strings.TrimRight(scanner.Text(), "\r\n"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read dictionary: %w", err)
	}
	if len(dict) == 0 {
		return nil, fmt.Errorf("dictionary %s is empty", path)
	}

	return dict, nil
}

// decode greedy-decodes a [1, T, C] logits tensor: argmax per timestep,
// collapse repeats, drop blanks, map class indices through the dictionary.
// The returned confidence is the mean probability of the kept characters.
func (e *Engine) decode(logits []float32, shape []int64) (string, float64, error) {
	if len(shape) < 3 {
		return "", 0, fmt.Errorf("expected 3D logits, got %dD", len(shape))
	}

	steps, classes := int(shape[1]), int(shape[2])
	if steps <= 0 || classes <= 0 || len(logits) < steps*classes {
		return "", 0, errors.New("logits shape does not match data")
	}

	var sb strings.Builder
	var probSum float64
	var kept int
	prev := -1

	for t := 0; t < steps; t++ {
		row := logits[t*classes : (t+1)*classes]
		idx, _ := argmax(row)

		if idx == blankIndex || idx == prev {
			prev = idx
			continue
		}
		prev = idx

		ch := e.classChar(idx)
		if ch == "" {
			continue
		}
		sb.WriteString(ch)
		probSum += probOf(row, idx)
		kept++
	}

	if kept == 0 {
		return "", 0, nil
	}

	return sb.String(), probSum / float64(kept), nil
}

// classChar maps a non-blank class index to its dictionary entry. One class
// past the dictionary is the space character.
func (e *Engine) classChar(idx int) string {
	switch {
	case idx >= 1 && idx <= len(e.dict):
		return e.dict[idx-1]
	case idx == len(e.dict)+1:
		return " "
	default:
		return ""
	}
}

func argmax(v []float32) (int, float32) {
	idx, best := 0, v[0]
	for i := 1; i < len(v); i++ {
		if v[i] > best {
			idx, best = i, v[i]
		}
	}
	return idx, best
}

// probOf returns the softmax probability of v[idx], or v[idx] directly when
// the row already looks like a probability distribution.
func probOf(v []float32, idx int) float64 {
	var sum float64
	min, max := v[0], v[0]
	for _, x := range v {
		sum += float64(x)
		if x < min {
			min = x
		}
		if x > max {
			max = x
		}
	}
	if sum > 0.99 && sum < 1.01 && min >= 0 && max <= 1 {
		return float64(v[idx])
	}

	var denom float64
	for _, x := range v {
		denom += math.Exp(float64(x - max))
	}
	if denom == 0 {
		return 0
	}
	return math.Exp(float64(v[idx]-max)) / denom
}
