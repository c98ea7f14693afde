package evaluate

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrUndefined is returned by ranking scores when the truth holds a single
// class.
var ErrUndefined = errors.New("score is undefined: only one class present")

// positives validates a binary problem and counts its positives. yTrue
// entries are 1 for the positive class and 0 otherwise.
func positives(yTrue []int, score []float64) (int, error) {
	if len(yTrue) != len(score) {
		return 0, fmt.Errorf("labels and scores differ in length: %d vs %d", len(yTrue), len(score))
	}
	pos := 0
	for _, y := range yTrue {
		switch y {
		case 1:
			pos++
		case 0:
		default:
			return 0, fmt.Errorf("binary label %d is neither 0 nor 1", y)
		}
	}
	if pos == 0 || pos == len(yTrue) {
		return pos, ErrUndefined
	}
	return pos, nil
}

// descending returns sample indices ordered by decreasing score.
func descending(score []float64) []int {
	idx := make([]int, len(score))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return score[idx[a]] > score[idx[b]] })
	return idx
}

// ROCAUC is the area under the ROC curve, computed as the normalised
// Mann-Whitney statistic with tied scores sharing their average rank.
func ROCAUC(yTrue []int, score []float64) (float64, error) {
	pos, err := positives(yTrue, score)
	if err != nil {
		return math.NaN(), err
	}
	neg := len(yTrue) - pos

	idx := make([]int, len(score))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return score[idx[a]] < score[idx[b]] })

	rankSum := 0.0
	for start := 0; start < len(idx); {
		end := start
		for end+1 < len(idx) && score[idx[end+1]] == score[idx[start]] {
			end++
		}
		rank := float64(start+end)/2 + 1
		for k := start; k <= end; k++ {
			if yTrue[idx[k]] == 1 {
				rankSum += rank
			}
		}
		start = end + 1
	}
	u := rankSum - float64(pos)*float64(pos+1)/2
	return u / (float64(pos) * float64(neg)), nil
}

// AveragePrecision summarises the precision-recall curve as the
// recall-weighted mean of precision at each distinct score threshold.
func AveragePrecision(yTrue []int, score []float64) (float64, error) {
	// All-positive truth is well defined here; no positives is not.
	pos, err := positives(yTrue, score)
	if err != nil && (pos == 0 || !errors.Is(err, ErrUndefined)) {
		return math.NaN(), err
	}

	idx := descending(score)
	ap, tp, fp, prevRecall := 0.0, 0.0, 0.0, 0.0
	for start := 0; start < len(idx); {
		end := start
		for end+1 < len(idx) && score[idx[end+1]] == score[idx[start]] {
			end++
		}
		for k := start; k <= end; k++ {
			if yTrue[idx[k]] == 1 {
				tp++
			} else {
				fp++
			}
		}
		recall := tp / float64(pos)
		ap += (recall - prevRecall) * tp / (tp + fp)
		prevRecall = recall
		start = end + 1
	}
	return ap, nil
}

// ROCPoint is one threshold of a ROC curve.
type ROCPoint struct {
	FPR       float64
	TPR       float64
	Threshold float64
}

// ROCCurve returns the ROC curve from (0, 0) at an infinite threshold down
// through every distinct score.
func ROCCurve(yTrue []int, score []float64) ([]ROCPoint, error) {
	pos, err := positives(yTrue, score)
	if err != nil {
		return nil, err
	}
	neg := float64(len(yTrue) - pos)

	idx := descending(score)
	points := []ROCPoint{{Threshold: math.Inf(1)}}
	tp, fp := 0.0, 0.0
	for start := 0; start < len(idx); {
		end := start
		for end+1 < len(idx) && score[idx[end+1]] == score[idx[start]] {
			end++
		}
		for k := start; k <= end; k++ {
			if yTrue[idx[k]] == 1 {
				tp++
			} else {
				fp++
			}
		}
		points = append(points, ROCPoint{FPR: fp / neg, TPR: tp / float64(pos), Threshold: score[idx[start]]})
		start = end + 1
	}
	return points, nil
}

// Binarize marks samples of the positive label with 1 and all others with 0.
func Binarize(y []int, positive int) []int {
	out := make([]int, len(y))
	for i, v := range y {
		if v == positive {
			out[i] = 1
		}
	}
	return out
}
