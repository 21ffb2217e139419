// Package model_selection はデータ分割のユーティリティを提供します。
package model_selection

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/spamensemble/pkg/errors"
)

// SplitOption は TrainTestSplit の設定オプション
type SplitOption func(*splitConfig)

type splitConfig struct {
	testSize    float64
	randomState int64
	stratify    []int
}

// WithTestSize はテスト側の割合 (0, 1) を設定する。デフォルトは 0.25
func WithTestSize(size float64) SplitOption {
	return func(c *splitConfig) { c.testSize = size }
}

// WithRandomState は乱数シードを設定する
func WithRandomState(seed int64) SplitOption {
	return func(c *splitConfig) { c.randomState = seed }
}

// WithStratify はクラス比率を保つ層化分割にする。labels はサンプルごとのクラスコード
func WithStratify(labels []int) SplitOption {
	return func(c *splitConfig) { c.stratify = labels }
}

// TrainTestSplit は n 個のサンプルの添字を学習用とテスト用に分ける
//
// テスト側の件数は ceil(testSize*n)。層化分割では各クラスのテスト件数を
// 比率の切り捨てで決め、余りを端数の大きいクラスから配る。
// 同じシードなら常に同じ分割になる。
//
// 使用例:
//
//	train, test, err := model_selection.TrainTestSplit(len(y),
//		model_selection.WithTestSize(0.2),
//		model_selection.WithRandomState(42),
//		model_selection.WithStratify(y))
func TrainTestSplit(n int, opts ...SplitOption) (train, test []int, err error) {
	cfg := splitConfig{testSize: 0.25}
	for _, opt := range opts {
		opt(&cfg)
	}
	if n <= 0 {
		return nil, nil, errors.WithStack(errors.ErrEmptyData)
	}
	if cfg.testSize <= 0 || cfg.testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", cfg.testSize)
	}
	nTest := int(math.Ceil(cfg.testSize * float64(n)))
	nTrain := n - nTest
	if nTrain <= 0 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("with n_samples=%d and test_size=%g the training set would be empty", n, cfg.testSize))
	}

	rng := rand.New(rand.NewSource(cfg.randomState))
	if cfg.stratify == nil {
		perm := rng.Perm(n)
		test = append([]int(nil), perm[:nTest]...)
		train = append([]int(nil), perm[nTest:]...)
		return train, test, nil
	}
	if len(cfg.stratify) != n {
		return nil, nil, errors.NewDimensionError("TrainTestSplit", n, len(cfg.stratify), 0)
	}
	return stratifiedSplit(cfg.stratify, nTrain, nTest, rng)
}

func stratifiedSplit(labels []int, nTrain, nTest int, rng *rand.Rand) (train, test []int, err error) {
	byClass := make(map[int][]int)
	for i, c := range labels {
		byClass[c] = append(byClass[c], i)
	}
	classes := make([]int, 0, len(byClass))
	for c, members := range byClass {
		if len(members) < 2 {
			return nil, nil, errors.NewValueError("TrainTestSplit",
				fmt.Sprintf("the least populated class %d has only 1 member; each class needs at least 2", c))
		}
		classes = append(classes, c)
	}
	sort.Ints(classes)
	if nTest < len(classes) || nTrain < len(classes) {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("train size %d and test size %d must each be at least the number of classes %d", nTrain, nTest, len(classes)))
	}

	counts := make([]int, len(classes))
	for k, c := range classes {
		counts[k] = len(byClass[c])
	}
	testCounts := approximateMode(counts, nTest)

	for k, c := range classes {
		members := byClass[c]
		perm := rng.Perm(len(members))
		for r, p := range perm {
			if r < testCounts[k] {
				test = append(test, members[p])
			} else {
				train = append(train, members[p])
			}
		}
	}
	rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	rng.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}

// approximateMode は counts に比例して draws 件を整数で割り振る。
// 切り捨てた後の余りは端数の大きい順（同じならクラス順）に1件ずつ配る。
func approximateMode(counts []int, draws int) []int {
	total := 0
	for _, c := range counts {
		total += c
	}
	out := make([]int, len(counts))
	frac := make([]float64, len(counts))
	assigned := 0
	for k, c := range counts {
		exact := float64(draws) * float64(c) / float64(total)
		out[k] = int(math.Floor(exact))
		frac[k] = exact - float64(out[k])
		assigned += out[k]
	}
	order := make([]int, len(counts))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return frac[order[a]] > frac[order[b]] })
	for _, k := range order {
		if assigned >= draws {
			break
		}
		if out[k] < counts[k] {
			out[k]++
			assigned++
		}
	}
	return out
}
