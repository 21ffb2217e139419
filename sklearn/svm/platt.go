package svm

import (
	"math"
	"math/rand"

	"github.com/YuminosukeSato/spamensemble/pkg/errors"
)

// Platt scaling のニュートン法パラメータ
const (
	plattMaxIter = 100
	plattMinStep = 1e-10
	plattSigma   = 1e-12 // ヘッセ行列を正定値に保つ
	plattEps     = 1e-5
)

// plattFit は決定関数値 dec と符号ラベル（>0 が正例）から
// P(y=+1|f) = 1/(1+exp(A*f+B)) の A, B をニュートン法とバックトラッキングで求める。
// 目標値は過学習を避けるため (N+ +1)/(N+ +2), 1/(N- +2) に補正する。
func plattFit(dec, labels []float64) (a, b float64) {
	var prior1, prior0 float64
	for _, l := range labels {
		if l > 0 {
			prior1++
		} else {
			prior0++
		}
	}
	hiTarget := (prior1 + 1) / (prior1 + 2)
	loTarget := 1 / (prior0 + 2)
	t := make([]float64, len(labels))
	for i, l := range labels {
		if l > 0 {
			t[i] = hiTarget
		} else {
			t[i] = loTarget
		}
	}

	objective := func(a, b float64) float64 {
		var f float64
		for i, d := range dec {
			fApB := d*a + b
			f += (t[i]-1)*fApB + errors.Log1pExp(fApB)
		}
		return f
	}

	a, b = 0, math.Log((prior0+1)/(prior1+1))
	fval := objective(a, b)

	for iter := 0; iter < plattMaxIter; iter++ {
		h11, h22, h21 := plattSigma, plattSigma, 0.0
		g1, g2 := 0.0, 0.0
		for i, d := range dec {
			fApB := d*a + b
			var p, q float64
			if fApB >= 0 {
				e := math.Exp(-fApB)
				p = e / (1 + e)
				q = 1 / (1 + e)
			} else {
				e := math.Exp(fApB)
				p = 1 / (1 + e)
				q = e / (1 + e)
			}
			d2 := p * q
			h11 += d * d * d2
			h22 += d2
			h21 += d * d2
			d1 := t[i] - p
			g1 += d * d1
			g2 += d1
		}
		if math.Abs(g1) < plattEps && math.Abs(g2) < plattEps {
			break
		}

		det := h11*h22 - h21*h21
		dA := -(h22*g1 - h21*g2) / det
		dB := -(-h21*g1 + h11*g2) / det
		gd := g1*dA + g2*dB

		step := 1.0
		for step >= plattMinStep {
			newA, newB := a+step*dA, b+step*dB
			if newF := objective(newA, newB); newF < fval+0.0001*step*gd {
				a, b, fval = newA, newB, newF
				break
			}
			step /= 2
		}
		if step < plattMinStep {
			// line search failed
			break
		}
	}
	return a, b
}

// plattPredict は P(y=+1|f) を数値的に安定な形で返す
func plattPredict(dec, a, b float64) float64 {
	fApB := dec*a + b
	if fApB >= 0 {
		e := math.Exp(-fApB)
		return e / (1 + e)
	}
	return 1 / (1 + math.Exp(fApB))
}

// crossValidatedDecision は k 分割交差検証で各サンプルの決定関数値を求める。
// 分割はシード付きの置換で決まり、学習側が1クラスしか含まない分割は ±1 を返す。
func crossValidatedDecision(kernel [][]float64, y []float64, cPos, cNeg, eps float64, maxIter, folds int, seed int64) []float64 {
	n := len(y)
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	dec := make([]float64, n)

	for f := 0; f < folds; f++ {
		begin, end := f*n/folds, (f+1)*n/folds
		var train []int
		var trainY []float64
		nPos, nNeg := 0, 0
		for k := 0; k < n; k++ {
			if k >= begin && k < end {
				continue
			}
			idx := perm[k]
			train = append(train, idx)
			trainY = append(trainY, y[idx])
			if y[idx] > 0 {
				nPos++
			} else {
				nNeg++
			}
		}

		var value func(row int) float64
		switch {
		case nPos == 0 && nNeg == 0:
			value = func(int) float64 { return 0 }
		case nNeg == 0:
			value = func(int) float64 { return 1 }
		case nPos == 0:
			value = func(int) float64 { return -1 }
		default:
			prob := &smoProblem{kernel: kernel, index: train, y: trainY, cPos: cPos, cNeg: cNeg, eps: eps, maxIter: maxIter}
			sol := prob.solve()
			value = func(row int) float64 { return prob.decision(sol, row) }
		}
		for k := begin; k < end; k++ {
			dec[perm[k]] = value(perm[k])
		}
	}
	return dec
}
