package svm

import (
	"math"

	"github.com/YuminosukeSato/spamensemble/pkg/errors"
)

// 二次係数が非正のときに使う小さな正数
const tau = 1e-12

// smoProblem は C-SVC の双対問題
//
//	min ½αᵀQα - eᵀα  s.t. yᵀα = 0, 0 <= α_i <= C_i
//
// を表す。Q_ij = y_i y_j K(x_i, x_j)。
type smoProblem struct {
	kernel  [][]float64 // 全学習データのカーネル行列
	index   []int       // この問題が使う kernel の行
	y       []float64   // +1 / -1
	cPos    float64     // y=+1 の上限
	cNeg    float64     // y=-1 の上限
	eps     float64     // KKT違反の許容値
	maxIter int
}

type smoSolution struct {
	alpha []float64
	rho   float64
	iter  int
}

func (p *smoProblem) k(i, j int) float64 { return p.kernel[p.index[i]][p.index[j]] }

func (p *smoProblem) bound(i int) float64 {
	if p.y[i] > 0 {
		return p.cPos
	}
	return p.cNeg
}

// solve は最大違反ペアを選ぶSMO（二次情報による作業集合選択）で双対問題を解く
func (p *smoProblem) solve() smoSolution {
	n := len(p.index)
	alpha := make([]float64, n)
	grad := make([]float64, n)
	qd := make([]float64, n)
	for i := range grad {
		grad[i] = -1
		qd[i] = p.k(i, i)
	}

	isUpper := func(i int) bool { return alpha[i] >= p.bound(i) }
	isLower := func(i int) bool { return alpha[i] <= 0 }
	qRow := func(i int) []float64 {
		row := make([]float64, n)
		for j := range row {
			row[j] = p.y[i] * p.y[j] * p.k(i, j)
		}
		return row
	}

	maxIter := p.maxIter
	if maxIter <= 0 {
		maxIter = max(10000000, 100*n)
	}

	iter := 0
	for ; iter < maxIter; iter++ {
		i, j := p.selectWorkingSet(alpha, grad, qd, isUpper, isLower, qRow)
		if j < 0 {
			break
		}

		qi, qj := qRow(i), qRow(j)
		ci, cj := p.bound(i), p.bound(j)
		oldI, oldJ := alpha[i], alpha[j]

		if p.y[i] != p.y[j] {
			quad := qd[i] + qd[j] + 2*qi[j]
			if quad <= 0 {
				quad = tau
			}
			delta := (-grad[i] - grad[j]) / quad
			diff := alpha[i] - alpha[j]
			alpha[i] += delta
			alpha[j] += delta
			if diff > 0 {
				if alpha[j] < 0 {
					alpha[j] = 0
					alpha[i] = diff
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = -diff
			}
			if diff > ci-cj {
				if alpha[i] > ci {
					alpha[i] = ci
					alpha[j] = ci - diff
				}
			} else if alpha[j] > cj {
				alpha[j] = cj
				alpha[i] = cj + diff
			}
		} else {
			quad := qd[i] + qd[j] - 2*qi[j]
			if quad <= 0 {
				quad = tau
			}
			delta := (grad[i] - grad[j]) / quad
			sum := alpha[i] + alpha[j]
			alpha[i] -= delta
			alpha[j] += delta
			if sum > ci {
				if alpha[i] > ci {
					alpha[i] = ci
					alpha[j] = sum - ci
				}
			} else if alpha[j] < 0 {
				alpha[j] = 0
				alpha[i] = sum
			}
			if sum > cj {
				if alpha[j] > cj {
					alpha[j] = cj
					alpha[i] = sum - cj
				}
			} else if alpha[i] < 0 {
				alpha[i] = 0
				alpha[j] = sum
			}
		}

		dI, dJ := alpha[i]-oldI, alpha[j]-oldJ
		for k := range grad {
			grad[k] += qi[k]*dI + qj[k]*dJ
		}
	}
	if iter >= maxIter {
		errors.Warn(errors.NewConvergenceWarning("SVC", maxIter, "SMO reached max_iter"))
	}

	return smoSolution{alpha: alpha, rho: p.rho(alpha, grad), iter: iter}
}

// selectWorkingSet は i を最大違反から、j を目的関数の減少量が最大になるものから選ぶ。
// 最適性が eps 以内なら j = -1 を返す。
func (p *smoProblem) selectWorkingSet(alpha, grad, qd []float64, isUpper, isLower func(int) bool, qRow func(int) []float64) (int, int) {
	gmax := math.Inf(-1)
	gmax2 := math.Inf(-1)
	i := -1
	for t := range alpha {
		if p.y[t] > 0 {
			if !isUpper(t) && -grad[t] >= gmax {
				gmax = -grad[t]
				i = t
			}
		} else if !isLower(t) && grad[t] >= gmax {
			gmax = grad[t]
			i = t
		}
	}
	if i < 0 {
		return -1, -1
	}

	qi := qRow(i)
	j := -1
	objMin := math.Inf(1)
	for t := range alpha {
		if p.y[t] > 0 {
			if isLower(t) {
				continue
			}
			gradDiff := gmax + grad[t]
			if grad[t] >= gmax2 {
				gmax2 = grad[t]
			}
			if gradDiff > 0 {
				quad := qd[i] + qd[t] - 2*p.y[i]*qi[t]
				if quad <= 0 {
					quad = tau
				}
				if obj := -(gradDiff * gradDiff) / quad; obj <= objMin {
					j = t
					objMin = obj
				}
			}
		} else {
			if isUpper(t) {
				continue
			}
			gradDiff := gmax - grad[t]
			if -grad[t] >= gmax2 {
				gmax2 = -grad[t]
			}
			if gradDiff > 0 {
				quad := qd[i] + qd[t] + 2*p.y[i]*qi[t]
				if quad <= 0 {
					quad = tau
				}
				if obj := -(gradDiff * gradDiff) / quad; obj <= objMin {
					j = t
					objMin = obj
				}
			}
		}
	}
	if gmax+gmax2 < p.eps || j < 0 {
		return -1, -1
	}
	return i, j
}

// rho は自由な α の平均、自由な α がなければ上下界の中点から閾値を求める
func (p *smoProblem) rho(alpha, grad []float64) float64 {
	ub, lb := math.Inf(1), math.Inf(-1)
	var sumFree float64
	nFree := 0
	for i := range alpha {
		yg := p.y[i] * grad[i]
		switch {
		case alpha[i] >= p.bound(i):
			if p.y[i] < 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		case alpha[i] <= 0:
			if p.y[i] > 0 {
				ub = math.Min(ub, yg)
			} else {
				lb = math.Max(lb, yg)
			}
		default:
			nFree++
			sumFree += yg
		}
	}
	if nFree > 0 {
		return sumFree / float64(nFree)
	}
	return (ub + lb) / 2
}

// decision は学習データ t 番目（kernel の行）に対する決定関数値を返す
func (p *smoProblem) decision(sol smoSolution, row int) float64 {
	var f float64
	for i, a := range sol.alpha {
		if a != 0 {
			f += a * p.y[i] * p.kernel[p.index[i]][row]
		}
	}
	return f - sol.rho
}
