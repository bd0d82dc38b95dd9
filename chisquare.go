package goupf

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ChiSquare is the outcome of a normalized estimation error squared (NEES) test over trials.
type ChiSquare struct {
	NEES         []float64 // NEES of each trial
	Mean         float64
	Lower, Upper float64 // Acceptance region of the mean
	Consistent   bool    // Whether the mean lies in the acceptance region
}

// NEES returns dᵀP⁻¹d where d is the difference between the estimate and the truth, angles
// taken as shortest differences, and P the covariance of the estimate.
func NEES(est *Estimate, truth *GroundTruth) (float64, error) {
	if est.Covariance == nil {
		return 0, errors.Wrap(ErrNumerical, "estimate has no covariance")
	}
	d := make([]float64, StateDim)
	stateDiff(d, est.Pose.State(), truth.Pose().State())
	var chol mat.Cholesky
	if ok := chol.Factorize(est.Covariance); !ok {
		return 0, errors.Wrap(ErrNumerical, "estimate covariance is not positive definite")
	}
	dv := mat.NewVecDense(StateDim, d)
	var x mat.VecDense
	if err := chol.SolveVecTo(&x, dv); err != nil {
		return 0, errors.Wrap(ErrNumerical, err.Error())
	}
	return mat.Dot(dv, &x), nil
}

// ChiSquare runs the NEES test of the trials at the given significance level. For a consistent
// filter, the sum of the NEES of n trials follows a χ² distribution with n·StateDim degrees of
// freedom, so the mean NEES should fall within the two sided quantiles of that law divided by n.
func (t Trials) ChiSquare(truth *GroundTruth, significance float64) (ChiSquare, error) {
	if len(t.Runs) == 0 {
		return ChiSquare{}, errors.Wrap(ErrConfiguration, "no trial")
	}
	if truth == nil {
		return ChiSquare{}, errors.Wrap(ErrConfiguration, "the NEES test requires the ground truth")
	}
	if !(significance > 0 && significance < 1) {
		return ChiSquare{}, errors.Wrapf(ErrConfiguration, "significance must be in (0, 1), got %g", significance)
	}
	res := ChiSquare{NEES: make([]float64, len(t.Runs))}
	for i, r := range t.Runs {
		nees, err := NEES(r.Estimate, truth)
		if err != nil {
			return ChiSquare{}, errors.Wrapf(err, "trial %d", r.Trial)
		}
		res.NEES[i] = nees
	}
	n := float64(len(t.Runs))
	chi2 := distuv.ChiSquared{K: n * StateDim}
	res.Mean = stat.Mean(res.NEES, nil)
	res.Lower = chi2.Quantile(significance/2) / n
	res.Upper = chi2.Quantile(1-significance/2) / n
	res.Consistent = res.Mean >= res.Lower && res.Mean <= res.Upper
	return res, nil
}
