// SPDX-License-Identifier: MIT

package linalg

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CholeskyTotal counts Cholesky calls by working dtype and result label.
	CholeskyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lvgpu",
		Subsystem: "linalg",
		Name:      "cholesky_total",
		Help:      "Cholesky factorizations by working dtype and result class.",
	}, []string{"dtype", "result"})
	// CholeskySeconds observes the wall time of successful Cholesky calls.
	CholeskySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lvgpu",
		Subsystem: "linalg",
		Name:      "cholesky_seconds",
		Help:      "Wall time of successful Cholesky factorizations.",
		Buckets:   prometheus.ExponentialBuckets(1e-5, 4, 12),
	}, []string{"dtype"})
)

// Result labels of CholeskyTotal.
const (
	ResultOK                  = "ok"
	ResultType                = "type"
	ResultShape               = "shape"
	ResultCapability          = "capability"
	ResultNotPositiveDefinite = "not_positive_definite"
	ResultSolverParameter     = "solver_parameter"
	ResultDevice              = "device"
)

// resultClass maps an error returned by Cholesky to its metric label.
func resultClass(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, ErrType):
		return ResultType
	case errors.Is(err, ErrShape):
		return ResultShape
	case errors.Is(err, ErrCapability):
		return ResultCapability
	case errors.Is(err, ErrNotPositiveDefinite):
		return ResultNotPositiveDefinite
	case errors.Is(err, ErrSolverParameter):
		return ResultSolverParameter
	default:
		return ResultDevice
	}
}

func observeCholesky(dt string, err error, elapsed time.Duration) {
	CholeskyTotal.WithLabelValues(dt, resultClass(err)).Inc()
	if err == nil {
		CholeskySeconds.WithLabelValues(dt).Observe(elapsed.Seconds())
	}
}
