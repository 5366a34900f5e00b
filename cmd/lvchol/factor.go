// SPDX-License-Identifier: MIT

package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/katalvlaran/lvgpu/device"
	"github.com/katalvlaran/lvgpu/linalg"
	"github.com/katalvlaran/lvgpu/log"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func newFactorCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "factor FILE",
		Short: "Print the lower Cholesky factor of the matrix in FILE",
		Long: `Reads a symmetric positive definite matrix from FILE (CSV with one row
per line, or a JSON array of rows) and prints its lower-triangular Cholesky
factor L, with A = L·Lᵀ. Only the lower triangle of the input is used.
FILE "-" reads standard input; set input.format in that case.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := configFrom(cmd.Context())
			path := args[0]
			format, err := inputFormat(path, cfg.Input.Format)
			if err != nil {
				return err
			}
			in, closeIn, err := openInput(path, cmd.InOrStdin())
			if err != nil {
				return err
			}
			m, err := readMatrix(in, format)
			if cerr := closeIn(); err == nil {
				err = cerr
			}
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			host, err := typed(m.data, cfg.Input.DType)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			l, err := factor(cfg.Device.Backend, cfg.Device.Index, host, m.rows, m.cols)
			if err != nil {
				return err
			}
			return writeMatrix(cmd.OutOrStdout(), cfg.Output.Format, cfg.Output.Precision, m.rows, m.rows, l)
		},
	}
}

func openInput(path string, stdin io.Reader) (io.Reader, func() error, error) {
	if path == "-" {
		return stdin, func() error { return nil }, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

// factor uploads the rows×cols host matrix to a fresh context of the named
// backend and returns the Cholesky factor as float64 values.
func factor(backend string, index int, host any, rows, cols int) (_ []float64, err error) {
	ctx, err := device.Open(backend, index)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, ctx.Close()) }()

	logger := log.Logger()
	solver, err := linalg.NewSolver(ctx, linalg.WithLogger(logger.Named("linalg")))
	if err != nil {
		return nil, err
	}
	a, err := linalg.FromHost(ctx, host, rows, cols)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, a.Close()) }()

	start := time.Now()
	l, err := solver.Cholesky(a)
	if err != nil {
		return nil, err
	}
	defer func() { err = multierr.Append(err, l.Close()) }()
	logger.Debug("factored",
		zap.Int("n", rows),
		zap.Stringer("input", a.DType()),
		zap.Stringer("output", l.DType()),
		zap.String("backend", backend),
		zap.Duration("elapsed", time.Since(start)))
	return l.Float64s()
}
