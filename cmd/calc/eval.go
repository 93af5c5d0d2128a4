package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zephyrtronium/calculator"
	"github.com/zephyrtronium/calculator/internal/history"
)

func newEvalCmd() *cobra.Command {
	var (
		inname, verb string
		given        []string
		nl, echo     bool
		raw, preview bool
		noHistory    bool
	)

	cmd := &cobra.Command{
		Use:   "eval [expr...]",
		Short: "Evaluate expressions",
		Long: `Evaluate each argument as an expression and print the results in order.
With no arguments, or with --in, expressions are read from a file or stdin:
the whole input is one expression, or with -n each line is one expression.`,
		Example: `  calc eval '2 pi' 'sqrt 2' '1/0'
  calc eval --given r=3 'pi r^2'
  printf '1+1\n2^10\n' | calc eval -n`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if raw {
				if cmd.Flags().Changed("fmt") {
					return errors.New("--raw and --fmt are mutually exclusive")
				}
				verb = "%g"
			}
			if preview && (len(args) == 0 || inname != "") {
				return errors.New("--preview evaluates arguments only")
			}
			if preview && len(given) > 0 {
				return errors.New("--preview uses the default symbols and cannot be combined with --given")
			}

			opts := cfg.ParseOptions()
			syms, err := givenSymbols(given, opts)
			if err != nil {
				return err
			}

			jobs := make([]evalJob, 0, len(args))
			in, c, err := infile(inname, len(args) == 0, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if c != nil {
				defer c.Close()
			}
			if in != nil {
				rj, err := readJobs(in, syms, nl, opts)
				jobs = append(jobs, rj...)
				if err != nil {
					return err
				}
			}
			for _, arg := range args {
				jobs = append(jobs, evalJob{src: arg})
			}

			run := func(j *evalJob) {
				switch {
				case j.err != nil:
					return
				case preview:
					j.val, j.err = calculator.Preview(j.src, opts...)
					return
				case j.expr == nil:
					j.expr, j.err = calculator.CompileString(j.src, syms, opts...)
					if j.err != nil {
						return
					}
				}
				j.val, j.err = j.expr.Eval()
			}
			evalAll(jobs, run)

			return report(cmd, jobs, verb, echo, !noHistory)
		},
	}

	cmd.Flags().StringVar(&inname, "in", "", `Input file, or "-" for stdin (default stdin if no args given)`)
	cmd.Flags().StringVar(&verb, "fmt", "", "Result formatting verb, e.g. %.3f (default calculator display)")
	cmd.Flags().StringArrayVar(&given, "given", nil, "name=value constant definition (any number of times)")
	cmd.Flags().BoolVarP(&nl, "lines", "n", false, "Parse separate input lines as separate expressions")
	cmd.Flags().BoolVar(&echo, "echo", false, "Print parse trees")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print full-precision results, same as --fmt %g")
	cmd.Flags().BoolVar(&preview, "preview", false, "Ignore trailing operators, as while typing")
	cmd.Flags().BoolVar(&noHistory, "no-history", false, "Do not record results to history")

	return cmd
}

// evalJob is one expression to evaluate. Expressions read from input are
// compiled while reading; arguments are compiled in parallel with evaluation.
type evalJob struct {
	src  string
	expr *calculator.Expr
	val  float64
	err  error
	dur  time.Duration
}

// evalAll runs every job concurrently, bounded by GOMAXPROCS.
func evalAll(jobs []evalJob, run func(*evalJob)) {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range jobs {
		j := &jobs[i]
		g.Go(func() error {
			start := time.Now()
			run(j)
			j.dur = time.Since(start)
			return nil
		})
	}
	g.Wait()
}

// givenSymbols returns the default symbols plus constants defined as
// name=value. Each value is an expression which may use earlier definitions.
func givenSymbols(given []string, opts []calculator.ParseOption) (*calculator.SymbolTable, error) {
	syms := calculator.DefaultSymbols()
	for _, s := range given {
		d := strings.SplitN(s, "=", 2)
		if len(d) != 2 {
			return nil, fmt.Errorf(`constant definitions must be "name=value", not %q`, s)
		}
		nm, vl := strings.TrimSpace(d[0]), strings.TrimSpace(d[1])
		if !validName(nm) {
			return nil, fmt.Errorf("invalid constant name %q", nm)
		}
		e, err := calculator.CompileString(vl, syms, opts...)
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", nm, err)
		}
		r, err := e.Eval()
		if err != nil {
			return nil, fmt.Errorf("setting %s: %w", nm, err)
		}
		syms.AddConstant(nm, r)
	}
	return syms, nil
}

// validName reports whether s lexes as a single identifier.
func validName(s string) bool {
	for i, r := range s {
		switch {
		case r == '_', unicode.IsLetter(r):
		case i > 0 && (r == '.' || unicode.IsDigit(r)):
		default:
			return false
		}
	}
	return s != ""
}

// readJobs compiles expressions from in until EOF. With nl, each line is an
// expression. Otherwise the whole input is one expression. Reading stops at
// the first expression that fails to compile.
func readJobs(in io.RuneScanner, syms *calculator.SymbolTable, nl bool, opts []calculator.ParseOption) ([]evalJob, error) {
	if nl {
		opts = append(opts[:len(opts):len(opts)], calculator.StopOn('\n'))
	}
	var jobs []evalJob
	for {
		// First check whether we're done with the input.
		if err := skipSpace(in); err != nil {
			if err == io.EOF {
				return jobs, nil
			}
			return jobs, err
		}
		a, err := calculator.Compile(in, syms, opts...)
		if err != nil {
			return append(jobs, evalJob{err: err}), nil
		}
		jobs = append(jobs, evalJob{src: a.Source(), expr: a})
		if !nl {
			return jobs, nil
		}
	}
}

// skipSpace consumes whitespace, returning io.EOF if nothing else remains.
func skipSpace(in io.RuneScanner) error {
	for {
		r, _, err := in.ReadRune()
		if err != nil {
			return err
		}
		if !unicode.IsSpace(r) {
			return in.UnreadRune()
		}
	}
}

// report prints results in order and records them to history. The result is
// an error if any expression failed.
func report(cmd *cobra.Command, jobs []evalJob, verb string, echo, record bool) error {
	out, errout := cmd.OutOrStdout(), cmd.ErrOrStderr()
	entries := make([]history.Entry, 0, len(jobs))
	failed := 0
	for _, j := range jobs {
		if echo && j.expr != nil {
			fmt.Fprintf(out, "%v : ", j.expr)
		}
		e := history.Entry{Expr: j.src}
		if j.err != nil {
			failed++
			e.Error = j.err.Error()
			if j.src != "" {
				fmt.Fprintf(errout, "%s: %v\n", j.src, j.err)
			} else {
				fmt.Fprintln(errout, j.err)
			}
			logger.Debug("evaluation failed", "expr", j.src, "error", j.err, "duration", j.dur)
		} else {
			e.Result, e.Display = history.Value(j.val), cfg.Display(j.val)
			if verb == "" {
				fmt.Fprintln(out, e.Display)
			} else {
				fmt.Fprintf(out, verb+"\n", j.val)
			}
			logger.Debug("evaluated", "expr", j.src, "result", j.val, "duration", j.dur)
		}
		if j.src != "" {
			entries = append(entries, e)
		}
	}

	if record && len(entries) > 0 {
		h, err := openHistory()
		if err != nil {
			logger.Warn("opening history", "error", err)
		} else if h != nil {
			if err := h.Append(entries...); err != nil {
				logger.Warn("recording history", "error", err)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d expressions failed", failed, len(jobs))
	}
	return nil
}

// infile opens the expression input. The closer is non-nil if the caller
// must close it.
func infile(inname string, std bool, stdin io.Reader) (io.RuneScanner, io.Closer, error) {
	switch {
	case inname != "" && inname != "-":
		f, err := os.Open(inname)
		if err != nil {
			return nil, nil, fmt.Errorf("opening input: %w", err)
		}
		return bufio.NewReader(f), f, nil
	case inname == "-", std:
		return bufio.NewReader(stdin), nil, nil
	}
	return nil, nil, nil
}
