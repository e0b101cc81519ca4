// Command uvkit evaluates UV scripts and applies UV operations to meshes.
//
//	uvkit run scene.uvk --out build/
//	uvkit unwrap model.obj --op voxel-unwrap --op pack-uvs -o model_uv.obj
//	uvkit config > uvkit.toml
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/chazu/uvkit/pkg/config"
	"github.com/chazu/uvkit/pkg/ops"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

type rootFlags struct {
	config  string
	verbose bool
}

func newRootCmd() *cobra.Command {
	var rf rootFlags
	root := &cobra.Command{
		Use:          "uvkit",
		Short:        "Unwrap, relax and pack mesh UVs",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&rf.config, "config", "c", "", "TOML options file")
	root.PersistentFlags().BoolVarP(&rf.verbose, "verbose", "v", false, "log progress")

	root.AddCommand(newRunCmd(&rf), newUnwrapCmd(&rf), newConfigCmd(), newOpsCmd())
	return root
}

// setup loads options and builds the App for a command.
func setup(cmd *cobra.Command, rf *rootFlags) (*App, error) {
	opts, err := config.Load(rf.config)
	if err != nil {
		return nil, err
	}
	return NewApp(opts, newLogger(cmd.ErrOrStderr(), rf.verbose)), nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func newRunCmd(rf *rootFlags) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "run SCRIPT",
		Short: "Evaluate a script, run its UV steps and write one OBJ per object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd, rf)
			if err != nil {
				return err
			}
			source, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			result, err := app.Evaluate(cmd.Context(), string(source))
			if err != nil {
				return err
			}
			if len(result.Errors) > 0 {
				for _, e := range result.Errors {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", args[0], e.Error())
				}
				return fmt.Errorf("%s: %d errors", args[0], len(result.Errors))
			}

			printReports(cmd.OutOrStdout(), result.Reports)
			paths, err := app.WriteMeshes(out, result.Meshes)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), "wrote", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", ".", "output directory")
	return cmd
}

func newUnwrapCmd(rf *rootFlags) *cobra.Command {
	var (
		out    string
		opList []string
		params []string
	)
	cmd := &cobra.Command{
		Use:   "unwrap MODEL.obj",
		Short: "Apply UV operations to an OBJ mesh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := setup(cmd, rf)
			if err != nil {
				return err
			}
			kinds := make([]ops.Kind, 0, len(opList))
			for _, s := range opList {
				k, err := ops.ParseKind(s)
				if err != nil {
					return err
				}
				kinds = append(kinds, k)
			}
			p, err := parseParams(params)
			if err != nil {
				return err
			}

			m, err := readOBJFile(args[0])
			if err != nil {
				return err
			}
			reports, err := app.Apply(cmd.Context(), m, kinds, p)
			if err != nil {
				return err
			}
			printReports(cmd.OutOrStdout(), reports)

			if out == "" {
				out = strings.TrimSuffix(args[0], ".obj") + "_uv.obj"
			}
			if err := writeOBJFile(out, m, app.runner.Layer); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "wrote", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default MODEL_uv.obj)")
	cmd.Flags().StringSliceVar(&opList, "op", []string{string(ops.KindVoxelUnwrap), string(ops.KindPack)}, "operations to apply, in order")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "parameter override KEY=VALUE")
	return cmd
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the default options as TOML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.Default().Encode()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newOpsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ops",
		Short: "List the UV operations",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, k := range ops.Kinds {
				fmt.Fprintln(cmd.OutOrStdout(), strings.ReplaceAll(string(k), "_", "-"))
			}
		},
	}
}

// parseParams turns KEY=VALUE pairs into operation parameters. Values are
// numbers or true/false; a bare KEY is true.
func parseParams(pairs []string) (ops.Params, error) {
	p := make(ops.Params, len(pairs))
	for _, pair := range pairs {
		k, v, ok := strings.Cut(pair, "=")
		k = strings.ReplaceAll(strings.TrimSpace(k), "-", "_")
		if k == "" {
			return nil, fmt.Errorf("param %q: missing key", pair)
		}
		if !ok {
			p[k] = 1
			continue
		}
		if b, err := strconv.ParseBool(v); err == nil {
			p[k] = 0
			if b {
				p[k] = 1
			}
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", pair, err)
		}
		p[k] = f
	}
	if _, err := p.Apply(config.Default()); err != nil {
		return nil, err
	}
	return p, nil
}

func printReports(w io.Writer, reports []StepReport) {
	for _, r := range reports {
		fmt.Fprintf(w, "%d %s %s: faces=%d islands=%d", r.Step, r.Kind, r.Mesh, r.Faces, r.Islands)
		switch r.Kind {
		case ops.KindVoxelUnwrap:
			fmt.Fprintf(w, " charts=%d seams=%d", r.Charts, r.Seams)
		case ops.KindUnwrapSolve:
			fmt.Fprintf(w, " steps=%d reused=%t", r.Steps, r.Reused)
		case ops.KindFixSeams:
			fmt.Fprintf(w, " seams=%d residual=%.3g", r.Seams, r.Residual)
		}
		fmt.Fprintln(w)
	}
}
