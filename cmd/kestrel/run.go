package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/k0kubun/pp/v3"
	"github.com/spf13/cobra"

	"github.com/venneberg/kestrel"
	"github.com/venneberg/kestrel/api"
	"github.com/venneberg/kestrel/backend"
	"github.com/venneberg/kestrel/exec"
	"github.com/venneberg/kestrel/fallback"
	"github.com/venneberg/kestrel/graph"
	"github.com/venneberg/kestrel/internal/broker"
	"github.com/venneberg/kestrel/metrics"
	"github.com/venneberg/kestrel/options"
	"github.com/venneberg/kestrel/pkg/natsx"
	"github.com/venneberg/kestrel/pkg/slogx"
)

var runCmd = &cobra.Command{
	Use:   "run <module-file>",
	Short: "Run a module for a number of iterations",
	Long: `Loads a module definition from a file path or URL, builds the training
and inference managers, and runs the selected mode with synthesized
inputs. Dynamic dimensions resolve to the batch size.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modeName, _ := cmd.Flags().GetString("mode")
		iterations, _ := cmd.Flags().GetInt("iterations")
		batch, _ := cmd.Flags().GetInt64("batch")
		backendName, _ := cmd.Flags().GetString("backend")
		seed, _ := cmd.Flags().GetInt64("seed")
		saveGraphs, _ := cmd.Flags().GetBool("save-graphs")
		graphDir, _ := cmd.Flags().GetString("graph-dir")
		useFallback, _ := cmd.Flags().GetBool("fallback")
		useNATS, _ := cmd.Flags().GetBool("nats")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")
		dump, _ := cmd.Flags().GetBool("dump")
		verbose, _ := cmd.Flags().GetBool("verbose")

		mode, err := exec.ParseMode(modeName)
		if err != nil {
			return err
		}

		module, err := api.LoadModule(args[0])
		if err != nil {
			return err
		}

		logLevel := slog.LevelInfo
		if verbose {
			logLevel = slog.LevelDebug
		}
		dbg, err := options.NewDebug(
			options.LogLevel(logLevel),
			options.SaveGraphs(saveGraphs),
			options.GraphDir(graphDir),
			options.NamePrefix(module.Name()),
		)
		if err != nil {
			return err
		}
		ro, err := options.NewRuntime(
			options.Backend(backendName),
			options.Seed(seed),
		)
		if err != nil {
			return err
		}

		fb := fallback.Disabled()
		if useFallback {
			fb, err = fallback.New(fallback.WithBackend(backend.Null{}))
			if err != nil {
				return err
			}
		}

		m := metrics.New()
		runtimeOpts := []kestrel.Option{
			kestrel.WithDebug(dbg),
			kestrel.WithRuntime(ro),
			kestrel.WithFallback(fb),
			kestrel.WithMetrics(m),
		}
		if useNATS {
			nc, err := natsx.NewClient()
			if err != nil {
				return fmt.Errorf("connecting to nats: %w", err)
			}
			defer nc.Close()
			runtimeOpts = append(runtimeOpts, kestrel.WithBroker(broker.NATS(nc)))
		}

		rt, err := kestrel.New(module, runtimeOpts...)
		if err != nil {
			return err
		}
		defer rt.Close()

		if metricsAddr != "" {
			go func() {
				mux := http.NewServeMux()
				mux.Handle("/metrics", m.Handler())
				if err := http.ListenAndServe(metricsAddr, mux); err != nil {
					slog.Error("metrics server stopped", slogx.Error(err))
				}
			}()
			slog.Info("serving metrics", slog.String("addr", metricsAddr))
		}

		inputs, err := synthesizeInputs(module, batch)
		if err != nil {
			return err
		}

		started := time.Now()
		var out graph.Values
		for i := 0; i < iterations; i++ {
			out, err = rt.Run(cmd.Context(), mode, inputs)
			if err != nil {
				color.Red("run %d failed: %v", i+1, err)
				return err
			}
		}
		elapsed := time.Since(started)

		color.Green("%s: %d %s run(s) in %s", module.Name(), iterations, mode, elapsed.Round(time.Microsecond))
		for _, name := range outputNames(out) {
			fmt.Printf("  %s %s (%d elements)\n", name, out[name].Spec, len(out[name].Data))
		}
		if dump {
			pp.Println(out)
		}
		return nil
	},
}

// synthesizeInputs builds zeroed tensors for every declared input, resolving
// dynamic dimensions to the batch size.
func synthesizeInputs(module api.Module, batch int64) (graph.Values, error) {
	g, err := module.Graph()
	if err != nil {
		return nil, err
	}
	inputs := make(graph.Values, g.Inputs.Len())
	for pair := g.Inputs.Oldest(); pair != nil; pair = pair.Next() {
		spec := pair.Value
		shape := make([]int64, len(spec.Shape))
		for i, d := range spec.Shape {
			if d == graph.DynamicDim {
				d = batch
			}
			shape[i] = d
		}
		tensor, err := graph.NewTensor(graph.TensorSpec{Dtype: spec.Dtype, Shape: shape})
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", pair.Key, err)
		}
		inputs[pair.Key] = tensor
	}
	return inputs, nil
}

func outputNames(v graph.Values) []string {
	names := make([]string, 0, len(v))
	for name := range v {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringP("mode", "m", "inference", "Execution mode (training or inference)")
	runCmd.Flags().IntP("iterations", "n", 1, "Number of runs to execute")
	runCmd.Flags().Int64("batch", 1, "Batch size for dynamic input dimensions")
	runCmd.Flags().String("backend", "simulation", "Backend to execute on")
	runCmd.Flags().Int64("seed", 0, "Seed for the simulated backend")
	runCmd.Flags().Bool("save-graphs", false, "Write compiled plans to the graph directory")
	runCmd.Flags().String("graph-dir", ".", "Directory for plan dumps")
	runCmd.Flags().Bool("fallback", false, "Divert failed runs to the null backend")
	runCmd.Flags().Bool("nats", false, "Relay run events over NATS")
	runCmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	runCmd.Flags().Bool("dump", false, "Pretty-print the final run outputs")
}
