package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"aunp-classifier/internal/config"
	"aunp-classifier/internal/experiment"
	"aunp-classifier/internal/feature"
	"aunp-classifier/internal/feature/opencv"
	"aunp-classifier/internal/logger"
	"aunp-classifier/internal/model"
	"aunp-classifier/internal/version"

	"github.com/gonuts/commander"
	"github.com/gonuts/flag"
)

// options holds the flags shared by the job commands.
type options struct {
	config   string
	logLevel string
	logJSON  bool

	id      string
	data    string
	conc    string
	targets string
	grid    string
	reuse   bool
}

func (o *options) bind(fs *flag.FlagSet) {
	fs.StringVar(&o.config, "config", "", "experiment file (YAML); defaults apply when empty")
	fs.StringVar(&o.logLevel, "log-level", "", "debug, info, warn or error; overrides the experiment file")
	fs.BoolVar(&o.logJSON, "log-json", false, "write log events as JSON")

	fs.StringVar(&o.id, "id", "", "artifact prefix; overrides the experiment id")
	fs.StringVar(&o.data, "data", "", "folder below the data root")
	fs.StringVar(&o.conc, "conc", "", "comma-separated concentrations, e.g. 10^4,all")
	fs.StringVar(&o.targets, "targets", "", "comma-separated organisms or orders; empty means all")
	fs.StringVar(&o.grid, "grid", "", `parameter grid as JSON, e.g. {"n_estimators":[100,200]}`)
	fs.BoolVar(&o.reuse, "reuse", false, "evaluate saved models instead of training")
}

// job converts the flags into an experiment job.
func (o *options) job() (experiment.Job, error) {
	job := experiment.Job{
		ID:             o.id,
		Data:           o.data,
		Concentrations: splitList(o.conc),
		Targets:        splitList(o.targets),
		Reuse:          o.reuse,
	}
	if o.grid != "" {
		grid, err := parseGrid(o.grid)
		if err != nil {
			return job, err
		}
		job.Grid = grid
	}
	return job, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseGrid(s string) (model.Grid, error) {
	var grid model.Grid
	if err := json.Unmarshal([]byte(s), &grid); err != nil {
		return nil, fmt.Errorf("parse -grid: %w", err)
	}
	for k, values := range grid {
		if len(values) == 0 {
			return nil, fmt.Errorf("parse -grid: %q has no values", k)
		}
	}
	return grid, nil
}

// loadExperiment reads the experiment file, or the defaults when none is given.
func loadExperiment(path string) (*config.Experiment, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

func newLogger(o *options, cfg *config.Experiment) logger.Logger {
	levelName := cfg.LogLevel
	if o.logLevel != "" {
		levelName = o.logLevel
	}
	level := logger.ParseLevel(levelName)
	if o.logJSON {
		return logger.NewZerolog(os.Stderr, level)
	}
	return logger.NewConsoleLogger(level)
}

func newExtractor(cfg *config.Experiment) (feature.Extractor, error) {
	backend, err := feature.ParseBackend(cfg.Backend)
	if err != nil {
		return nil, err
	}
	if backend == feature.BackendOpenCV {
		return opencv.New(cfg.ImageMode(), cfg.FeatureNum), nil
	}
	return feature.NewNative(cfg.ImageMode(), cfg.FeatureNum), nil
}

// setup builds the runner for one command invocation.
func setup(o *options) (*experiment.Runner, logger.Logger, error) {
	cfg, err := loadExperiment(o.config)
	if err != nil {
		return nil, nil, err
	}
	log := newLogger(o, cfg)

	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, nil, err
	}
	extractor, err := newExtractor(cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Debug("cli", "experiment loaded", map[string]interface{}{
		"id":          cfg.ID,
		"mode":        cfg.Mode,
		"feature_num": extractor.FeatureNum(),
		"backend":     cfg.Backend,
	})
	return experiment.New(cfg, catalog, extractor, log), log, nil
}

// signalContext is cancelled on SIGINT or SIGTERM. The runner stops between
// models, so finished report rows stay intact.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

type jobFunc func(r *experiment.Runner, ctx context.Context, job experiment.Job) ([]experiment.Result, error)

func jobCommand(name, short, long string, run jobFunc) *commander.Command {
	o := &options{}
	cmd := &commander.Command{
		UsageLine: name + " [flags]",
		Short:     short,
		Long:      long,
		Flag:      *flag.NewFlagSet(name, flag.ExitOnError),
	}
	o.bind(&cmd.Flag)
	cmd.Run = func(cmd *commander.Command, args []string) error {
		runner, log, err := setup(o)
		if err != nil {
			return err
		}
		job, err := o.job()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		results, err := run(runner, ctx, job)
		printResults(results)
		if err != nil {
			log.Error("cli", err, map[string]interface{}{"command": name})
			return err
		}
		return nil
	}
	return cmd
}

func trainCmd() *commander.Command {
	return jobCommand("train", "train and score one model per concentration", `
Trains one multi-class model per concentration on <data>/train, scores it on
<data>/test and appends a row to <id>_Accuracy.xlsx. The experiment's
estimator configuration selects a random forest or a PCA+LDA projection.
`, (*experiment.Runner).Flat)
}

func evaluateCmd() *commander.Command {
	return jobCommand("evaluate", "score saved models without training", `
Loads <id>_<concentration>.model for every concentration and repeats the
scoring of train: metrics, cross-validated accuracy, heatmap and report row.
`, (*experiment.Runner).Evaluate)
}

func dichotomiesCmd() *commander.Command {
	return jobCommand("dichotomies", "one-vs-others model per organism", `
Trains a binary model per organism on <data>/<organism> and reports AUROC,
AUPR and cross-validated accuracy, AUROC and AUPR. The blank is only run over
all concentrations.
`, (*experiment.Runner).Dichotomies)
}

func orderSplitCmd() *commander.Command {
	return jobCommand("ordersplit", "species models of the composite orders", `
Trains the species model of every composite order on <data>/split_in_<order>
and saves it as <id>_<order>_<concentration>.model.
`, (*experiment.Runner).OrderSplit)
}

func twoStepCmd() *commander.Command {
	return jobCommand("twostep", "chain order and species models", `
Routes every test image through the saved order model and the species model
of its predicted order, then reports species-level metrics to
<id>_two_step.xlsx. Run train on the order data and ordersplit first.
`, (*experiment.Runner).TwoStep)
}

func importanceCmd() *commander.Command {
	o := &options{}
	cmd := &commander.Command{
		UsageLine: "importance [flags]",
		Short:     "forest feature importances",
		Long: `
Refits the forest of every concentration and writes its importance bar chart
and the importance sums below and above the default truncation.
`,
		Flag: *flag.NewFlagSet("importance", flag.ExitOnError),
	}
	o.bind(&cmd.Flag)
	cmd.Run = func(cmd *commander.Command, args []string) error {
		runner, _, err := setup(o)
		if err != nil {
			return err
		}
		job, err := o.job()
		if err != nil {
			return err
		}
		ctx, cancel := signalContext()
		defer cancel()

		sums, err := runner.Importance(ctx, job)
		if len(sums) > 0 {
			fmt.Printf("%-14s %10s %10s\n", "concentration", fmt.Sprintf("0-%d", feature.DefaultFeatureNum-1), "tail")
			for _, s := range sums {
				fmt.Printf("%-14s %10.4f %10.4f\n", s.Concentration, s.Low, s.High)
			}
		}
		return err
	}
	return cmd
}

func inspectCmd() *commander.Command {
	return &commander.Command{
		UsageLine: "inspect <model-file>...",
		Short:     "print the header of saved models",
		Run: func(cmd *commander.Command, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("inspect: no model file given")
			}
			for i, path := range args {
				if i > 0 {
					fmt.Println()
				}
				h, err := model.ReadHeader(path)
				if err != nil {
					return err
				}
				printHeader(path, h)
			}
			return nil
		},
		Flag: *flag.NewFlagSet("inspect", flag.ExitOnError),
	}
}

func versionCmd() *commander.Command {
	return &commander.Command{
		UsageLine: "version",
		Short:     "print build information",
		Run: func(cmd *commander.Command, args []string) error {
			fmt.Println(version.String())
			return nil
		},
		Flag: *flag.NewFlagSet("version", flag.ExitOnError),
	}
}

func printHeader(path string, h *model.Header) {
	fmt.Printf("File:        %s\n", path)
	fmt.Printf("Kind:        %s (format %d)\n", h.Kind, h.FormatVersion)
	fmt.Printf("Features:    %d (mode %s, feature_num %d)\n", h.FeatureDim, h.Mode, h.FeatureNum)
	fmt.Printf("Classes:     %s\n", strings.Join(h.Classes, ", "))
	fmt.Printf("Created:     %s by %s\n", h.CreatedAt.Format("2006-01-02 15:04:05"), h.CreatedBy)
	if len(h.Tags) > 0 {
		keys := make([]string, 0, len(h.Tags))
		for k := range h.Tags {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fmt.Printf("Tags:\n")
		for _, k := range keys {
			fmt.Printf("  %-14s %s\n", k, h.Tags[k])
		}
	}
}

func printResults(results []experiment.Result) {
	if len(results) == 0 {
		return
	}
	fmt.Printf("\n%-32s %9s %9s %9s %9s %15s %9s %9s\n",
		"model", "accuracy", "recall", "f1", "precision", "cv", "auroc", "aupr")
	for _, r := range results {
		m := r.Metrics
		fmt.Printf("%-32s %9.4f %9.4f %9.4f %9.4f %15s %9s %9s\n",
			r.Key, m.Accuracy, m.Recall, m.F1, m.Precision,
			fmt.Sprintf("%.4f±%.4f", r.CVMean, r.CVStd), optional(r.AUROC), optional(r.AUPR))
		if len(r.BestParams) > 0 {
			fmt.Printf("  best params: %v\n", r.BestParams)
		}
	}
}

func optional(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}
