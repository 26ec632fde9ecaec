// Package main provides the CLI entrypoint for boxlabel.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/cockroachdb/errors"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/verte-zerg/boxlabel/internal/config"
	"github.com/verte-zerg/boxlabel/internal/logging"
	"github.com/verte-zerg/boxlabel/internal/model"
	"github.com/verte-zerg/boxlabel/internal/queue"
	"github.com/verte-zerg/boxlabel/internal/result"
	"github.com/verte-zerg/boxlabel/internal/script"
	"github.com/verte-zerg/boxlabel/internal/session"
	"github.com/verte-zerg/boxlabel/internal/stats"
	"github.com/verte-zerg/boxlabel/internal/tui"
)

const (
	defaultDir          = "."
	defaultScreenHeight = 1080
	defaultStatsWindow  = 5
	maxPrecision        = 17
)

var (
	annotateDir          string
	annotateLabels       string
	annotateScreenHeight int
	annotateCrop         bool
	annotateSaveDir      string
	annotateAuto         bool
	annotatePrecision    int
	annotateCropQuality  int
	annotateLogFile      string

	applyScript string
	applyDebug  bool

	statsTop    int
	statsWindow int
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		logErrf("Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			logErrf("hint: %s\n", hint)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "boxlabel",
		Short:         "Terminal bounding-box annotator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runAnnotateCmd,
	}
	addAnnotateFlags(rootCmd)
	rootCmd.Flags().StringVar(&annotateLogFile, "log-file", config.DefaultLogPath(), "log file for the interactive UI")

	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newLabelsCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func addAnnotateFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&annotateDir, "dir", defaultDir, "directory of images to label")
	cmd.Flags().StringVar(&annotateLabels, "labels", config.DefaultLabelsPath, "labels file with key_1..key_9 (json, yaml or toml)")
	cmd.Flags().IntVar(&annotateScreenHeight, "screen-height", defaultScreenHeight, "screen height in pixels; images taller than 80% of it are downscaled (0 disables)")
	cmd.Flags().BoolVar(&annotateCrop, "crop", false, "save a crop of every box")
	cmd.Flags().StringVar(&annotateSaveDir, "save-dir", "", "crop directory (default <dir>/Results)")
	cmd.Flags().BoolVar(&annotateAuto, "auto", false, "start in automatic labeling mode")
	cmd.Flags().IntVar(&annotatePrecision, "precision", result.DefaultPrecision, "decimals in label files (negative: shortest exact)")
	cmd.Flags().IntVar(&annotateCropQuality, "crop-quality", result.DefaultCropQuality, "JPEG quality of crops (1-100)")
}

func runAnnotateCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	labels, err := config.LoadLabels(cfg.LabelsPath)
	if err != nil {
		return err
	}
	logger, err := logging.NewFile(cfg.LogFile)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	s, err := openSession(cfg, labels, logger)
	if err != nil {
		return err
	}
	m := tui.NewModel(s, logger)
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := program.Run(); err != nil {
		return errors.Wrap(err, "failed to run TUI")
	}
	done, total := s.Progress()
	fmt.Fprintf(cmd.OutOrStdout(), "%d/%d images labeled in %s\n", done, total, cfg.Dir)
	return nil
}

func openSession(cfg model.Config, labels model.LabelSet, logger *zap.Logger) (*session.Session, error) {
	q, err := queue.Scan(cfg.Dir)
	if err != nil {
		return nil, errors.WithHint(err, "pass the image directory with --dir")
	}
	mode := model.ModeManual
	if cfg.Auto {
		mode = model.ModeAuto
	}
	logger.Info("session started",
		zap.String("dir", cfg.Dir),
		zap.Int("total", q.Total()),
		zap.Int("remaining", len(q.Remaining())),
		zap.Strings("labels", labels))
	return session.New(q, session.Options{
		Labels:       labels,
		ScreenHeight: cfg.ScreenHeight,
		Mode:         mode,
		Crop:         cfg.Crop,
		SaveDir:      cfg.SaveDir,
		Precision:    cfg.Precision,
		CropQuality:  cfg.CropQuality,
	}, logger), nil
}

func newApplyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Replay an annotation script without the UI",
		Long: `Replay an annotation script, one command per line:
  next | box X1 Y1 X2 Y2 | begin X Y | move X Y | end X Y | label N
  remove X Y | undo | reset | mode | crop | load PATH | progress
Coordinates are display pixels; label N is 0-based. Lines starting with # are ignored.`,
		Args: cobra.NoArgs,
		RunE: runApplyCmd,
	}
	addAnnotateFlags(cmd)
	cmd.Flags().StringVar(&applyScript, "script", "-", "script file, - for stdin")
	cmd.Flags().BoolVar(&applyDebug, "debug", false, "log every command")
	return cmd
}

func runApplyCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	labels, err := config.LoadLabels(cfg.LabelsPath)
	if err != nil {
		return err
	}
	steps, err := script.LoadFile(applyScript)
	if err != nil {
		return err
	}
	logger, err := logging.NewConsole(applyDebug)
	if err != nil {
		return err
	}
	defer logging.Sync(logger)

	s, err := openSession(cfg, labels, logger)
	if err != nil {
		return err
	}
	sum, err := script.Run(s, steps, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	logger.Info("script finished",
		zap.Int("ok", sum.OK),
		zap.Int("warnings", sum.Warnings),
		zap.Int("fatal", sum.Fatal))
	if sum.Fatal > 0 {
		return errors.Newf("%d commands failed", sum.Fatal)
	}
	return nil
}

func newStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show labeling progress and per-label box counts",
		Args:  cobra.NoArgs,
		RunE:  runStatsCmd,
	}
	cmd.Flags().StringVar(&annotateDir, "dir", defaultDir, "directory of images")
	cmd.Flags().StringVar(&annotateLabels, "labels", config.DefaultLabelsPath, "labels file with key_1..key_9")
	cmd.Flags().IntVar(&statsTop, "top", 0, "limit the label table to the N most used labels")
	cmd.Flags().IntVar(&statsWindow, "window", defaultStatsWindow, "moving average window for the boxes/image curve")
	return cmd
}

func runStatsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	applyStringConfig(cmd, "labels", &annotateLabels, fileCfg.Annotate.Labels)
	labels, err := config.LoadLabels(annotateLabels)
	if err != nil {
		return err
	}
	report, err := stats.BuildReport(annotateDir, labels)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	return stats.Render(out, report, labels, stats.Options{
		Top:    statsTop,
		Window: statsWindow,
		Width:  stats.TerminalWidth(),
		Color:  stats.ShouldUseColor(out),
	})
}

func newLabelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "labels",
		Short: "List configured labels and their keys",
		Args:  cobra.NoArgs,
		RunE:  runLabelsCmd,
	}
	cmd.Flags().StringVar(&annotateLabels, "labels", config.DefaultLabelsPath, "labels file with key_1..key_9")
	return cmd
}

func runLabelsCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	applyStringConfig(cmd, "labels", &annotateLabels, fileCfg.Annotate.Labels)
	labels, err := config.LoadLabels(annotateLabels)
	if err != nil {
		return err
	}
	for i, name := range labels {
		fmt.Fprintf(cmd.OutOrStdout(), "%d  %s  (label %d)\n", i+1, runewidth.FillRight(name, maxLabelWidth(labels)), i)
	}
	return nil
}

func maxLabelWidth(labels model.LabelSet) int {
	width := 0
	for _, name := range labels {
		width = max(width, runewidth.StringWidth(name))
	}
	return width
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "failed to create config directory")
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return errors.Wrap(err, "failed to stat config")
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return errors.Wrap(err, "failed to write config")
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "failed to open editor")
	}
	return nil
}

// resolveConfig merges the config file into the annotate flags the user did not set.
func resolveConfig(cmd *cobra.Command) (model.Config, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, errors.Wrap(err, "failed to load config")
	}
	a := fileCfg.Annotate
	applyStringConfig(cmd, "labels", &annotateLabels, a.Labels)
	applyIntConfig(cmd, "screen-height", &annotateScreenHeight, a.ScreenHeight)
	applyBoolConfig(cmd, "crop", &annotateCrop, a.Crop)
	applyStringConfig(cmd, "save-dir", &annotateSaveDir, a.SaveDir)
	applyBoolConfig(cmd, "auto", &annotateAuto, a.Auto)
	applyIntConfig(cmd, "precision", &annotatePrecision, a.Precision)
	applyIntConfig(cmd, "crop-quality", &annotateCropQuality, a.CropQuality)
	applyStringConfig(cmd, "log-file", &annotateLogFile, a.LogFile)

	cfg := model.Config{
		Dir:          annotateDir,
		LabelsPath:   annotateLabels,
		ScreenHeight: annotateScreenHeight,
		Crop:         annotateCrop,
		SaveDir:      annotateSaveDir,
		Auto:         annotateAuto,
		Precision:    annotatePrecision,
		CropQuality:  annotateCropQuality,
		LogFile:      annotateLogFile,
	}
	if err := validateConfig(cfg); err != nil {
		return model.Config{}, err
	}
	return cfg, nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# boxlabel configuration
# Uncomment a value to enable it. CLI flags override config values.

[annotate]
# labels = %q      # Labels file with key_1..key_9
# screen-height = %d     # Screen height in pixels, 0 disables downscaling
# crop = false            # Save a crop of every box
# save-dir = ""           # Crop directory (default <dir>/Results)
# auto = false            # Start in automatic labeling mode
# precision = %d          # Decimals in label files
# crop-quality = %d      # JPEG quality of crops (1-100)
# log-file = %q
`,
		config.DefaultLabelsPath,
		defaultScreenHeight,
		result.DefaultPrecision,
		result.DefaultCropQuality,
		config.DefaultLogPath(),
	)
}

func validateConfig(cfg model.Config) error {
	if cfg.Dir == "" {
		return errors.New("--dir must not be empty")
	}
	if cfg.ScreenHeight < 0 {
		return errors.New("--screen-height must be >= 0")
	}
	if cfg.Precision > maxPrecision {
		return errors.Newf("--precision must be <= %d", maxPrecision)
	}
	if cfg.CropQuality < 1 || cfg.CropQuality > 100 {
		return errors.New("--crop-quality must be between 1 and 100")
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
