package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/linuxmatters/f120/internal/cli"
	"github.com/linuxmatters/f120/internal/logging"
	"github.com/linuxmatters/f120/internal/processor"
	"github.com/linuxmatters/f120/internal/ui"
	"github.com/linuxmatters/f120/internal/validate"
	"github.com/linuxmatters/f120/internal/vocoder"
)

var (
	version = "0.0.1"
)

// CLI defines the command-line interface
type CLI struct {
	Version   bool     `short:"v" help:"Show version information"`
	Config    string   `short:"c" type:"existingfile" placeholder:"file" group:"Processing" help:"YAML file of parameter overrides"`
	Logs      bool     `group:"Output" help:"Write a report beside each electrodogram"`
	Debug     bool     `help:"Write a JSON debug log to f120-debug.log"`
	OutDir    string   `short:"o" type:"path" placeholder:"dir" group:"Output" help:"Directory for outputs (default: beside each input)"`
	Output    string   `short:"O" type:"path" placeholder:"file" group:"Output" help:"Electrodogram path, single input only"`
	Vocoder   string   `enum:"none,sine,noise" default:"none" placeholder:"carrier" group:"Output" help:"Also render the electrodogram as audio (none, sine, noise)"`
	Reference string   `type:"existingfile" placeholder:"file" group:"Output" help:"Reference electrodogram (parquet) to compare against"`
	Strict    bool     `group:"Output" help:"Refuse to save an electrodogram too similar to the reference"`
	HumNotch  bool     `group:"Processing" help:"Notch mains hum before coding"`
	HumFreq   float64  `placeholder:"hz" group:"Processing" help:"Mains frequency for the notch, 0 detects it from the timezone"`
	Channel   int      `placeholder:"n" group:"Input" help:"Input channel to code, 1-based (the config file default is 1)"`
	Downmix   bool     `group:"Input" help:"Average all input channels instead of coding one"`
	Start     float64  `placeholder:"secs" group:"Input" help:"Start of the coded excerpt in seconds"`
	End       float64  `placeholder:"secs" group:"Input" help:"End of the coded excerpt in seconds, 0 for the end of the file"`
	Jobs      int      `short:"j" default:"1" placeholder:"n" group:"Processing" help:"Files to code at once"`
	Summary   bool     `help:"Print an electrode summary for a single file instead of the progress view"`
	Files     []string `arg:"" name:"files" help:"WAV files to code" type:"existingfile" optional:""`
}

func main() {
	os.Exit(run())
}

func run() int {
	cliArgs := &CLI{}
	ctx := kong.Parse(cliArgs,
		kong.Name("f120"),
		kong.Description("HiRes Fidelity 120 cochlear implant sound coder"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	if cliArgs.Version {
		cli.PrintVersion(os.Stdout, version, strategyName(processor.DefaultConfig().Strategy))
		return 0
	}

	if len(cliArgs.Files) == 0 {
		cli.PrintError(os.Stderr, "No input files specified")
		ctx.PrintUsage(false)
		return 1
	}
	if len(cliArgs.Files) > 1 && (cliArgs.Summary || cliArgs.Output != "") {
		cli.PrintError(os.Stderr, "--summary and --output take a single input file")
		return 1
	}

	log, closeLog := zap.NewNop(), func() error { return nil }
	if cliArgs.Debug {
		var err error
		log, closeLog, err = logging.NewDebugLogger(logging.DebugLogName, zapcore.DebugLevel)
		if err != nil {
			cli.PrintWarning(os.Stderr, fmt.Sprintf("debug log disabled: %v", err))
		}
	}
	defer closeLog()

	c, err := newCoder(cliArgs, log)
	if err != nil {
		cli.PrintError(os.Stderr, err.Error())
		return 1
	}

	if cliArgs.Summary {
		return runSummary(c, cliArgs.Files[0])
	}
	return runBatch(c, cliArgs.Files, cliArgs.Jobs, log)
}

// newCoder builds the shared run state from the command line
func newCoder(args *CLI, log *zap.Logger) (*coder, error) {
	cfg := processor.DefaultConfig()
	if args.Config != "" {
		var err error
		if cfg, err = processor.LoadConfig(args.Config); err != nil {
			return nil, err
		}
	}

	// Flags override the file only when given
	if args.HumNotch {
		cfg.HumNotch.Enabled = true
	}
	if args.HumFreq > 0 {
		cfg.HumNotch.Frequency = args.HumFreq
	}
	if args.Downmix && args.Channel != 0 {
		return nil, fmt.Errorf("--channel and --downmix are mutually exclusive")
	}
	if args.Channel != 0 {
		cfg.Input.Channel = args.Channel
	}
	if args.Downmix {
		cfg.Input.Channel = 0
	}
	if args.Start != 0 {
		cfg.Input.TStart = args.Start
	}
	if args.End != 0 {
		cfg.Input.TEnd = args.End
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if args.Jobs < 1 {
		return nil, fmt.Errorf("--jobs must be at least 1, got %d", args.Jobs)
	}

	c := &coder{
		cfg:      cfg,
		validate: validate.DefaultConfig(cfg.Strategy),
		outDir:   args.OutDir,
		logs:     args.Logs,
		log:      log,
	}
	c.validate.SaveIfSimilar = !args.Strict
	c.validate.OutFile = args.Output

	if args.Vocoder != "none" {
		v := vocoder.DefaultConfig()
		v.Carrier = vocoder.Carrier(args.Vocoder)
		if err := v.Validate(); err != nil {
			return nil, err
		}
		c.vocoder = &v
	}

	if args.Reference != "" {
		ref, err := validate.LoadParquet(args.Reference)
		if err != nil {
			return nil, fmt.Errorf("reference %s: %w", filepath.Base(args.Reference), err)
		}
		c.ref = &ref
		log.Info("loaded reference", zap.String("path", args.Reference))
	}
	return c, nil
}

// runBatch codes every file, up to jobs at once, behind the progress UI
func runBatch(c *coder, files []string, jobs int, log *zap.Logger) int {
	model := ui.NewModel(files, jobs, log)
	updates := model.ProgressChan

	p := tea.NewProgram(model, tea.WithAltScreen())

	go func() {
		var g errgroup.Group
		g.SetLimit(jobs)
		for i, input := range files {
			i, input := i, input
			g.Go(func() error {
				updates <- ui.FileStartMsg{FileIndex: i, FileName: input}
				msg, _ := c.code(i, input, func(stage processor.StageID, progress float64) {
					updates <- ui.ProgressMsg{FileIndex: i, Stage: stage, Progress: progress}
				})
				updates <- msg
				return nil
			})
		}
		_ = g.Wait()
		updates <- ui.AllCompleteMsg{}
	}()

	final, err := p.Run()
	if err != nil {
		cli.PrintError(os.Stderr, fmt.Sprintf("UI error: %v", err))
		return 1
	}
	m, ok := final.(ui.Model)
	if !ok || !m.Done {
		return 130 // interrupted
	}
	// The alt screen is gone once the program exits; leave the summary behind
	fmt.Println(m.View())
	if m.FailedFiles > 0 {
		return 1
	}
	return 0
}

// runSummary codes one file with a spinner, then prints its electrode summary
func runSummary(c *coder, input string) int {
	p := tea.NewProgram(ui.NewSummaryModel())

	var done ui.FileCompleteMsg
	go func() {
		p.Send(ui.SummaryStartMsg{FilePath: input})
		msg, res := c.code(0, input, func(stage processor.StageID, progress float64) {
			p.Send(ui.SummaryProgressMsg{Stage: stage, Progress: progress})
		})
		done = msg
		p.Send(ui.SummaryCompleteMsg{Result: res, Error: msg.Error})
	}()

	final, err := p.Run()
	if err != nil {
		cli.PrintError(os.Stderr, fmt.Sprintf("UI error: %v", err))
		return 1
	}
	m, ok := final.(ui.SummaryModel)
	if !ok || !m.Done {
		return 130
	}
	if m.Error != nil {
		cli.PrintError(os.Stderr, m.Error.Error())
		return 1
	}

	logging.DisplaySummary(os.Stdout, input, m.Result, c.cfg)
	fmt.Printf("\nElectrodogram: %s\n", done.OutputPath)
	if done.VocoderPath != "" {
		fmt.Printf("Vocoded audio: %s\n", done.VocoderPath)
	}
	if done.Note != "" {
		cli.PrintWarning(os.Stdout, done.Note)
	}
	return 0
}

// strategyName describes the coding strategy for the version banner
func strategyName(s processor.Strategy) string {
	return fmt.Sprintf("HiRes Fidelity 120, %d channels on %d electrodes, %.0f Hz input",
		s.NChan, s.NumElectrodes(), s.Fs)
}
