package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/linuxmatters/f120/internal/logging"
	"github.com/linuxmatters/f120/internal/processor"
	"github.com/linuxmatters/f120/internal/ui"
	"github.com/linuxmatters/f120/internal/validate"
	"github.com/linuxmatters/f120/internal/vocoder"
)

// coder runs one recording through the chain and writes its outputs.
// It is shared by every worker, so it holds read-only state only.
type coder struct {
	cfg      *processor.Config
	validate validate.Config
	vocoder  *vocoder.Config // nil = no audio rendering
	ref      *processor.Electrodogram
	outDir   string // empty = beside the input
	logs     bool
	log      *zap.Logger
}

// outputPath returns where the electrodogram of input is written
func (c *coder) outputPath(input string) string {
	if c.validate.OutFile != "" {
		return c.validate.OutFile
	}
	dir := c.outDir
	if dir == "" {
		dir = filepath.Dir(input)
	}
	return filepath.Join(dir, ui.OutputName(filepath.Base(input)))
}

// code processes one file. The returned message always carries the file
// index; Result is nil when coding failed.
func (c *coder) code(index int, input string, progress processor.ProgressFunc) (ui.FileCompleteMsg, *processor.Result) {
	msg := ui.FileCompleteMsg{FileIndex: index, Dominant: -1}
	log := c.log.With(zap.String("input", input))
	start := time.Now()

	res, err := processor.ProcessFile(input, c.cfg, processor.Options{Logger: log}, progress)
	if err != nil {
		log.Error("coding failed", zap.Error(err))
		msg.Error = err
		return msg, nil
	}

	s := c.cfg.Strategy
	report, verr := validate.Check(res.Electrodogram, res.CodedDuration(s), s.NumElectrodes(), c.ref, c.validate)
	if verr != nil && (report == nil || !report.Save) {
		log.Error("validation failed", zap.Error(verr))
		msg.Error = fmt.Errorf("validate: %w", verr)
		return msg, res
	}

	output := c.outputPath(input)
	if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
		msg.Error = fmt.Errorf("create output directory: %w", err)
		return msg, res
	}
	if err := validate.SaveParquet(output, res.Electrodogram); err != nil {
		log.Error("save failed", zap.String("output", output), zap.Error(err))
		msg.Error = err
		return msg, res
	}
	msg.OutputPath = output

	if c.vocoder != nil {
		vpath := filepath.Join(filepath.Dir(output), ui.VocoderName(filepath.Base(input)))
		freqs := vocoder.ElectrodeFrequencies(s, c.vocoder.AudioFs)
		if err := vocoder.RenderFile(vpath, res.Electrodogram, freqs, *c.vocoder); err != nil {
			log.Warn("vocoder failed", zap.Error(err))
			msg.Note = "vocoder failed: " + err.Error()
		} else {
			msg.VocoderPath = vpath
		}
	}

	if c.logs {
		err := logging.GenerateReport(logging.ReportData{
			InputPath:   input,
			OutputPath:  output,
			VocoderPath: msg.VocoderPath,
			StartTime:   start,
			EndTime:     time.Now(),
			Config:      c.cfg,
			Result:      res,
			Validation:  report,
			ValidateErr: verr,
		})
		if err != nil {
			log.Warn("report failed", zap.Error(err))
		}
	}

	msg.Duration = res.Duration(s.Fs)
	best := 0.0
	for e, st := range logging.SummariseElectrodes(res, c.cfg) {
		msg.Pulses += st.Pulses
		if st.Charge > best {
			msg.Dominant, best = e, st.Charge
		}
	}
	if report != nil && report.TooSimilar && msg.Note == "" {
		msg.Note = fmt.Sprintf("%d/%d electrodes match the reference", report.SimilarChannels, report.Electrodes)
	}

	log.Info("coded",
		zap.String("output", output),
		zap.Int("pulses", msg.Pulses),
		zap.Duration("elapsed", time.Since(start)),
	)
	return msg, res
}
