package infrastructure

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"go.uber.org/zap"
)

const (
	describeDownloading    = "Downloading   "
	describePostprocessing = "Postprocessing"
)

// ArtifactSaver persists a transferred artifact
type ArtifactSaver interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
	Location(key string) string
}

// TerminalProjector renders the download lifecycle on a terminal and saves
// artifacts through an ArtifactSaver
type TerminalProjector struct {
	out    io.Writer
	saver  ArtifactSaver
	logger *zap.Logger

	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	saved   []string
	saveErr error
}

// NewTerminalProjector creates a projector writing to out
func NewTerminalProjector(out io.Writer, saver ArtifactSaver, logger *zap.Logger) *TerminalProjector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TerminalProjector{
		out:    out,
		saver:  saver,
		logger: logger,
	}
}

func (p *TerminalProjector) newBar() *progressbar.ProgressBar {
	return progressbar.NewOptions(100,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(describeDownloading),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// OnProgressInit shows an empty progress bar
func (p *TerminalProjector) OnProgressInit() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.bar = p.newBar()
}

// OnProgressUpdate moves the bar to progress percent
func (p *TerminalProjector) OnProgressUpdate(progress float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		p.bar = p.newBar()
	}
	if err := p.bar.Set(int(progress)); err != nil {
		p.logger.Debug("Failed to render progress", zap.Float64("progress", progress), zap.Error(err))
	}
}

// OnProgressReset removes the bar
func (p *TerminalProjector) OnProgressReset() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar == nil {
		return
	}
	p.clearBar()
	p.bar = nil
}

func (p *TerminalProjector) OnPostprocessingEnter() {
	p.describe(describePostprocessing)
}

func (p *TerminalProjector) OnPostprocessingExit() {
	p.describe(describeDownloading)
}

// clearBar erases the bar from the terminal. Callers hold p.mu.
func (p *TerminalProjector) clearBar() {
	if err := p.bar.Clear(); err != nil {
		p.logger.Debug("Failed to clear progress bar", zap.Error(err))
	}
}

func (p *TerminalProjector) describe(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.bar.Describe(text)
	}
}

// OnError prints message on its own line
func (p *TerminalProjector) OnError(message string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		p.clearBar()
	}
	fmt.Fprintf(p.out, "\nError: %s\n", message)
}

// OnErrorCleared has nothing to dismiss on a terminal
func (p *TerminalProjector) OnErrorCleared() {}

// OnSaveArtifact saves the artifact and reports where it went. A failed
// save is printed and kept for SaveError.
func (p *TerminalProjector) OnSaveArtifact(data []byte, filename string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		if err := p.bar.Finish(); err != nil {
			p.logger.Debug("Failed to finish progress bar", zap.Error(err))
		}
	}

	key, err := p.saver.Save(context.Background(), filename, data)
	if err != nil {
		p.saveErr = err
		p.logger.Error("Failed to save artifact", zap.String("filename", filename), zap.Error(err))
		fmt.Fprintf(p.out, "\nError: could not save %s: %v\n", filename, err)
		return
	}

	p.saved = append(p.saved, key)
	fmt.Fprintf(p.out, "\nSaved %s (%s)\n", p.saver.Location(key), humanize.Bytes(uint64(len(data))))
}

// SaveError returns the error of the last failed save, if any
func (p *TerminalProjector) SaveError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saveErr
}

// Saved returns the keys of all saved artifacts
func (p *TerminalProjector) Saved() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.saved...)
}
