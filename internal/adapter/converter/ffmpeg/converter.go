package ffmpeg

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"convq/internal/domain"
	"convq/internal/infrastructure/logger"
	"convq/internal/port"
)

var (
	ErrEmptyPath   = errors.New("path is empty")
	ErrInvalidPath = errors.New("path contains invalid characters")
	ErrBusy        = errors.New("a conversion is already in flight")
)

// Converter drives ffmpeg one process at a time. Progress is read from the
// machine-readable "-progress pipe:1" stream and reported against the
// probed source duration; the process exit code becomes the completion
// exit status.
type Converter struct {
	bin  string
	sink port.ConverterSink

	mu     sync.Mutex
	active *run
}

// run is one dispatched ffmpeg process. halted marks a user-requested
// stop so the watcher suppresses its events instead of reporting the
// kill as a job failure.
type run struct {
	cancel context.CancelFunc

	mu     sync.Mutex
	halted bool
}

func (r *run) halt() {
	r.mu.Lock()
	r.halted = true
	r.mu.Unlock()
	r.cancel()
}

func (r *run) isHalted() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.halted
}

func NewConverter(bin string) *Converter {
	return &Converter{bin: bin}
}

// SetSink registers the consumer of progress/completion events. Must be
// called before the first Dispatch.
func (c *Converter) SetSink(sink port.ConverterSink) {
	c.sink = sink
}

func (c *Converter) Dispatch(params domain.ConversionParameters, durationSeconds float64) error {
	if err := validatePath(params.Source); err != nil {
		return fmt.Errorf("source: %w", err)
	}
	if err := validatePath(params.Destination); err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	args, err := buildArgs(params)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return ErrBusy
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, c.bin, args...)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("progress pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	r := &run{cancel: cancel}
	c.active = r

	go c.watch(r, cmd, stdout, durationSeconds)
	return nil
}

func (c *Converter) Halt() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.active.halt()
		c.active = nil
	}
}

// watch streams progress lines until the process exits, then reports the
// exit status. A halted run stays silent: its events would be stale by the
// time they arrived.
func (c *Converter) watch(r *run, cmd *exec.Cmd, stdout io.Reader, durationSeconds float64) {
	defer r.cancel()

	last := -1
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		outTimeUs, ok := parseProgressLine(scanner.Text())
		if !ok {
			continue
		}
		pct := percentage(outTimeUs, durationSeconds)
		if pct == last || r.isHalted() {
			continue
		}
		last = pct
		c.sink.OnProgress(pct)
	}

	err := cmd.Wait()

	c.mu.Lock()
	if c.active == r {
		c.active = nil
	}
	c.mu.Unlock()

	if r.isHalted() {
		logger.Debug.Printf("ffmpeg halted by request")
		return
	}

	c.sink.OnCompleted(exitStatus(err))
}

// parseProgressLine extracts the elapsed output time from one line of the
// -progress stream. Lines are key=value pairs; only out_time_us matters here.
func parseProgressLine(line string) (int64, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found || key != "out_time_us" {
		return 0, false
	}
	us, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, false
	}
	return us, true
}

func percentage(outTimeUs int64, durationSeconds float64) int {
	if durationSeconds <= 0 || outTimeUs <= 0 {
		return 0
	}
	pct := int(float64(outTimeUs) / (durationSeconds * 1e6) * 100)
	if pct > 100 {
		return 100
	}
	return pct
}

func exitStatus(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func buildArgs(params domain.ConversionParameters) ([]string, error) {
	args := []string{"-i", params.Source}

	switch params.Preset {
	case domain.PresetAV1:
		args = append(args,
			"-c:v", "libaom-av1",
			"-crf", "30",
			"-b:v", "0",
			"-cpu-used", "4",
			"-row-mt", "1",
			"-c:a", "libopus",
			"-b:a", "128k",
		)
	case domain.PresetH264:
		args = append(args,
			"-c:v", "libx264",
			"-crf", "23",
			"-preset", "medium",
			"-c:a", "aac",
			"-b:a", "128k",
			"-movflags", "+faststart",
		)
	case domain.PresetOpus:
		args = append(args,
			"-c:a", "libopus",
			"-b:a", "128k",
			"-vn",
		)
	default:
		return nil, fmt.Errorf("unsupported preset: %s", params.Preset)
	}

	if params.Fps > 0 {
		args = append(args, "-r", strconv.Itoa(params.Fps))
	}

	args = append(args, "-nostats", "-progress", "pipe:1", "-y", params.Destination)
	return args, nil
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}
	return nil
}

var _ port.MediaConverter = (*Converter)(nil)
