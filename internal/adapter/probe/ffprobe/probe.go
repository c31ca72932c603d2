package ffprobe

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"

	"convq/internal/domain"
	"convq/internal/port"
)

// Probe determines a source file's duration with ffprobe. The call is
// synchronous and bounded by the caller's context deadline.
type Probe struct {
	bin string
}

func NewProbe(bin string) *Probe {
	return &Probe{bin: bin}
}

func (p *Probe) Probe(ctx context.Context, path string) (domain.Duration, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		path,
	}
	cmd := exec.CommandContext(ctx, p.bin, args...)

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() != nil {
			return domain.Duration{}, fmt.Errorf("ffprobe: %w", ctx.Err())
		}
		return domain.Duration{}, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseDuration(output)
}

func parseDuration(output []byte) (domain.Duration, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal(output, &probe); err != nil {
		return domain.Duration{}, fmt.Errorf("parse ffprobe output: %w", err)
	}

	seconds, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil || seconds <= 0 {
		return domain.Duration{}, fmt.Errorf("no usable duration in ffprobe output")
	}

	return domain.DurationFromSeconds(seconds), nil
}

var _ port.MediaProbe = (*Probe)(nil)
