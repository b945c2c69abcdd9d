package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"minutesapi/config"
)

// Converter normalizes uploaded recordings to 16kHz mono PCM WAV, the format
// the transcriber expects.
type Converter struct {
	cfg       *config.Config
	extraArgs []string
	tempDir   string
}

func NewConverter(cfg *config.Config) (*Converter, error) {
	// Ensure ffmpeg binary is executable
	if _, err := exec.LookPath(cfg.FFBin); err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found or not in PATH: %s", cfg.FFBin)
	}

	// Operator-supplied extra args are validated once at startup.
	extraArgs, err := shlex.Split(cfg.FFExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("invalid FF_EXTRA_ARGS: %w", err)
	}
	for _, arg := range extraArgs {
		if strings.ContainsAny(arg, "|&;`$()<>") {
			return nil, fmt.Errorf("disallowed character in FF_EXTRA_ARGS argument: %s", arg)
		}
	}

	// Create and set a temporary directory for intermediate audio
	tempDir, err := os.MkdirTemp("", "minutesapi_")
	if err != nil {
		return nil, fmt.Errorf("could not create temp directory: %w", err)
	}
	log.Printf("Using temporary directory: %s", tempDir)
	cfg.TempDir = tempDir

	return &Converter{
		cfg:       cfg,
		extraArgs: extraArgs,
		tempDir:   tempDir,
	}, nil
}

// Convert produces a normalized WAV asset for the staged upload. A WAV input
// that is already 16kHz mono is copied instead of re-encoded.
func (c *Converter) Convert(ctx context.Context, inputPath string) (string, error) {
	base := filepath.Base(inputPath)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	outputPath := filepath.Join(c.tempDir, name+".wav")

	if strings.EqualFold(filepath.Ext(inputPath), ".wav") && c.isNormalizedWav(ctx, inputPath) {
		if err := copyFile(inputPath, outputPath); err != nil {
			return "", fmt.Errorf("failed to copy normalized wav: %w", err)
		}
		return outputPath, nil
	}

	args := []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", inputPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
	}
	args = append(args, c.extraArgs...)
	args = append(args, outputPath)

	cmd := exec.CommandContext(ctx, c.cfg.FFBin, args...)
	var outputBuf bytes.Buffer
	cmd.Stdout = &outputBuf
	cmd.Stderr = &outputBuf

	if err := cmd.Run(); err != nil {
		os.Remove(outputPath)
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("ffmpeg conversion failed: %w: %s", err, tail(outputBuf.String()))
	}

	info, err := os.Stat(outputPath)
	if err != nil || info.Size() < 1000 {
		os.Remove(outputPath)
		return "", fmt.Errorf("conversion produced an invalid output file")
	}

	return outputPath, nil
}

// isNormalizedWav probes whether the file is already 16kHz mono.
func (c *Converter) isNormalizedWav(ctx context.Context, path string) bool {
	cmd := exec.CommandContext(ctx, c.cfg.FFProbeBin,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return false
	}

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) < 2 {
		return false
	}
	sampleRate, err1 := strconv.Atoi(strings.TrimSpace(lines[0]))
	channels, err2 := strconv.Atoi(strings.TrimSpace(lines[1]))
	return err1 == nil && err2 == nil && sampleRate == 16000 && channels == 1
}

// CheckResources verifies that the system has enough free resources to start a new job.
func (c *Converter) CheckResources() error {
	// CPU
	p, err := cpu.Percent(time.Second, false)
	if err != nil {
		log.Printf("Warning: could not get CPU usage: %v", err)
	} else if len(p) > 0 && p[0] > (100.0-c.cfg.ThrottleCPU) {
		return fmt.Errorf("not enough idle CPU. Current usage: %.2f%%, Idle threshold: %.2f%%", p[0], c.cfg.ThrottleCPU)
	}

	// Memory
	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Printf("Warning: could not get memory usage: %v", err)
	} else if vm.Available < uint64(c.cfg.ThrottleFreeMem) {
		return fmt.Errorf("not enough free memory. Available: %d, Required: %d", vm.Available, c.cfg.ThrottleFreeMem)
	}

	// Disk
	d, err := disk.Usage(c.tempDir)
	if err != nil {
		log.Printf("Warning: could not get disk usage for %s: %v", c.tempDir, err)
	} else if d.Free < uint64(c.cfg.ThrottleFreeDisk) {
		return fmt.Errorf("not enough free disk space. Available: %d, Required: %d", d.Free, c.cfg.ThrottleFreeDisk)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// tail returns the last few lines of ffmpeg output, enough for an error cause.
func tail(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > 4 {
		lines = lines[len(lines)-4:]
	}
	return strings.Join(lines, " | ")
}
