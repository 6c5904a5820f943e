package audio

import (
	"context"
	"fmt"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

const maxVolume = 150

type streamInfo struct {
	ID      int
	Volume  int
	AppName string
}

type fadeTarget struct {
	id   int
	from int
	to   int
}

// Runner executes an external command and returns its stdout.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// Ducker fades other PulseAudio sink inputs down while the robot talks and
// restores them afterwards. Streams whose application.name is listed in
// selfNames are left alone.
type Ducker struct {
	mu          sync.Mutex
	active      bool
	selfNames   []string
	originalVol map[int]int
	minVolume   int
	run         Runner
}

func NewDucker(selfNames []string, minVolume int) *Ducker {
	minVolume = clampVolume(minVolume)

	return &Ducker{
		selfNames:   append([]string(nil), selfNames...),
		originalVol: make(map[int]int),
		minVolume:   minVolume,
		run:         execRunner,
	}
}

// WithRunner replaces the pactl runner.
func (d *Ducker) WithRunner(r Runner) *Ducker {
	d.run = r
	return d
}

// DuckOthers fades foreign streams to current*factor, never below minVolume.
func (d *Ducker) DuckOthers(ctx context.Context, factor float64, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	streams, err := d.listStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	d.originalVol = make(map[int]int)

	var targets []fadeTarget
	for _, s := range streams {
		if d.isSelfStream(s) {
			continue
		}

		to := math.Max(float64(s.Volume)*factor, float64(d.minVolume))
		d.originalVol[s.ID] = s.Volume
		targets = append(targets, fadeTarget{
			id:   s.ID,
			from: s.Volume,
			to:   clampVolume(int(math.Round(to))),
		})
	}

	if err := d.fade(ctx, targets, duration); err != nil {
		return err
	}

	d.active = true
	return nil
}

// UnduckOthers fades previously ducked streams back to their volumes.
// Streams that appeared after ducking are ignored.
func (d *Ducker) UnduckOthers(ctx context.Context, duration time.Duration) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	streams, err := d.listStreams(ctx)
	if err != nil {
		return fmt.Errorf("list streams: %w", err)
	}

	var targets []fadeTarget
	for _, s := range streams {
		if d.isSelfStream(s) {
			continue
		}
		orig, ok := d.originalVol[s.ID]
		if !ok {
			continue
		}
		targets = append(targets, fadeTarget{id: s.ID, from: s.Volume, to: orig})
	}

	if err := d.fade(ctx, targets, duration); err != nil {
		return err
	}

	d.originalVol = make(map[int]int)
	d.active = false
	return nil
}

func (d *Ducker) isSelfStream(s streamInfo) bool {
	for _, name := range d.selfNames {
		if s.AppName == name {
			return true
		}
	}
	return false
}

// fade steps every target linearly, one step per 10ms.
func (d *Ducker) fade(ctx context.Context, targets []fadeTarget, duration time.Duration) error {
	if len(targets) == 0 {
		return nil
	}

	if duration <= 0 {
		for _, t := range targets {
			if err := d.setVolume(ctx, t.id, t.to); err != nil {
				return err
			}
		}
		return nil
	}

	const minStep = 10 * time.Millisecond

	steps := max(int(duration/minStep), 1)
	stepDuration := duration / time.Duration(steps)

	for i := 0; i <= steps; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		frac := float64(i) / float64(steps)
		for _, t := range targets {
			v := float64(t.from) + float64(t.to-t.from)*frac
			if err := d.setVolume(ctx, t.id, int(math.Round(v))); err != nil {
				return err
			}
		}

		if i < steps {
			time.Sleep(stepDuration)
		}
	}

	return nil
}

func (d *Ducker) listStreams(ctx context.Context) ([]streamInfo, error) {
	out, err := d.run(ctx, "pactl", "list", "sink-inputs")
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(string(out)), nil
}

func (d *Ducker) setVolume(ctx context.Context, id, percent int) error {
	arg := fmt.Sprintf("%d%%", clampVolume(percent))
	if _, err := d.run(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), arg); err != nil {
		return fmt.Errorf("set volume id=%d: %w", id, err)
	}
	return nil
}

// parseSinkInputs reads `pactl list sink-inputs` output.
func parseSinkInputs(text string) []streamInfo {
	parts := strings.Split(text, "Sink Input #")
	if len(parts) <= 1 {
		return nil
	}

	var res []streamInfo
	for _, block := range parts[1:] {
		newline := strings.IndexByte(block, '\n')
		if newline <= 0 {
			continue
		}

		id, err := strconv.Atoi(strings.TrimSpace(block[:newline]))
		if err != nil {
			continue
		}

		s := streamInfo{ID: id}
		for _, line := range strings.Split(block[newline+1:], "\n") {
			line = strings.TrimSpace(line)

			if strings.HasPrefix(line, "Volume:") && s.Volume == 0 {
				if m := percentRe.FindStringSubmatch(line); len(m) >= 2 {
					if v, err := strconv.Atoi(m[1]); err == nil {
						s.Volume = v
					}
				}
			}

			// application.name = "Firefox"
			if strings.HasPrefix(line, "application.name =") && s.AppName == "" {
				if _, rest, ok := strings.Cut(line, `"`); ok {
					s.AppName, _, _ = strings.Cut(rest, `"`)
				}
			}
		}

		if s.Volume == 0 && s.AppName == "" {
			continue
		}
		res = append(res, s)
	}

	return res
}

func clampVolume(v int) int {
	return min(max(v, 0), maxVolume)
}
