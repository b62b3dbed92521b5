package audio

import (
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Output is the audio device the player writes to.
type Output interface {
	Init(rate beep.SampleRate, bufferSize int) error
	Play(s beep.Streamer)
	Close()
}

// speakerOutput plays through the system speaker.
type speakerOutput struct{}

func (speakerOutput) Init(rate beep.SampleRate, bufferSize int) error {
	return speaker.Init(rate, bufferSize)
}

func (speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }

func (speakerOutput) Close() { speaker.Close() }

// Player decodes sound files into memory and plays them.
type Player struct {
	mu     sync.Mutex
	logger *slog.Logger
	out    Output

	volume      float64
	initialized bool
	sampleRate  beep.SampleRate

	cacheMu sync.RWMutex
	cache   map[string]*beep.Buffer
}

// NewPlayer creates a player. A nil out selects the system speaker.
func NewPlayer(out Output, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	if out == nil {
		out = speakerOutput{}
	}
	return &Player{
		logger:     logger,
		out:        out,
		volume:     1.0,
		sampleRate: beep.SampleRate(44100),
		cache:      make(map[string]*beep.Buffer),
	}
}

// SetVolume sets the playback volume, clamped to [0,1].
func (p *Player) SetVolume(volume float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = min(max(volume, 0), 1)
}

// Volume returns the playback volume.
func (p *Player) Volume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Play plays a sound file, decoding it on first use.
func (p *Player) Play(path string) error {
	buf, err := p.buffer(path)
	if err != nil {
		return err
	}

	p.mu.Lock()
	volume := p.volume
	rate := p.sampleRate
	p.mu.Unlock()

	var s beep.Streamer = buf.Streamer(0, buf.Len())
	if buf.Format().SampleRate != rate {
		s = beep.Resample(4, buf.Format().SampleRate, rate, s)
	}
	if volume < 1 {
		s = &effects.Volume{
			Streamer: s,
			Base:     2,
			Volume:   volumeExponent(volume),
			Silent:   volume == 0,
		}
	}
	p.out.Play(s)
	return nil
}

// Preload decodes a sound file into the cache.
func (p *Player) Preload(path string) error {
	_, err := p.buffer(path)
	return err
}

// Cached reports whether path is decoded and cached.
func (p *Player) Cached(path string) bool {
	p.cacheMu.RLock()
	defer p.cacheMu.RUnlock()
	_, ok := p.cache[path]
	return ok
}

// Invalidate drops path from the cache.
func (p *Player) Invalidate(path string) {
	p.cacheMu.Lock()
	delete(p.cache, path)
	p.cacheMu.Unlock()
}

// ClearCache drops every cached sound.
func (p *Player) ClearCache() {
	p.cacheMu.Lock()
	p.cache = make(map[string]*beep.Buffer)
	p.cacheMu.Unlock()
}

// Close releases the output device.
func (p *Player) Close() {
	p.mu.Lock()
	if p.initialized {
		p.out.Close()
		p.initialized = false
	}
	p.mu.Unlock()
	p.ClearCache()
}

func (p *Player) buffer(path string) (*beep.Buffer, error) {
	p.cacheMu.RLock()
	buf, ok := p.cache[path]
	p.cacheMu.RUnlock()
	if ok {
		return buf, nil
	}

	buf, err := p.decode(path)
	if err != nil {
		return nil, err
	}

	p.cacheMu.Lock()
	p.cache[path] = buf
	p.cacheMu.Unlock()
	p.logger.Debug("decoded sound", "path", path, "samples", buf.Len())
	return buf, nil
}

func (p *Player) decode(path string) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sound: %w", err)
	}
	defer func() { _ = f.Close() }()

	var (
		s      beep.StreamSeekCloser
		format beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		s, format, err = wav.Decode(f)
	case ".ogg":
		s, format, err = vorbis.Decode(f)
	case ".mp3":
		s, format, err = mp3.Decode(f)
	default:
		return nil, fmt.Errorf("unsupported audio format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode sound: %w", err)
	}
	defer func() { _ = s.Close() }()

	if err := p.init(format.SampleRate); err != nil {
		return nil, err
	}

	buf := beep.NewBuffer(format)
	buf.Append(s)
	return buf, nil
}

func (p *Player) init(rate beep.SampleRate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.initialized {
		return nil
	}
	if err := p.out.Init(rate, rate.N(100*time.Millisecond)); err != nil {
		return fmt.Errorf("init audio output: %w", err)
	}
	p.sampleRate = rate
	p.initialized = true
	return nil
}

// volumeExponent converts linear volume to the base-2 exponent used by
// effects.Volume.
func volumeExponent(volume float64) float64 {
	if volume <= 0 {
		return -10
	}
	return math.Log2(volume)
}
