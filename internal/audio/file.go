// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"tuner/internal/capture"
	"tuner/internal/config"
	"tuner/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrInvalidWAV is returned for files the decoder does not accept.
var ErrInvalidWAV = errors.New("invalid WAV file")

// FileInfo describes a decoded WAV stream.
type FileInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// wavReader converts PCM of any supported depth to mono int16 chunks.
type wavReader struct {
	file    *os.File
	decoder *wav.Decoder
	info    FileInfo
	pcm     *audio.IntBuffer
	mono    []capture.Sample
}

func openWAV(path string, frames int) (*wavReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	r := &wavReader{file: f}
	if err := r.reset(); err != nil {
		f.Close()
		return nil, err
	}

	switch r.info.BitDepth {
	case 8, 16, 24, 32:
	default:
		f.Close()
		return nil, fmt.Errorf("%w: unsupported bit depth %d", ErrInvalidWAV, r.info.BitDepth)
	}

	r.pcm = &audio.IntBuffer{
		Data:   make([]int, frames*r.info.Channels),
		Format: &audio.Format{NumChannels: r.info.Channels, SampleRate: r.info.SampleRate},
	}
	r.mono = make([]capture.Sample, frames)
	return r, nil
}

// reset positions the decoder at the first PCM frame.
func (r *wavReader) reset() error {
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind WAV file: %w", err)
	}
	r.decoder = wav.NewDecoder(r.file)
	if !r.decoder.IsValidFile() {
		return ErrInvalidWAV
	}
	if err := r.decoder.FwdToPCM(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWAV, err)
	}
	r.info = FileInfo{
		SampleRate: int(r.decoder.SampleRate),
		Channels:   max(int(r.decoder.NumChans), 1),
		BitDepth:   int(r.decoder.BitDepth),
	}
	return nil
}

// next returns the next chunk of mono samples, or io.EOF once the data
// chunk is exhausted. The slice is reused by the following call.
func (r *wavReader) next() ([]capture.Sample, error) {
	r.pcm.Data = r.pcm.Data[:cap(r.pcm.Data)]
	n, err := r.decoder.PCMBuffer(r.pcm)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("error reading WAV data: %w", err)
	}
	frames := n / r.info.Channels
	if frames == 0 {
		return nil, io.EOF
	}

	mono := r.mono[:frames]
	for i := range mono {
		mono[i] = toSample(r.pcm.Data[i*r.info.Channels], r.info.BitDepth)
	}
	return mono, nil
}

func (r *wavReader) Close() error {
	return r.file.Close()
}

// toSample rescales one PCM value to 16 bits. 8-bit WAV is unsigned.
func toSample(v, bitDepth int) capture.Sample {
	switch bitDepth {
	case 8:
		return capture.Sample((v - 128) << 8)
	case 24:
		return capture.Sample(v >> 8)
	case 32:
		return capture.Sample(v >> 16)
	default:
		return capture.Sample(v)
	}
}

// LoadFile decodes the whole file into out as fast as possible. It is used
// for offline analysis, where only the last ring-capacity samples matter.
func LoadFile(path string, out Writer) (FileInfo, error) {
	r, err := openWAV(path, config.DefaultFramesPerBuffer)
	if err != nil {
		return FileInfo{}, err
	}
	defer r.Close()

	total := 0
	for {
		chunk, err := r.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return r.info, err
		}
		out.Write(chunk)
		total += len(chunk)
	}

	log.Debugf("audio: loaded %d frames from '%s' (%d Hz, %d-bit, %d channels)",
		total, path, r.info.SampleRate, r.info.BitDepth, r.info.Channels)
	return r.info, nil
}

// FileSource replays a WAV file in real time, one FramesPerBuffer chunk per
// period, the way a capture callback would deliver it.
type FileSource struct {
	path   string
	loop   bool
	out    Writer
	reader *wavReader
	info   FileInfo
	period time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex
}

// NewFileSource opens the file and reads its header.
func NewFileSource(cfg config.AudioConfig, out Writer) (*FileSource, error) {
	r, err := openWAV(cfg.InputFile, cfg.FramesPerBuffer)
	if err != nil {
		return nil, err
	}
	if r.info.SampleRate <= 0 {
		r.Close()
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidWAV, r.info.SampleRate)
	}
	period := time.Duration(float64(cfg.FramesPerBuffer) / float64(r.info.SampleRate) * float64(time.Second))
	return &FileSource{
		path:   cfg.InputFile,
		loop:   cfg.Loop,
		out:    out,
		reader: r,
		info:   r.info,
		period: max(period, time.Millisecond),
	}, nil
}

// Info returns the decoded stream format.
func (f *FileSource) Info() FileInfo {
	return f.info
}

func (f *FileSource) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ticker != nil {
		return ErrAlreadyRunning
	}
	if f.reader == nil {
		return fmt.Errorf("file source '%s' is closed", f.path)
	}

	f.ticker = time.NewTicker(f.period)
	f.doneChan = make(chan struct{})
	f.stopOnce = sync.Once{}

	ticker := f.ticker
	doneChan := f.doneChan

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		for {
			select {
			case <-ticker.C:
				if !f.pump() {
					return
				}
			case <-doneChan:
				return
			}
		}
	}()

	log.Infof("audio: replaying '%s' (%d Hz, period %s, loop %v)", f.path, f.info.SampleRate, f.period, f.loop)
	return nil
}

// pump delivers one chunk and reports whether replay should continue.
func (f *FileSource) pump() bool {
	chunk, err := f.reader.next()
	if errors.Is(err, io.EOF) && f.loop {
		if err = f.reader.reset(); err == nil {
			chunk, err = f.reader.next()
		}
	}
	if errors.Is(err, io.EOF) {
		log.Infof("audio: reached end of '%s'", f.path)
		return false
	}
	if err != nil {
		log.Errorf("audio: %v", err)
		return false
	}
	f.out.Write(chunk)
	return true
}

// Stop ends replay and closes the file. The source cannot be restarted.
func (f *FileSource) Stop() error {
	f.mu.Lock()
	if f.ticker != nil {
		f.stopOnce.Do(func() {
			close(f.doneChan)
			f.ticker.Stop()
			f.ticker = nil
		})
	}
	f.mu.Unlock()

	f.wg.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reader == nil {
		return nil
	}
	err := f.reader.Close()
	f.reader = nil
	return err
}
