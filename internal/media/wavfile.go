package media

import (
	"context"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/pkg/errors"

	applog "studio/internal/log"
)

// ErrNotWAV is returned when a microphone file is not a readable WAV file.
var ErrNotWAV = errors.New("not a valid WAV file")

// OpenFileMicrophone replays a WAV file in real time, looping at the end, as
// if it were a live microphone. Samples are normalised to 16 bits.
func OpenFileMicrophone(ctx context.Context, path string, framesPerBuffer int) (*AudioFeed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open microphone file %s", path)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, errors.Wrap(ErrNotWAV, path)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	if pcm.Format == nil || pcm.Format.NumChannels <= 0 || pcm.Format.SampleRate <= 0 {
		return nil, errors.Wrap(ErrNotWAV, path)
	}
	if len(pcm.Data) == 0 {
		return nil, errors.Errorf("%s holds no samples", path)
	}
	normalise16(pcm.Data, int(dec.BitDepth))

	if framesPerBuffer <= 0 {
		framesPerBuffer = 512
	}

	format := &audio.Format{NumChannels: pcm.Format.NumChannels, SampleRate: pcm.Format.SampleRate}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The request context only bounds opening; the track lives until Stop.
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	feed := NewAudioFeed("microphone", format, func() {
		cancel()
		<-done
	})

	go replay(loopCtx, feed, pcm.Data, format, framesPerBuffer, done)

	applog.Infof("Media: replaying %s as microphone (%d ch @ %d Hz, %d-bit)",
		path, format.NumChannels, format.SampleRate, dec.BitDepth)
	return feed, nil
}

func replay(ctx context.Context, feed *AudioFeed, data []int, format *audio.Format, frames int, done chan struct{}) {
	defer close(done)

	block := frames * format.NumChannels
	interval := time.Duration(frames) * time.Second / time.Duration(format.SampleRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	buf := &audio.IntBuffer{Format: format, Data: make([]int, block), SourceBitDepth: 16}
	pos := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i := range buf.Data {
				buf.Data[i] = data[pos]
				pos++
				if pos == len(data) {
					pos = 0
				}
			}
			feed.Publish(buf)
		}
	}
}

// normalise16 rescales samples decoded at bitDepth to signed 16-bit range.
// 8-bit WAV is unsigned.
func normalise16(data []int, bitDepth int) {
	switch {
	case bitDepth == 8:
		for i, v := range data {
			data[i] = (v - 128) << 8
		}
	case bitDepth > 16:
		shift := uint(bitDepth - 16)
		for i, v := range data {
			data[i] = v >> shift
		}
	}
}
