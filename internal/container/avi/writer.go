// Package avi writes and inspects the recorder's output container: an AVI
// (RIFF) file carrying Motion-JPEG video and 16-bit little endian PCM audio.
package avi

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"
)

// MimeType of files produced by Writer.
const MimeType = "video/avi"

const (
	videoChunkID = "00dc"
	audioChunkID = "01wb"

	avihSize = 56
	strhSize = 56
	bmihSize = 40
	wfexSize = 18

	flagHasIndex   = 0x10 // AVIF_HASINDEX
	flagKeyframe   = 0x10 // AVIIF_KEYFRAME
	pcmFormatTag   = 1
	pcmBitDepth    = 16
	defaultQuality = 0xFFFFFFFF
)

// Config describes the streams of a file.
type Config struct {
	Width, Height int
	FPS           int

	// Audio is omitted when SampleRate or Channels is zero.
	SampleRate int
	Channels   int
}

func (c Config) hasAudio() bool { return c.SampleRate > 0 && c.Channels > 0 }

func (c Config) blockAlign() int { return c.Channels * pcmBitDepth / 8 }

type indexEntry struct {
	id     string
	offset uint32
	size   uint32
}

// Writer accumulates chunks in memory and lays out the file on Bytes.
type Writer struct {
	cfg Config

	movi       bytes.Buffer
	index      []indexEntry
	frames     int
	audioBytes int
	maxFrame   int
	maxAudio   int
}

// NewWriter validates cfg and returns an empty writer.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, errors.Errorf("avi: invalid frame size %dx%d", cfg.Width, cfg.Height)
	}
	if cfg.FPS <= 0 {
		return nil, errors.Errorf("avi: invalid frame rate %d", cfg.FPS)
	}
	if cfg.SampleRate < 0 || cfg.Channels < 0 {
		return nil, errors.Errorf("avi: invalid audio format %d Hz x %d", cfg.SampleRate, cfg.Channels)
	}
	return &Writer{cfg: cfg}, nil
}

// WriteFrame appends one JPEG encoded video frame.
func (w *Writer) WriteFrame(jpeg []byte) error {
	if len(jpeg) == 0 {
		return errors.New("avi: empty video frame")
	}
	w.appendChunk(videoChunkID, jpeg)
	w.frames++
	if len(jpeg) > w.maxFrame {
		w.maxFrame = len(jpeg)
	}
	return nil
}

// WriteAudio appends a block of interleaved 16-bit little endian PCM.
func (w *Writer) WriteAudio(pcm []byte) error {
	if !w.cfg.hasAudio() {
		return errors.New("avi: file has no audio stream")
	}
	if len(pcm) == 0 {
		return nil
	}
	if len(pcm)%w.cfg.blockAlign() != 0 {
		return errors.Errorf("avi: audio block of %d bytes is not a whole number of frames", len(pcm))
	}
	w.appendChunk(audioChunkID, pcm)
	w.audioBytes += len(pcm)
	if len(pcm) > w.maxAudio {
		w.maxAudio = len(pcm)
	}
	return nil
}

// Frames returns the number of video frames written.
func (w *Writer) Frames() int { return w.frames }

// AudioBytes returns the number of PCM bytes written.
func (w *Writer) AudioBytes() int { return w.audioBytes }

// Duration is the playing time of the video stream.
func (w *Writer) Duration() time.Duration {
	return time.Duration(w.frames) * time.Second / time.Duration(w.cfg.FPS)
}

func (w *Writer) appendChunk(id string, data []byte) {
	// Offsets in idx1 are relative to the "movi" list type field.
	offset := uint32(4 + w.movi.Len())
	w.movi.WriteString(id)
	le32(&w.movi, uint32(len(data)))
	w.movi.Write(data)
	if len(data)%2 == 1 {
		w.movi.WriteByte(0)
	}
	w.index = append(w.index, indexEntry{id: id, offset: offset, size: uint32(len(data))})
}

// Bytes lays out the complete file.
func (w *Writer) Bytes() []byte {
	var out bytes.Buffer
	_, _ = w.WriteTo(&out)
	return out.Bytes()
}

// WriteTo writes the complete file to dst.
func (w *Writer) WriteTo(dst io.Writer) (int64, error) {
	hdrl := w.headerList()

	var idx bytes.Buffer
	for _, e := range w.index {
		idx.WriteString(e.id)
		le32(&idx, flagKeyframe)
		le32(&idx, e.offset)
		le32(&idx, e.size)
	}

	var body bytes.Buffer
	body.WriteString("AVI ")
	writeList(&body, "hdrl", hdrl)
	writeList(&body, "movi", w.movi.Bytes())
	writeChunk(&body, "idx1", idx.Bytes())

	var file bytes.Buffer
	writeChunk(&file, "RIFF", body.Bytes())
	n, err := file.WriteTo(dst)
	return n, errors.Wrap(err, "avi: write file")
}

func (w *Writer) headerList() []byte {
	cfg := w.cfg
	streams := 1
	if cfg.hasAudio() {
		streams = 2
	}

	var avih bytes.Buffer
	le32(&avih, uint32(time.Second/time.Microsecond)/uint32(cfg.FPS)) // dwMicroSecPerFrame
	le32(&avih, uint32(w.maxBytesPerSec()))                            // dwMaxBytesPerSec
	le32(&avih, 0)                                                     // dwPaddingGranularity
	le32(&avih, flagHasIndex)                                          // dwFlags
	le32(&avih, uint32(w.frames))                                      // dwTotalFrames
	le32(&avih, 0)                                                     // dwInitialFrames
	le32(&avih, uint32(streams))                                       // dwStreams
	le32(&avih, uint32(max(w.maxFrame, w.maxAudio)))                   // dwSuggestedBufferSize
	le32(&avih, uint32(cfg.Width))
	le32(&avih, uint32(cfg.Height))
	avih.Write(make([]byte, 16)) // dwReserved[4]

	var hdrl bytes.Buffer
	writeChunk(&hdrl, "avih", avih.Bytes())
	writeList(&hdrl, "strl", w.videoStreamList())
	if cfg.hasAudio() {
		writeList(&hdrl, "strl", w.audioStreamList())
	}
	return hdrl.Bytes()
}

func (w *Writer) videoStreamList() []byte {
	cfg := w.cfg

	var strh bytes.Buffer
	strh.WriteString("vids")
	strh.WriteString("MJPG")
	le32(&strh, 0) // dwFlags
	le16(&strh, 0) // wPriority
	le16(&strh, 0) // wLanguage
	le32(&strh, 0) // dwInitialFrames
	le32(&strh, 1) // dwScale
	le32(&strh, uint32(cfg.FPS))
	le32(&strh, 0) // dwStart
	le32(&strh, uint32(w.frames))
	le32(&strh, uint32(w.maxFrame))
	le32(&strh, defaultQuality)
	le32(&strh, 0) // dwSampleSize
	le16(&strh, 0) // rcFrame
	le16(&strh, 0)
	le16(&strh, uint16(cfg.Width))
	le16(&strh, uint16(cfg.Height))

	var strf bytes.Buffer
	le32(&strf, bmihSize)
	le32(&strf, uint32(cfg.Width))
	le32(&strf, uint32(cfg.Height))
	le16(&strf, 1)  // biPlanes
	le16(&strf, 24) // biBitCount
	strf.WriteString("MJPG")
	le32(&strf, uint32(cfg.Width*cfg.Height*3))
	le32(&strf, 0) // biXPelsPerMeter
	le32(&strf, 0) // biYPelsPerMeter
	le32(&strf, 0) // biClrUsed
	le32(&strf, 0) // biClrImportant

	var strl bytes.Buffer
	writeChunk(&strl, "strh", strh.Bytes())
	writeChunk(&strl, "strf", strf.Bytes())
	return strl.Bytes()
}

func (w *Writer) audioStreamList() []byte {
	cfg := w.cfg
	align := cfg.blockAlign()

	var strh bytes.Buffer
	strh.WriteString("auds")
	le32(&strh, 0) // fccHandler
	le32(&strh, 0) // dwFlags
	le16(&strh, 0) // wPriority
	le16(&strh, 0) // wLanguage
	le32(&strh, 0) // dwInitialFrames
	le32(&strh, uint32(align))
	le32(&strh, uint32(cfg.SampleRate*align))
	le32(&strh, 0) // dwStart
	le32(&strh, uint32(w.audioBytes/align))
	le32(&strh, uint32(w.maxAudio))
	le32(&strh, defaultQuality)
	le32(&strh, uint32(align))
	strh.Write(make([]byte, 8)) // rcFrame

	var strf bytes.Buffer
	le16(&strf, pcmFormatTag)
	le16(&strf, uint16(cfg.Channels))
	le32(&strf, uint32(cfg.SampleRate))
	le32(&strf, uint32(cfg.SampleRate*align))
	le16(&strf, uint16(align))
	le16(&strf, pcmBitDepth)
	le16(&strf, 0) // cbSize

	var strl bytes.Buffer
	writeChunk(&strl, "strh", strh.Bytes())
	writeChunk(&strl, "strf", strf.Bytes())
	return strl.Bytes()
}

func (w *Writer) maxBytesPerSec() int {
	rate := w.maxFrame * w.cfg.FPS
	if w.cfg.hasAudio() {
		rate += w.cfg.SampleRate * w.cfg.blockAlign()
	}
	return rate
}

func writeChunk(buf *bytes.Buffer, id string, data []byte) {
	buf.WriteString(id)
	le32(buf, uint32(len(data)))
	buf.Write(data)
	if len(data)%2 == 1 {
		buf.WriteByte(0)
	}
}

func writeList(buf *bytes.Buffer, listType string, data []byte) {
	buf.WriteString("LIST")
	le32(buf, uint32(4+len(data)))
	buf.WriteString(listType)
	buf.Write(data)
}

func le32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func le16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

// EncodePCM16 packs 16-bit samples as interleaved little endian bytes,
// saturating values outside the int16 range.
func EncodePCM16(samples []int) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		binary.LittleEndian.PutUint16(out[2*i:], uint16(int16(s)))
	}
	return out
}
