package avi

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/go-audio/riff"
	"github.com/pkg/errors"
)

// ErrNotAVI is returned by Probe for input that is not a RIFF/AVI file.
var ErrNotAVI = errors.New("not an AVI file")

// Info summarises an AVI file.
type Info struct {
	Lists   []string // top level LIST types in file order
	Streams int

	Width, Height int
	FPS           int
	Frames        int // dwTotalFrames from the main header
	VideoCodec    string

	SampleRate    int
	Channels      int
	BitsPerSample int

	VideoChunks  int
	AudioChunks  int
	AudioBytes   int
	IndexEntries int
}

// Duration is the playing time implied by the frame count.
func (i *Info) Duration() time.Duration {
	if i.FPS <= 0 {
		return 0
	}
	return time.Duration(i.Frames) * time.Second / time.Duration(i.FPS)
}

func (i *Info) String() string {
	s := fmt.Sprintf("%dx%d %s @ %d fps, %d frames (%s)",
		i.Width, i.Height, i.VideoCodec, i.FPS, i.Frames, i.Duration().Round(time.Millisecond))
	if i.Channels > 0 {
		s += fmt.Sprintf(", PCM %d Hz x %d ch %d-bit, %d bytes", i.SampleRate, i.Channels, i.BitsPerSample, i.AudioBytes)
	}
	return s + fmt.Sprintf(", %d index entries", i.IndexEntries)
}

// Probe walks the chunk tree of an AVI file.
func Probe(r io.Reader) (*Info, error) {
	p := riff.New(r)
	if err := p.ParseHeaders(); err != nil {
		return nil, errors.Wrap(ErrNotAVI, err.Error())
	}
	if string(p.Format[:]) != "AVI " {
		return nil, errors.Wrapf(ErrNotAVI, "RIFF form %q", string(p.Format[:]))
	}

	info := &Info{}
	err := eachChunk(p, func(id string, ch *riff.Chunk) error {
		switch id {
		case "LIST":
			body, err := readBody(ch)
			if err != nil {
				return err
			}
			if len(body) < 4 {
				return errors.New("avi: truncated LIST")
			}
			listType := string(body[:4])
			info.Lists = append(info.Lists, listType)
			switch listType {
			case "hdrl":
				return parseHeaderList(body[4:], info)
			case "movi":
				return parseMovi(body[4:], info)
			}
		case "idx1":
			info.IndexEntries = ch.Size / 16
			ch.Drain()
		default:
			ch.Drain()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(info.Lists) == 0 || info.Lists[0] != "hdrl" {
		return nil, errors.Wrap(ErrNotAVI, "missing hdrl list")
	}
	return info, nil
}

func eachChunk(p *riff.Parser, fn func(id string, ch *riff.Chunk) error) error {
	for {
		ch, err := p.NextChunk()
		if err != nil {
			if errors.Cause(err) == io.EOF {
				return nil
			}
			return errors.Wrap(err, "avi: read chunk")
		}
		if err := fn(string(ch.ID[:]), ch); err != nil {
			return err
		}
	}
}

func readBody(ch *riff.Chunk) ([]byte, error) {
	body := make([]byte, ch.Size)
	if _, err := io.ReadFull(ch, body); err != nil {
		return nil, errors.Wrapf(err, "avi: read %s body", string(ch.ID[:]))
	}
	return body, nil
}

func parseHeaderList(body []byte, info *Info) error {
	return eachChunk(riff.New(bytes.NewReader(body)), func(id string, ch *riff.Chunk) error {
		data, err := readBody(ch)
		if err != nil {
			return err
		}
		switch id {
		case "avih":
			if len(data) < avihSize {
				return errors.Errorf("avi: short avih (%d bytes)", len(data))
			}
			info.Frames = int(binary.LittleEndian.Uint32(data[16:]))
			info.Streams = int(binary.LittleEndian.Uint32(data[24:]))
			info.Width = int(binary.LittleEndian.Uint32(data[32:]))
			info.Height = int(binary.LittleEndian.Uint32(data[36:]))
		case "LIST":
			if len(data) >= 4 && string(data[:4]) == "strl" {
				return parseStreamList(data[4:], info)
			}
		}
		return nil
	})
}

func parseStreamList(body []byte, info *Info) error {
	var streamType string
	return eachChunk(riff.New(bytes.NewReader(body)), func(id string, ch *riff.Chunk) error {
		data, err := readBody(ch)
		if err != nil {
			return err
		}
		switch id {
		case "strh":
			if len(data) < strhSize {
				return errors.Errorf("avi: short strh (%d bytes)", len(data))
			}
			streamType = string(data[:4])
			if streamType == "vids" {
				info.VideoCodec = string(data[4:8])
				scale := binary.LittleEndian.Uint32(data[20:])
				rate := binary.LittleEndian.Uint32(data[24:])
				if scale > 0 {
					info.FPS = int(rate / scale)
				}
			}
		case "strf":
			if streamType == "auds" {
				if len(data) < wfexSize-2 {
					return errors.Errorf("avi: short audio strf (%d bytes)", len(data))
				}
				info.Channels = int(binary.LittleEndian.Uint16(data[2:]))
				info.SampleRate = int(binary.LittleEndian.Uint32(data[4:]))
				info.BitsPerSample = int(binary.LittleEndian.Uint16(data[14:]))
			}
		}
		return nil
	})
}

func parseMovi(body []byte, info *Info) error {
	return eachChunk(riff.New(bytes.NewReader(body)), func(id string, ch *riff.Chunk) error {
		switch id {
		case videoChunkID:
			info.VideoChunks++
		case audioChunkID:
			info.AudioChunks++
			info.AudioBytes += ch.Size
		}
		ch.Drain()
		return nil
	})
}
