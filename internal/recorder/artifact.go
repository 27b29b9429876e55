package recorder

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"studio/internal/container/avi"
)

// ErrNoChunks is returned when assembling an empty take.
var ErrNoChunks = errors.New("no recorded chunks")

// Artifact is a finished recording.
type Artifact struct {
	ID         string
	MimeType   string
	Data       []byte
	Frames     int
	AudioBytes int
	Duration   time.Duration
	CreatedAt  time.Time
}

// URL is the path the artifact is served under.
func (a *Artifact) URL() string { return "/artifacts/" + a.ID }

// Filename is the name the artifact is saved or downloaded as.
func (a *Artifact) Filename() string {
	return "recording-" + a.CreatedAt.Format("20060102-150405") + "-" + a.ID[:8] + ".avi"
}

// Assemble writes chunks, in order, into one AVI file laid out by cfg.
func Assemble(cfg avi.Config, chunks []Chunk) (*Artifact, error) {
	if len(chunks) == 0 {
		return nil, ErrNoChunks
	}
	w, err := avi.NewWriter(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "assemble")
	}
	for i, c := range chunks {
		switch c.Kind {
		case KindVideo:
			err = w.WriteFrame(c.Data)
		case KindAudio:
			err = w.WriteAudio(c.Data)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "assemble chunk %d (%s)", i, c.Kind)
		}
	}
	return &Artifact{
		ID:         uuid.NewString(),
		MimeType:   avi.MimeType,
		Data:       w.Bytes(),
		Frames:     w.Frames(),
		AudioBytes: w.AudioBytes(),
		Duration:   w.Duration(),
		CreatedAt:  time.Now(),
	}, nil
}

// Save writes the artifact into dir and returns the file path.
func (a *Artifact) Save(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "create %s", dir)
	}
	path := filepath.Join(dir, a.Filename())
	if err := os.WriteFile(path, a.Data, 0o644); err != nil {
		return "", errors.Wrapf(err, "save artifact %s", a.ID)
	}
	return path, nil
}
