package alarm

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/hajimehoshi/go-mp3"
	"github.com/hajimehoshi/oto/v2"
)

// MP3Backend plays an mp3 asset once per Play call.
type MP3Backend struct {
	data []byte
	ctx  *oto.Context

	mu     sync.Mutex
	player oto.Player
}

// NewMP3Backend decodes the asset header to pick the sample rate and opens
// the audio device.
func NewMP3Backend(path string) (*MP3Backend, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read alarm sound %s: %w", path, err)
	}

	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not decode alarm sound %s: %w", path, err)
	}

	// go-mp3 always yields 16-bit stereo
	ctx, ready, err := oto.NewContext(dec.SampleRate(), 2, 2)
	if err != nil {
		return nil, fmt.Errorf("could not open audio device: %w", err)
	}
	<-ready

	return &MP3Backend{data: data, ctx: ctx}, nil
}

func (b *MP3Backend) Play() error {
	dec, err := mp3.NewDecoder(bytes.NewReader(b.data))
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.player != nil {
		b.player.Close()
	}
	b.player = b.ctx.NewPlayer(dec)
	b.player.Play()
	return nil
}

func (b *MP3Backend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.player == nil {
		return nil
	}
	b.player.Pause()
	err := b.player.Close()
	b.player = nil
	return err
}
