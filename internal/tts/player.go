package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
)

var speakerInit sync.Once

// Play decodes an mp3 utterance and plays it through the default
// output device. It blocks until playback finishes or ctx is canceled;
// cancellation stops the audio immediately.
func Play(ctx context.Context, audio *Audio) error {
	if audio == nil || len(audio.Data) == 0 {
		return ErrEmptyText
	}
	if audio.Format != "mp3" {
		return fmt.Errorf("tts: unsupported playback format %q", audio.Format)
	}

	streamer, format, err := mp3.Decode(nopReadCloser{bytes.NewReader(audio.Data)})
	if err != nil {
		return fmt.Errorf("decode mp3: %w", err)
	}
	defer streamer.Close()

	var initErr error
	speakerInit.Do(func() {
		initErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if initErr != nil {
		return fmt.Errorf("init speaker: %w", initErr)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

type nopReadCloser struct{ io.Reader }

func (nopReadCloser) Close() error { return nil }
