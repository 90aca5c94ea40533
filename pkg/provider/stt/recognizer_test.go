package stt_test

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/MrWong99/voxrecap/pkg/audio/wavio"
	"github.com/MrWong99/voxrecap/pkg/provider/stt"
	"github.com/MrWong99/voxrecap/pkg/provider/stt/mock"
)

func writeWav(t *testing.T, rate, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := wavio.WriteMono16(path, rate, make([]int16, n)); err != nil {
		t.Fatalf("WriteMono16: %v", err)
	}
	return path
}

func staticLoader(m stt.Model) stt.ModelLoader {
	return func(context.Context) (stt.Model, error) { return m, nil }
}

func TestRecognize_ChunksAndFinalFlag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		samples int
		sizes   []int
	}{
		{name: "partial last chunk", samples: 10000, sizes: []int{4096, 4096, 1808}},
		{name: "exact multiple", samples: 8192, sizes: []int{4096, 4096}},
		{name: "empty file", samples: 0, sizes: []int{0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			model := &mock.Model{Result: &stt.Result{Text: "olá mundo"}}
			r := stt.NewWaveformRecognizer(staticLoader(model))
			res, err := r.Recognize(context.Background(), writeWav(t, 16000, tc.samples))
			if err != nil {
				t.Fatalf("Recognize: %v", err)
			}
			if res.Text != "olá mundo" {
				t.Errorf("Text = %q", res.Text)
			}

			dec := model.Decoders[0]
			if !slices.Equal(dec.ChunkSizes, tc.sizes) {
				t.Errorf("chunk sizes = %v, want %v", dec.ChunkSizes, tc.sizes)
			}
			for i, final := range dec.Finals {
				if want := i == len(dec.Finals)-1; final != want {
					t.Errorf("chunk %d final = %v, want %v", i, final, want)
				}
			}
			if !dec.Closed {
				t.Error("decoder not closed")
			}
		})
	}
}

func TestRecognize_SampleRateMismatch(t *testing.T) {
	t.Parallel()

	model := &mock.Model{}
	r := stt.NewWaveformRecognizer(staticLoader(model))
	_, err := r.Recognize(context.Background(), writeWav(t, 8000, 100))

	var recErr *stt.RecognitionError
	if !errors.As(err, &recErr) {
		t.Fatalf("err = %v, want *RecognitionError", err)
	}
	if !errors.Is(err, stt.ErrSampleRateMismatch) {
		t.Errorf("err = %v, want ErrSampleRateMismatch", err)
	}
	if len(model.Decoders) != 0 {
		t.Error("decoder created despite mismatch")
	}
}

func TestRecognize_DecoderClosedOnError(t *testing.T) {
	t.Parallel()

	model := &mock.Model{AcceptErr: errors.New("boom")}
	r := stt.NewWaveformRecognizer(staticLoader(model))
	if _, err := r.Recognize(context.Background(), writeWav(t, 16000, 10)); err == nil {
		t.Fatal("expected error")
	}
	if !model.Decoders[0].Closed {
		t.Error("decoder not closed after failure")
	}
}

func TestRecognize_InvalidFile(t *testing.T) {
	t.Parallel()

	r := stt.NewWaveformRecognizer(staticLoader(&mock.Model{}))
	_, err := r.Recognize(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))
	var recErr *stt.RecognitionError
	if !errors.As(err, &recErr) {
		t.Fatalf("err = %v, want *RecognitionError", err)
	}
}

func TestModel_LoadedOnceConcurrently(t *testing.T) {
	t.Parallel()

	var loads atomic.Int32
	model := &mock.Model{}
	r := stt.NewWaveformRecognizer(func(context.Context) (stt.Model, error) {
		loads.Add(1)
		return model, nil
	})

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Model(context.Background()); err != nil {
				t.Errorf("Model: %v", err)
			}
		}()
	}
	wg.Wait()
	if _, err := r.Model(context.Background()); err != nil {
		t.Fatalf("Model: %v", err)
	}
	if got := loads.Load(); got != 1 {
		t.Errorf("loads = %d, want 1", got)
	}

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !model.Closed {
		t.Error("model not closed")
	}
}

func TestModel_FailedLoadIsRetried(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := stt.NewWaveformRecognizer(func(context.Context) (stt.Model, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("missing model")
		}
		return &mock.Model{}, nil
	})

	if _, err := r.Model(context.Background()); !errors.Is(err, stt.ErrModelUnavailable) {
		t.Fatalf("first load err = %v, want ErrModelUnavailable", err)
	}
	if _, err := r.Model(context.Background()); err != nil {
		t.Fatalf("second load: %v", err)
	}
}

func TestResult_Empty(t *testing.T) {
	t.Parallel()

	var nilRes *stt.Result
	if !nilRes.Empty() {
		t.Error("nil result should be empty")
	}
	if (&stt.Result{Text: "x"}).Empty() {
		t.Error("result with text should not be empty")
	}
}
