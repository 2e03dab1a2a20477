package camera

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/dudu/facebridge/internal/config"
)

func writeImage(t *testing.T, dir, name string, w, h int) {
	t.Helper()
	if err := imaging.Save(imaging.New(w, h, color.White), filepath.Join(dir, name)); err != nil {
		t.Fatalf("save %s: %v", name, err)
	}
}

func TestReplayLoops(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png", 64, 48)
	writeImage(t, dir, "b.jpg", 32, 24)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("skip"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := NewReplay(dir, 0)
	ctx := context.Background()
	if err := r.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer r.Close()

	wantWidths := []int{64, 32, 64}
	for i, want := range wantWidths {
		f, err := r.Read(ctx)
		if err != nil {
			t.Fatalf("Read %d: %v", i, err)
		}
		if f.Width != want {
			t.Errorf("frame %d width = %d, want %d", i, f.Width, want)
		}
		if f.Seq != uint64(i+1) {
			t.Errorf("frame %d seq = %d", i, f.Seq)
		}
	}
}

func TestReplayStartFailsWithoutImages(t *testing.T) {
	r := NewReplay(t.TempDir(), 30)
	if err := r.Start(context.Background()); err == nil {
		t.Fatal("expected error for empty directory")
	}
	if _, err := r.Read(context.Background()); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Read err = %v, want ErrNotStarted", err)
	}
}

func TestReplayClosed(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png", 8, 8)

	r := NewReplay(dir, 30)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Close()

	if _, err := r.Read(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Read err = %v, want ErrClosed", err)
	}
	if err := r.Start(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("Start err = %v, want ErrClosed", err)
	}
}

func TestReplayReadHonoursContext(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, dir, "a.png", 8, 8)

	r := NewReplay(dir, 1)
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := r.Read(context.Background()); err != nil {
		t.Fatalf("first Read: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Read(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Read err = %v, want context.Canceled", err)
	}
}

func TestDevicesFor(t *testing.T) {
	d := Devices{Front: 0, Back: 2}
	if d.For(config.FacingFront) != 0 || d.For(config.FacingBack) != 2 {
		t.Errorf("For = %d/%d", d.For(config.FacingFront), d.For(config.FacingBack))
	}
}
