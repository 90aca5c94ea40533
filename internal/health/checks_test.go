package health

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFilesExist(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	model := filepath.Join(dir, "ggml-base.bin")
	if err := os.WriteFile(model, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		paths   []string
		wantErr bool
	}{
		{"present", []string{model}, false},
		{"empty ignored", []string{model, ""}, false},
		{"missing", []string{model, filepath.Join(dir, "tokens.txt")}, true},
		{"directory", []string{dir}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := FilesExist("model", tt.paths...).Check(context.Background())
			if (err != nil) != tt.wantErr {
				t.Errorf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFlag(t *testing.T) {
	t.Parallel()
	ready := false
	c := Flag("discord", "gateway not connected", func() bool { return ready })
	if err := c.Check(context.Background()); err == nil || err.Error() != "gateway not connected" {
		t.Errorf("Check() = %v", err)
	}
	ready = true
	if err := c.Check(context.Background()); err != nil {
		t.Errorf("Check() = %v", err)
	}
}
