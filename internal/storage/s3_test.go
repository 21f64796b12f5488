package storage

import "testing"

func TestCopySource(t *testing.T) {
	t.Parallel()

	tests := []struct {
		bucket, key, want string
	}{
		{"imagery", "scene.tif", "imagery/scene.tif"},
		{"imagery", "2024/06/scene 01.tif", "imagery/2024/06/scene%2001.tif"},
		{"imagery", "a+b/c?.tif", "imagery/a+b/c%3F.tif"},
	}
	for _, tt := range tests {
		if got := copySource(tt.bucket, tt.key); got != tt.want {
			t.Fatalf("copySource(%q, %q) = %q, want %q", tt.bucket, tt.key, got, tt.want)
		}
	}
}
