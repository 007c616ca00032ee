package blob

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, G: 0, B: 0, A: 255})

	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("png.Encode() error = %v", err)
	}
	return buf.Bytes()
}

func TestSaveRejectsExecutableSignature(t *testing.T) {
	svc, err := NewService(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	_, err = svc.Save(context.Background(), KindReceipt, "receipt.png", bytes.NewReader([]byte("MZ\x90\x00\x03\x00")))
	if !errors.Is(err, ErrExecutableFile) {
		t.Fatalf("Save() error = %v, want ErrExecutableFile", err)
	}
}

func TestSaveRejectsNonImageBytesEvenWithPngExtension(t *testing.T) {
	svc, err := NewService(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	_, err = svc.Save(context.Background(), KindReceipt, "receipt.png", bytes.NewReader([]byte{0x00, 0x01, 0x02, 0x03}))
	if !errors.Is(err, ErrDisallowedType) {
		t.Fatalf("Save() error = %v, want ErrDisallowedType", err)
	}
}

func TestSaveRejectsOversizedUpload(t *testing.T) {
	svc, err := NewService(t.TempDir(), 32)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	_, err = svc.Save(context.Background(), KindReceipt, "receipt.png", bytes.NewReader(encodePNG(t, 64, 64)))
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("Save() error = %v, want ErrFileTooLarge", err)
	}
}

func TestSaveOpenAndPreviewRoundTrip(t *testing.T) {
	svc, err := NewService(t.TempDir(), 1024*1024)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}

	data := encodePNG(t, 800, 400)
	stored, err := svc.Save(context.Background(), KindReceipt, "receipt.png", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if stored.MimeType != "image/png" {
		t.Fatalf("stored.MimeType = %q, want image/png", stored.MimeType)
	}
	if !ValidRef(stored.ID) || !svc.Exists(stored.ID) {
		t.Fatalf("stored ref %q not found", stored.ID)
	}

	f, err := svc.Open(stored.ID, false)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	got, _ := io.ReadAll(f)
	f.Close()
	if !bytes.Equal(got, data) {
		t.Fatal("Open() returned different bytes")
	}

	preview, err := GeneratePreview(bytes.NewReader(data), 0, 0)
	if err != nil {
		t.Fatalf("GeneratePreview() error = %v", err)
	}
	if preview.Width != DefaultPreviewMaxEdge || preview.Height != DefaultPreviewMaxEdge/2 {
		t.Fatalf("preview = %dx%d", preview.Width, preview.Height)
	}
	if _, err := svc.SavePreview(stored.ID, bytes.NewReader(preview.Data)); err != nil {
		t.Fatalf("SavePreview() error = %v", err)
	}
	pf, err := svc.Open(stored.ID, true)
	if err != nil {
		t.Fatalf("Open(preview) error = %v", err)
	}
	pf.Close()
}

func TestValidRef(t *testing.T) {
	tests := map[string]bool{
		"rcp_0123456789abcdef": true,
		"rcp_0123456789ABCDEF": false,
		"rcp_../../etc/passwd": false,
		"exp_0123456789abcdef": false,
		"":                     false,
	}
	for ref, want := range tests {
		if got := ValidRef(ref); got != want {
			t.Errorf("ValidRef(%q) = %v, want %v", ref, got, want)
		}
	}
}
