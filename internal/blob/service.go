package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"surfpass/internal/constants"
	"surfpass/internal/db"
)

type Kind string

const (
	KindReceipt        Kind = "receipt"
	KindReceiptPreview Kind = "receipt_preview"
)

// RefPrefix starts every receipt photo reference.
const RefPrefix = "rcp"

var (
	ErrFileTooLarge   = errors.New("blob file too large")
	ErrInvalidKind    = errors.New("invalid blob kind")
	ErrDisallowedType = errors.New("disallowed blob mime type")
	ErrExecutableFile = errors.New("executable files are not allowed")
	ErrInvalidPath    = errors.New("invalid blob path")
	ErrInvalidRef     = errors.New("invalid photo reference")
)

type StoredBlob struct {
	ID           string
	Kind         Kind
	StoragePath  string
	MimeType     string
	SizeBytes    int64
	OriginalName string
	CreatedAt    time.Time
}

type Service struct {
	rootDir        string
	maxUploadBytes int64
}

func NewService(rootDir string, maxUploadBytes int64) (*Service, error) {
	if strings.TrimSpace(rootDir) == "" {
		return nil, fmt.Errorf("blob root directory is required")
	}
	if maxUploadBytes <= 0 {
		return nil, fmt.Errorf("max upload bytes must be > 0")
	}

	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating blob root directory: %w", err)
	}

	return &Service{
		rootDir:        rootDir,
		maxUploadBytes: maxUploadBytes,
	}, nil
}

func (s *Service) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

func (s *Service) Save(_ context.Context, kind Kind, originalName string, src io.Reader) (*StoredBlob, error) {
	if !isValidKind(kind) {
		return nil, ErrInvalidKind
	}

	name := sanitizeOriginalName(originalName)
	blobID, err := db.GenerateID(RefPrefix)
	if err != nil {
		return nil, fmt.Errorf("generating blob id: %w", err)
	}

	relPath := blobRelativePath(kind, blobID)
	absPath, err := s.resolveStoragePath(relPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating blob directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(absPath), blobID+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temporary blob file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	sniff := make([]byte, 512)
	sniffN, sniffErr := io.ReadFull(src, sniff)
	if sniffErr != nil && sniffErr != io.EOF && sniffErr != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("reading blob data: %w", sniffErr)
	}
	sniff = sniff[:sniffN]

	if isExecutableSignature(sniff) {
		return nil, ErrExecutableFile
	}

	mimeType := detectMimeType(sniff)
	if !isAllowedMimeType(kind, mimeType) {
		return nil, ErrDisallowedType
	}

	fullReader := io.MultiReader(bytes.NewReader(sniff), src)
	written, err := io.Copy(tmpFile, io.LimitReader(fullReader, s.maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("writing blob file: %w", err)
	}
	if written > s.maxUploadBytes {
		return nil, ErrFileTooLarge
	}
	if err := tmpFile.Close(); err != nil {
		return nil, fmt.Errorf("closing temporary blob file: %w", err)
	}

	if err := os.Rename(tmpPath, absPath); err != nil {
		return nil, fmt.Errorf("finalizing blob file: %w", err)
	}

	return &StoredBlob{
		ID:           blobID,
		Kind:         kind,
		StoragePath:  relPath,
		MimeType:     mimeType,
		SizeBytes:    written,
		OriginalName: name,
		CreatedAt:    time.Now().UTC(),
	}, nil
}

// Open returns the stored photo for ref, or its preview when preview is set.
func (s *Service) Open(ref string, preview bool) (*os.File, error) {
	if !ValidRef(ref) {
		return nil, ErrInvalidRef
	}
	relPath := blobRelativePath(KindReceipt, ref)
	if preview {
		relPath = PreviewRelativePath(ref)
	}
	absPath, err := s.resolveStoragePath(relPath)
	if err != nil {
		return nil, err
	}
	return os.Open(absPath)
}

// Exists reports whether a receipt photo was stored under ref.
func (s *Service) Exists(ref string) bool {
	if !ValidRef(ref) {
		return false
	}
	absPath, err := s.resolveStoragePath(blobRelativePath(KindReceipt, ref))
	if err != nil {
		return false
	}
	info, err := os.Stat(absPath)
	return err == nil && info.Mode().IsRegular()
}

// SavePreview stores a generated preview next to the receipt it belongs to.
func (s *Service) SavePreview(ref string, src io.Reader) (int64, error) {
	if !ValidRef(ref) {
		return 0, ErrInvalidRef
	}
	absPath, err := s.resolveStoragePath(PreviewRelativePath(ref))
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return 0, fmt.Errorf("creating blob directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(absPath), "blob-write-*.tmp")
	if err != nil {
		return 0, fmt.Errorf("creating temporary blob file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	written, err := io.Copy(tmpFile, src)
	if err != nil {
		return 0, fmt.Errorf("writing blob file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return 0, fmt.Errorf("closing temporary blob file: %w", err)
	}

	if err := os.Rename(tmpPath, absPath); err != nil {
		return 0, fmt.Errorf("finalizing blob file: %w", err)
	}

	return written, nil
}

func (s *Service) resolveStoragePath(storagePath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(storagePath))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", ErrInvalidPath
	}

	return filepath.Join(s.rootDir, clean), nil
}

func blobRelativePath(kind Kind, blobID string) string {
	return filepath.ToSlash(filepath.Join(string(kind), blobPathPrefix(blobID), blobID))
}

func PreviewRelativePath(blobID string) string {
	return filepath.ToSlash(filepath.Join(string(KindReceiptPreview), blobPathPrefix(blobID), blobID+".jpg"))
}

// ValidRef reports whether ref has the shape of a generated receipt id, so
// it can be used as a path component.
func ValidRef(ref string) bool {
	random, ok := strings.CutPrefix(ref, RefPrefix+"_")
	if !ok || len(random) != 2*constants.IDRandomBytes {
		return false
	}
	for _, c := range random {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}

func blobPathPrefix(blobID string) string {
	randomPart := strings.TrimPrefix(blobID, RefPrefix+"_")
	if len(randomPart) < 2 {
		return "xx"
	}
	return randomPart[:2]
}

func sanitizeOriginalName(name string) string {
	name = strings.TrimSpace(filepath.Base(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "receipt"
	}
	if len(name) > 255 {
		return name[:255]
	}
	return name
}

func detectMimeType(sniff []byte) string {
	if len(sniff) == 0 {
		return "application/octet-stream"
	}

	return trimMimeParams(http.DetectContentType(sniff))
}

func isExecutableSignature(sniff []byte) bool {
	if len(sniff) < 2 {
		return false
	}

	if sniff[0] == 'M' && sniff[1] == 'Z' {
		return true // PE/COFF (Windows)
	}
	if len(sniff) >= 4 {
		if bytes.Equal(sniff[:4], []byte{0x7f, 'E', 'L', 'F'}) {
			return true // ELF
		}

		machoMagics := [][]byte{
			{0xfe, 0xed, 0xfa, 0xce},
			{0xce, 0xfa, 0xed, 0xfe},
			{0xfe, 0xed, 0xfa, 0xcf},
			{0xcf, 0xfa, 0xed, 0xfe},
			{0xca, 0xfe, 0xba, 0xbe},
			{0xbe, 0xba, 0xfe, 0xca},
			{0xca, 0xfe, 0xba, 0xbf},
			{0xbf, 0xba, 0xfe, 0xca},
		}
		for _, magic := range machoMagics {
			if bytes.Equal(sniff[:4], magic) {
				return true
			}
		}
	}

	if sniff[0] == '#' && sniff[1] == '!' {
		return true // shebang scripts
	}

	return false
}

func trimMimeParams(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}

func isValidKind(kind Kind) bool {
	return kind == KindReceipt
}

func isAllowedMimeType(kind Kind, mimeType string) bool {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if mimeType == "" {
		return false
	}

	disallowed := map[string]struct{}{
		"image/svg+xml":               {},
		"text/html":                   {},
		"application/xhtml+xml":       {},
		"application/javascript":      {},
		"text/javascript":             {},
		"application/x-javascript":    {},
		"text/ecmascript":             {},
		"application/ecmascript":      {},
		"application/x-httpd-php":     {},
		"application/x-sh":            {},
		"application/x-msdownload":    {},
		"application/x-msdos-program": {},
	}
	if _, blocked := disallowed[mimeType]; blocked {
		return false
	}

	return kind == KindReceipt && strings.HasPrefix(mimeType, "image/")
}
