package ingest

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gen2brain/heic"
)

// MaxFileSize is the largest document accepted for extraction.
const MaxFileSize = 10 << 20

// AllowedMediaTypes are the document types the extraction services accept.
var AllowedMediaTypes = []string{
	"image/jpeg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
}

// File is a document selected by the user.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Payload is a document ready to send to an extraction service.
type Payload struct {
	MediaType string
	Data      string // base64
	Size      int
}

// UnsupportedFileError is returned for documents whose media type is not
// in AllowedMediaTypes.
type UnsupportedFileError struct {
	Name      string
	MediaType string
}

func (e *UnsupportedFileError) Error() string {
	return fmt.Sprintf("unsupported file type %q for %s: supported types are JPEG, PNG, GIF, WebP and PDF", e.MediaType, e.Name)
}

// FileTooLargeError is returned for documents over the configured limit.
type FileTooLargeError struct {
	Name  string
	Size  int
	Limit int
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("%s is too large (%s); maximum size is %s",
		e.Name, humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(e.Limit)))
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithHEICConversion converts HEIC/HEIF photos to PNG instead of rejecting them.
func WithHEICConversion() Option {
	return func(i *Ingestor) {
		i.convertHEIC = true
	}
}

// WithMaxSize rejects documents larger than n bytes. Zero disables the check.
func WithMaxSize(n int) Option {
	return func(i *Ingestor) {
		i.maxSize = n
	}
}

// Ingestor validates and encodes user documents.
type Ingestor struct {
	convertHEIC bool
	maxSize     int
}

// NewIngestor creates an Ingestor.
func NewIngestor(opts ...Option) *Ingestor {
	i := &Ingestor{}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Ingest validates file and encodes it for transport. A nil or empty file is
// a no-op and returns a nil payload.
func (i *Ingestor) Ingest(file *File) (*Payload, error) {
	if file == nil || len(file.Data) == 0 {
		return nil, nil
	}
	if i.maxSize > 0 && len(file.Data) > i.maxSize {
		return nil, &FileTooLargeError{Name: file.Name, Size: len(file.Data), Limit: i.maxSize}
	}

	data := file.Data
	mediaType := ResolveMediaType(file)

	if isHEIC(data, mediaType) {
		if !i.convertHEIC {
			return nil, &UnsupportedFileError{Name: file.Name, MediaType: mediaType}
		}
		converted, err := heicToPNG(data)
		if err != nil {
			return nil, fmt.Errorf("converting %s: %w", file.Name, err)
		}
		slog.Info("Converted HEIC upload", "filename", file.Name, "from_bytes", len(data), "to_bytes", len(converted))
		data = converted
		mediaType = "image/png"
	}

	if !slices.Contains(AllowedMediaTypes, mediaType) {
		return nil, &UnsupportedFileError{Name: file.Name, MediaType: mediaType}
	}

	return &Payload{
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(data),
		Size:      len(data),
	}, nil
}

// ResolveMediaType returns the declared content type, lower-cased and
// without parameters, falling back to content sniffing and then the file
// extension.
func ResolveMediaType(file *File) string {
	declared := strings.ToLower(strings.TrimSpace(file.ContentType))
	if declared != "" {
		if mt, _, err := mime.ParseMediaType(declared); err == nil {
			declared = mt
		}
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}

	if sniffed := sniff(file.Data); sniffed != "" {
		return sniffed
	}

	switch strings.ToLower(filepath.Ext(file.Name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".pdf":
		return "application/pdf"
	case ".heic":
		return "image/heic"
	case ".heif":
		return "image/heif"
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}

func sniff(data []byte) string {
	if isHEICFormat(data) {
		return "image/heic"
	}
	mt := http.DetectContentType(data)
	if mt == "application/octet-stream" || strings.HasPrefix(mt, "text/plain") {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		return parsed
	}
	return mt
}

// isHEICFormat checks the ftyp box for a HEIC/HEIF brand.
func isHEICFormat(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heix", "heif", "mif1", "msf1":
		return true
	}
	return false
}

func isHEIC(data []byte, mediaType string) bool {
	return mediaType == "image/heic" || mediaType == "image/heif" || isHEICFormat(data)
}

func heicToPNG(data []byte) ([]byte, error) {
	img, err := heic.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding HEIC/HEIF image: %w", err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}
