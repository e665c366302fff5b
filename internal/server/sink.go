package server

import (
	"fmt"
	"net/http"
	"strconv"
)

// responseSink writes an export as a download
type responseSink struct {
	w http.ResponseWriter
}

func (s *responseSink) WriteText(name, contentType, text string) error {
	return s.WriteBinary(name, contentType+"; charset=utf-8", []byte(text))
}

func (s *responseSink) WriteBinary(name, contentType string, data []byte) error {
	s.w.Header().Set("Content-Type", contentType)
	s.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	s.w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	s.w.WriteHeader(http.StatusOK)
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("writing response: %w", err)
	}
	return nil
}
