package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"polaris/internal/perr"
	"polaris/pkg/polaris"
)

// handleAudio streams a song's bytes, supporting single-range requests
// for seeking, adapted from the teacher's handleRangeRequest.
func (s *Server) handleAudio(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	snap, err := s.snapshot()
	if err != nil {
		writeError(w, err)
		return
	}
	song, ok := snap.Songs[strings.Trim(r.PathValue("path"), "/")]
	if !ok {
		writeError(w, perr.NewNotFound("song not found: "+r.PathValue("path")))
		return
	}

	file, err := os.Open(song.RealPath)
	if err != nil {
		writeError(w, perr.WrapIO("opening audio file", err))
		return
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		writeError(w, perr.WrapIO("reading audio file info", err))
		return
	}

	w.Header().Set("Content-Type", contentTypeFor(song.RealPath))
	w.Header().Set("Accept-Ranges", "bytes")

	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		serveRange(w, file, stat.Size(), rangeHeader)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(stat.Size(), 10))
	if _, err := io.Copy(w, file); err != nil {
		s.logger.WithError(err).Warn("error streaming audio file")
	}
}

// serveRange implements single-range byte serving, the subset HTML5
// audio elements rely on for seeking.
func serveRange(w http.ResponseWriter, file *os.File, fileSize int64, rangeHeader string) {
	raw := strings.TrimPrefix(rangeHeader, "bytes=")
	parts := strings.SplitN(raw, "-", 2)

	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		start = 0
	}

	end := fileSize - 1
	if len(parts) > 1 && parts[1] != "" {
		if v, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
			end = v
		}
	}

	if start < 0 || end >= fileSize || start > end {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", fileSize))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}

	contentLength := end - start + 1
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, fileSize))
	w.Header().Set("Content-Length", strconv.FormatInt(contentLength, 10))
	w.WriteHeader(http.StatusPartialContent)

	if _, err := file.Seek(start, io.SeekStart); err != nil {
		return
	}
	io.CopyN(w, file, contentLength)
}

func contentTypeFor(path string) string {
	switch {
	case strings.HasSuffix(path, ".mp3"):
		return "audio/mpeg"
	case strings.HasSuffix(path, ".flac"):
		return "audio/flac"
	case strings.HasSuffix(path, ".ogg") || strings.HasSuffix(path, ".opus"):
		return "audio/ogg"
	case strings.HasSuffix(path, ".wav"):
		return "audio/wav"
	case strings.HasSuffix(path, ".m4a") || strings.HasSuffix(path, ".m4b") || strings.HasSuffix(path, ".mp4"):
		return "audio/mp4"
	default:
		return "application/octet-stream"
	}
}

// handlePeaks is out-of-core-scope per 6's endpoint table; it is listed
// for completeness but every implementation the pack exercises needs a
// decoded-PCM waveform extractor this core doesn't carry.
func (s *Server) handlePeaks(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	writeError(w, perr.NewUnsupported("waveform peaks are not implemented"))
}
