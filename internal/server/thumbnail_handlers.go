package server

import (
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"polaris/internal/collection"
	"polaris/internal/metadata"
	"polaris/internal/perr"
	"polaris/internal/thumbnail"
	"polaris/pkg/polaris"
)

// handleThumbnail serves a resized cover image, per C5. The virtual
// path is either an ordinary path to an image file or the synthetic
// "embedded:<song_virtual_path>" form Song.Artwork uses for art that
// only exists inside the audio file's own tags.
func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request, _ *polaris.User) {
	virtualPath := r.PathValue("path")
	size := sizeClassFromQuery(r.URL.Query().Get("size"))
	pad := r.URL.Query().Get("pad") == "y"

	snap, err := s.snapshot()
	if err != nil {
		writeError(w, err)
		return
	}

	realPath, source, err := s.resolveArtworkSource(snap, virtualPath)
	if err != nil {
		writeError(w, err)
		return
	}

	info, err := os.Stat(realPath)
	if err != nil {
		writeError(w, perr.NewNotFound("artwork file not found: "+virtualPath))
		return
	}

	key := polaris.ThumbnailKey{RealPath: realPath, MTimeNs: info.ModTime().UnixNano(), SizeClass: size, Pad: pad}
	path, err := s.thumbs.Get(key, source)
	if err != nil {
		writeError(w, perr.WrapInternal("producing thumbnail", err))
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	http.ServeFile(w, r, path)
}

// resolveArtworkSource returns the real file backing virtualPath along
// with a decode function the thumbnail cache invokes on a cache miss.
// For "embedded:" paths the real file is the audio file itself and the
// decode function reads its embedded picture instead of the file bytes.
func (s *Server) resolveArtworkSource(snap *collection.Snapshot, virtualPath string) (string, func() (image.Image, error), error) {
	if embedded, ok := strings.CutPrefix(virtualPath, "embedded:"); ok {
		song, ok := snap.Songs[strings.Trim(embedded, "/")]
		if !ok {
			return "", nil, perr.NewNotFound("song not found: " + embedded)
		}
		source := func() (image.Image, error) {
			pic, err := metadata.ReadEmbeddedPicture(song.RealPath)
			if err != nil {
				return nil, err
			}
			return thumbnail.DecodeJPEGOrPNG(strings.NewReader(string(pic.Data)))
		}
		return song.RealPath, source, nil
	}

	realPath, err := s.resolveRealPath(virtualPath)
	if err != nil {
		return "", nil, err
	}
	source := func() (image.Image, error) {
		f, err := os.Open(realPath)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return thumbnail.DecodeJPEGOrPNG(f)
	}
	return realPath, source, nil
}

func sizeClassFromQuery(v string) polaris.SizeClass {
	switch v {
	case "tiny":
		return polaris.SizeTiny
	case "small":
		return polaris.SizeSmall
	case "large":
		return polaris.SizeLarge
	default:
		return polaris.SizeNative
	}
}

// resolveRealPath converts an ordinary (non-embedded) virtual path into
// its backing real path via the current mount table, the inverse of the
// scanner's toVirtualPath.
func (s *Server) resolveRealPath(virtualPath string) (string, error) {
	virtualPath = strings.Trim(virtualPath, "/")
	name, rest, _ := strings.Cut(virtualPath, "/")
	mounts := s.cfg.Mounts()
	source, ok := mounts[name]
	if !ok {
		return "", perr.NewNotFound("unknown mount in path: " + virtualPath)
	}
	if rest == "" {
		return source, nil
	}
	return filepath.Join(source, rest), nil
}
