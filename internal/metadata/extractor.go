// Package metadata implements Polaris's tag & art reader (C1): decoding
// song metadata and embedded art from an audio file, and resolving the
// adjacent cover art file for a directory.
package metadata

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"

	"polaris/internal/perr"
)

// supportedExtensions is the dispatch table named in SPEC_FULL.md 4.1.
var supportedExtensions = map[string]bool{
	".flac": true, ".mp3": true, ".mp4": true, ".m4a": true, ".m4b": true,
	".mpc": true, ".ogg": true, ".opus": true, ".ape": true, ".wav": true, ".aiff": true,
}

// Picture is an embedded or adjacent cover image.
type Picture struct {
	Data     []byte
	MIMEType string
}

// Extractor decodes metadata from audio files. It is stateless and safe
// for concurrent use by every scanner worker.
type Extractor struct {
	logger *logrus.Logger
}

// NewExtractor creates a metadata extractor that logs through logger.
func NewExtractor(logger *logrus.Logger) *Extractor {
	if logger == nil {
		logger = logrus.New()
	}
	return &Extractor{logger: logger}
}

// IsSupported reports whether filePath's extension is one C1 can read.
func IsSupported(filePath string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(filePath))]
}

// Extracted is everything C1 produces for one file, prior to the scanner
// filling in path-derived fields (virtual path, parent, date_added).
type Extracted struct {
	TrackNumber *int
	DiscNumber  *int
	Year        *int
	Duration    *float64

	Title *string
	Album *string

	Artists      []string
	AlbumArtists []string
	Composers    []string
	Lyricists    []string
	Genres       []string
	Labels       []string

	EmbeddedPicture *Picture
}

// ExtractFromFile decodes metadata and, if present, the embedded picture
// for one audio file. Errors are classified Unsupported (extension
// outside the supported set) or IO (the file cannot be opened) and are
// always per-file: callers must not abort a scan on them. Unreadable or
// missing tags are not an error; the tag fields are left empty.
func (e *Extractor) ExtractFromFile(filePath string) (Extracted, error) {
	if !IsSupported(filePath) {
		return Extracted{}, perr.NewUnsupported(fmt.Sprintf("unsupported format: %s", filepath.Ext(filePath)))
	}

	start := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		return Extracted{}, perr.WrapIO("opening file", err)
	}
	defer file.Close()

	meta, metaErr := tag.ReadFrom(file)
	if metaErr != nil {
		e.logger.WithFields(logrus.Fields{
			"file_path": filePath,
			"error":     metaErr.Error(),
		}).Debug("no readable tags, metadata fields will be empty")
	}

	duration, err := e.calculateDuration(filePath)
	if err != nil {
		e.logger.WithFields(logrus.Fields{
			"file_path": filePath,
			"error":     err.Error(),
		}).Debug("could not determine duration")
		duration = nil
	}

	result := Extracted{Duration: duration}
	if meta != nil {
		fillFromTag(&result, meta, filePath)
		if pic := meta.Picture(); pic != nil {
			result.EmbeddedPicture = &Picture{Data: pic.Data, MIMEType: pic.MIMEType}
		}
	}

	e.logger.WithFields(logrus.Fields{
		"file_path":       filePath,
		"elapsed":         time.Since(start),
		"has_embedded_art": result.EmbeddedPicture != nil,
	}).Debug("extracted metadata")

	return result, nil
}

func fillFromTag(out *Extracted, meta tag.Metadata, filePath string) {
	if title := meta.Title(); title != "" {
		out.Title = &title
	}
	if album := meta.Album(); album != "" {
		out.Album = &album
	}
	if artist := meta.Artist(); artist != "" {
		out.Artists = splitOrSingle(artist)
	}
	if albumArtist := meta.AlbumArtist(); albumArtist != "" {
		out.AlbumArtists = splitOrSingle(albumArtist)
	}
	if composer := meta.Composer(); composer != "" {
		out.Composers = splitOrSingle(composer)
	}
	if genre := meta.Genre(); genre != "" {
		out.Genres = splitOrSingle(genre)
	}

	track, _ := meta.Track()
	if track > 0 {
		out.TrackNumber = &track
	}
	disc, _ := meta.Disc()
	if disc > 0 {
		out.DiscNumber = &disc
	}

	out.Year = preferredYear(filePath, meta)
}

// preferredYear implements the TDOR-over-TYER/TDRC rule: when the
// container is ID3v2, the raw TDOR (Original Date Released) frame is
// preferred over TYER/TDRC if present; for every other container we
// fall back to the generic tag.Metadata.Year().
func preferredYear(filePath string, meta tag.Metadata) *int {
	if f := meta.Format(); f == tag.ID3v2_2 || f == tag.ID3v2_3 || f == tag.ID3v2_4 {
		if year := readID3v2TDOR(filePath); year != nil {
			return year
		}
	}
	if y := meta.Year(); y != 0 {
		return &y
	}
	return nil
}

// readID3v2TDOR does a minimal raw ID3v2 frame scan for the four-letter
// TDOR frame, since dhowden/tag's generic Metadata interface does not
// expose individual frames. Returns nil if absent or unparseable.
func readID3v2TDOR(filePath string) *int {
	f, err := os.Open(filePath)
	if err != nil {
		return nil
	}
	defer f.Close()

	header := make([]byte, 10)
	if _, err := io.ReadFull(f, header); err != nil {
		return nil
	}
	if string(header[0:3]) != "ID3" {
		return nil
	}
	tagSize := synchsafeInt(header[6:10])
	majorVersion := header[3]
	if majorVersion < 3 {
		return nil // TDOR only exists from ID3v2.3 onward
	}

	body := make([]byte, tagSize)
	if _, err := io.ReadFull(f, body); err != nil {
		return nil
	}

	pos := 0
	for pos+10 <= len(body) {
		frameID := string(body[pos : pos+4])
		if frameID == "\x00\x00\x00\x00" {
			break
		}
		size := int(binary.BigEndian.Uint32(body[pos+4 : pos+8]))
		if size <= 0 || pos+10+size > len(body) {
			break
		}
		if frameID == "TDOR" {
			raw := string(body[pos+11 : pos+10+size]) // skip encoding byte
			raw = strings.TrimRight(raw, "\x00")
			yearStr := raw
			if len(raw) >= 4 {
				yearStr = raw[:4]
			}
			if year, err := strconv.Atoi(yearStr); err == nil {
				return &year
			}
		}
		pos += 10 + size
	}
	return nil
}

func synchsafeInt(b []byte) int {
	return int(b[0])<<21 | int(b[1])<<14 | int(b[2])<<7 | int(b[3])
}

// splitOrSingle returns a single-element slice: per 4.1, a value
// containing separators is never split into multiple entries.
func splitOrSingle(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return []string{v}
}

func (e *Extractor) calculateDuration(filePath string) (*float64, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	var secs float64
	var err error
	switch ext {
	case ".mp3":
		secs, err = e.durationMP3(filePath)
	case ".flac":
		secs, err = e.durationFLAC(filePath)
	case ".wav", ".aiff":
		secs, err = e.durationWAV(filePath)
	case ".mp4", ".m4a", ".m4b":
		secs, err = e.durationMP4(filePath)
	default:
		secs, err = e.estimateFromFileSize(filePath, 192000)
	}
	if err != nil {
		return nil, err
	}
	return &secs, nil
}

// durationMP3 decodes frames to compute an exact duration, falling back
// to an average-bitrate estimate only if no frame decodes at all.
func (e *Extractor) durationMP3(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var fr mp3.Frame
		if err := dec.Decode(&fr, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				return e.estimateFromFileSize(path, 192000)
			}
			break
		}
		total += fr.Duration()
		frames++
	}
	return total.Seconds(), nil
}

func (e *Extractor) durationFLAC(path string) (float64, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	si := stream.Info
	if si.NSamples > 0 && si.SampleRate > 0 {
		return float64(si.NSamples) / float64(si.SampleRate), nil
	}
	return 0, fmt.Errorf("flac stream missing sample info")
}

// durationWAV divides the bytes past a 44-byte header by the frame size
// and sample rate that go-audio/wav parses out of the RIFF chunks. AIFF
// files are routed here too, but they fail the RIFF/WAVE validity check
// and get no duration.
func (e *Extractor) durationWAV(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav/aiff file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav/aiff header")
	}

	st, err := f.Stat()
	if err != nil {
		return 0, err
	}
	const headerSize = int64(44)
	pcmBytes := st.Size() - headerSize
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	frames := pcmBytes / bytesPerFrame
	return float64(frames) / float64(dec.SampleRate), nil
}

// durationMP4 manually scans for the 'mvhd' atom inside 'moov'; no mp4
// box-parsing library is available anywhere in the dependency pool.
func (e *Extractor) durationMP4(path string) (float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	for {
		head := make([]byte, 8)
		if _, err := io.ReadFull(f, head); err != nil {
			return 0, err
		}
		size := binary.BigEndian.Uint32(head[0:4])
		atom := string(head[4:8])
		if size < 8 {
			return 0, fmt.Errorf("invalid atom size")
		}
		if atom == "moov" {
			return scanMoovForMvhd(f, int64(size)-8)
		}
		if _, err := f.Seek(int64(size)-8, io.SeekCurrent); err != nil {
			return 0, err
		}
	}
}

func scanMoovForMvhd(f *os.File, limit int64) (float64, error) {
	for read := int64(0); read < limit; {
		subHead := make([]byte, 8)
		if _, err := io.ReadFull(f, subHead); err != nil {
			return 0, err
		}
		subSize := binary.BigEndian.Uint32(subHead[0:4])
		subAtom := string(subHead[4:8])
		if subSize < 8 {
			return 0, fmt.Errorf("invalid sub-atom size")
		}
		if subAtom == "mvhd" {
			return readMvhdDuration(f)
		}
		if _, err := f.Seek(int64(subSize)-8, io.SeekCurrent); err != nil {
			return 0, err
		}
		read += int64(subSize)
	}
	return 0, fmt.Errorf("mvhd atom not found")
}

func readMvhdDuration(f *os.File) (float64, error) {
	version := make([]byte, 1)
	if _, err := io.ReadFull(f, version); err != nil {
		return 0, err
	}
	var skip int64
	if version[0] == 1 {
		skip = 3 + 8 + 8
	} else {
		skip = 3 + 4 + 4
	}
	if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
		return 0, err
	}
	tsBuf := make([]byte, 4)
	if _, err := io.ReadFull(f, tsBuf); err != nil {
		return 0, err
	}
	timescale := binary.BigEndian.Uint32(tsBuf)
	durBuf := make([]byte, 4)
	if _, err := io.ReadFull(f, durBuf); err != nil {
		return 0, err
	}
	durUnits := binary.BigEndian.Uint32(durBuf)
	if timescale == 0 {
		return 0, fmt.Errorf("invalid timescale")
	}
	return float64(durUnits) / float64(timescale), nil
}

func (e *Extractor) estimateFromFileSize(path string, bitrateBps int) (float64, error) {
	st, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if bitrateBps <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	return float64(st.Size()*8) / float64(bitrateBps), nil
}

// ResolveAdjacentArt lists dirPath once and returns the first entry
// matching pattern (case-insensitive), in lexicographic order.
func ResolveAdjacentArt(dirPath string, pattern *regexp.Regexp) (string, bool) {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return "", false
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		if pattern.MatchString(name) {
			return filepath.Join(dirPath, name), true
		}
	}
	return "", false
}

// CompileArtPattern compiles the configured album-art regex with the
// case-insensitive flag, since the pattern is matched case-insensitively.
func CompileArtPattern(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("(?i)" + pattern)
}

// ReadEmbeddedPicture re-reads filePath for only its embedded picture,
// used by the thumbnail cache when a consumer explicitly asks for the
// embedded source rather than the resolved adjacent/artwork path.
func ReadEmbeddedPicture(filePath string) (*Picture, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	meta, err := tag.ReadFrom(f)
	if err != nil {
		return nil, err
	}
	pic := meta.Picture()
	if pic == nil {
		return nil, fmt.Errorf("no embedded picture")
	}
	return &Picture{Data: pic.Data, MIMEType: pic.MIMEType}, nil
}
