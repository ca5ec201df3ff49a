package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/packetscope/packetscope/internal/analysis/types"
	apperrors "github.com/packetscope/packetscope/internal/errors"
)

// FFprobeSource demuxes packet metadata out of a container file by
// shelling out to ffprobe. Only the first video stream is analyzed.
type FFprobeSource struct {
	path    string
	binary  string
	timeout time.Duration

	timeBase types.Rational

	cmd       *exec.Cmd
	stdout    io.ReadCloser
	dec       *json.Decoder
	inPackets bool
	done      bool

	closeOnce sync.Once
}

// NewFFprobeSource creates a source for the given container file.
// binaryPath may be empty, in which case ffprobe is resolved from PATH.
func NewFFprobeSource(path, binaryPath string, probeTimeout time.Duration) *FFprobeSource {
	if binaryPath == "" {
		binaryPath = "ffprobe"
	}
	if probeTimeout <= 0 {
		probeTimeout = 30 * time.Second
	}
	return &FFprobeSource{
		path:    path,
		binary:  binaryPath,
		timeout: probeTimeout,
	}
}

// ffprobe -show_format/-show_streams JSON shapes. Numeric fields arrive
// as strings in this output.
type probeOutput struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

type probeStream struct {
	Index        int    `json:"index"`
	CodecType    string `json:"codec_type"`
	CodecName    string `json:"codec_name"`
	TimeBase     string `json:"time_base"`
	Duration     string `json:"duration"`
	NbFrames     string `json:"nb_frames"`
	AvgFrameRate string `json:"avg_frame_rate"`
}

type probeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

// probePacket is one element of the -show_packets array. Pointer fields
// distinguish absent from zero.
type probePacket struct {
	PTS   *int64  `json:"pts"`
	DTS   *int64  `json:"dts"`
	Size  string  `json:"size"`
	Flags *string `json:"flags"`
}

// Open probes the container and returns track metadata. The first video
// stream is selected; a file without one is not analyzable.
func (s *FFprobeSource) Open(ctx context.Context) (types.VideoMetadata, error) {
	if _, err := os.Stat(s.path); err != nil {
		return types.VideoMetadata{}, apperrors.WrapSourceUnavailableError(err,
			fmt.Sprintf("cannot open %s", s.path))
	}

	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, s.binary,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		s.path)
	out, err := cmd.Output()
	if err != nil {
		return types.VideoMetadata{}, apperrors.WrapSourceUnavailableError(err,
			fmt.Sprintf("ffprobe failed for %s", s.path))
	}

	var probe probeOutput
	if err := json.Unmarshal(out, &probe); err != nil {
		return types.VideoMetadata{}, apperrors.WrapSourceUnavailableError(err,
			"ffprobe produced unreadable output")
	}

	var video *probeStream
	for i := range probe.Streams {
		if probe.Streams[i].CodecType == "video" {
			video = &probe.Streams[i]
			break
		}
	}
	if video == nil {
		return types.VideoMetadata{}, apperrors.NewNoAnalyzableTrackError(filepath.Base(s.path))
	}

	tb, err := parseRational(video.TimeBase)
	if err != nil {
		return types.VideoMetadata{}, apperrors.WrapSourceUnavailableError(err,
			fmt.Sprintf("unparseable time base %q", video.TimeBase))
	}
	s.timeBase = tb

	meta := types.VideoMetadata{
		Codec:    video.CodecName,
		FileName: filepath.Base(s.path),
		FilePath: s.path,
	}

	if d, err := strconv.ParseFloat(probe.Format.Duration, 64); err == nil {
		meta.DurationSeconds = d
	} else if d, err := strconv.ParseFloat(video.Duration, 64); err == nil {
		meta.DurationSeconds = d
	}

	if size, err := strconv.ParseInt(probe.Format.Size, 10, 64); err == nil {
		meta.FileSizeBytes = size
	}

	meta.FrameCountEstimate = estimateFrameCount(video, meta.DurationSeconds)

	return meta, nil
}

// Next returns the next video packet. The packet subprocess is started
// lazily on the first call so its lifetime is bound to the passed context.
func (s *FFprobeSource) Next(ctx context.Context) (RawPacket, bool, error) {
	if err := ctx.Err(); err != nil {
		return RawPacket{}, false, err
	}
	if s.done {
		return RawPacket{}, false, nil
	}

	if s.dec == nil {
		if err := s.startPackets(ctx); err != nil {
			return RawPacket{}, false, err
		}
	}

	for {
		if s.inPackets {
			if !s.dec.More() {
				// End of the packets array.
				s.done = true
				return RawPacket{}, false, s.finish()
			}
			var pkt probePacket
			if err := s.dec.Decode(&pkt); err != nil {
				return RawPacket{}, false, fmt.Errorf("decoding packet entry: %w", err)
			}
			raw, ok := s.convert(pkt)
			if !ok {
				// No usable timestamp at all; skip rather than invent one.
				continue
			}
			return raw, true, nil
		}

		tok, err := s.dec.Token()
		if err == io.EOF {
			s.done = true
			return RawPacket{}, false, s.finish()
		}
		if err != nil {
			return RawPacket{}, false, fmt.Errorf("reading ffprobe output: %w", err)
		}
		if key, ok := tok.(string); ok && key == "packets" {
			// Consume the array open bracket.
			if _, err := s.dec.Token(); err != nil {
				return RawPacket{}, false, fmt.Errorf("reading packets array: %w", err)
			}
			s.inPackets = true
		}
	}
}

// Close releases the ffprobe subprocess if still running.
func (s *FFprobeSource) Close() error {
	s.closeOnce.Do(func() {
		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
			_ = s.cmd.Wait()
		}
		if s.stdout != nil {
			_ = s.stdout.Close()
		}
	})
	return nil
}

func (s *FFprobeSource) startPackets(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, s.binary,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "packet=pts,dts,size,flags",
		"-print_format", "json",
		s.path)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return apperrors.WrapSourceUnavailableError(err, "cannot pipe ffprobe output")
	}
	if err := cmd.Start(); err != nil {
		return apperrors.WrapSourceUnavailableError(err, "cannot start ffprobe")
	}

	s.cmd = cmd
	s.stdout = stdout
	s.dec = json.NewDecoder(stdout)
	return nil
}

// finish reaps the subprocess once the packet array is exhausted.
func (s *FFprobeSource) finish() error {
	if s.cmd == nil {
		return nil
	}
	cmd := s.cmd
	s.cmd = nil
	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("ffprobe exited abnormally: %w", err)
	}
	return nil
}

// convert maps a probe packet onto a RawPacket against the stream time
// base. Missing flags default to keyframe=true: several muxers omit the
// sync-sample attachment entirely, and a permissive default keeps their
// all-intra streams classified correctly. Documented default, not a
// format guarantee.
func (s *FFprobeSource) convert(pkt probePacket) (RawPacket, bool) {
	ts := pkt.PTS
	if ts == nil {
		ts = pkt.DTS
	}
	if ts == nil {
		return RawPacket{}, false
	}

	var size int64
	if n, err := strconv.ParseInt(pkt.Size, 10, 64); err == nil {
		size = n
	}

	keyframe := true
	if pkt.Flags != nil {
		keyframe = strings.ContainsRune(*pkt.Flags, 'K')
	}

	return RawPacket{
		Timestamp:  types.NewRational(*ts*s.timeBase.Num, s.timeBase.Den),
		SizeBytes:  size,
		IsKeyframe: keyframe,
	}, true
}

// parseRational parses ffprobe fractions like "1/90000" or "30000/1001".
func parseRational(v string) (types.Rational, error) {
	numStr, denStr, found := strings.Cut(v, "/")
	if !found {
		num, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return types.Rational{}, fmt.Errorf("not a fraction: %q", v)
		}
		return types.NewRational(num, 1), nil
	}

	num, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return types.Rational{}, fmt.Errorf("bad numerator in %q", v)
	}
	den, err := strconv.ParseInt(denStr, 10, 64)
	if err != nil {
		return types.Rational{}, fmt.Errorf("bad denominator in %q", v)
	}
	return types.NewRational(num, den), nil
}

func estimateFrameCount(stream *probeStream, durationSeconds float64) int64 {
	if n, err := strconv.ParseInt(stream.NbFrames, 10, 64); err == nil && n > 0 {
		return n
	}
	if durationSeconds <= 0 {
		return 0
	}
	fps, err := parseRational(stream.AvgFrameRate)
	if err != nil || fps.Float64() <= 0 {
		return 0
	}
	return int64(durationSeconds * fps.Float64())
}
