package server

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/mewkiz/flac"

	"github.com/airwave-audio/airwave-go/pkg/audio"
	"github.com/airwave-audio/airwave-go/pkg/resample"
)

// NewFileSource creates a Source from a local file path or HTTP(S)
// URL, dispatching on extension/scheme. An empty pathOrURL yields a
// ToneSource. Every Source here emits samples in the 24-bit-left-
// justified int32 convention pkg/codec expects, regardless of the
// underlying format's native bit depth (§4.4).
func NewFileSource(pathOrURL string, defaultFormat audio.SampleFormat) (Source, error) {
	if pathOrURL == "" {
		return NewToneSource(defaultFormat), nil
	}

	if strings.HasPrefix(pathOrURL, "http://") || strings.HasPrefix(pathOrURL, "https://") {
		if strings.Contains(pathOrURL, ".m3u8") {
			log.Printf("[source] streaming HLS: %s", pathOrURL)
			return NewFFmpegSource(pathOrURL)
		}
		log.Printf("[source] streaming HTTP MP3: %s", pathOrURL)
		return NewHTTPMP3Source(pathOrURL)
	}

	if _, err := os.Stat(pathOrURL); os.IsNotExist(err) {
		return nil, fmt.Errorf("audio file not found: %s", pathOrURL)
	}

	switch strings.ToLower(filepath.Ext(pathOrURL)) {
	case ".mp3":
		return NewMP3Source(pathOrURL)
	case ".flac":
		return NewFLACSource(pathOrURL)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .flac)", pathOrURL)
	}
}

// MP3Source decodes a local MP3 file via go-mp3, looping on EOF.
type MP3Source struct {
	file   *os.File
	decode *mp3.Decoder
	format audio.SampleFormat
}

// NewMP3Source opens filePath and prepares it for streaming.
func NewMP3Source(filePath string) (*MP3Source, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}
	decode, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}
	log.Printf("[source] loaded MP3 %s: %dHz", filepath.Base(filePath), decode.SampleRate())
	return &MP3Source{
		file:   f,
		decode: decode,
		format: audio.SampleFormat{Rate: decode.SampleRate(), Bits: 16, Channels: 2},
	}, nil
}

func (s *MP3Source) Read(samples []int32) (int, error) {
	buf := make([]byte, len(samples)*2)
	n, err := s.decode.Read(buf)
	if err != nil && err != io.EOF {
		return 0, err
	}

	count := n / 2
	for i := 0; i < count; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
		samples[i] = audio.SampleFromInt16(sample16)
	}

	if err == io.EOF {
		if _, seekErr := s.file.Seek(0, 0); seekErr != nil {
			return count, fmt.Errorf("failed to loop MP3: %w", seekErr)
		}
		decode, decErr := mp3.NewDecoder(s.file)
		if decErr != nil {
			return count, fmt.Errorf("failed to restart MP3 decoder: %w", decErr)
		}
		s.decode = decode
	}
	return count, nil
}

func (s *MP3Source) Format() audio.SampleFormat { return s.format }
func (s *MP3Source) Close() error               { return s.file.Close() }

// FLACSource decodes a local FLAC file frame-by-frame via mewkiz/flac,
// looping on EOF.
type FLACSource struct {
	file   *os.File
	stream *flac.Stream
	format audio.SampleFormat
}

// NewFLACSource opens filePath and reads its STREAMINFO block.
func NewFLACSource(filePath string) (*FLACSource, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}
	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	format := audio.SampleFormat{
		Rate:     int(stream.Info.SampleRate),
		Bits:     int(stream.Info.BitsPerSample),
		Channels: int(stream.Info.NChannels),
	}
	log.Printf("[source] loaded FLAC %s: %dHz %dbit %dch", filepath.Base(filePath), format.Rate, format.Bits, format.Channels)
	return &FLACSource{file: f, stream: stream, format: format}, nil
}

func (s *FLACSource) Read(samples []int32) (int, error) {
	channels := s.format.Channels
	read := 0

	for read < len(samples) {
		frame, err := s.stream.ParseNext()
		if err != nil {
			if err == io.EOF {
				if _, seekErr := s.file.Seek(0, 0); seekErr != nil {
					return read, fmt.Errorf("failed to loop FLAC: %w", seekErr)
				}
				stream, decErr := flac.New(s.file)
				if decErr != nil {
					return read, fmt.Errorf("failed to restart FLAC stream: %w", decErr)
				}
				s.stream = stream
				continue
			}
			return read, err
		}

		for i := 0; i < int(frame.BlockSize) && read < len(samples); i++ {
			for ch := 0; ch < channels && read < len(samples); ch++ {
				sample := frame.Subframes[ch].Samples[i]
				switch {
				case s.format.Bits == 16:
					samples[read] = sample << 8
				case s.format.Bits == 24:
					samples[read] = sample
				default:
					shift := s.format.Bits - 24
					if shift > 0 {
						samples[read] = sample >> shift
					} else {
						samples[read] = sample << -shift
					}
				}
				read++
			}
		}
	}
	return read, nil
}

func (s *FLACSource) Format() audio.SampleFormat { return s.format }
func (s *FLACSource) Close() error               { return s.file.Close() }

// HTTPMP3Source streams and decodes an MP3 over HTTP, ending (not
// looping) on EOF.
type HTTPMP3Source struct {
	response *http.Response
	decode   *mp3.Decoder
	format   audio.SampleFormat
}

// NewHTTPMP3Source opens url and prepares it for streaming.
func NewHTTPMP3Source(url string) (*HTTPMP3Source, error) {
	resp, err := http.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch HTTP stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}
	decode, err := mp3.NewDecoder(resp.Body)
	if err != nil {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to decode MP3 stream: %w", err)
	}
	log.Printf("[source] streaming MP3 from %s: %dHz", url, decode.SampleRate())
	return &HTTPMP3Source{
		response: resp,
		decode:   decode,
		format:   audio.SampleFormat{Rate: decode.SampleRate(), Bits: 16, Channels: 2},
	}, nil
}

func (s *HTTPMP3Source) Read(samples []int32) (int, error) {
	buf := make([]byte, len(samples)*2)
	n, err := s.decode.Read(buf)
	if err != nil {
		return 0, err
	}
	count := n / 2
	for i := 0; i < count; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
		samples[i] = audio.SampleFromInt16(sample16)
	}
	return count, nil
}

func (s *HTTPMP3Source) Format() audio.SampleFormat { return s.format }
func (s *HTTPMP3Source) Close() error               { return s.response.Body.Close() }

// FFmpegSource shells out to ffmpeg to decode arbitrary streaming
// formats (HLS, DASH) into raw s16le PCM.
type FFmpegSource struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	reader *bufio.Reader
	format audio.SampleFormat
}

// NewFFmpegSource launches ffmpeg against url, decoding to 48kHz
// stereo s16le.
func NewFFmpegSource(url string) (*FFmpegSource, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}

	format := audio.SampleFormat{Rate: 48000, Bits: 16, Channels: 2}
	cmd := exec.Command("ffmpeg",
		"-loglevel", "error",
		"-i", url,
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", format.Rate),
		"-ac", fmt.Sprintf("%d", format.Channels),
		"-")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	log.Printf("[source] streaming via ffmpeg: %s", url)

	return &FFmpegSource{cmd: cmd, stdout: stdout, reader: bufio.NewReader(stdout), format: format}, nil
}

func (s *FFmpegSource) Read(samples []int32) (int, error) {
	buf := make([]byte, len(samples)*2)
	n, err := io.ReadFull(s.reader, buf)
	if err != nil {
		return 0, err
	}
	count := n / 2
	for i := 0; i < count; i++ {
		sample16 := int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
		samples[i] = audio.SampleFromInt16(sample16)
	}
	return count, nil
}

func (s *FFmpegSource) Format() audio.SampleFormat { return s.format }
func (s *FFmpegSource) Close() error {
	s.stdout.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	return nil
}

// ResampledSource wraps a Source and resamples its output to
// targetRate using pkg/resample, for feeding a fixed-rate encoder
// (e.g. Opus, which requires 48kHz) from a source at a different
// native rate.
type ResampledSource struct {
	source Source
	rs     *resample.Resampler
	format audio.SampleFormat
	inBuf  []int32
}

// NewResampledSource wraps source, resampling to targetRate.
func NewResampledSource(source Source, targetRate int) *ResampledSource {
	in := source.Format()
	inSamples := (in.Rate * in.Channels * 100) / 1000 // 100ms of input
	return &ResampledSource{
		source: source,
		rs:     resample.New(in.Rate, targetRate, in.Channels),
		format: audio.SampleFormat{Rate: targetRate, Bits: in.Bits, Channels: in.Channels},
		inBuf:  make([]int32, inSamples),
	}
}

func (r *ResampledSource) Read(samples []int32) (int, error) {
	needed := r.rs.InputSamplesNeeded(len(samples))
	if needed > len(r.inBuf) {
		needed = len(r.inBuf)
	}
	n, err := r.source.Read(r.inBuf[:needed])
	if err != nil && err != io.EOF {
		return 0, err
	}
	return r.rs.Resample(r.inBuf[:n], samples), nil
}

func (r *ResampledSource) Format() audio.SampleFormat { return r.format }
func (r *ResampledSource) Close() error               { return r.source.Close() }
