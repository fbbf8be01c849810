package services

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	urlpkg "net/url"
	"regexp"
	"strings"
	"time"

	ytapi "github.com/hightemp/youtube-transcript-api-go/api"
	yt "github.com/kkdai/youtube/v2"
)

const (
	browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	maxPageBytes     = 8 << 20
	maxAudioBytes    = 100 << 20
)

// transcriptLanguages are tried before accepting a track in any language.
var transcriptLanguages = []string{"en", "en-US", "en-GB"}

// YouTubeService turns a lecture video into text for question generation.
type YouTubeService struct {
	httpClient    *http.Client
	transcriptAPI *ytapi.YouTubeTranscriptApi
	ytClient      *yt.Client
}

func NewYouTubeService() *YouTubeService {
	return &YouTubeService{
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		transcriptAPI: ytapi.NewYouTubeTranscriptApi(),
		ytClient:      &yt.Client{},
	}
}

// GetTranscript returns a lecture's captions as one paragraph. English
// tracks win, then any language, then the watch page's timedtext track.
func (s *YouTubeService) GetTranscript(ctx context.Context, videoID string) (string, error) {
	var errs []error

	for _, langs := range [][]string{transcriptLanguages, nil} {
		transcript, err := s.transcriptAPI.GetTranscript(videoID, langs)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		lines := make([]string, 0, len(transcript.Entries))
		for _, entry := range transcript.Entries {
			lines = append(lines, entry.Text)
		}
		if text := joinCaptionLines(lines); text != "" {
			return text, nil
		}
		errs = append(errs, errors.New("subtitle track is empty"))
	}

	text, err := s.timedTextTranscript(ctx, videoID)
	if err == nil {
		return text, nil
	}
	errs = append(errs, err)
	return "", fmt.Errorf("no transcript for video %s: %w", videoID, errors.Join(errs...))
}

func (s *YouTubeService) timedTextTranscript(ctx context.Context, videoID string) (string, error) {
	page, err := s.fetch(ctx, "https://www.youtube.com/watch?v="+videoID)
	if err != nil {
		return "", fmt.Errorf("timedtext: watch page: %w", err)
	}

	captionURL, err := extractCaptionURL(string(page))
	if err != nil {
		return "", fmt.Errorf("timedtext: %w", err)
	}

	data, err := s.fetch(ctx, captionURL)
	if err != nil {
		return "", fmt.Errorf("timedtext: captions: %w", err)
	}
	return parseCaptionsXML(data)
}

func (s *YouTubeService) fetch(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
}

var (
	captionTrackPatterns = []*regexp.Regexp{
		regexp.MustCompile(`"captionTracks"\s*:\s*\[(.*?)\],\s*"`),
		regexp.MustCompile(`"playerCaptionsTracklistRenderer"\s*:\s*\{(?:.*?,)?\s*"captionTracks"\s*:\s*\[(.*?)\],\s*"`),
	}
	captionBaseURLPattern = regexp.MustCompile(`"baseUrl"\s*:\s*"((?:[^"\\]|\\.)*)"`)
)

// extractCaptionURL finds the first caption track's URL in a watch page.
func extractCaptionURL(pageHTML string) (string, error) {
	for _, pattern := range captionTrackPatterns {
		tracks := pattern.FindStringSubmatch(pageHTML)
		if len(tracks) < 2 {
			continue
		}
		m := captionBaseURLPattern.FindStringSubmatch(tracks[1])
		if len(m) < 2 {
			return "", errors.New("caption track has no baseUrl")
		}
		// The URL sits inside a JSON string; let the decoder undo \u0026 and \/.
		var u string
		if err := json.Unmarshal([]byte(`"`+m[1]+`"`), &u); err != nil {
			return "", fmt.Errorf("caption baseUrl: %w", err)
		}
		return u, nil
	}
	return "", errors.New("no captions available for this video")
}

type timedText struct {
	Lines []string `xml:"text"`
}

func parseCaptionsXML(data []byte) (string, error) {
	var tt timedText
	if err := xml.Unmarshal(data, &tt); err != nil {
		return "", fmt.Errorf("captions XML: %w", err)
	}

	// Caption text is HTML-escaped a second time inside the XML.
	for i, line := range tt.Lines {
		tt.Lines[i] = html.UnescapeString(line)
	}
	text := joinCaptionLines(tt.Lines)
	if text == "" {
		return "", errors.New("captions XML empty")
	}
	return text, nil
}

func joinCaptionLines(lines []string) string {
	parts := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}

// DownloadAudio reads the highest-bitrate audio stream, for transcription
// when a lecture has no captions.
func (s *YouTubeService) DownloadAudio(ctx context.Context, videoURL string) ([]byte, string, error) {
	video, err := s.ytClient.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch YouTube video metadata: %w", err)
	}

	format, ok := bestAudioFormat(video.Formats.WithAudioChannels())
	if !ok {
		return nil, "", errors.New("no audio formats available")
	}

	stream, _, err := s.ytClient.GetStreamContext(ctx, video, &format)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open audio stream: %w", err)
	}
	defer stream.Close()

	audio, err := io.ReadAll(io.LimitReader(stream, maxAudioBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read audio stream: %w", err)
	}
	if len(audio) > maxAudioBytes {
		return nil, "", fmt.Errorf("audio stream exceeds %d MB limit", maxAudioBytes>>20)
	}
	return audio, audioMimeType(format.MimeType), nil
}

func bestAudioFormat(formats yt.FormatList) (yt.Format, bool) {
	if len(formats) == 0 {
		return yt.Format{}, false
	}
	best := formats[0]
	for _, f := range formats[1:] {
		if f.Bitrate > best.Bitrate {
			best = f
		}
	}
	return best, true
}

// audioMimeType drops codec parameters: "audio/webm; codecs=opus" -> "audio/webm".
func audioMimeType(raw string) string {
	if mt := strings.TrimSpace(strings.Split(raw, ";")[0]); mt != "" {
		return mt
	}
	return "audio/mp4"
}

// LectureMetadata is what a video contributes to a generated chapter entry.
type LectureMetadata struct {
	Title       string
	Author      string
	Description string
	Duration    time.Duration
	PublishDate time.Time
}

func (s *YouTubeService) GetLectureMetadata(ctx context.Context, videoURL string) (*LectureMetadata, error) {
	video, err := s.ytClient.GetVideoContext(ctx, videoURL)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch YouTube video metadata: %w", err)
	}

	return &LectureMetadata{
		Title:       strings.TrimSpace(video.Title),
		Author:      strings.TrimSpace(video.Author),
		Description: firstLine(video.Description),
		Duration:    video.Duration,
		PublishDate: video.PublishDate,
	}, nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

var videoIDPattern = regexp.MustCompile(`(?:v=|\/v\/|youtu\.be\/|embed\/|shorts\/|live\/)([a-zA-Z0-9_-]{11})`)

// ExtractVideoID returns the 11-character id of a YouTube URL, or "".
func ExtractVideoID(url string) string {
	parsed, err := urlpkg.Parse(url)
	if err == nil {
		host := strings.ToLower(parsed.Host)
		path := strings.Trim(parsed.Path, "/")

		if strings.Contains(host, "youtube.com") {
			if v := parsed.Query().Get("v"); len(v) == 11 {
				return v
			}

			parts := strings.Split(path, "/")
			if len(parts) >= 2 {
				switch parts[0] {
				case "shorts", "embed", "v", "live":
					if len(parts[1]) == 11 {
						return parts[1]
					}
				}
			}
		}

		if strings.Contains(host, "youtu.be") {
			if candidate := strings.Split(path, "/")[0]; len(candidate) == 11 {
				return candidate
			}
		}
	}

	if m := videoIDPattern.FindStringSubmatch(url); len(m) > 1 {
		return m[1]
	}
	return ""
}
