package extract

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Transcripts fetches English YouTube subtitles with yt-dlp.
type Transcripts struct {
	ytDlp   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewTranscripts(ytDlpPath string, timeout time.Duration, logger *zap.Logger) *Transcripts {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Transcripts{ytDlp: ytDlpPath, timeout: timeout, logger: logger.Named("transcript")}
}

// Fetch returns the plain-text transcript of the video at rawURL. A video
// without English subtitles yields "" and no error.
func (t *Transcripts) Fetch(ctx context.Context, rawURL string) (string, error) {
	id := VideoID(rawURL)
	if id == "" {
		return "", nil
	}

	tmpDir, err := os.MkdirTemp("", "yt-transcript-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, t.ytDlp,
		"--write-subs", "--write-auto-subs",
		"--sub-langs", "en",
		"--sub-format", "srv1",
		"--skip-download",
		"-o", filepath.Join(tmpDir, "sub"),
		"https://www.youtube.com/watch?v="+id,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%w: yt-dlp timeout after %s", ErrFetchFailed, t.timeout)
		}
		msg := stderr.String()
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return "", fmt.Errorf("%w: yt-dlp: %v: %s", ErrFetchFailed, err, strings.TrimSpace(msg))
	}

	data, err := os.ReadFile(filepath.Join(tmpDir, "sub.en.srv1"))
	if errors.Is(err, fs.ErrNotExist) {
		t.logger.Info("no subtitles", zap.String("video_id", id))
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read subtitles: %w", err)
	}
	return ParseTranscript(data)
}

// ParseTranscript joins the <text> segments of a srv1 subtitle document.
func ParseTranscript(data []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity

	var segments []string
	var cur strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse subtitles: %w", err)
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "text" {
				inText = true
				cur.Reset()
			}
		case xml.CharData:
			if inText {
				cur.Write(el)
			}
		case xml.EndElement:
			if el.Name.Local == "text" && inText {
				inText = false
				seg := strings.NewReplacer("\n", " ", "\u00a0", " ").Replace(cur.String())
				seg = strings.TrimSpace(seg)
				if seg != "" {
					segments = append(segments, seg)
				}
			}
		}
	}
	return strings.Join(segments, " "), nil
}
