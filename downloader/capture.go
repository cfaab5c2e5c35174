package downloader

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
)

// A feed response saved to disk. The feed body is base64 text, so
// it's stored verbatim and stays readable (and editable) in the file.
type Capture struct {
	URL         string    `json:"url"`
	RetrievedAt time.Time `json:"retrieved_at"`
	Size        int       `json:"size"`
	Body        string    `json:"body"`
}

// Downloader replaying a single captured response from a file. A
// missing, stale or foreign (other URL) capture is replaced by a
// fresh download. Without options.Cache it behaves like HTTPGet.
type CaptureFile struct {
	Path    string
	TimeNow func() time.Time

	mutex sync.Mutex
}

func NewCaptureFile(path string) *CaptureFile {
	return &CaptureFile{
		Path:    path,
		TimeNow: time.Now,
	}
}

func (c *CaptureFile) Get(
	ctx context.Context,
	url string,
	headers map[string]string,
	options GetOptions,
) ([]byte, error) {
	if !options.Cache {
		return HTTPGet(ctx, url, headers, options)
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	capture, err := c.Load()
	if err != nil {
		return nil, err
	}

	now := c.TimeNow()
	if capture != nil && capture.URL == url {
		age := now.Sub(capture.RetrievedAt)
		if options.CacheTTL <= 0 || age < options.CacheTTL {
			log.Debug().Str("path", c.Path).Dur("age", age).Int("size", capture.Size).Msg("Replaying captured feed")
			return []byte(capture.Body), nil
		}
		log.Debug().Str("path", c.Path).Dur("age", age).Msg("Captured feed is stale")
	}

	body, err := HTTPGet(ctx, url, headers, options)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}

	if !utf8.Valid(body) {
		log.Warn().Str("url", url).Int("size", len(body)).Msg("Response is not text, not capturing")
		return body, nil
	}

	err = c.save(&Capture{
		URL:         url,
		RetrievedAt: now.UTC(),
		Size:        len(body),
		Body:        string(body),
	})
	if err != nil {
		return nil, err
	}

	return body, nil
}

// Reads the capture. Returns nil if there is none yet.
func (c *CaptureFile) Load() (*Capture, error) {
	buf, err := os.ReadFile(c.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading capture: %w", err)
	}

	capture := &Capture{}
	err = json.Unmarshal(buf, capture)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling capture %s: %w", c.Path, err)
	}
	if capture.Size != len(capture.Body) {
		return nil, fmt.Errorf("capture %s: body is %d bytes, expected %d", c.Path, len(capture.Body), capture.Size)
	}

	return capture, nil
}

// Writes through a temp file so an interrupted dump can't leave a
// half written capture behind.
func (c *CaptureFile) save(capture *Capture) error {
	buf, err := json.MarshalIndent(capture, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling capture: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.Path), filepath.Base(c.Path)+".*")
	if err != nil {
		return fmt.Errorf("creating capture: %w", err)
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(buf)
	if err == nil {
		err = tmp.Close()
	} else {
		tmp.Close()
	}
	if err != nil {
		return fmt.Errorf("writing capture: %w", err)
	}

	err = os.Rename(tmp.Name(), c.Path)
	if err != nil {
		return fmt.Errorf("writing capture: %w", err)
	}

	return nil
}
