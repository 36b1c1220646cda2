package rendersvc

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	_ "image/jpeg" // register decoders
	_ "image/png"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"
	_ "golang.org/x/image/webp"

	"github.com/digitalmadrasa/madrasa/core/scene"
)

var errUnsupportedSource = errors.New("unsupported image source")

// ImageFetcher loads the raster behind an image node source.
type ImageFetcher interface {
	Fetch(ctx context.Context, src string) (image.Image, error)
}

// HTTPFetcher downloads images over http(s) and decodes `data:` URLs in place.
type HTTPFetcher struct {
	Client *http.Client
}

func (f HTTPFetcher) Fetch(ctx context.Context, src string) (image.Image, error) {
	src = strings.TrimSpace(src)
	if strings.HasPrefix(src, "data:") {
		return decodeDataURL(src)
	}
	u, err := url.Parse(src)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errUnsupportedSource
	}

	client := rest.Client{HTTPClient: f.Client}
	if client.HTTPClient == nil {
		client.HTTPClient = http.DefaultClient
	}
	res, err := client.SendWithContext(ctx, rest.Request{Method: rest.Get, BaseURL: src})
	if err != nil {
		return nil, errors.Wrap(err, "downloading image")
	}
	if res.StatusCode != http.StatusOK {
		return nil, errors.Errorf("downloading image: status %d", res.StatusCode)
	}
	img, _, err := image.Decode(strings.NewReader(res.Body))
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	return img, nil
}

func decodeDataURL(src string) (image.Image, error) {
	comma := strings.IndexByte(src, ',')
	if comma < 0 || !strings.Contains(src[:comma], ";base64") {
		return nil, errUnsupportedSource
	}
	data, err := base64.StdEncoding.DecodeString(src[comma+1:])
	if err != nil {
		return nil, errors.Wrap(err, "decoding data url")
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "decoding image")
	}
	return img, nil
}

// fetchAll loads every distinct image source of the graph concurrently.
// Failed sources are left out: their nodes are not painted.
func (r *Renderer) fetchAll(ctx context.Context, g *scene.Graph) map[string]image.Image {
	var srcs []string
	seen := make(map[string]bool)
	for _, img := range g.Images() {
		if img.Src != "" && !seen[img.Src] {
			seen[img.Src] = true
			srcs = append(srcs, img.Src)
		}
	}
	imgs := make(map[string]image.Image, len(srcs))
	if len(srcs) == 0 || r.fetcher == nil {
		return imgs
	}

	if r.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.fetchTimeout)
		defer cancel()
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, src := range srcs {
		wg.Add(1)
		go func(src string) {
			defer wg.Done()
			img, err := r.fetcher.Fetch(ctx, src)
			if err != nil {
				r.logger.Warn("skipping certificate image", err, map[string]interface{}{"src": shorten(src)})
				return
			}
			mu.Lock()
			imgs[src] = img
			mu.Unlock()
		}(src)
	}
	wg.Wait()
	return imgs
}

func shorten(src string) string {
	if len(src) > 96 {
		return src[:96] + "..."
	}
	return src
}
