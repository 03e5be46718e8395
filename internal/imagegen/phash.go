package imagegen

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"

	// Decoders for the formats image hosts actually serve.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
)

// hashWidth/hashHeight give a 9x8 grid: 8 horizontal gradient comparisons per
// row over 8 rows, one bit each, 64 bits total.
const (
	hashWidth  = 9
	hashHeight = 8
)

// DHash computes the 64-bit difference hash of an image: downscale to 9x8
// grayscale, then set one bit per adjacent-pixel pair where the left pixel is
// brighter. Perceptually similar images differ in only a few bits.
func DHash(img image.Image) uint64 {
	small := image.NewGray(image.Rect(0, 0, hashWidth, hashHeight))
	draw.BiLinear.Scale(small, small.Bounds(), img, img.Bounds(), draw.Src, nil)

	var hash uint64
	for y := 0; y < hashHeight; y++ {
		for x := 0; x < hashWidth-1; x++ {
			left := small.GrayAt(x, y).Y
			right := small.GrayAt(x+1, y).Y
			hash <<= 1
			if left > right {
				hash |= 1
			}
		}
	}
	return hash
}

// maxImageBytes caps how much of a temporary image we will download to hash.
// Generated photos run a few MB; anything past this is not a real image.
const maxImageBytes = 32 << 20

// Hasher fetches image bytes from a temporary URL and computes their dHash.
type Hasher struct {
	httpClient *http.Client
}

// NewHasher creates a Hasher using the given HTTP client, or a default client
// when nil.
func NewHasher(client *http.Client) *Hasher {
	if client == nil {
		client = &http.Client{}
	}
	return &Hasher{httpClient: client}
}

// HashURL downloads the image at url, decodes it, and returns its dHash.
func (h *Hasher) HashURL(ctx context.Context, url string) (uint64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("imagegen: create fetch request: %w", err)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("imagegen: fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("imagegen: fetch image: unexpected status %d", resp.StatusCode)
	}

	img, _, err := image.Decode(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return 0, fmt.Errorf("imagegen: decode image: %w", err)
	}

	return DHash(img), nil
}
