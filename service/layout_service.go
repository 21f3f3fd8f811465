package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/openpariksha/pariksha-be/config"
	"github.com/openpariksha/pariksha-be/types"
)

// figureLabel is the region class the layout detector assigns to printed
// figures; everything else (text, tables, captions) is ignored here.
const figureLabel = "figure"

const (
	previewThumbWidth = 800
	previewLeftMargin = 20
	previewTopMargin  = 30
	previewPadding    = 20
)

// LayoutService calls an external layout-detection service for page
// regions and turns the figure-class detections into cropped diagram
// images plus the labeled preview sheet the mapping step reads.
type LayoutService struct {
	baseURL    string
	confidence float64
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewLayoutService(cfg config.LayoutConfig, logger *logrus.Logger) *LayoutService {
	return &LayoutService{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		confidence: cfg.Confidence,
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
	}
}

// DetectRegions posts one page image to the layout service and returns
// the detections at or above the configured confidence.
func (s *LayoutService) DetectRegions(ctx context.Context, imagePath string) ([]types.LayoutRegion, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filepath.Base(imagePath))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		f.Close()
		return nil, err
	}
	f.Close()
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/detect", body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("layout service request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("layout service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded types.LayoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode layout response: %w", err)
	}

	var kept []types.LayoutRegion
	for _, region := range decoded.Regions {
		if region.Confidence >= s.confidence {
			kept = append(kept, region)
		}
	}
	return kept, nil
}

// ExtractDiagrams detects and crops printed figures from the rasterized
// pages, writes figure-N.png crops and a labeled preview sheet, and
// returns the metadata artifact describing them.
func (s *LayoutService) ExtractDiagrams(ctx context.Context, pagePNGs []string, imagesDir, previewsDir string) (*types.DiagramMeta, error) {
	meta := &types.DiagramMeta{Figures: []types.FigureInfo{}}
	var pageCrops [][]image.Image

	counter := 1
	for pageIdx, pagePath := range pagePNGs {
		regions, err := s.DetectRegions(ctx, pagePath)
		if err != nil {
			return nil, fmt.Errorf("detect page %d: %w", pageIdx+1, err)
		}

		var figureBoxes []types.LayoutBox
		for _, region := range regions {
			if strings.EqualFold(region.Label, figureLabel) {
				figureBoxes = append(figureBoxes, region.Box)
			}
		}
		merged := mergeOverlappingBoxes(figureBoxes)
		if len(merged) == 0 {
			pageCrops = append(pageCrops, nil)
			continue
		}

		page, err := loadPNG(pagePath)
		if err != nil {
			return nil, err
		}
		var crops []image.Image
		for _, box := range merged {
			crop := cropImage(page, box)
			savePath := filepath.Join(imagesDir, fmt.Sprintf("figure-%d.png", counter))
			if err := savePNG(savePath, crop); err != nil {
				return nil, err
			}
			meta.Figures = append(meta.Figures, types.FigureInfo{
				FigureID: counter,
				Page:     pageIdx + 1,
				Path:     savePath,
			})
			crops = append(crops, crop)
			counter++
		}
		pageCrops = append(pageCrops, crops)
	}

	if len(meta.Figures) > 0 {
		preview := composePreview(pageCrops)
		previewPath := filepath.Join(previewsDir, fmt.Sprintf("preview_%s.png", time.Now().Format("20060102_150405")))
		if err := savePNG(previewPath, preview); err != nil {
			return nil, err
		}
		meta.Preview = previewPath
	}

	s.logger.WithFields(logrus.Fields{
		"pages":   len(pagePNGs),
		"figures": len(meta.Figures),
	}).Info("diagram extraction finished")
	return meta, nil
}

// mergeOverlappingBoxes unions vertically overlapping figure detections on
// one page; detectors often split a single printed figure into fragments.
// Merged boxes come back in top-to-bottom order.
func mergeOverlappingBoxes(boxes []types.LayoutBox) []types.LayoutBox {
	n := len(boxes)
	if n == 0 {
		return nil
	}

	parents := make([]int, n)
	for i := range parents {
		parents[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parents[i] != i {
			parents[i] = find(parents[i])
		}
		return parents[i]
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if boxes[i].Y1 < boxes[j].Y2 && boxes[j].Y1 < boxes[i].Y2 {
				pi, pj := find(i), find(j)
				if pi != pj {
					parents[pj] = pi
				}
			}
		}
	}

	groups := make(map[int][]types.LayoutBox)
	for i := 0; i < n; i++ {
		root := find(i)
		groups[root] = append(groups[root], boxes[i])
	}

	merged := make([]types.LayoutBox, 0, len(groups))
	for _, grp := range groups {
		out := grp[0]
		for _, b := range grp[1:] {
			if b.X1 < out.X1 {
				out.X1 = b.X1
			}
			if b.Y1 < out.Y1 {
				out.Y1 = b.Y1
			}
			if b.X2 > out.X2 {
				out.X2 = b.X2
			}
			if b.Y2 > out.Y2 {
				out.Y2 = b.Y2
			}
		}
		merged = append(merged, out)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Y1 < merged[j].Y1 })
	return merged
}

// composePreview renders the sheet the mapping model reads: a heading,
// per-page subheaders, and every crop above its figure label, in a single
// column of fixed-width thumbnails.
func composePreview(pageCrops [][]image.Image) image.Image {
	heading := "Here are figures present:"

	headingH := labelHeight(4)
	pageH := labelHeight(3)
	labelH := labelHeight(2)

	totalHeight := previewTopMargin + headingH + previewPadding
	for _, crops := range pageCrops {
		if len(crops) == 0 {
			continue
		}
		totalHeight += pageH + previewPadding
		for _, crop := range crops {
			totalHeight += labelH + previewPadding
			totalHeight += thumbHeight(crop) + previewPadding
		}
	}
	totalHeight += previewTopMargin

	canvas := image.NewRGBA(image.Rect(0, 0, previewThumbWidth+2*previewLeftMargin, totalHeight))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	y := previewTopMargin
	drawLabel(canvas, previewLeftMargin, y, heading, 4)
	y += headingH + previewPadding

	counter := 1
	for pageIdx, crops := range pageCrops {
		if len(crops) == 0 {
			continue
		}
		drawLabel(canvas, previewLeftMargin, y, fmt.Sprintf("Page %d", pageIdx+1), 3)
		y += pageH + previewPadding

		for _, crop := range crops {
			drawLabel(canvas, previewLeftMargin, y, fmt.Sprintf("Figure %d", counter), 2)
			y += labelH + previewPadding

			th := thumbHeight(crop)
			target := image.Rect(previewLeftMargin, y, previewLeftMargin+previewThumbWidth, y+th)
			draw.ApproxBiLinear.Scale(canvas, target, crop, crop.Bounds(), draw.Over, nil)
			y += th + previewPadding
			counter++
		}
	}
	return canvas
}

// drawLabel renders text at an integer multiple of the 7x13 base face.
// The preview is read by a vision model, so labels must stay legible at
// thumbnail resolution.
func drawLabel(dst *image.RGBA, x, y int, text string, scale int) {
	face := basicfont.Face7x13
	w := font.MeasureString(face, text).Ceil()
	if w == 0 {
		return
	}

	tmp := image.NewRGBA(image.Rect(0, 0, w, face.Height))
	d := &font.Drawer{
		Dst:  tmp,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P(0, face.Ascent),
	}
	d.DrawString(text)

	target := image.Rect(x, y, x+w*scale, y+face.Height*scale)
	draw.NearestNeighbor.Scale(dst, target, tmp, tmp.Bounds(), draw.Over, nil)
}

func labelHeight(scale int) int {
	return basicfont.Face7x13.Height * scale
}

func thumbHeight(img image.Image) int {
	b := img.Bounds()
	if b.Dx() == 0 {
		return 0
	}
	return b.Dy() * previewThumbWidth / b.Dx()
}

func cropImage(src image.Image, box types.LayoutBox) image.Image {
	rect := image.Rect(box.X1, box.Y1, box.X2, box.Y2).Intersect(src.Bounds())
	if rect.Empty() {
		rect = src.Bounds()
	}
	out := image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy()))
	draw.Draw(out, out.Bounds(), src, rect.Min, draw.Src)
	return out
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func savePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}
