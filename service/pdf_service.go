package service

import (
	"bufio"
	"bytes"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/sirupsen/logrus"

	"github.com/openpariksha/pariksha-be/utils"
)

var pdfinfoPagesPattern = regexp.MustCompile(`Pages:\s+(\d+)`)

// PDFService wraps the PDF toolchain: pdfcpu for structural operations
// and the poppler utilities for rasterization and text extraction.
type PDFService struct {
	logger *logrus.Logger
}

func NewPDFService(logger *logrus.Logger) *PDFService {
	return &PDFService{logger: logger}
}

func (s *PDFService) Validate(path string) error {
	if err := api.ValidateFile(path, nil); err != nil {
		return fmt.Errorf("invalid PDF %s: %w", filepath.Base(path), err)
	}
	return nil
}

// PageCount reads the page count with pdfcpu, falling back to pdfinfo for
// files pdfcpu refuses to open.
func (s *PDFService) PageCount(path string) (int, error) {
	count, err := api.PageCountFile(path)
	if err == nil && count > 0 {
		return count, nil
	}
	if err != nil {
		s.logger.WithError(err).WithField("pdf", filepath.Base(path)).Debug("pdfcpu page count failed, trying pdfinfo")
	}
	return pageCountFromPdfinfo(path)
}

// SplitPages writes each page of the source PDF as its own file under
// outDir, named page_NNN.pdf in page order.
func (s *PDFService) SplitPages(path, outDir string) ([]string, error) {
	total, err := s.PageCount(path)
	if err != nil {
		return nil, err
	}
	if err := utils.EnsureDir(outDir); err != nil {
		return nil, err
	}

	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		outFile := filepath.Join(outDir, utils.PageFileName(i, total))
		if err := api.TrimFile(path, outFile, []string{strconv.Itoa(i)}, nil); err != nil {
			return nil, fmt.Errorf("split page %d: %w", i, err)
		}
		pages = append(pages, outFile)
	}
	return pages, nil
}

// RasterizePages renders every page to PNG via pdftoppm and returns the
// files in page order. pdftoppm zero-pads its page suffix, so the sorted
// glob is the page order.
func (s *PDFService) RasterizePages(path, outDir string, dpi int) ([]string, error) {
	if err := utils.EnsureDir(outDir); err != nil {
		return nil, err
	}

	prefix := filepath.Join(outDir, "page")
	cmd := exec.Command("pdftoppm", "-png", "-r", strconv.Itoa(dpi), path, prefix)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %v: %s", err, strings.TrimSpace(stderr.String()))
	}

	files, err := filepath.Glob(prefix + "-*.png")
	if err != nil || len(files) == 0 {
		return nil, fmt.Errorf("pdftoppm produced no pages for %s", filepath.Base(path))
	}
	sort.Strings(files)
	return files, nil
}

// ExtractText pulls the embedded text layer with pdftotext.
func (s *PDFService) ExtractText(path string) (string, error) {
	cmd := exec.Command("pdftotext", "-enc", "UTF-8", "-nopgbrk", path, "-")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("pdftotext failed: %v", err)
	}
	return strings.TrimSpace(out.String()), nil
}

// ExtractEmbeddedImages dumps the PDF's embedded raster images; useful when
// a scan carries figures as discrete objects instead of page content.
func (s *PDFService) ExtractEmbeddedImages(path, outDir string) error {
	if err := utils.EnsureDir(outDir); err != nil {
		return err
	}
	return api.ExtractImagesFile(path, outDir, nil, nil)
}

func pageCountFromPdfinfo(path string) (int, error) {
	cmd := exec.Command("pdfinfo", path)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("error running pdfinfo: %v", err)
	}

	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		if matches := pdfinfoPagesPattern.FindStringSubmatch(scanner.Text()); len(matches) == 2 {
			return strconv.Atoi(matches[1])
		}
	}
	return 0, fmt.Errorf("unable to determine page count from pdfinfo")
}
