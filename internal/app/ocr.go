package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"time"

	"github.com/disintegration/imaging"
)

const (
	defaultOCRCommand    = "tesseract"
	defaultRenderCommand = "pdftoppm"
	defaultOCRLanguage   = "eng"
	defaultOCRTimeout    = 120 * time.Second
)

// CommandOCR shells out to tesseract (or a compatible CLI) for text
// recognition and to pdftoppm for PDF page rasterization. Images are
// preprocessed with grayscale/contrast/sharpen before recognition, which
// noticeably helps on photographed invoices.
type CommandOCR struct {
	ocrCommand    string
	renderCommand string
	language      string
	timeout       time.Duration
	preprocess    bool
}

// CommandOCRConfig configures the external OCR commands.
type CommandOCRConfig struct {
	OCRCommand    string
	RenderCommand string
	Language      string
	Timeout       time.Duration
	Preprocess    bool
}

// NewCommandOCR builds the command-backed engine with defaults applied.
func NewCommandOCR(cfg CommandOCRConfig) *CommandOCR {
	ocrCommand := cfg.OCRCommand
	if ocrCommand == "" {
		ocrCommand = defaultOCRCommand
	}
	renderCommand := cfg.RenderCommand
	if renderCommand == "" {
		renderCommand = defaultRenderCommand
	}
	language := cfg.Language
	if language == "" {
		language = defaultOCRLanguage
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOCRTimeout
	}
	return &CommandOCR{
		ocrCommand:    ocrCommand,
		renderCommand: renderCommand,
		language:      language,
		timeout:       timeout,
		preprocess:    cfg.Preprocess,
	}
}

// Recognize runs OCR over one image and returns the recognized text.
func (c *CommandOCR) Recognize(ctx context.Context, imagePath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := imagePath
	if c.preprocess {
		processed, err := preprocessImage(imagePath)
		if err == nil {
			target = processed
			defer os.Remove(processed)
		}
	}
	cmd := exec.CommandContext(ctx, c.ocrCommand, target, "stdout", "-l", c.language, "--psm", "3")
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w", c.ocrCommand, err)
	}
	return out.String(), nil
}

// RenderPages rasterizes every PDF page to a PNG under dir and returns the
// generated paths sorted by page number.
func (c *CommandOCR) RenderPages(ctx context.Context, pdfPath, dir string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	prefix := filepath.Join(dir, "page")
	cmd := exec.CommandContext(ctx, c.renderCommand, "-png", "-r", "300", pdfPath, prefix)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w", c.renderCommand, err)
	}
	pages, err := filepath.Glob(prefix + "*.png")
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("no page images generated")
	}
	sortPageFiles(pages)
	return pages, nil
}

var pageNumPattern = regexp.MustCompile(`(\d+)\.png$`)

// sortPageFiles orders rendered page images by the page number embedded in
// the filename. pdftoppm emits page-1.png, page-10.png, ... so a plain
// lexicographic sort would misorder documents past nine pages.
func sortPageFiles(files []string) {
	sort.Slice(files, func(i, j int) bool {
		return pageFileNum(files[i]) < pageFileNum(files[j])
	})
}

func pageFileNum(path string) int {
	m := pageNumPattern.FindStringSubmatch(filepath.Base(path))
	if len(m) < 2 {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// preprocessImage writes an OCR-friendly copy of the image next to the
// original and returns its path. The caller removes it.
func preprocessImage(path string) (string, error) {
	src, err := imaging.Open(path)
	if err != nil {
		return "", err
	}
	img := imaging.Grayscale(src)
	img = imaging.AdjustContrast(img, 30)
	img = imaging.Sharpen(img, 1.5)

	out := path + ".ocr.jpg"
	if err := imaging.Save(img, out); err != nil {
		return "", err
	}
	return out, nil
}
