package tools

import (
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"mogzi/internal/mogerr"
	"mogzi/internal/toolxml"
)

const pdfPlaceholder = "[unable to extract text from this PDF]"

// ReadPDFFile implements read_pdf_file: validates the %PDF- header,
// extracts per-page text annotated "--- Page N ---", and falls back to
// a placeholder with page_count=0 on extraction failure rather than
// failing the whole tool call. Extraction results are cached keyed by
// path+mtime, so re-reading an unchanged PDF skips the parse.
func ReadPDFFile(ctx Context, path string) string {
	absPath, err := resolvePath(ctx, path)
	if err != nil {
		return toolxml.Render(failure("read_pdf_file", err))
	}

	header := make([]byte, 5)
	f, err := os.Open(absPath)
	if err != nil {
		return toolxml.Render(failure("read_pdf_file", mogerr.Wrap(mogerr.FileNotFound, "failed to open file", err)))
	}
	_, readErr := f.Read(header)
	f.Close()
	if readErr != nil || string(header) != "%PDF-" {
		return toolxml.Render(failure("read_pdf_file", mogerr.New(mogerr.InvalidArguments, "not a PDF file: "+path)))
	}

	content, pageCount, hit := cachedPDFText(ctx, absPath)
	if !hit {
		var extractErr error
		content, pageCount, extractErr = extractPDFText(absPath)
		if extractErr != nil {
			content = pdfPlaceholder
			pageCount = 0
		} else {
			storePDFText(ctx, absPath, content, pageCount)
		}
	}

	return toolxml.Render(toolxml.Response{
		ToolName: "read_pdf_file",
		Notes:    fmt.Sprintf("page_count=%d", pageCount),
		Result: toolxml.Result{
			Status:         toolxml.Success,
			AbsolutePath:   absPath,
			SHA256Checksum: sha256Hex([]byte(content)),
		},
		ContentOnDisk: content,
	})
}

func pdfCacheKey(absPath string) string {
	info, err := os.Stat(absPath)
	if err != nil {
		return ""
	}
	return fmt.Sprintf("pdf:%s:%d:%d", absPath, info.ModTime().UnixNano(), info.Size())
}

func cachedPDFText(ctx Context, absPath string) (string, int, bool) {
	key := pdfCacheKey(absPath)
	if key == "" {
		return "", 0, false
	}
	raw, ok := ctx.Cache.Get(key)
	if !ok {
		return "", 0, false
	}
	sep := strings.IndexByte(raw, '\x00')
	if sep == -1 {
		return "", 0, false
	}
	var pageCount int
	if _, err := fmt.Sscanf(raw[:sep], "%d", &pageCount); err != nil {
		return "", 0, false
	}
	return raw[sep+1:], pageCount, true
}

func storePDFText(ctx Context, absPath, content string, pageCount int) {
	key := pdfCacheKey(absPath)
	if key == "" {
		return
	}
	ctx.Cache.Set(key, fmt.Sprintf("%d\x00%s", pageCount, content))
}

func extractPDFText(absPath string) (string, int, error) {
	file, reader, err := pdf.Open(absPath)
	if err != nil {
		return "", 0, err
	}
	defer file.Close()

	total := reader.NumPage()
	var b strings.Builder
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		fmt.Fprintf(&b, "--- Page %d ---\n%s\n", i, text)
	}
	return b.String(), total, nil
}
