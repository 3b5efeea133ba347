package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

// readText pulls the embedded text layer from every page and concatenates
// it in page order with no separator. Pages that fail to decode are skipped
// and reported as warnings.
func readText(data []byte) (text string, pages int, warnings []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	pages = reader.NumPage()
	var builder strings.Builder
	for pageNum := 1; pageNum <= pages; pageNum++ {
		content, err := pageText(reader, pageNum)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("page %d: %v", pageNum, err))
			continue
		}
		builder.WriteString(content)
	}

	return builder.String(), pages, warnings, nil
}

func pageText(reader *pdf.Reader, pageNum int) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("text decode panic: %v", r)
		}
	}()

	page := reader.Page(pageNum)
	if page.V.IsNull() {
		return "", nil
	}
	return page.GetPlainText(nil)
}

func isBlank(s string) bool {
	return strings.TrimFunc(s, unicode.IsSpace) == ""
}
