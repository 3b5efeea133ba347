package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var pdfHeader = []byte("%PDF-")

// Validator checks uploads before any text extraction runs.
type Validator struct {
	maxFileSize int64
}

// NewValidator creates a validator. A non-positive limit disables the size
// check.
func NewValidator(maxFileSize int64) *Validator {
	return &Validator{maxFileSize: maxFileSize}
}

// Validate rejects empty, oversized and non-PDF data. Structural problems
// found by pdfcpu are reported as warnings because the text layer is often
// still readable.
func (v *Validator) Validate(data []byte) (*DocumentInfo, error) {
	size := int64(len(data))
	if size == 0 {
		return nil, ErrEmptyDocument
	}
	if v.maxFileSize > 0 && size > v.maxFileSize {
		return nil, fmt.Errorf("%w: %d bytes (max: %d bytes)", ErrTooLarge, size, v.maxFileSize)
	}

	head := data[:min(len(data), 1024)]
	if !bytes.Contains(head, pdfHeader) {
		return nil, ErrNotPDF
	}

	info := &DocumentInfo{Size: size}

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := readContext(data, conf)
	if err != nil {
		info.Warnings = append(info.Warnings, fmt.Sprintf("structure check: %v", err))
		return info, nil
	}

	if err := ctx.EnsurePageCount(); err != nil {
		info.Warnings = append(info.Warnings, fmt.Sprintf("page count: %v", err))
	}
	info.Pages = ctx.PageCount

	return info, nil
}

func readContext(data []byte, conf *model.Configuration) (ctx *model.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()
	return api.ReadContext(bytes.NewReader(data), conf)
}
