package storage

import (
	"bytes"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ValidatePDF checks that content is a structurally sound PDF. Conversion
// results are fetched from an external service; a truncated or mislabeled
// payload must not replace a previously good fillable rendition.
func ValidatePDF(content []byte) error {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	return api.Validate(bytes.NewReader(content), conf)
}
