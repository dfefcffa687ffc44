package extract

import (
	"fmt"
	"regexp"
	"strings"
)

const odfContentPath = "content.xml"

var (
	odfTextH    = regexp.MustCompile(`<text:h[^>]*>([^<]*)</text:h>`)
	odfTextP    = regexp.MustCompile(`<text:p[^>]*>([^<]*)</text:p>`)
	odfTextSpan = regexp.MustCompile(`<text:span[^>]*>([^<]*)</text:span>`)
)

// extractODF reads content.xml of an OpenDocument text, presentation or
// spreadsheet. Spreadsheets carry no headings.
func extractODF(content []byte, ext string) (string, error) {
	kind := strings.ToUpper(strings.TrimPrefix(ext, "."))
	zr, err := openZip(content, kind)
	if err != nil {
		return "", err
	}
	data, err := readZipEntry(zr, odfContentPath)
	if err != nil {
		return "", fmt.Errorf("extract %s: %w", kind, err)
	}
	if data == nil {
		return "", fmt.Errorf("extract %s: %s not found", kind, odfContentPath)
	}
	var w textWriter
	if kind == "ODS" {
		w.collect(string(data), odfTextP, odfTextSpan)
	} else {
		w.collect(string(data), odfTextH, odfTextP, odfTextSpan)
	}
	return w.String(), nil
}
