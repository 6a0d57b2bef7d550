package extract

import (
	"fmt"
	"strings"

	"github.com/gen2brain/go-fitz"
)

func pdfText(data []byte) (string, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := make([]string, 0, doc.NumPage())
	for n := 0; n < doc.NumPage(); n++ {
		text, err := doc.Text(n)
		if err != nil {
			return "", fmt.Errorf("extract pdf page %d: %w", n+1, err)
		}
		pages = append(pages, strings.TrimRight(text, "\n"))
	}

	return strings.Join(pages, "\n"), nil
}
