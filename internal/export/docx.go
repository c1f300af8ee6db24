package export

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/deckvoice/deckvoice/internal/domain"
)

// DOCX is an OPC container like PPTX: a ZIP of XML parts. The export needs
// only the content types, the package rels, and the document body, plus a
// minimal styles part so slide headings render as headings.

const docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>
</Types>`

const docxPackageRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

const docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>
</Relationships>`

const docxStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:rPr><w:b/><w:sz w:val="48"/></w:rPr></w:style>
<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>
</w:styles>`

// docxArtifact renders the narration script as a Word document: a title,
// then one Slide-n heading and narration section per slide in index order.
func docxArtifact(run *domain.ProcessingRun) ([]byte, error) {
	var body strings.Builder
	body.WriteString(docxHeading("Title", "Narration Script"))

	for _, slide := range run.Slides {
		body.WriteString(docxHeading("Heading1", fmt.Sprintf("Slide %d", slide.Index)))
		for _, line := range strings.Split(slide.NarrationParagraph, "\n") {
			body.WriteString(docxParagraph(line))
		}
	}

	document := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:body>` + body.String() + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxPackageRels},
		{"word/_rels/document.xml.rels", docxDocumentRels},
		{"word/styles.xml", docxStyles},
		{"word/document.xml", document},
	}
	for _, part := range parts {
		w, err := zw.Create(part.name)
		if err != nil {
			return nil, domain.InternalError("build document container", err)
		}
		if _, err := w.Write([]byte(part.data)); err != nil {
			return nil, domain.InternalError("build document container", err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, domain.InternalError("finalize document container", err)
	}
	return buf.Bytes(), nil
}

func docxHeading(style, text string) string {
	return `<w:p><w:pPr><w:pStyle w:val="` + style + `"/></w:pPr><w:r><w:t xml:space="preserve">` +
		escapeDocxText(text) + `</w:t></w:r></w:p>`
}

func docxParagraph(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + escapeDocxText(text) + `</w:t></w:r></w:p>`
}

func escapeDocxText(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
