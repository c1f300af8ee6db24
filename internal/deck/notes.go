package deck

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"
)

const (
	notesSlideRelType     = relNamespace + "/notesSlide"
	notesMasterRelType    = relNamespace + "/notesMaster"
	slideRelType          = relNamespace + "/slide"
	notesSlideContentType = "application/vnd.openxmlformats-officedocument.presentationml.notesSlide+xml"

	xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"
)

type relsOutputXML struct {
	XMLName xml.Name       `xml:"http://schemas.openxmlformats.org/package/2006/relationships Relationships"`
	Rels    []relOutputXML `xml:"Relationship"`
}

type relOutputXML struct {
	ID     string `xml:"Id,attr"`
	Type   string `xml:"Type,attr"`
	Target string `xml:"Target,attr"`
}

type contentTypesXML struct {
	XMLName   xml.Name           `xml:"http://schemas.openxmlformats.org/package/2006/content-types Types"`
	Defaults  []contentTypeEntry `xml:"Default"`
	Overrides []contentTypeEntry `xml:"Override"`
}

type contentTypeEntry struct {
	Extension   string `xml:"Extension,attr,omitempty"`
	PartName    string `xml:"PartName,attr,omitempty"`
	ContentType string `xml:"ContentType,attr"`
}

// InjectNotes rewrites a PPTX container so that each slide's speaker notes
// hold the narration keyed by 1-based slide index. Slide visuals are copied
// through untouched; only notesSlide parts (and the bookkeeping that points
// at them) change. Slides absent from narrations keep their existing notes.
func InjectNotes(original []byte, narrations map[int]string) ([]byte, error) {
	c, err := openContainer(original)
	if err != nil {
		return nil, err
	}

	slideNames, err := c.slideParts()
	if err != nil {
		return nil, err
	}

	replaced := make(map[string][]byte)
	added := make(map[string][]byte)

	ct, err := c.parseContentTypes()
	if err != nil {
		return nil, err
	}
	ctChanged := false

	nextNotes := c.nextNotesNumber()
	notesMaster := c.firstNotesMaster()

	for i, slideName := range slideNames {
		narration, ok := narrations[i+1]
		if !ok {
			continue
		}

		if existing := c.notesPart(slideName); existing != "" {
			replaced[existing] = notesSlideXML(narration)
			continue
		}

		// Slide has no notes part yet: mint one and wire it up.
		notesName := fmt.Sprintf("ppt/notesSlides/notesSlide%d.xml", nextNotes)
		nextNotes++

		added[notesName] = notesSlideXML(narration)
		added[relsPath(notesName)] = notesRelsXML(notesMaster, slideName, notesName)

		slideRels, err := c.slideRelsWithNotes(slideName, notesName)
		if err != nil {
			return nil, err
		}
		relsName := relsPath(slideName)
		if _, exists := c.parts[relsName]; exists {
			replaced[relsName] = slideRels
		} else {
			added[relsName] = slideRels
		}

		ct.Overrides = append(ct.Overrides, contentTypeEntry{
			PartName:    "/" + notesName,
			ContentType: notesSlideContentType,
		})
		ctChanged = true
	}

	if ctChanged {
		data, err := xml.Marshal(ct)
		if err != nil {
			return nil, fmt.Errorf("marshal content types: %w", err)
		}
		replaced["[Content_Types].xml"] = append([]byte(xmlHeader), data...)
	}

	return rewriteArchive(original, replaced, added)
}

// rewriteArchive copies the ZIP through entry by entry, substituting replaced
// parts and appending new ones.
func rewriteArchive(original []byte, replaced, added map[string][]byte) ([]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(original), int64(len(original)))
	if err != nil {
		return nil, fmt.Errorf("not a ZIP container: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range zr.File {
		w, err := zw.Create(f.Name)
		if err != nil {
			return nil, fmt.Errorf("write part %s: %w", f.Name, err)
		}

		if data, ok := replaced[f.Name]; ok {
			if _, err := w.Write(data); err != nil {
				return nil, fmt.Errorf("write part %s: %w", f.Name, err)
			}
			continue
		}

		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open part %s: %w", f.Name, err)
		}
		_, err = io.Copy(w, rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("copy part %s: %w", f.Name, err)
		}
	}

	for name, data := range added {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("write part %s: %w", name, err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("write part %s: %w", name, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize container: %w", err)
	}
	return buf.Bytes(), nil
}

// notesSlideXML builds a minimal notesSlide part holding the narration in
// the body placeholder, one <a:p> per line.
func notesSlideXML(text string) []byte {
	var paragraphs strings.Builder
	for _, line := range strings.Split(text, "\n") {
		paragraphs.WriteString("<a:p><a:r><a:t>")
		paragraphs.WriteString(escapeXML(line))
		paragraphs.WriteString("</a:t></a:r></a:p>")
	}

	body := `<p:notes xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="` + relNamespace + `" xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main">` +
		`<p:cSld><p:spTree>` +
		`<p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr/>` +
		`<p:sp><p:nvSpPr><p:cNvPr id="2" name="Notes Placeholder"/><p:cNvSpPr><a:spLocks noGrp="1"/></p:cNvSpPr><p:nvPr><p:ph type="body" idx="1"/></p:nvPr></p:nvSpPr>` +
		`<p:spPr/><p:txBody><a:bodyPr/><a:lstStyle/>` + paragraphs.String() + `</p:txBody></p:sp>` +
		`</p:spTree></p:cSld><p:clrMapOvr><a:masterClrMapping/></p:clrMapOvr></p:notes>`

	return []byte(xmlHeader + body)
}

// notesRelsXML builds the rels part for a freshly minted notesSlide,
// pointing back at its slide and at the notes master when the deck has one.
func notesRelsXML(notesMaster, slideName, notesName string) []byte {
	rels := relsOutputXML{}
	rid := 1
	if notesMaster != "" {
		rels.Rels = append(rels.Rels, relOutputXML{
			ID:     fmt.Sprintf("rId%d", rid),
			Type:   notesMasterRelType,
			Target: relativeTarget(notesName, notesMaster),
		})
		rid++
	}
	rels.Rels = append(rels.Rels, relOutputXML{
		ID:     fmt.Sprintf("rId%d", rid),
		Type:   slideRelType,
		Target: relativeTarget(notesName, slideName),
	})

	data, _ := xml.Marshal(rels)
	return append([]byte(xmlHeader), data...)
}

// slideRelsWithNotes returns the slide's rels content with a notesSlide
// relationship appended, preserving existing relationships.
func (c *container) slideRelsWithNotes(slideName, notesName string) ([]byte, error) {
	out := relsOutputXML{}
	maxID := 0

	if relsData, err := c.read(relsPath(slideName)); err == nil {
		var existing relationshipsXML
		if err := xml.Unmarshal(relsData, &existing); err != nil {
			return nil, fmt.Errorf("parse slide rels: %w", err)
		}
		for _, rel := range existing.Relationships {
			out.Rels = append(out.Rels, relOutputXML{ID: rel.ID, Type: rel.Type, Target: rel.Target})
			if n, err := strconv.Atoi(strings.TrimPrefix(rel.ID, "rId")); err == nil && n > maxID {
				maxID = n
			}
		}
	}

	out.Rels = append(out.Rels, relOutputXML{
		ID:     fmt.Sprintf("rId%d", maxID+1),
		Type:   notesSlideRelType,
		Target: relativeTarget(slideName, notesName),
	})

	data, err := xml.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal slide rels: %w", err)
	}
	return append([]byte(xmlHeader), data...), nil
}

func (c *container) parseContentTypes() (*contentTypesXML, error) {
	data, err := c.read("[Content_Types].xml")
	if err != nil {
		return nil, err
	}
	var ct contentTypesXML
	if err := xml.Unmarshal(data, &ct); err != nil {
		return nil, fmt.Errorf("parse content types: %w", err)
	}
	return &ct, nil
}

// nextNotesNumber returns one past the highest existing notesSlide part
// number.
func (c *container) nextNotesNumber() int {
	max := 0
	for name := range c.parts {
		if !strings.HasPrefix(name, "ppt/notesSlides/notesSlide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		numStr := strings.TrimSuffix(strings.TrimPrefix(name, "ppt/notesSlides/notesSlide"), ".xml")
		if n, err := strconv.Atoi(numStr); err == nil && n > max {
			max = n
		}
	}
	return max + 1
}

// firstNotesMaster returns the deck's notes master part, or "" when absent.
func (c *container) firstNotesMaster() string {
	for name := range c.parts {
		if strings.HasPrefix(name, "ppt/notesMasters/notesMaster") && strings.HasSuffix(name, ".xml") {
			return name
		}
	}
	return ""
}

// relsPath returns the rels part name for a part.
func relsPath(partName string) string {
	return path.Join(path.Dir(partName), "_rels", path.Base(partName)+".rels")
}

// relativeTarget computes the ../-style target from one part to another.
func relativeTarget(fromPart, toPart string) string {
	fromDir := strings.Split(path.Dir(fromPart), "/")
	to := strings.Split(toPart, "/")

	common := 0
	for common < len(fromDir) && common < len(to)-1 && fromDir[common] == to[common] {
		common++
	}

	var parts []string
	for i := common; i < len(fromDir); i++ {
		parts = append(parts, "..")
	}
	parts = append(parts, to[common:]...)
	return strings.Join(parts, "/")
}

func escapeXML(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
