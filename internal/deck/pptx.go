package deck

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// PPTX files are OPC containers: a ZIP whose parts are XML documents. Slide
// order comes from ppt/presentation.xml (sldIdLst), which references slide
// parts through the package relationships file. Speaker notes live in
// separate notesSlide parts reachable through each slide's own rels.

const relNamespace = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"

type presentationXML struct {
	XMLName  xml.Name `xml:"presentation"`
	SlideIDs []struct {
		RelID string `xml:"http://schemas.openxmlformats.org/officeDocument/2006/relationships id,attr"`
	} `xml:"sldIdLst>sldId"`
}

type relationshipsXML struct {
	XMLName       xml.Name `xml:"Relationships"`
	Relationships []struct {
		ID     string `xml:"Id,attr"`
		Type   string `xml:"Type,attr"`
		Target string `xml:"Target,attr"`
	} `xml:"Relationship"`
}

// container wraps an opened PPTX archive with part lookup by name.
type container struct {
	parts map[string]*zip.File
}

func openContainer(data []byte) (*container, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a ZIP container: %w", err)
	}

	c := &container{parts: make(map[string]*zip.File, len(zr.File))}
	for _, f := range zr.File {
		c.parts[f.Name] = f
	}

	if c.parts["[Content_Types].xml"] == nil || c.parts["ppt/presentation.xml"] == nil {
		return nil, fmt.Errorf("missing presentation parts")
	}

	return c, nil
}

func (c *container) read(name string) ([]byte, error) {
	f, ok := c.parts[name]
	if !ok {
		return nil, fmt.Errorf("part %s not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open part %s: %w", name, err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

var slidePartPattern = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

// slideParts returns the slide part names in presentation order. Order comes
// from sldIdLst; when the presentation part cannot be resolved it falls back
// to numeric part-name order.
func (c *container) slideParts() ([]string, error) {
	ordered, err := c.slidePartsFromManifest()
	if err == nil && len(ordered) > 0 {
		return ordered, nil
	}

	var names []string
	for name := range c.parts {
		if slidePartPattern.MatchString(name) {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("presentation contains no slides")
	}
	sort.Slice(names, func(i, j int) bool {
		return slidePartNumber(names[i]) < slidePartNumber(names[j])
	})
	return names, nil
}

func slidePartNumber(name string) int {
	m := slidePartPattern.FindStringSubmatch(name)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

func (c *container) slidePartsFromManifest() ([]string, error) {
	presData, err := c.read("ppt/presentation.xml")
	if err != nil {
		return nil, err
	}
	var pres presentationXML
	if err := xml.Unmarshal(presData, &pres); err != nil {
		return nil, fmt.Errorf("parse presentation.xml: %w", err)
	}

	relsData, err := c.read("ppt/_rels/presentation.xml.rels")
	if err != nil {
		return nil, err
	}
	var rels relationshipsXML
	if err := xml.Unmarshal(relsData, &rels); err != nil {
		return nil, fmt.Errorf("parse presentation rels: %w", err)
	}

	targets := make(map[string]string, len(rels.Relationships))
	for _, rel := range rels.Relationships {
		targets[rel.ID] = rel.Target
	}

	var ordered []string
	for _, sld := range pres.SlideIDs {
		target, ok := targets[sld.RelID]
		if !ok {
			continue
		}
		ordered = append(ordered, resolvePart("ppt", target))
	}
	return ordered, nil
}

// notesPart resolves the notesSlide part for a slide, or "" when the slide
// has no notes.
func (c *container) notesPart(slidePart string) string {
	relsName := path.Join(path.Dir(slidePart), "_rels", path.Base(slidePart)+".rels")
	relsData, err := c.read(relsName)
	if err != nil {
		return ""
	}
	var rels relationshipsXML
	if err := xml.Unmarshal(relsData, &rels); err != nil {
		return ""
	}
	for _, rel := range rels.Relationships {
		if strings.HasSuffix(rel.Type, "/notesSlide") {
			return resolvePart(path.Dir(slidePart), rel.Target)
		}
	}
	return ""
}

// resolvePart resolves a relationship target against the source part's
// directory, honoring ../ prefixes.
func resolvePart(baseDir, target string) string {
	if strings.HasPrefix(target, "/") {
		return strings.TrimPrefix(target, "/")
	}
	return path.Clean(path.Join(baseDir, target))
}

// partText extracts visible text from a slide or notesSlide part. Text runs
// (<a:t>) within one paragraph (<a:p>) are concatenated; paragraphs become
// lines. Empty lines are dropped.
func partText(data []byte) (string, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))

	var (
		lines   []string
		current strings.Builder
		inRun   bool
	)

	flush := func() {
		line := strings.TrimSpace(current.String())
		if line != "" {
			lines = append(lines, line)
		}
		current.Reset()
	}

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse slide XML: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inRun = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inRun = false
			case "p":
				flush()
			}
		case xml.CharData:
			if inRun {
				current.Write(t)
			}
		}
	}
	flush()

	return strings.Join(lines, "\n"), nil
}
