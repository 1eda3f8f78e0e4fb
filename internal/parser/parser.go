package parser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"askpdf/internal/models"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// SupportedExtensions lists the file extensions Load understands.
var SupportedExtensions = []string{".pdf", ".docx", ".xlsx", ".md", ".markdown", ".html", ".htm", ".txt"}

// Load extracts the plain text of an uploaded file. The format is picked from
// the extension of name. Empty data yields an empty document and no error.
func Load(name string, data []byte) (*models.Document, error) {
	doc := &models.Document{Name: name, Data: data}
	if len(data) == 0 {
		return doc, nil
	}

	var err error
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".pdf":
		doc.Text, doc.Pages, err = parsePDF(data)
	case ".docx":
		doc.Text, err = parseDOCX(data)
		doc.Pages = 1
	case ".xlsx":
		doc.Text, doc.Pages, err = parseXLSX(data)
	case ".md", ".markdown":
		doc.Text, err = parseMarkdown(data)
		doc.Pages = 1
	case ".html", ".htm":
		doc.Text, err = parseHTML(data)
		doc.Pages = 1
	case ".txt":
		doc.Text = string(data)
		doc.Pages = 1
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	log.Debug().Str("file", name).Int("pages", doc.Pages).Int("chars", len([]rune(doc.Text))).Msg("Extracted document text")
	return doc, nil
}

// every page contributes its text followed by a newline, pages without text
// contribute the newline only
func parsePDF(data []byte) (content string, pages int, err error) {
	// the pdf package panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}

	var sb strings.Builder
	pages = reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			log.Debug().Int("page", i).Msg("Skipping null page")
			sb.WriteString("\n")
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		if pageText == "" {
			log.Debug().Int("page", i).Msg("Page has no extractable text")
		}
		sb.WriteString(pageText)
		sb.WriteString("\n")
	}
	return sb.String(), pages, nil
}

func parseDOCX(data []byte) (string, error) {
	r, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	defer r.Close()

	return wordXMLText(r.Editable().GetContent())
}

// wordXMLText keeps the w:t runs of a WordprocessingML body, one line per
// paragraph.
func wordXMLText(content string) (string, error) {
	dec := xml.NewDecoder(strings.NewReader(content))
	var sb strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to decode document xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				sb.WriteString("\t")
			case "br":
				sb.WriteString("\n")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}
	return sb.String(), nil
}

func parseXLSX(data []byte) (string, int, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	var sb strings.Builder
	sheets := f.GetSheetList()
	for _, sheetName := range sheets {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			log.Warn().Err(err).Str("sheet", sheetName).Msg("Skipping unreadable sheet")
			continue
		}
		sb.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
	}
	return sb.String(), len(sheets), nil
}

// parseHTML converts the page body to markdown and keeps its plain text.
// Scripts and styles are dropped.
func parseHTML(data []byte) (string, error) {
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	page.Find("script, style, noscript").Remove()
	body := page.Find("body")
	if body.Length() == 0 {
		body = page.Selection
	}
	markdown := md.NewConverter("", true, nil).Convert(body)
	return parseMarkdown([]byte(markdown))
}

// FindDocuments lists the files under dir, at any depth, that Load can read.
// Hidden files and directories are skipped.
func FindDocuments(dir string) ([]string, error) {
	exts := make([]string, 0, len(SupportedExtensions))
	for _, ext := range SupportedExtensions {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	pattern := filepath.Join(dir, "**", "*.{"+strings.Join(exts, ",")+"}")
	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly(), doublestar.WithNoHidden())
	if err != nil {
		return nil, fmt.Errorf("failed to search %s for documents: %w", dir, err)
	}
	return matches, nil
}

// parseMarkdown renders markdown source down to its plain text.
func parseMarkdown(src []byte) (string, error) {
	root := goldmark.New().Parser().Parse(text.NewReader(src))

	var sb strings.Builder
	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteString("\n")
		}
	}
	err := ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			if n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				newline()
			}
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				sb.Write(seg.Value(src))
			}
			return ast.WalkSkipChildren, nil
		case *ast.AutoLink:
			sb.Write(node.Label(src))
			return ast.WalkSkipChildren, nil
		case *ast.Text:
			sb.Write(node.Segment.Value(src))
			if node.SoftLineBreak() || node.HardLineBreak() {
				sb.WriteString("\n")
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return "", err
	}
	return sb.String(), nil
}
