package docpipe

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// stubRunner records the invocation and replays canned output.
type stubRunner struct {
	name   string
	args   []string
	stdout []byte
	err    error
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.name = name
	s.args = args
	return s.stdout, nil, s.err
}

func TestLooksLikeSVG(t *testing.T) {
	if !looksLikeSVG([]byte(`<?xml version="1.0"?><svg xmlns="http://www.w3.org/2000/svg">`)) {
		t.Fatal("svg prologue should be detected")
	}
	if !looksLikeSVG([]byte(`<SVG viewBox="0 0 10 10">`)) {
		t.Fatal("detection is case-insensitive")
	}
	if looksLikeSVG([]byte{0x89, 'P', 'N', 'G'}) {
		t.Fatal("png magic is not svg")
	}
}

func TestExtractSVG_MinesTextNodes(t *testing.T) {
	svg := `<svg xmlns="http://www.w3.org/2000/svg">
  <text x="10" y="20">Patient: <tspan font-weight="bold">Jane Doe</tspan></text>
  <rect width="5" height="5"/>
  <text x="10" y="40">DOB: 01/02/1980</text>
  <text x="10" y="60">   </text>
</svg>`

	res := extractSVG([]byte(svg))

	if len(res.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %+v", len(res.Lines), res.Lines)
	}
	if res.Lines[0].Text != "Patient: Jane Doe" {
		t.Fatalf("inner markup should be stripped: %q", res.Lines[0].Text)
	}
	if res.Lines[1].Text != "DOB: 01/02/1980" {
		t.Fatalf("second line: %q", res.Lines[1].Text)
	}
	if res.Pages != 1 {
		t.Fatalf("svg is single-page, got %d", res.Pages)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "bounding boxes unavailable") {
		t.Fatalf("svg path must warn about missing geometry: %v", res.Warnings)
	}
	for _, ln := range res.Lines {
		if ln.BBox != nil {
			t.Fatal("svg lines carry no geometry")
		}
	}
}

func TestExtractSVG_UnescapesEntities(t *testing.T) {
	res := extractSVG([]byte(`<svg><text>Smith &amp; Jones</text></svg>`))
	if len(res.Lines) != 1 || res.Lines[0].Text != "Smith & Jones" {
		t.Fatalf("entities should be unescaped: %+v", res.Lines)
	}
}

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t600\t800\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t72\t100\t60\t14\t96.2\tPatient:\n" +
	"5\t1\t1\t1\t1\t2\t140\t98\t70\t16\t91.0\tJane\n" +
	"5\t1\t1\t1\t1\t3\t215\t100\t40\t14\t93.5\tDoe\n" +
	"5\t1\t1\t1\t2\t1\t72\t130\t50\t14\t95.0\tDOB:\n" +
	"5\t1\t1\t1\t2\t2\t130\t130\t90\t14\t90.1\t01/02/1980\n"

func TestParseTesseractTSV(t *testing.T) {
	lines := parseTesseractTSV([]byte(sampleTSV))

	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %+v", len(lines), lines)
	}
	if lines[0].Text != "Patient: Jane Doe" {
		t.Fatalf("first line: %q", lines[0].Text)
	}
	if lines[1].Text != "DOB: 01/02/1980" {
		t.Fatalf("second line: %q", lines[1].Text)
	}

	// Union of the three word boxes: x0=72, top=98, x1=255, bottom=114.
	bbox := lines[0].BBox
	want := []float64{72, 98, 255, 114}
	for i := range want {
		if bbox[i] != want[i] {
			t.Fatalf("bbox[%d] = %v, want %v", i, bbox[i], want[i])
		}
	}
	if lines[0].Page != 1 || lines[1].Page != 1 {
		t.Fatal("ocr output is mapped to page 1")
	}
}

func TestParseTesseractTSV_SplitsOnLineNumber(t *testing.T) {
	tsv := "5\t1\t1\t1\t1\t1\t10\t10\t20\t10\t90\talpha\n" +
		"5\t1\t2\t1\t1\t1\t10\t50\t20\t10\t90\tbeta\n" // same line_num, new block
	lines := parseTesseractTSV([]byte(tsv))
	if len(lines) != 2 {
		t.Fatalf("block boundary must split lines, got %+v", lines)
	}
}

func TestExtractImage_OCRInvocation(t *testing.T) {
	stub := &stubRunner{stdout: []byte(sampleTSV)}
	p := New(Config{TesseractPath: "/usr/bin/tesseract", Runner: stub})

	res := p.Extract(context.Background(), []byte{0x89, 'P', 'N', 'G'}, FileTypeImage)

	if stub.name != "/usr/bin/tesseract" {
		t.Fatalf("wrong binary: %q", stub.name)
	}
	if len(stub.args) != 3 || stub.args[1] != "stdout" || stub.args[2] != "tsv" {
		t.Fatalf("expected <file> stdout tsv, got %v", stub.args)
	}
	if len(res.Lines) != 2 || len(res.Warnings) != 0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Text != "Patient: Jane Doe\nDOB: 01/02/1980" {
		t.Fatalf("full text should join lines: %q", res.Text)
	}
}

func TestExtractImage_MissingToolchainDegrades(t *testing.T) {
	stub := &stubRunner{err: errors.New("executable file not found in $PATH")}
	p := New(Config{Runner: stub})

	res := p.Extract(context.Background(), []byte{0xff, 0xd8, 0xff}, FileTypeImage)

	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "install tesseract") {
		t.Fatalf("missing toolchain must warn, got %v", res.Warnings)
	}
	if res.Text != "" || len(res.Lines) != 0 {
		t.Fatal("no content without OCR")
	}
}

func TestExtractImage_SVGBypassesOCR(t *testing.T) {
	stub := &stubRunner{err: errors.New("should not run")}
	p := New(Config{Runner: stub})

	res := p.Extract(context.Background(), []byte(`<svg><text>Plan: Gold PPO</text></svg>`), FileTypeImage)

	if stub.name != "" {
		t.Fatal("svg payloads must not invoke the OCR binary")
	}
	if len(res.Lines) != 1 || res.Lines[0].Text != "Plan: Gold PPO" {
		t.Fatalf("svg text expected: %+v", res.Lines)
	}
}
