package output

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/inodb/vibe-annot/internal/annotate"
	"github.com/inodb/vibe-annot/internal/vcf"
)

// VCFWriter writes the input variants back as VCF with one INFO key per
// output field. Results are buffered per input line (vcf.FieldLine) and
// flushed when the line changes, so every variant is written once with the
// fields of all annotators merged. Variants without any result are not
// written. FORMAT and sample columns are copied after INFO.
type VCFWriter struct {
	w           *bufio.Writer
	headerLines []string // original VCF header lines (## and #CHROM)
	fields      []annotate.Field
	fieldNames  map[string]bool

	// Buffered state for the current variant.
	current     annotate.Record
	currentLine int64
	values      map[string]string
}

// NewVCFWriter creates a new VCF output writer. headerLines are the input
// header lines; when empty a minimal header is written.
func NewVCFWriter(w io.Writer, headerLines []string) *VCFWriter {
	return &VCFWriter{
		w:           bufio.NewWriter(w),
		headerLines: headerLines,
	}
}

// WriteHeader writes the input header lines with one ##INFO line per field
// inserted before #CHROM.
func (vw *VCFWriter) WriteHeader(fields []annotate.Field) error {
	vw.fields = fields
	vw.fieldNames = make(map[string]bool, len(fields))
	for _, f := range fields {
		vw.fieldNames[f.Name] = true
	}

	lines := vw.headerLines
	if len(lines) == 0 {
		lines = []string{"##fileformat=VCFv4.2", "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO"}
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "#CHROM") {
			for _, f := range fields {
				if _, err := vw.w.WriteString(infoHeaderLine(f) + "\n"); err != nil {
					return err
				}
			}
		}
		if _, err := vw.w.WriteString(line + "\n"); err != nil {
			return err
		}
	}
	return nil
}

func infoHeaderLine(f annotate.Field) string {
	typ := "String"
	number := "."
	switch f.Type {
	case annotate.FieldTypeInt, annotate.FieldTypeLong:
		typ = "Integer"
		number = "1"
	case annotate.FieldTypeLongSet:
		typ = "Integer"
	case annotate.FieldTypeDecimal:
		typ = "Float"
		number = "1"
	}
	desc := strings.ReplaceAll(f.Description, `"`, `'`)
	return fmt.Sprintf(`##INFO=<ID=%s,Number=%s,Type=%s,Description="%s">`, f.Name, number, typ, desc)
}

// Write buffers a result for the given input record. When a new input
// record is encountered, the previous variant's VCF line is flushed.
func (vw *VCFWriter) Write(in annotate.Record, res annotate.Result) error {
	line, _ := in.Int64(vcf.FieldLine)
	if vw.current != nil && line != vw.currentLine {
		if err := vw.flushVariant(); err != nil {
			return err
		}
	}
	if vw.current == nil {
		vw.current = in
		vw.currentLine = line
		vw.values = make(map[string]string)
	}

	for _, f := range vw.fields {
		v, ok := res.Record[f.Name]
		if !ok {
			continue
		}
		if _, seen := vw.values[f.Name]; seen {
			continue
		}
		if s := formatInfoValue(v); s != "" {
			vw.values[f.Name] = s
		}
	}
	return nil
}

// Flush writes any buffered variant and flushes the underlying writer.
func (vw *VCFWriter) Flush() error {
	if vw.current != nil {
		if err := vw.flushVariant(); err != nil {
			return err
		}
	}
	return vw.w.Flush()
}

// flushVariant writes the buffered variant as a VCF line.
func (vw *VCFWriter) flushVariant() error {
	in := vw.current

	var lb strings.Builder
	lb.Grow(256)
	pos, _ := in.Int64(annotate.FieldPos)
	for _, col := range []string{
		stringOr(in, annotate.FieldChrom, "."),
		strconv.FormatInt(pos, 10),
		stringOr(in, vcf.FieldID, "."),
		stringOr(in, annotate.FieldRef, "."),
		stringOr(in, annotate.FieldAlt, "."),
		stringOr(in, vcf.FieldQual, "."),
	} {
		lb.WriteString(col)
		lb.WriteByte('\t')
	}
	lb.WriteString(stringOr(in, vcf.FieldFilter, "."))
	lb.WriteByte('\t')

	info := vw.stripInfo(stringOr(in, vcf.FieldInfo, "."))
	var added []string
	for _, f := range vw.fields {
		if v, ok := vw.values[f.Name]; ok {
			added = append(added, f.Name+"="+v)
		}
	}
	switch {
	case len(added) == 0:
		lb.WriteString(info)
	case info == ".":
		lb.WriteString(strings.Join(added, ";"))
	default:
		lb.WriteString(info)
		lb.WriteByte(';')
		lb.WriteString(strings.Join(added, ";"))
	}

	if samples, _ := in.String(vcf.FieldSamples); samples != "" {
		lb.WriteByte('\t')
		lb.WriteString(samples)
	}

	lb.WriteByte('\n')
	if _, err := vw.w.WriteString(lb.String()); err != nil {
		return err
	}

	vw.current = nil
	vw.currentLine = 0
	vw.values = nil
	return nil
}

func stringOr(rec annotate.Record, name, def string) string {
	if s, ok := rec.String(name); ok && s != "" {
		return s
	}
	return def
}

// stripInfo removes INFO keys that this writer is about to set.
func (vw *VCFWriter) stripInfo(rawInfo string) string {
	if rawInfo == "" || rawInfo == "." {
		return "."
	}

	var b strings.Builder
	for _, field := range strings.Split(rawInfo, ";") {
		key, _, _ := strings.Cut(field, "=")
		if vw.fieldNames[key] {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(';')
		}
		b.WriteString(field)
	}

	if b.Len() == 0 {
		return "."
	}
	return b.String()
}

// formatInfoValue renders a record value as an INFO value. Set members are
// joined with "|" and characters reserved by VCF are percent-encoded.
func formatInfoValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		// Comma-separated per-allele values are kept as is.
		return encodeInfo(x, false)
	case []string:
		parts := make([]string, len(x))
		for i, s := range x {
			parts[i] = encodeInfo(s, true)
		}
		return strings.Join(parts, "|")
	case []int64:
		parts := make([]string, len(x))
		for i, n := range x {
			parts[i] = strconv.FormatInt(n, 10)
		}
		return strings.Join(parts, "|")
	}
	return encodeInfo(FormatValue(v), true)
}

var (
	infoEncoder      = strings.NewReplacer("%", "%25", ";", "%3B", "=", "%3D", "\t", "%09", "\n", "%0A", "\r", "%0D")
	infoEncoderComma = strings.NewReplacer("%", "%25", ";", "%3B", "=", "%3D", "\t", "%09", "\n", "%0A", "\r", "%0D", ",", "%2C", "|", "%7C")
)

func encodeInfo(s string, commas bool) string {
	if commas {
		return infoEncoderComma.Replace(s)
	}
	return infoEncoder.Replace(s)
}
