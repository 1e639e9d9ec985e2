package logger

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// Gruvbox-derived palette (warm, muted, easy on eyes).
const (
	colorReset = "\x1b[0m"
	colorBold  = "\x1b[1m"

	colorFg     = "\x1b[38;5;223m" // soft cream
	colorAqua   = "\x1b[38;5;108m" // timestamps
	colorOrange = "\x1b[38;5;208m" // component names
	colorYellow = "\x1b[38;5;214m" // warnings
	colorGreen  = "\x1b[38;5;142m" // glyph accents
	colorBlue   = "\x1b[38;5;109m" // identifiers
	colorPurple = "\x1b[38;5;175m" // numbers
	colorRed    = "\x1b[38;5;167m" // errors
	colorRedBg  = "\x1b[48;5;88m"
	colorYelBg  = "\x1b[48;5;58m"
)

// bracketPattern matches bracketed contexts in messages: [epoch:t0001], [discover], etc.
var bracketPattern = regexp.MustCompile(`\[([^\]]+)\]`)

// minimalEncoder implements a calm, compact console encoder.
// Format: "13:04:35  d.navigator  Epoch table refreshed  intan (4 epochs)"
type minimalEncoder struct {
	zapcore.Encoder // Embed a base encoder for field serialization
	buf             *buffer.Buffer
}

func newMinimalEncoder() *minimalEncoder {
	// Base JSON encoder for field serialization (internal use only)
	baseEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	return &minimalEncoder{
		Encoder: baseEncoder,
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) Clone() zapcore.Encoder {
	return &minimalEncoder{
		Encoder: enc.Encoder.Clone(),
		buf:     buffer.NewPool().Get(),
	}
}

func (enc *minimalEncoder) EncodeEntry(ent zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	final := buffer.NewPool().Get()

	// Time
	final.AppendString(colorAqua)
	final.AppendString(ent.Time.Format("15:04:05"))
	final.AppendString(colorReset)

	// Level: only shown for WARN and above
	if ent.Level != zapcore.InfoLevel && ent.Level != zapcore.DebugLevel {
		final.AppendString("  ")
		final.AppendString(levelColorString(ent.Level))
	}

	// Component name (abbreviated) for visual grouping
	if ent.LoggerName != "" {
		final.AppendString("  ")
		final.AppendString(colorOrange)
		final.AppendString(abbreviateName(ent.LoggerName))
		final.AppendString(colorReset)
	}

	// Message with colorized bracket contexts
	final.AppendString("  ")
	final.AppendString(colorizeMessage(ent.Message))

	// Fields: glyph first, known fields specially, everything else key=value.
	// Fields are never silently dropped.
	if len(fields) > 0 {
		final.AppendString("  ")
		final.AppendString(renderFields(fields))
	}

	final.AppendString("\n")
	return final, nil
}

// levelColorString returns bold + colored + background for WARN/ERROR
func levelColorString(level zapcore.Level) string {
	switch level {
	case zapcore.WarnLevel:
		return colorBold + colorYelBg + colorYellow + "WARN" + colorReset
	case zapcore.ErrorLevel:
		return colorBold + colorRedBg + colorRed + "ERROR" + colorReset
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return colorBold + colorRedBg + colorRed + level.CapitalString() + colorReset
	default:
		return ""
	}
}

// abbreviateName shortens component names: session -> session, daq.navigator -> d.navigator
func abbreviateName(name string) string {
	parts := strings.Split(name, ".")
	if len(parts) > 1 {
		return string(parts[0][0]) + "." + strings.Join(parts[1:], ".")
	}
	return name
}

// colorizeMessage applies context-aware colorization to bracketed
// markers like [epoch:t0001] or [discover] within a message.
func colorizeMessage(msg string) string {
	result := strings.Builder{}
	lastIndex := 0

	matches := bracketPattern.FindAllStringIndex(msg, -1)
	for _, match := range matches {
		if before := msg[lastIndex:match[0]]; before != "" {
			result.WriteString(colorFg)
			result.WriteString(before)
			result.WriteString(colorReset)
		}
		result.WriteString(colorBlue)
		result.WriteString(msg[match[0]:match[1]])
		result.WriteString(colorReset)
		lastIndex = match[1]
	}

	if remaining := msg[lastIndex:]; remaining != "" {
		result.WriteString(colorFg)
		result.WriteString(remaining)
		result.WriteString(colorReset)
	}

	return result.String()
}

// fieldValue extracts the value from a zap field, handling different field types
func fieldValue(field zapcore.Field) string {
	switch field.Type {
	case zapcore.StringType:
		return field.String
	case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type,
		zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
		return fmt.Sprintf("%d", field.Integer)
	case zapcore.Float64Type:
		return fmt.Sprintf("%v", math.Float64frombits(uint64(field.Integer)))
	case zapcore.Float32Type:
		return fmt.Sprintf("%v", math.Float32frombits(uint32(field.Integer)))
	case zapcore.BoolType:
		if field.Integer == 1 {
			return "true"
		}
		return "false"
	case zapcore.DurationType:
		return fmt.Sprintf("%d", field.Integer)
	case zapcore.ErrorType:
		if err, ok := field.Interface.(error); ok {
			return err.Error()
		}
	}
	if field.Interface != nil {
		return fmt.Sprintf("%v", field.Interface)
	}
	return ""
}

// renderFields formats structured fields for console output.
// The subsystem glyph leads; identifier and count fields get accent
// colors; node/edge pairs collapse to "(12 nodes, 30 edges)"; any
// remaining field is rendered as key=value so nothing is lost.
func renderFields(fields []zapcore.Field) string {
	var glyph string
	var values []string
	var rest []string
	var nodeCount, edgeCount string

	for _, field := range fields {
		val := fieldValue(field)
		switch field.Key {
		case FieldSymbol:
			glyph = val
		case FieldSessionID, FieldRequestID, FieldDatasetID, FieldDocID, "client_id":
			if val != "" {
				values = append(values, colorBlue+val+colorReset)
			}
		case FieldDevice, FieldEpoch, FieldClock, FieldRule:
			if val != "" {
				values = append(values, colorFg+val+colorReset)
			}
		case "nodes":
			nodeCount = val
		case "edges":
			edgeCount = val
		case FieldDurationMS:
			if val != "" {
				values = append(values, colorPurple+val+colorReset+"ms")
			}
		case FieldCount:
			if val != "" {
				values = append(values, colorPurple+val+colorReset)
			}
		case FieldError:
			if val != "" {
				values = append(values, colorRed+val+colorReset)
			}
		default:
			rest = append(rest, field.Key+"="+val)
		}
	}

	if nodeCount != "" && edgeCount != "" {
		values = append(values,
			colorFg+"("+colorPurple+nodeCount+colorReset+colorFg+" nodes, "+
				colorPurple+edgeCount+colorReset+colorFg+" edges)"+colorReset)
	} else if nodeCount != "" {
		rest = append(rest, "nodes="+nodeCount)
	} else if edgeCount != "" {
		rest = append(rest, "edges="+edgeCount)
	}

	var out []string
	if glyph != "" {
		out = append(out, colorGreen+glyph+colorReset)
	}
	out = append(out, values...)
	out = append(out, rest...)

	return strings.Join(out, " ")
}
