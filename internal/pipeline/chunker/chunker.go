package chunker

import "errors"

var ErrInvalidConfig = errors.New("invalid chunking config")

// Config bounds one chunk and declares how much of it is repeated at the
// start of the next one.
type Config struct {
	MaxSize int
	Overlap int
}

func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return ErrInvalidConfig
	}
	if c.Overlap < 0 || c.Overlap >= c.MaxSize {
		return ErrInvalidConfig
	}
	return nil
}

// Span is a half-open [Start, End) character range plus its text slice.
// Offsets count code points, not bytes, so multi-byte text never splits
// mid-character.
type Span struct {
	Start int
	End   int
	Text  string
}

// Chunk slides a MaxSize window across text advancing by MaxSize - Overlap.
// Window sizes and offsets are in code points. The final chunk may be
// shorter. Identical (text, config) always yields the identical sequence;
// re-ingestion of unchanged content produces the same spans and therefore
// the same chunk set.
func Chunk(text string, cfg Config) ([]Span, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	if len(runes) <= cfg.MaxSize {
		return []Span{{Start: 0, End: len(runes), Text: text}}, nil
	}

	step := cfg.MaxSize - cfg.Overlap
	spans := make([]Span, 0, (len(runes)+step-1)/step)
	for start := 0; start < len(runes); start += step {
		end := start + cfg.MaxSize
		if end >= len(runes) {
			spans = append(spans, Span{Start: start, End: len(runes), Text: string(runes[start:])})
			break
		}
		spans = append(spans, Span{Start: start, End: end, Text: string(runes[start:end])})
	}
	return spans, nil
}
