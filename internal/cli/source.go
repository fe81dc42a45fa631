package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/hyperhistory/internal/engine"
	"github.com/roach88/hyperhistory/internal/history"
	"github.com/roach88/hyperhistory/internal/keys"
)

// maxLineSize bounds one JSONL delivery.
const maxLineSize = 4 << 20

// DeliveryLine is one line of ingest input.
//
//	{"block": {"author": ..., "action": ..., "sign": ...}, "server": "<b64>", "member": "<b64>"}
type DeliveryLine struct {
	Block  json.RawMessage `json:"block"`
	Server string          `json:"server,omitempty"`
	Member string          `json:"member,omitempty"`
}

// JSONLSource reads deliveries from newline-delimited JSON. Blank lines
// are skipped. A line that does not decode is logged, recorded in
// Malformed and skipped; only a read failure ends the stream early.
type JSONLSource struct {
	scanner *bufio.Scanner
	logger  *slog.Logger
	line    int

	// Malformed holds the 1-based numbers of lines that did not decode.
	// Read it once Next has returned io.EOF.
	Malformed []int
}

// NewJSONLSource returns a Source over r.
func NewJSONLSource(r io.Reader, logger *slog.Logger) *JSONLSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &JSONLSource{scanner: sc, logger: logger}
}

// Next implements engine.Source.
func (s *JSONLSource) Next(ctx context.Context) (engine.Delivery, error) {
	for {
		if err := ctx.Err(); err != nil {
			return engine.Delivery{}, err
		}
		if !s.scanner.Scan() {
			if err := s.scanner.Err(); err != nil {
				return engine.Delivery{}, fmt.Errorf("line %d: %w", s.line+1, err)
			}
			return engine.Delivery{}, io.EOF
		}
		s.line++

		data := s.scanner.Bytes()
		if len(bytes.TrimSpace(data)) == 0 {
			continue
		}

		d, err := ParseDelivery(data)
		if err != nil {
			s.Malformed = append(s.Malformed, s.line)
			s.logger.Warn("skipping malformed delivery", "line", s.line, "error", err)
			continue
		}
		return d, nil
	}
}

// ParseDelivery decodes one DeliveryLine.
func ParseDelivery(data []byte) (engine.Delivery, error) {
	var line DeliveryLine
	if err := json.Unmarshal(data, &line); err != nil {
		return engine.Delivery{}, fmt.Errorf("decode delivery: %w", err)
	}
	if len(line.Block) == 0 {
		return engine.Delivery{}, fmt.Errorf("decode delivery: missing block")
	}

	b, err := history.ParseBlock(line.Block)
	if err != nil {
		return engine.Delivery{}, err
	}

	var subj engine.Subject
	if line.Server != "" {
		if subj.Server, err = keys.ParsePublicKey(line.Server); err != nil {
			return engine.Delivery{}, fmt.Errorf("server: %w", err)
		}
	}
	if line.Member != "" {
		if subj.Member, err = keys.ParsePublicKey(line.Member); err != nil {
			return engine.Delivery{}, fmt.Errorf("member: %w", err)
		}
	}

	return engine.Delivery{Block: b, Subject: subj}, nil
}
