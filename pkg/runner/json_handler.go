package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"

	"github.com/aretw0/convo/pkg/domain"
)

// JSONHandler implements IOHandler over JSON-Lines: every TurnResponse is
// written as one line, and each input line is either a JSON string, a
// TurnRequest object ({"user_input": "...", "media_url": "..."}) or raw text.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(ctx context.Context, resp *domain.TurnResponse) error {
	return h.Encoder.Encode(resp)
}

func (h *JSONHandler) Input(ctx context.Context) (domain.TurnRequest, error) {
	for {
		text, err := h.Reader.ReadString('\n')
		text = strings.TrimSpace(text)
		if text == "" {
			if err != nil {
				return domain.TurnRequest{}, err
			}
			continue
		}
		return parseJSONInput(text)
	}
}

func parseJSONInput(text string) (domain.TurnRequest, error) {
	var req domain.TurnRequest
	switch {
	case strings.HasPrefix(text, "{"):
		if err := json.Unmarshal([]byte(text), &req); err != nil {
			req = domain.TurnRequest{Input: text}
		}
	case strings.HasPrefix(text, `"`):
		if err := json.Unmarshal([]byte(text), &req.Input); err != nil {
			req.Input = text
		}
	default:
		req.Input = text
	}
	clean, err := SanitizeInput(req.Input)
	if err != nil {
		return domain.TurnRequest{}, err
	}
	req.Input = clean
	return req, nil
}

func (h *JSONHandler) SystemOutput(ctx context.Context, msg string) error {
	return h.Encoder.Encode(map[string]string{"system": msg})
}
