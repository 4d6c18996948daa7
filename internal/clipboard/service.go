// Package clipboard implements the clipboardRequest variant: get/set
// text and image content against the host's OS clipboard.
package clipboard

import (
	"fmt"

	"github.com/thea-remote/hostd/internal/platform"
	"github.com/thea-remote/hostd/internal/wire"
)

// Service bridges clipboardRequest messages to a platform.Clipboard.
type Service struct {
	clip platform.Clipboard
}

func New(clip platform.Clipboard) *Service {
	return &Service{clip: clip}
}

// Handle implements the dispatcher handler contract for clipboardRequest.
func (s *Service) Handle(msg wire.Message) (wire.Message, error) {
	var req wire.ClipboardRequestPayload
	if err := msg.Decode(&req); err != nil {
		return wire.Message{}, fmt.Errorf("clipboard: decode request: %w", err)
	}

	switch req.Operation {
	case wire.ClipboardOpGet:
		return s.get()
	case wire.ClipboardOpSet:
		return s.set(req)
	default:
		return errorResponse(fmt.Errorf("clipboard: unsupported operation %q", req.Operation))
	}
}

func (s *Service) get() (wire.Message, error) {
	text, err := s.clip.GetText()
	if err != nil {
		return errorResponse(fmt.Errorf("clipboard: get text: %w", err))
	}
	image, format, err := s.clip.GetImage()
	if err != nil {
		return errorResponse(fmt.Errorf("clipboard: get image: %w", err))
	}
	return wire.NewMessage(wire.TypeClipboardResponse, wire.ClipboardResponsePayload{
		Text:        text,
		Image:       image,
		ImageFormat: format,
	})
}

func (s *Service) set(req wire.ClipboardRequestPayload) (wire.Message, error) {
	if len(req.Image) > 0 {
		if err := s.clip.SetImage(req.Image, req.ImageFormat); err != nil {
			return errorResponse(fmt.Errorf("clipboard: set image: %w", err))
		}
	}
	if req.Text != "" || len(req.Image) == 0 {
		if err := s.clip.SetText(req.Text); err != nil {
			return errorResponse(fmt.Errorf("clipboard: set text: %w", err))
		}
	}
	return wire.NewMessage(wire.TypeClipboardResponse, wire.ClipboardResponsePayload{})
}

func errorResponse(err error) (wire.Message, error) {
	m, _ := wire.NewMessage(wire.TypeClipboardResponse, wire.ClipboardResponsePayload{Error: err.Error()})
	return m, nil
}
