package web

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/converso/converso/pkg/engine"
)

// PostConversationMessage runs one inbound message through the engine and
// returns the turn's outbound messages. The same semantics the queue worker
// applies, exposed synchronously for channels that call back over HTTP.
func (h *APIHandlers) PostConversationMessage(c fiber.Ctx) error {
	conversantID := c.Params("conversantID")
	if conversantID == "" {
		return badRequest(c, "Conversant ID is required")
	}

	var req InboundMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	outbound, err := h.engine.ProcessInbound(c.Context(), engine.Inbound{
		ConversantID: conversantID,
		Channel:      req.Channel,
		Text:         req.Text,
		Locale:       req.Locale,
		Timestamp:    time.Now().UTC(),
	})
	if err != nil {
		return handleServiceError(c, err)
	}

	response := ConversationResponse{Messages: make([]OutboundMessage, 0, len(outbound))}

	for _, message := range outbound {
		out := OutboundMessage{
			Text:         message.Text,
			DelaySeconds: message.DelaySeconds,
		}

		for _, choice := range message.Choices {
			out.Choices = append(out.Choices, OutboundChoice{
				ID:    choice.ID,
				Label: choice.Label,
				Value: choice.Value,
			})
		}

		response.Messages = append(response.Messages, out)
	}

	return c.JSON(response)
}
