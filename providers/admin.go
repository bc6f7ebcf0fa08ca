package providers

import (
	"encoding/json"
	"sort"

	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/notify/src/hub"
	"github.com/orchestra-mcp/notify/src/types"
)

type notifyRequest struct {
	Topic       string `json:"topic"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type publishRequest struct {
	Topic string          `json:"topic"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
}

func (s *Server) handleListClients(c fiber.Ctx) error {
	ids := s.service.GetConnectedClients()
	infos := make([]*types.ClientInfo, 0, len(ids))
	for _, id := range ids {
		info, err := s.service.GetClientInfo(id)
		if err == nil {
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return c.JSON(fiber.Map{"clients": infos, "count": len(infos)})
}

func (s *Server) handleListTopics(c fiber.Ctx) error {
	topics := s.service.GetTopics()
	result := make([]fiber.Map, 0, len(topics))
	for name, count := range topics {
		result = append(result, fiber.Map{"topic": name, "subscribers": count})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i]["topic"].(string) < result[j]["topic"].(string)
	})
	return c.JSON(fiber.Map{"topics": result, "count": len(result)})
}

func (s *Server) handleNotify(c fiber.Ctx) error {
	var req notifyRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "invalid_body", err.Error())
	}
	if err := s.service.Notify(req.Topic, req.Title, req.Description); err != nil {
		return badRequest(c, "invalid_notification", err.Error())
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"published": true, "topic": topicOrGlobal(req.Topic)})
}

func (s *Server) handlePublish(c fiber.Ctx) error {
	var req publishRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return badRequest(c, "invalid_body", err.Error())
	}
	if req.Topic == "" {
		return badRequest(c, "invalid_message", "topic is required")
	}
	var data any
	if len(req.Data) > 0 {
		data = req.Data
	}
	if err := s.service.Publish(req.Topic, req.Type, data); err != nil {
		return badRequest(c, "invalid_message", err.Error())
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"published": true, "topic": req.Topic})
}

func badRequest(c fiber.Ctx, code, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": code, "message": message})
}

func topicOrGlobal(topic string) string {
	if topic == "" {
		return hub.GlobalTopic
	}
	return topic
}
