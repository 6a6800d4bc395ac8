package web

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-avatar/internal/log"
	"github.com/teslashibe/go-avatar/pkg/avatar"
	"github.com/teslashibe/go-avatar/pkg/expression"
	"github.com/teslashibe/go-avatar/pkg/hub"
	"github.com/teslashibe/go-avatar/pkg/protocol"
	"github.com/teslashibe/go-avatar/pkg/speech"
)

var (
	errNoAvatar         = errors.New("no avatar loaded")
	errNegativeDuration = errors.New("duration must not be negative")
)

// TalkRequest is the request body for starting a talk session.
// Ms wins over Text; with neither the avatar talks until stopped.
type TalkRequest struct {
	Ms   int64  `json:"ms"`
	Text string `json:"text"`
}

// TalkResponse confirms a talk session.
type TalkResponse struct {
	Session string `json:"session"`
	Ms      int64  `json:"ms"`
}

func talkDuration(ms int64, text string) time.Duration {
	switch {
	case ms > 0:
		return time.Duration(ms) * time.Millisecond
	case text != "":
		return speech.Duration(text)
	default:
		return 0
	}
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, errNegativeDuration):
		return fiber.StatusBadRequest
	case errors.Is(err, errNoAvatar):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, avatar.ErrDisposed):
		return fiber.StatusGone
	case errors.Is(err, expression.ErrSignalQueueFull):
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// startTalking is shared by the HTTP and websocket paths.
func (s *Server) startTalking(ms int64, text string) (TalkResponse, error) {
	if ms < 0 {
		return TalkResponse{}, errNegativeDuration
	}
	ctrl := s.controller()
	if ctrl == nil {
		return TalkResponse{}, errNoAvatar
	}
	d := talkDuration(ms, text)
	session, err := ctrl.StartTalking(d)
	if err != nil {
		return TalkResponse{}, err
	}
	return TalkResponse{Session: session, Ms: d.Milliseconds()}, nil
}

func (s *Server) stopTalking() error {
	ctrl := s.controller()
	if ctrl == nil {
		return errNoAvatar
	}
	return ctrl.StopTalking()
}

// handleStatus returns the avatar's current state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	ctrl := s.controller()
	if ctrl == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": errNoAvatar.Error(),
		})
	}
	return c.JSON(ctrl.Status())
}

// handleTalk starts a talk session
func (s *Server) handleTalk(c *fiber.Ctx) error {
	var req TalkRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": fmt.Sprintf("invalid body: %v", err),
			})
		}
	}
	resp, err := s.startTalking(req.Ms, req.Text)
	if err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(resp)
}

// handleTalkStop ends the current talk session
func (s *Server) handleTalkStop(c *fiber.Ctx) error {
	if err := s.stopTalking(); err != nil {
		return c.Status(errorStatus(err)).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.JSON(fiber.Map{"stopped": true})
}

// handleAvatarWS streams frames and accepts talk messages
func (s *Server) handleAvatarWS(c *websocket.Conn) {
	client := hub.NewClient(s.avatarHub, c)
	if client == nil {
		return
	}

	if ctrl := s.controller(); ctrl != nil {
		s.send(client, encode(protocol.NewStatusMessage(ctrl.Status())))
	}

	client.Run()
}

// handleClientMessage runs on the client's read goroutine.
func (s *Server) handleClientMessage(client *hub.Client, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		s.send(client, encode(protocol.NewErrorMessage("", err)))
		return
	}

	switch msg.Type {
	case protocol.TypeTalk:
		talk, err := msg.GetTalkData()
		if err != nil {
			s.send(client, encode(protocol.NewErrorMessage(msg.Type, err)))
			return
		}
		resp, err := s.startTalking(talk.DurationMs, talk.Text)
		if err != nil {
			s.send(client, encode(protocol.NewErrorMessage(msg.Type, err)))
			return
		}
		s.send(client, encode(protocol.NewTalkAckMessage(resp.Session, resp.Ms)))

	case protocol.TypeTalkStop:
		if err := s.stopTalking(); err != nil {
			s.send(client, encode(protocol.NewErrorMessage(msg.Type, err)))
		}

	case protocol.TypePing:
		ping, err := msg.GetPingData()
		if err != nil {
			return
		}
		s.send(client, encode(protocol.NewPongMessage(ping.ID, msg.Timestamp, time.Now().UnixMilli())))

	default:
		log.Debug("ignoring websocket message", "type", msg.Type)
	}
}

// encode serializes a reply; nil means it could not be built.
func encode(msg *protocol.Message, err error) []byte {
	if err != nil {
		log.Warn("failed to build reply", "error", err)
		return nil
	}
	data, err := msg.Bytes()
	if err != nil {
		log.Warn("failed to encode reply", "error", err)
		return nil
	}
	return data
}

func (s *Server) send(client *hub.Client, data []byte) {
	if data == nil {
		return
	}
	if !client.Send(hub.NewJSONMessage(data)) {
		log.Debug("reply dropped", "client_buffer", "full")
	}
}
