package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/papercomputeco/grove/pkg/audio"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/tree"
	"github.com/papercomputeco/grove/pkg/turn"
)

// TreeResponse is the loaded conversation and its tree.
type TreeResponse struct {
	ConversationID string        `json:"conversationId"`
	Title          string        `json:"title"`
	Owner          string        `json:"owner,omitempty"`
	SyncState      string        `json:"syncState"`
	Tree           tree.Document `json:"tree"`
}

// PathResponse is the branch from the root down to a node.
type PathResponse struct {
	NodeID string            `json:"nodeId"`
	Depth  int               `json:"depth"`
	Nodes  []tree.NodeFields `json:"nodes"`
}

// TurnRequest is the body of POST /turns. Audio is base64 in JSON.
type TurnRequest struct {
	Text     string `json:"text"`
	Audio    []byte `json:"audio,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	ForkFrom string `json:"forkFrom,omitempty"`
}

// CommentRequest is the body of POST /nodes/:id/comments.
type CommentRequest struct {
	Offset  int    `json:"offset"`
	Comment string `json:"comment"`
}

// IdentityRequest is the body of PUT /identity.
type IdentityRequest struct {
	UserID string `json:"userId"`
}

// IDResponse carries the id of a created resource.
type IDResponse struct {
	ID string `json:"id"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleGetTree returns the loaded conversation.
func (s *Server) handleGetTree(c *fiber.Ctx) error {
	return c.JSON(TreeResponse{
		ConversationID: s.session.ConversationID(),
		Title:          s.session.Title(),
		Owner:          s.session.Owner(),
		SyncState:      s.session.State().String(),
		Tree:           s.session.Snapshot(),
	})
}

// handleGetPath returns the branch ending at :id, root first.
func (s *Server) handleGetPath(c *fiber.Ctx) error {
	id := param(c, "id")
	if !s.session.Has(id) {
		return tree.NotFoundError{ID: id}
	}

	path := s.session.PathToRoot(id)
	nodes := make([]tree.NodeFields, len(path))
	for i := range path {
		nodes[i] = path[i].Fields()
	}

	return c.JSON(PathResponse{
		NodeID: id,
		Depth:  len(nodes) - 1,
		Nodes:  nodes,
	})
}

// handleSubmitTurn runs one turn and returns the appended node.
func (s *Server) handleSubmitTurn(c *fiber.Ctx) error {
	var req TurnRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	in := turn.Input{Text: req.Text, ForkFrom: req.ForkFrom}
	if len(req.Audio) > 0 {
		in.Audio = &audio.Clip{MIMEType: req.MIMEType, Data: req.Audio}
	}

	res, err := s.turns.Submit(c.Context(), in)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

// handleSelectNode makes :id the active branch tip.
func (s *Server) handleSelectNode(c *fiber.Ctx) error {
	if err := s.session.SelectNode(param(c, "id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleDeleteNode removes :id and its descendants.
func (s *Server) handleDeleteNode(c *fiber.Ctx) error {
	removed, err := s.session.DeleteNode(param(c, "id"))
	if err != nil {
		return err
	}

	return c.JSON(map[string]any{
		"removed":    removed,
		"selectedId": s.session.SelectedID(),
	})
}

// handleAddComment anchors a line comment in the response of :id.
func (s *Server) handleAddComment(c *fiber.Ctx) error {
	var req CommentRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	id, err := s.session.AddLineComment(param(c, "id"), req.Offset, req.Comment)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(IDResponse{ID: id})
}

// handleDeleteComment removes a line comment.
func (s *Server) handleDeleteComment(c *fiber.Ctx) error {
	if err := s.session.DeleteLineComment(param(c, "id"), param(c, "commentId")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleListConversations returns the directory, most recent first.
func (s *Server) handleListConversations(c *fiber.Ctx) error {
	conversations := s.session.Conversations()
	if conversations == nil {
		conversations = []storage.Summary{}
	}

	return c.JSON(map[string]any{
		"count":         len(conversations),
		"current":       s.session.ConversationID(),
		"conversations": conversations,
	})
}

// handleCreateConversation starts a new conversation and makes it current.
func (s *Server) handleCreateConversation(c *fiber.Ctx) error {
	id, err := s.session.CreateNewConversation(c.Context())
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(IDResponse{ID: id})
}

// handleSwitchConversation loads :id and makes it current.
func (s *Server) handleSwitchConversation(c *fiber.Ctx) error {
	if err := s.session.SwitchConversation(c.Context(), param(c, "id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleSignIn activates an identity and loads its latest conversation.
func (s *Server) handleSignIn(c *fiber.Ctx) error {
	var req IdentityRequest
	if err := c.BodyParser(&req); err != nil || req.UserID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "userId is required")
	}

	if err := s.session.SignIn(c.Context(), req.UserID); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleSignOut clears the identity.
func (s *Server) handleSignOut(c *fiber.Ctx) error {
	s.session.SignOut()
	return c.SendStatus(fiber.StatusNoContent)
}

// handleFlush saves pending changes now.
func (s *Server) handleFlush(c *fiber.Ctx) error {
	if err := s.session.Flush(c.Context()); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// param returns a copy of the route parameter that stays valid after the
// request buffer is reused.
func param(c *fiber.Ctx, name string) string {
	return utils.CopyString(c.Params(name))
}
