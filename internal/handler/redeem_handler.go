package handler

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/fairyhunter13/iot-persistence/internal/model"
	"github.com/fairyhunter13/iot-persistence/internal/persistence"
	"github.com/fairyhunter13/iot-persistence/internal/repository"
)

// RedeemManagerInterface defines the persistence operations the redeem
// endpoints need.
type RedeemManagerInterface interface {
	Enabled() bool
	SelectRedeemByToken(ctx context.Context, token string) (*model.Redeem, error)
	UpdateRedeem(ctx context.Context, username, token string) (bool, error)
	InsertRedeems(ctx context.Context, redeems []*model.Redeem) error
}

// RedeemHandler handles HTTP requests for redeem token operations.
type RedeemHandler struct {
	manager   RedeemManagerInterface
	validator *validator.Validate
}

// NewRedeemHandler creates a new RedeemHandler with the given manager and validator.
func NewRedeemHandler(mgr RedeemManagerInterface, v *validator.Validate) *RedeemHandler {
	return &RedeemHandler{manager: mgr, validator: v}
}

// formatRedeemValidationError converts validator errors to stable messages.
func formatRedeemValidationError(err error) string {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			field := fe.Field()
			tag := fe.Tag()

			switch field {
			case "Username":
				if tag == "required" {
					return "invalid request: username is required"
				}
				if tag == "notblank" {
					return "invalid request: username cannot be whitespace only"
				}
				if tag == "max" {
					return "invalid request: username exceeds maximum length of 255"
				}
				return "invalid request: username is invalid"
			case "Token", "Tokens":
				if tag == "required" {
					return "invalid request: token is required"
				}
				if tag == "min" {
					return "invalid request: at least one token is required"
				}
				if tag == "notblank" {
					return "invalid request: token cannot be whitespace only"
				}
				if tag == "max" {
					return "invalid request: token exceeds maximum length of 255"
				}
				return "invalid request: token is invalid"
			case "Company":
				if tag == "required" {
					return "invalid request: company is required"
				}
				return "invalid request: company is invalid"
			case "Reward":
				if tag == "required" {
					return "invalid request: reward is required"
				}
				if tag == "gte" {
					return "invalid request: reward must be at least 1"
				}
				return "invalid request: reward is invalid"
			default:
				if tag == "required" {
					return "invalid request: " + field + " is required"
				}
				return "invalid request: " + field + " is invalid"
			}
		}
	}
	return "invalid request"
}

// GetRedeem handles GET /api/redeems/:token requests to look up a token.
func (h *RedeemHandler) GetRedeem(c *fiber.Ctx) error {
	token := c.Params("token")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request: token is required",
		})
	}

	if !h.manager.Enabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "persistence disabled"})
	}

	redeem, err := h.manager.SelectRedeemByToken(c.Context(), token)
	if err != nil {
		log.Error().Err(err).Str("token", token).Msg("failed to get redeem token")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	if redeem == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "token not found"})
	}

	return c.JSON(redeem)
}

// RedeemToken handles POST /api/redeems/redeem requests to claim a token
// for a user. Exactly one of any concurrent attempts on the same token
// succeeds.
func (h *RedeemHandler) RedeemToken(c *fiber.Ctx) error {
	var req model.RedeemRequest

	// Parse JSON body
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatRedeemValidationError(err)})
	}

	won, err := h.manager.UpdateRedeem(c.Context(), req.Username, req.Token)
	if err != nil {
		if errors.Is(err, persistence.ErrPersistenceDisabled) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "persistence disabled"})
		}
		log.Error().Err(err).Str("token", req.Token).Msg("failed to redeem token")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
	if !won {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "token already redeemed or not found"})
	}

	log.Info().Str("token", req.Token).Str("username", req.Username).Msg("token redeemed")
	return c.JSON(fiber.Map{"token": req.Token, "username": req.Username})
}

// CreateRedeems handles POST /api/redeems requests to bulk-issue new tokens.
func (h *RedeemHandler) CreateRedeems(c *fiber.Ctx) error {
	var req model.CreateRedeemsRequest

	// Parse JSON body
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	// Validate request
	if err := h.validator.Struct(req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": formatRedeemValidationError(err)})
	}

	if !h.manager.Enabled() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "persistence disabled"})
	}

	redeems := make([]*model.Redeem, 0, len(req.Tokens))
	for _, token := range req.Tokens {
		redeems = append(redeems, model.NewRedeem(token, req.Company, *req.Reward))
	}

	if err := h.manager.InsertRedeems(c.Context(), redeems); err != nil {
		if errors.Is(err, repository.ErrTokenExists) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "redeem token already exists"})
		}
		log.Error().Err(err).Str("company", req.Company).Msg("failed to insert redeem tokens")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}

	log.Info().Str("company", req.Company).Int("count", len(redeems)).Msg("redeem tokens issued")
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"created": len(redeems)})
}
