package handlers

import (
	"errors"
	"log"
	"mime/multipart"
	"strings"

	"membership-admin/internal/core/domain"
	"membership-admin/internal/core/services"
	"membership-admin/internal/pkg/pagination"
	"membership-admin/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// MemberHandler handles member record endpoints
type MemberHandler struct {
	memberService services.MemberRecords
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(memberService services.MemberRecords) *MemberHandler {
	return &MemberHandler{memberService: memberService}
}

// Register creates a member with its first membership interval
// @Summary Register member
// @Description Accepts JSON or multipart form data; logo and signature are optional image files
// @Tags Members
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 409 {object} response.Response
// @Router /members [post]
func (h *MemberHandler) Register(c *fiber.Ctx) error {
	var input services.RegisterMemberInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	var err error
	if input.Logo, err = formFile(c, "logo"); err != nil {
		return response.BadRequest(c, "Invalid logo upload")
	}
	if input.Signature, err = formFile(c, "signature"); err != nil {
		return response.BadRequest(c, "Invalid signature upload")
	}

	result, err := h.memberService.Register(c.UserContext(), &input)
	if err != nil {
		return memberError(c, err, "Failed to register member")
	}

	return response.Created(c, "Member registered successfully", result)
}

// Search lists members matching the query
// @Summary Search members
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param keyword query string false "First name, last name or primary mobile"
// @Param membership_id query string false "Membership ID"
// @Param organization_name query string false "Organization name"
// @Param primary_mobile query string false "Primary mobile"
// @Param email query string false "Email"
// @Param status query string false "Active, Expired or In Progress"
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Router /members [get]
func (h *MemberHandler) Search(c *fiber.Ctx) error {
	params := pagination.GetParams(c)

	input := &services.SearchInput{
		MemberFilter: domain.MemberFilter{
			Keyword:          c.Query("keyword"),
			MembershipID:     c.Query("membership_id"),
			OrganizationName: c.Query("organization_name"),
			PrimaryMobile:    c.Query("primary_mobile"),
			Email:            c.Query("email"),
		},
		Status: c.Query("status"),
		Page:   params.Page,
		Limit:  params.Limit,
	}

	members, meta, err := h.memberService.Search(c.UserContext(), input)
	if err != nil {
		return memberError(c, err, "Failed to search members")
	}

	return response.Success(c, "Members retrieved successfully", &pagination.Response{
		Data: members,
		Meta: meta,
	})
}

// Get returns a member profile with its membership history
// @Summary Get member
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param id path string true "Membership ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /members/{id} [get]
func (h *MemberHandler) Get(c *fiber.Ctx) error {
	result, err := h.memberService.Get(c.UserContext(), membershipID(c))
	if err != nil {
		return memberError(c, err, "Failed to get member")
	}

	return response.Success(c, "Member retrieved successfully", result)
}

// Memberships lists a member's intervals
// @Summary List member memberships
// @Tags Members
// @Produce json
// @Security BearerAuth
// @Param id path string true "Membership ID"
// @Success 200 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /members/{id}/memberships [get]
func (h *MemberHandler) Memberships(c *fiber.Ctx) error {
	result, err := h.memberService.Memberships(c.UserContext(), membershipID(c))
	if err != nil {
		return memberError(c, err, "Failed to get memberships")
	}

	return response.Success(c, "Memberships retrieved successfully", result)
}

// Update edits a member profile
// @Summary Update member
// @Description Partial update; omitted fields keep their value. Dates of membership change only through renewal.
// @Tags Members
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param id path string true "Membership ID"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /members/{id} [put]
func (h *MemberHandler) Update(c *fiber.Ctx) error {
	var input services.UpdateMemberInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	var err error
	if input.Logo, err = formFile(c, "logo"); err != nil {
		return response.BadRequest(c, "Invalid logo upload")
	}
	if input.Signature, err = formFile(c, "signature"); err != nil {
		return response.BadRequest(c, "Invalid signature upload")
	}

	result, err := h.memberService.Update(c.UserContext(), membershipID(c), &input)
	if err != nil {
		return memberError(c, err, "Failed to update member")
	}

	return response.Success(c, "Member updated successfully", result)
}

// Renew appends a membership interval
// @Summary Renew membership
// @Description start_date defaults to the day after the latest interval ends, or today
// @Tags Members
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Membership ID"
// @Success 201 {object} response.Response
// @Failure 400 {object} response.Response
// @Failure 404 {object} response.Response
// @Router /members/{id}/renew [post]
func (h *MemberHandler) Renew(c *fiber.Ctx) error {
	var input services.RenewInput
	if err := c.BodyParser(&input); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	result, err := h.memberService.Renew(c.UserContext(), membershipID(c), &input)
	if err != nil {
		return memberError(c, err, "Failed to renew membership")
	}

	return response.Created(c, "Membership renewed successfully", result)
}

// memberError maps service errors to HTTP responses
func memberError(c *fiber.Ctx, err error, fallback string) error {
	var dateErr domain.InvalidDateError
	switch {
	case errors.As(err, &dateErr):
		fields := map[string]string{}
		if dateErr.Field != "" {
			fields[dateErr.Field] = dateErr.Reason
		}
		return response.ValidationError(c, dateErr.Error(), fields)
	case errors.Is(err, domain.ErrInvalidInput):
		return response.BadRequest(c, err.Error())
	case errors.Is(err, domain.ErrMemberNotFound):
		return response.NotFound(c, "Member not found")
	case errors.Is(err, domain.ErrAllocationConflict):
		return response.Conflict(c, "Membership ID was taken concurrently, please retry")
	case errors.Is(err, domain.ErrAllocationExhausted):
		log.Printf("❌ %v", err)
		return response.InternalServerError(c, "Membership ID sequence exhausted for this year")
	default:
		log.Printf("❌ %s: %v", fallback, err)
		return response.InternalServerError(c, fallback)
	}
}

// membershipID reads the :id route param, normalized to upper case
func membershipID(c *fiber.Ctx) string {
	return strings.ToUpper(strings.TrimSpace(c.Params("id")))
}

// formFile returns the named upload, or nil when the request carries none
func formFile(c *fiber.Ctx, name string) (*multipart.FileHeader, error) {
	if !strings.HasPrefix(string(c.Request().Header.ContentType()), fiber.MIMEMultipartForm) {
		return nil, nil
	}
	form, err := c.MultipartForm()
	if err != nil {
		return nil, err
	}
	if files := form.File[name]; len(files) > 0 {
		return files[0], nil
	}
	return nil, nil
}
