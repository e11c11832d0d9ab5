package dto

import (
	"time"

	"github.com/wb-go/wbf/ginext"
)

const (
	FieldBadFormat     = "FIELD_BADFORMAT"
	FieldIncorrect     = "FIELD_INCORRECT"
	ServiceUnavailable = "SERVICE_UNAVAILABLE"
	InternalError      = "Service is currently unavailable. Please try again later."

	Unauthorized          = "UNAUTHORIZED"
	Forbidden             = "FORBIDDEN"
	EventNotFound         = "EVENT_NOT_FOUND"
	UserNotFound          = "USER_NOT_FOUND"
	TeamNotFound          = "TEAM_NOT_FOUND"
	RegistrationDuplicate = "REGISTRATION_DUPLICATE"
	MemberWrongTemple     = "MEMBER_WRONG_TEMPLE"
	MemberDuplicate       = "MEMBER_DUPLICATE"
	TeamTooLarge          = "TEAM_TOO_LARGE"
)

type SignupRequest struct {
	TempleID     int64  `json:"temple_id" validate:"required"`
	FirstName    string `json:"first_name" validate:"required,min=2,max=100"`
	LastName     string `json:"last_name" validate:"required,min=1,max=100"`
	Email        string `json:"email" validate:"required,email"`
	AadharNumber string `json:"aadhar_number" validate:"required,aadhar"`
	Gender       string `json:"gender" validate:"required,gender"`
	Password     string `json:"password" validate:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token string          `json:"token"`
	User  ProfileResponse `json:"user"`
}

type ProfileResponse struct {
	ID        int64  `json:"id"`
	TempleID  int64  `json:"temple_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

type EventType struct {
	Name string `json:"name"`
}

type TeamEventResponse struct {
	ID        int64     `json:"id"`
	Gender    string    `json:"gender"`
	TeamSize  int       `json:"team_size"`
	EventType EventType `json:"event_type"`
}

type TeamMemberResponse struct {
	ID           int64  `json:"id"`
	TempleID     int64  `json:"temple_id"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	AadharNumber string `json:"aadhar_number"`
}

type TeamResponse struct {
	ID        int64                `json:"id"`
	TempleID  int64                `json:"temple_id"`
	EventID   int64                `json:"event_id"`
	Members   []TeamMemberResponse `json:"members"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

type RegisterTeamRequest struct {
	TempleID      int64   `json:"temple_id" validate:"required"`
	EventID       int64   `json:"event_id" validate:"required"`
	MemberUserIDs []int64 `json:"member_user_ids" validate:"required,min=1"`
}

type UpdateTeamRequest struct {
	MemberUserIDs []int64 `json:"member_user_ids" validate:"required,min=1"`
}

type LeaderboardRow struct {
	TempleID int64  `json:"temple_id"`
	Name     string `json:"name"`
	Points   int    `json:"points"`
}

// TeamOperateMessage is published to RabbitMQ after every successful
// create/update so the notification worker can mail the temple admin.
type TeamOperateMessage struct {
	MessageID string    `json:"message_id"`
	TeamID    int64     `json:"team_id"`
	EventID   int64     `json:"event_id"`
	TempleID  int64     `json:"temple_id"`
	Action    string    `json:"action"` // created|updated
	SentAt    time.Time `json:"sent_at"`
}

type Response struct {
	Status string `json:"status"`
	Error  *Error `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

type Error struct {
	Code string `json:"code"`
	Desc string `json:"desc"`
}

func BadResponseError(c *ginext.Context, code, desc string) {
	c.JSON(400, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func UnauthorizedError(c *ginext.Context) {
	c.JSON(401, Response{
		Status: "error",
		Error: &Error{
			Code: Unauthorized,
			Desc: "Authentication required",
		},
	})
}

func ForbiddenError(c *ginext.Context, desc string) {
	c.JSON(403, Response{
		Status: "error",
		Error: &Error{
			Code: Forbidden,
			Desc: desc,
		},
	})
}

func NotFoundError(c *ginext.Context, code, desc string) {
	c.JSON(404, Response{
		Status: "error",
		Error: &Error{
			Code: code,
			Desc: desc,
		},
	})
}

func InternalServerError(c *ginext.Context) {
	c.JSON(500, Response{
		Status: "error",
		Error: &Error{
			Code: ServiceUnavailable,
			Desc: InternalError,
		},
	})
}

func EventNotFoundError(c *ginext.Context) {
	NotFoundError(c, EventNotFound, "Event not found")
}

func UserNotFoundError(c *ginext.Context) {
	NotFoundError(c, UserNotFound, "User not found")
}

func TeamNotFoundError(c *ginext.Context) {
	NotFoundError(c, TeamNotFound, "Team not found")
}

func RegistrationDuplicateError(c *ginext.Context) {
	BadResponseError(c, RegistrationDuplicate, "A team is already registered for this event")
}

func SuccessResponse(c *ginext.Context, data any) {
	c.JSON(200, Response{
		Status: "ok",
		Data:   data,
	})
}

func SuccessCreatedResponse(c *ginext.Context, data any) {
	c.JSON(201, Response{
		Status: "ok",
		Data:   data,
	})
}
