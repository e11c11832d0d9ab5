package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/ginext"
	"golang.org/x/crypto/bcrypt"

	"templegames/internal/auth"
	"templegames/internal/dto"
	"templegames/internal/model"
	"templegames/internal/rabbit"
	"templegames/internal/repo"
	"templegames/pkg/validator"
)

const tokenTTL = 24 * time.Hour

type Service interface {
	Signup(ctx *ginext.Context)
	Login(ctx *ginext.Context)
	Profile(ctx *ginext.Context)
	TeamEvents(ctx *ginext.Context)
	TempleTeams(ctx *ginext.Context)
	TempleUsers(ctx *ginext.Context)
	SearchByAadhar(ctx *ginext.Context)
	RegisterTeam(ctx *ginext.Context)
	UpdateTeam(ctx *ginext.Context)
	Leaderboard(ctx *ginext.Context)
}

type service struct {
	repo   repo.Repository
	log    *zerolog.Logger
	rbt    *rabbit.Client
	secret string
}

func NewService(repo repo.Repository, logger *zerolog.Logger, rbt *rabbit.Client, secret string) Service {
	return &service{
		repo:   repo,
		log:    logger,
		rbt:    rbt,
		secret: secret,
	}
}

func (s *service) Signup(ctx *ginext.Context) {
	var req dto.SignupRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		s.log.Error().Err(err).Msg("failed to parse signup request")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to hash password")
		dto.InternalServerError(ctx)
		return
	}

	user := &model.User{
		TempleID:     req.TempleID,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Email:        req.Email,
		AadharNumber: req.AadharNumber,
		Gender:       req.Gender,
		Role:         model.RoleUser,
		PassHash:     string(hash),
	}

	id, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create user in DB")
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Email or aadhar number already registered")
		return
	}
	user.ID = id

	s.repo.LogAction(ctx, id, "signup", "user registered")
	s.log.Info().Int64("user_id", id).Msg("user created successfully")

	dto.SuccessCreatedResponse(ctx, profileOf(user))
}

func (s *service) Login(ctx *ginext.Context) {
	var req dto.LoginRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	user, err := s.repo.GetUserByEmail(ctx, req.Email)
	if err != nil {
		dto.UnauthorizedError(ctx)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PassHash), []byte(req.Password)) != nil {
		dto.UnauthorizedError(ctx)
		return
	}

	token, err := auth.IssueToken(s.secret, user, tokenTTL)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to sign token")
		dto.InternalServerError(ctx)
		return
	}

	s.repo.LogAction(ctx, user.ID, "login", "success")

	dto.SuccessResponse(ctx, dto.LoginResponse{
		Token: token,
		User:  profileOf(user),
	})
}

func (s *service) Profile(ctx *ginext.Context) {
	user, err := s.repo.GetUserByID(ctx, auth.UserID(ctx))
	if err != nil {
		dto.UnauthorizedError(ctx)
		return
	}
	dto.SuccessResponse(ctx, profileOf(user))
}

func (s *service) TeamEvents(ctx *ginext.Context) {
	events, err := s.repo.GetTeamEvents(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get team events")
		dto.InternalServerError(ctx)
		return
	}

	resp := make([]dto.TeamEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, dto.TeamEventResponse{
			ID:        e.ID,
			Gender:    e.Gender,
			TeamSize:  e.TeamSize,
			EventType: dto.EventType{Name: e.EventTypeName},
		})
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) TempleTeams(ctx *ginext.Context) {
	teams, err := s.repo.GetTeamsByTemple(ctx, auth.TempleID(ctx))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get temple teams")
		dto.InternalServerError(ctx)
		return
	}

	resp := make([]dto.TeamResponse, 0, len(teams))
	for _, t := range teams {
		resp = append(resp, teamOf(&t))
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) TempleUsers(ctx *ginext.Context) {
	users, err := s.repo.GetUsersByTemple(ctx, auth.TempleID(ctx))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get temple users")
		dto.InternalServerError(ctx)
		return
	}

	resp := make([]dto.TeamMemberResponse, 0, len(users))
	for _, u := range users {
		resp = append(resp, memberOf(&u))
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) SearchByAadhar(ctx *ginext.Context) {
	aadhar := ctx.Query("aadharNumber")
	if aadhar == "" {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "aadharNumber is required")
		return
	}

	user, err := s.repo.GetUserByAadhar(ctx, aadhar)
	if err != nil {
		dto.UserNotFoundError(ctx)
		return
	}
	if user.TempleID != auth.TempleID(ctx) {
		dto.ForbiddenError(ctx, "Member belongs to a different temple")
		return
	}

	dto.SuccessResponse(ctx, memberOf(user))
}

func (s *service) RegisterTeam(ctx *ginext.Context) {
	var req dto.RegisterTeamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	templeID := auth.TempleID(ctx)
	if req.TempleID != templeID {
		dto.ForbiddenError(ctx, "Cannot register a team for another temple")
		return
	}

	teamID, err := s.repo.CreateTeamTx(ctx.Request.Context(), templeID, req.EventID, req.MemberUserIDs)
	if err != nil {
		s.rejectTeamError(ctx, err)
		return
	}

	s.repo.LogAction(ctx, auth.UserID(ctx), "register_team", "team_id="+strconv.FormatInt(teamID, 10))
	s.log.Info().Int64("team_id", teamID).Int64("event_id", req.EventID).Msg("team registered successfully")

	s.publishTeamNotice(teamID, req.EventID, templeID, "created")

	team, err := s.repo.GetTeamByID(ctx, teamID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to reload created team")
		dto.InternalServerError(ctx)
		return
	}
	dto.SuccessCreatedResponse(ctx, teamOf(team))
}

func (s *service) UpdateTeam(ctx *ginext.Context) {
	teamID, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid team ID")
		return
	}

	var req dto.UpdateTeamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, "Invalid JSON format")
		return
	}

	if verr := validator.Validate(ctx, req); verr != nil {
		dto.BadResponseError(ctx, dto.FieldIncorrect, fmt.Sprintf("%v", verr))
		return
	}

	templeID := auth.TempleID(ctx)
	if err := s.repo.UpdateTeamMembersTx(ctx.Request.Context(), teamID, templeID, req.MemberUserIDs); err != nil {
		s.rejectTeamError(ctx, err)
		return
	}

	s.repo.LogAction(ctx, auth.UserID(ctx), "update_team", "team_id="+strconv.FormatInt(teamID, 10))
	s.log.Info().Int64("team_id", teamID).Msg("team updated successfully")

	team, err := s.repo.GetTeamByID(ctx, teamID)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to reload updated team")
		dto.InternalServerError(ctx)
		return
	}

	s.publishTeamNotice(teamID, team.EventID, templeID, "updated")

	dto.SuccessResponse(ctx, teamOf(team))
}

func (s *service) Leaderboard(ctx *ginext.Context) {
	temples, err := s.repo.GetLeaderboard(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get leaderboard")
		dto.InternalServerError(ctx)
		return
	}

	resp := make([]dto.LeaderboardRow, 0, len(temples))
	for _, t := range temples {
		resp = append(resp, dto.LeaderboardRow{
			TempleID: t.ID,
			Name:     t.Name,
			Points:   t.Points,
		})
	}
	dto.SuccessResponse(ctx, resp)
}

func (s *service) rejectTeamError(ctx *ginext.Context, err error) {
	switch err {
	case repo.ErrEventNotFound:
		dto.EventNotFoundError(ctx)
	case repo.ErrTeamNotFound:
		dto.TeamNotFoundError(ctx)
	case repo.ErrDuplicateTeam:
		dto.RegistrationDuplicateError(ctx)
	case repo.ErrDuplicateMember:
		dto.BadResponseError(ctx, dto.MemberDuplicate, "Duplicate member in roster")
	case repo.ErrMemberWrongTemple:
		dto.BadResponseError(ctx, dto.MemberWrongTemple, "Member belongs to a different temple")
	case repo.ErrTeamTooLarge:
		dto.BadResponseError(ctx, dto.TeamTooLarge, "Roster exceeds the event team size")
	case repo.ErrUserNotFound:
		dto.BadResponseError(ctx, dto.UserNotFound, "Unknown member in roster")
	default:
		s.log.Error().Err(err).Msg("team operation failed")
		dto.InternalServerError(ctx)
	}
}

func (s *service) publishTeamNotice(teamID, eventID, templeID int64, action string) {
	if s.rbt == nil {
		return
	}
	msg := dto.TeamOperateMessage{
		MessageID: uuid.NewString(),
		TeamID:    teamID,
		EventID:   eventID,
		TempleID:  templeID,
		Action:    action,
		SentAt:    time.Now(),
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to marshal team notice")
		return
	}
	if err := s.rbt.Publish(payload); err != nil {
		s.log.Error().Err(err).Msg("failed to publish team notice to RabbitMQ")
	}
}

func profileOf(u *model.User) dto.ProfileResponse {
	return dto.ProfileResponse{
		ID:        u.ID,
		TempleID:  u.TempleID,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      u.Role,
	}
}

func memberOf(u *model.User) dto.TeamMemberResponse {
	return dto.TeamMemberResponse{
		ID:           u.ID,
		TempleID:     u.TempleID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		AadharNumber: u.AadharNumber,
	}
}

func teamOf(t *model.Team) dto.TeamResponse {
	members := make([]dto.TeamMemberResponse, 0, len(t.Members))
	for _, m := range t.Members {
		members = append(members, memberOf(&m))
	}
	return dto.TeamResponse{
		ID:        t.ID,
		TempleID:  t.TempleID,
		EventID:   t.EventID,
		Members:   members,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}
