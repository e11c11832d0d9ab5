package consumerWorker

import (
	"context"
	"encoding/json"

	"github.com/wb-go/wbf/zlog"

	"templegames/internal/dto"
	"templegames/internal/mailer"
	"templegames/internal/rabbit"
	"templegames/internal/repo"
)

// Reader consumes team registration notices and mails the temple admin
// the current roster.
type Reader struct {
	RMQ     *rabbit.Client
	repo    repo.Repository
	mailCfg mailer.Config
	done    chan struct{}
	cancel  context.CancelFunc
}

func NewReader(rmq *rabbit.Client, repo repo.Repository, mailCfg mailer.Config) *Reader {
	return &Reader{
		RMQ:     rmq,
		repo:    repo,
		mailCfg: mailCfg,
		done:    make(chan struct{}),
	}
}

func (r *Reader) Start(ctx context.Context) {
	cctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	zlog.Logger.Info().Msg("team notification reader started")

	go func() {
		defer close(r.done)

		handler := func(body []byte) error {
			var msg dto.TeamOperateMessage
			if err := json.Unmarshal(body, &msg); err != nil {
				zlog.Logger.Error().
					Err(err).
					Msgf("failed to unmarshal message: %s", string(body))
				return err
			}

			zlog.Logger.Info().
				Str("message_id", msg.MessageID).
				Int64("team_id", msg.TeamID).
				Str("action", msg.Action).
				Msg("received team notice")

			team, err := r.repo.GetTeamByID(cctx, msg.TeamID)
			if err != nil {
				zlog.Logger.Error().
					Err(err).
					Int64("team_id", msg.TeamID).
					Msg("failed to get team from DB in worker")
				return nil
			}

			event, err := r.repo.GetTeamEventByID(cctx, team.EventID)
			if err != nil {
				zlog.Logger.Error().
					Err(err).
					Int64("event_id", team.EventID).
					Msg("failed to get event from DB in worker")
				return nil
			}

			admin, err := r.repo.GetTempleAdmin(cctx, team.TempleID)
			if err != nil {
				zlog.Logger.Warn().
					Int64("temple_id", team.TempleID).
					Msg("no temple admin to notify, skipping email")
				return nil
			}

			names := make([]string, 0, len(team.Members))
			for _, m := range team.Members {
				names = append(names, m.FirstName+" "+m.LastName)
			}

			if err := mailer.SendTeamRosterEmail(
				&zlog.Logger,
				r.mailCfg,
				event.EventTypeName,
				msg.Action,
				admin.Email,
				names,
			); err != nil {
				zlog.Logger.Warn().
					Err(err).
					Msg("failed to send roster notification email")
			}

			return nil
		}

		if err := r.RMQ.Consume(handler); err != nil {
			zlog.Logger.Error().Err(err).Msg("failed to start consuming")
			return
		}

		<-cctx.Done()
		zlog.Logger.Info().Msg("team notification reader stopped by context")
	}()
}

func (r *Reader) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}
