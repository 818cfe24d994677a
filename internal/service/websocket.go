package service

import (
	"context"
	"encoding/json"

	v1 "github.com/tileplay/carcassonne/api/game/v1"
	"github.com/tileplay/carcassonne/pkg/codes"
	"github.com/tileplay/carcassonne/transport/websocket"
)

var _ websocket.Handler = (*Service)(nil)

func (s *Service) OnSessionOpen(sess *websocket.Session) {
	s.log.Debugf("session open. id:%s subject:%q", sess.ID(), sess.Subject())
}

func (s *Service) OnSessionClose(sess *websocket.Session) {
	s.hub.UnsubscribeAll(sess)
}

// OnMessage handles one action frame. The connection joins the topic of the
// game it acts on, so it receives the push of its own action with everyone
// else. Pushes with no game go back to the sender alone.
func (s *Service) OnMessage(ctx context.Context, sess *websocket.Session, data []byte) {
	env, err := v1.DecodeEnvelope(data)
	if err != nil {
		s.log.Debugf("undecodable frame. session:%s err:%v", sess.ID(), err)
		s.reply(sess, v1.Error{Code: codes.ReasonMalformedAction, Message: "frame is not a JSON action"})
		return
	}
	if sub := sess.Subject(); sub != "" && env.Player != nil && env.Player.ID != sub {
		s.reply(sess, v1.Error{
			Header:  v1.Header{GameID: env.GameID},
			Code:    codes.ReasonMalformedAction,
			Message: "player does not match the connection identity",
		})
		return
	}
	if env.GameID != "" {
		s.hub.Subscribe(env.GameID, sess)
	}

	if push := s.uc.Handle(ctx, env); push.Game() == "" {
		s.reply(sess, push)
	}
}

func (s *Service) reply(sess *websocket.Session, push v1.Push) {
	data, err := json.Marshal(push)
	if err != nil {
		s.log.Errorf("encode reply failed. session:%s err:%v", sess.ID(), err)
		return
	}
	_ = sess.Send(data)
}
