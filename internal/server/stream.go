package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/alexbleotu/ferrumfix/internal/observability"
	"github.com/alexbleotu/ferrumfix/internal/protocol"
	"github.com/alexbleotu/ferrumfix/internal/protocol/frame"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const streamWriteWait = 10 * time.Second

// streamEvent is one JSON frame pushed to a /stream client.
type streamEvent struct {
	Kind     string                  `json:"kind"`
	Message  *protocol.MessageMirror `json:"message,omitempty"`
	Error    *decodeFailure          `json:"error,omitempty"`
	Buffered int                     `json:"buffered"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleStream upgrades to a websocket and runs a framer over the bytes the
// client sends. Frames may be split across websocket messages; each decoded
// message or dropped frame is pushed back as a streamEvent. A fatal error
// closes the socket.
func (s *Inspector) handleStream(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer ws.Close()
	done := observability.ConnOpened()
	defer done()

	log := observability.Logger("stream")
	ws.SetReadLimit(int64(s.limits.MaxBufferBytes))
	framer := frame.New(s.dec, s.limits)
	off := 0
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("stream read ended")
			}
			return
		}
		if err := framer.Feed(data); err != nil {
			s.closeStream(ws, websocket.CloseMessageTooBig, err.Error())
			return
		}
		for {
			ev := framer.Poll()
			if ev.Kind == frame.EventNeedMoreData {
				break
			}
			out := streamEvent{Kind: ev.Kind.String(), Buffered: framer.Buffered()}
			switch ev.Kind {
			case frame.EventMessage:
				observability.RecordDecoded(ev.Message.BeginString, ev.Message.MsgType, ev.Size)
				dict, _ := s.dec.DictionaryFor(ev.Message)
				m := protocol.NewMirror(dict, ev.Message)
				out.Message = &m
			default:
				observability.RecordDecodeError(ev.Err.Kind.String())
				out.Error = failureOf(ev.Err, off, ev.Size)
			}
			off += ev.Size
			_ = ws.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := ws.WriteJSON(out); err != nil {
				log.Debug().Err(err).Msg("stream write failed")
				return
			}
			if ev.Kind == frame.EventFatal {
				s.closeStream(ws, websocket.CloseUnsupportedData, ev.Err.Error())
				return
			}
		}
	}
}

func (s *Inspector) closeStream(ws *websocket.Conn, code int, reason string) {
	if len(reason) > 120 {
		reason = reason[:120]
	}
	msg := websocket.FormatCloseMessage(code, reason)
	if err := ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(streamWriteWait)); err != nil && !errors.Is(err, websocket.ErrCloseSent) {
		log := observability.Logger("stream")
		log.Debug().Err(err).Msg("close frame not sent")
	}
}

func failureOf(err *protocol.DecodeError, offset, size int) *decodeFailure {
	return &decodeFailure{
		Offset:  offset,
		Bytes:   size,
		Kind:    err.Kind.String(),
		Tag:     err.Tag,
		MsgType: err.MsgType,
		Error:   err.Error(),
		Fatal:   err.Fatal(),
	}
}
